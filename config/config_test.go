package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
api:
  baseurl: https://lichess.dev
  timeout: 10s
  useragent: my-bot/1.0
retry:
  ratelimit:
    maxretries: 1
  transient:
    maxretries: 5
    basedelay: 500ms
    maxdelay: 20s
    jitter: 0.1
log:
  level: debug
`

func TestLoadFromBytesDefaults(t *testing.T) {
	cfg, err := LoadFromBytes(nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultBaseURL, cfg.API.BaseURL)
	assert.Equal(t, DefaultExplorerURL, cfg.API.ExplorerURL)
	assert.Equal(t, DefaultTablebaseURL, cfg.API.TablebaseURL)
	assert.Empty(t, cfg.API.AccessToken)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)

	assert.True(t, cfg.Retry.RateLimit.Enabled)
	assert.Equal(t, 3, cfg.Retry.RateLimit.MaxRetries)
	assert.Equal(t, time.Second, cfg.Retry.RateLimit.DefaultDelay)

	assert.True(t, cfg.Retry.Transient.Enabled)
	assert.Equal(t, 3, cfg.Retry.Transient.MaxRetries)
	assert.Equal(t, time.Second, cfg.Retry.Transient.BaseDelay)
	assert.Equal(t, 30*time.Second, cfg.Retry.Transient.MaxDelay)
	assert.InDelta(t, 0.25, cfg.Retry.Transient.Jitter, 1e-9)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Log.Pretty)
}

func TestLoadFromBytesOverridesDefaults(t *testing.T) {
	cfg, err := LoadFromBytes([]byte(validYAML))
	require.NoError(t, err)

	assert.Equal(t, "https://lichess.dev", cfg.API.BaseURL)
	assert.Equal(t, DefaultExplorerURL, cfg.API.ExplorerURL)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	assert.Equal(t, "my-bot/1.0", cfg.API.UserAgent)
	assert.Equal(t, 1, cfg.Retry.RateLimit.MaxRetries)
	assert.Equal(t, 5, cfg.Retry.Transient.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.Retry.Transient.BaseDelay)
	assert.Equal(t, 20*time.Second, cfg.Retry.Transient.MaxDelay)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestEnvironmentHasHighestPriority(t *testing.T) {
	t.Setenv("LICHESS_API_ACCESSTOKEN", "lip_env_token")
	t.Setenv("LICHESS_RETRY_TRANSIENT_MAXDELAY", "45s")
	t.Setenv("LICHESS_RETRY_RATELIMIT_ENABLED", "false")
	t.Setenv("LICHESS_LOG_LEVEL", "warn")

	cfg, err := LoadFromBytes([]byte(validYAML))
	require.NoError(t, err)

	assert.Equal(t, "lip_env_token", cfg.API.AccessToken)
	assert.Equal(t, 45*time.Second, cfg.Retry.Transient.MaxDelay)
	assert.False(t, cfg.Retry.RateLimit.Enabled)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.True(t, cfg.Exists("api.accesstoken"))
	assert.Equal(t, "lip_env_token", cfg.String("api.accesstoken"))
}

func TestLoadFile(t *testing.T) {
	t.Run("reads yaml file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "custom.yaml")
		require.NoError(t, os.WriteFile(path, []byte(validYAML), 0o600))

		cfg, err := LoadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "https://lichess.dev", cfg.API.BaseURL)
	})

	t.Run("missing file is an error", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
	})
}

func TestLoad(t *testing.T) {
	t.Run("without default file", func(t *testing.T) {
		t.Chdir(t.TempDir())

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, DefaultBaseURL, cfg.API.BaseURL)
	})

	t.Run("with default file", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultFile), []byte(validYAML), 0o600))
		t.Chdir(dir)

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "my-bot/1.0", cfg.API.UserAgent)
	})
}

func TestValidationErrors(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		field    string
		category string
	}{
		{
			name:     "base delay above max delay",
			yaml:     "retry:\n  transient:\n    basedelay: 40s\n    maxdelay: 30s\n",
			field:    "retry.transient.basedelay",
			category: "invalid",
		},
		{
			name:     "negative rate limit retries",
			yaml:     "retry:\n  ratelimit:\n    maxretries: -1\n",
			field:    "retry.ratelimit.maxretries",
			category: "invalid",
		},
		{
			name:     "jitter above one",
			yaml:     "retry:\n  transient:\n    jitter: 1.5\n",
			field:    "retry.transient.jitter",
			category: "invalid",
		},
		{
			name:     "relative base url",
			yaml:     "api:\n  baseurl: lichess.org\n",
			field:    "api.baseurl",
			category: "invalid",
		},
		{
			name:     "empty explorer url",
			yaml:     "api:\n  explorerurl: \"\"\n",
			field:    "api.explorerurl",
			category: "missing",
		},
		{
			name:     "unknown log level",
			yaml:     "log:\n  level: verbose\n",
			field:    "log.level",
			category: "invalid",
		},
		{
			name:     "zero timeout",
			yaml:     "api:\n  timeout: 0s\n",
			field:    "api.timeout",
			category: "invalid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromBytes([]byte(tt.yaml))
			require.Error(t, err)

			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr), "expected ConfigError, got %T", err)
			assert.Equal(t, tt.field, cfgErr.Field)
			assert.Equal(t, tt.category, cfgErr.Category)
		})
	}
}

func TestValidateReportsAllFailures(t *testing.T) {
	cfg, err := LoadFromBytes(nil)
	require.NoError(t, err)

	cfg.API.BaseURL = ""
	cfg.Log.Level = "loud"

	err = Validate(cfg)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "api.baseurl", cfgErr.Field)
	assert.Contains(t, cfgErr.Action, "LICHESS_API_BASEURL")
	require.Len(t, cfgErr.Details, 1)
	assert.Contains(t, cfgErr.Details[0], "log.level")
	assert.Contains(t, err.Error(), "config_missing:")
}

func TestValidateNil(t *testing.T) {
	assert.Error(t, Validate(nil))
}

func TestConfigErrorFormatting(t *testing.T) {
	err := NewInvalidFieldError("log.level", "unsupported value \"x\"", []string{"info", "debug"})
	assert.Equal(t, `config_invalid: log.level unsupported value "x" must be one of: info, debug`, err.Error())
}

func TestRetryPolicy(t *testing.T) {
	cfg, err := LoadFromBytes([]byte(validYAML))
	require.NoError(t, err)

	policy := cfg.RetryPolicy()
	assert.True(t, policy.RetryOnRateLimit)
	assert.Equal(t, 1, policy.MaxRateLimitRetries)
	assert.Equal(t, time.Second, policy.RateLimitDefaultDelay)
	assert.True(t, policy.RetryTransient)
	assert.Equal(t, 5, policy.MaxTransientRetries)
	assert.Equal(t, 500*time.Millisecond, policy.TransientBaseDelay)
	assert.Equal(t, 20*time.Second, policy.TransientMaxDelay)
	assert.InDelta(t, 0.1, policy.Jitter, 1e-9)
	require.NoError(t, policy.Validate())
}
