// Package config loads the client configuration from defaults, YAML and
// environment variables using koanf.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix prefixes every environment variable read by the loader.
	// LICHESS_RETRY_TRANSIENT_MAXDELAY maps to retry.transient.maxdelay.
	EnvPrefix = "LICHESS_"

	// DefaultFile is read by Load when present in the working directory.
	DefaultFile = "lichess.yaml"

	DefaultBaseURL      = "https://lichess.org"
	DefaultExplorerURL  = "https://explorer.lichess.ovh"
	DefaultTablebaseURL = "https://tablebase.lichess.ovh"
)

// Load loads configuration from multiple sources with priority:
// 1. Environment variables (highest priority)
// 2. lichess.yaml in the working directory, when it exists
// 3. Default values (lowest priority)
func Load() (*Config, error) {
	return load(func(k *koanf.Koanf) error {
		if _, err := os.Stat(DefaultFile); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		return k.Load(file.Provider(DefaultFile), yaml.Parser())
	}, os.Environ)
}

// LoadFile is like Load but reads the given YAML file, which must exist.
func LoadFile(path string) (*Config, error) {
	return load(func(k *koanf.Koanf) error {
		return k.Load(file.Provider(path), yaml.Parser())
	}, os.Environ)
}

// LoadFromBytes is like Load but takes the YAML document from memory.
func LoadFromBytes(data []byte) (*Config, error) {
	return load(func(k *koanf.Koanf) error {
		return k.Load(rawbytes.Provider(data), yaml.Parser())
	}, os.Environ)
}

func load(loadYAML func(*koanf.Koanf) error, environ func() []string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if err := loadYAML(k); err != nil {
		return nil, fmt.Errorf("failed to load yaml configuration: %w", err)
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: transformEnv,
		EnvironFunc:   environ,
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.k = k

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// transformEnv converts LICHESS_API_ACCESSTOKEN to api.accesstoken.
func transformEnv(key, value string) (string, any) {
	key = strings.TrimPrefix(key, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(key), "_", "."), value
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"api.baseurl":      DefaultBaseURL,
		"api.explorerurl":  DefaultExplorerURL,
		"api.tablebaseurl": DefaultTablebaseURL,
		"api.accesstoken":  "",
		"api.timeout":      "30s",
		"api.useragent":    "lichess-go",

		"retry.ratelimit.enabled":      true,
		"retry.ratelimit.maxretries":   3,
		"retry.ratelimit.defaultdelay": "1s",

		"retry.transient.enabled":    true,
		"retry.transient.maxretries": 3,
		"retry.transient.basedelay":  "1s",
		"retry.transient.maxdelay":   "30s",
		"retry.transient.jitter":     0.25,

		"throttle.requestspersecond": 0,
		"throttle.burst":             1,

		"log.level":  "info",
		"log.pretty": false,
	}

	return k.Load(confmap.Provider(defaults, "."), nil)
}

// String returns a raw value by dotted key, including keys outside the typed structure.
func (c *Config) String(key string) string {
	if c.k == nil {
		return ""
	}
	return c.k.String(key)
}

// Exists reports whether key was set by any source.
func (c *Config) Exists(key string) bool {
	return c.k != nil && c.k.Exists(key)
}
