package config

import (
	"time"

	"github.com/knadh/koanf/v2"
)

// Config represents the client configuration.
// The embedded koanf.Koanf instance allows access to keys that are not part
// of the typed structure.
type Config struct {
	API      APIConfig      `koanf:"api" json:"api" yaml:"api"`
	Retry    RetryConfig    `koanf:"retry" json:"retry" yaml:"retry"`
	Throttle ThrottleConfig `koanf:"throttle" json:"throttle" yaml:"throttle"`
	Log      LogConfig      `koanf:"log" json:"log" yaml:"log"`

	k *koanf.Koanf `json:"-" yaml:"-"`
}

// APIConfig holds the endpoints and credentials of the remote API.
type APIConfig struct {
	// BaseURL is the main API origin (e.g. https://lichess.org).
	BaseURL string `koanf:"baseurl" json:"baseurl" yaml:"baseurl" validate:"required,url"`
	// ExplorerURL hosts the opening explorer on a different origin.
	ExplorerURL string `koanf:"explorerurl" json:"explorerurl" yaml:"explorerurl" validate:"required,url"`
	// TablebaseURL hosts the endgame tablebase on a different origin.
	TablebaseURL string `koanf:"tablebaseurl" json:"tablebaseurl" yaml:"tablebaseurl" validate:"required,url"`
	// AccessToken is attached as a bearer token. Empty means anonymous access.
	AccessToken string `koanf:"accesstoken" json:"-" yaml:"-"`
	// Timeout is the per-request deadline. Streams only use it for the response headers.
	Timeout time.Duration `koanf:"timeout" json:"timeout" yaml:"timeout" validate:"gt=0"`
	// UserAgent identifies the application to the server.
	UserAgent string `koanf:"useragent" json:"useragent" yaml:"useragent"`
}

// RetryConfig groups the two independent retry budgets.
type RetryConfig struct {
	RateLimit RateLimitRetryConfig `koanf:"ratelimit" json:"ratelimit" yaml:"ratelimit"`
	Transient TransientRetryConfig `koanf:"transient" json:"transient" yaml:"transient"`
}

// RateLimitRetryConfig controls retries of HTTP 429 responses.
type RateLimitRetryConfig struct {
	Enabled    bool `koanf:"enabled" json:"enabled" yaml:"enabled"`
	MaxRetries int  `koanf:"maxretries" json:"maxretries" yaml:"maxretries" validate:"min=0"`
	// DefaultDelay is used when the server omits Retry-After.
	DefaultDelay time.Duration `koanf:"defaultdelay" json:"defaultdelay" yaml:"defaultdelay" validate:"min=0"`
}

// TransientRetryConfig controls retries of failures that produced no HTTP response.
type TransientRetryConfig struct {
	Enabled    bool          `koanf:"enabled" json:"enabled" yaml:"enabled"`
	MaxRetries int           `koanf:"maxretries" json:"maxretries" yaml:"maxretries" validate:"min=0"`
	BaseDelay  time.Duration `koanf:"basedelay" json:"basedelay" yaml:"basedelay" validate:"gt=0,ltefield=MaxDelay"`
	MaxDelay   time.Duration `koanf:"maxdelay" json:"maxdelay" yaml:"maxdelay" validate:"gt=0"`
	// Jitter is the maximum random fraction added to each computed delay.
	Jitter float64 `koanf:"jitter" json:"jitter" yaml:"jitter" validate:"min=0,max=1"`
}

// ThrottleConfig is an optional client-side request throttle. Zero disables it.
type ThrottleConfig struct {
	RequestsPerSecond float64 `koanf:"requestspersecond" json:"requestspersecond" yaml:"requestspersecond" validate:"min=0"`
	Burst             int     `koanf:"burst" json:"burst" yaml:"burst" validate:"min=0"`
}

// LogConfig holds logging preferences.
type LogConfig struct {
	Level  string `koanf:"level" json:"level" yaml:"level" validate:"oneof=trace debug info warn error disabled"`
	Pretty bool   `koanf:"pretty" json:"pretty" yaml:"pretty"`
}
