package lichess

import (
	"errors"
	nethttp "net/http"
	"strings"

	"github.com/gaborage/lichess-go/config"
	"github.com/gaborage/lichess-go/httpclient"
	"github.com/gaborage/lichess-go/logger"
)

// Client exposes the REST endpoints on top of a retrying transport.
// It is safe for concurrent use.
type Client struct {
	transport    httpclient.Transport
	explorerURL  string
	tablebaseURL string
	logger       logger.Logger
}

type options struct {
	httpClient   *nethttp.Client
	roundTripper nethttp.RoundTripper
	retrierOpts  []httpclient.RetrierOption
	interceptors []httpclient.RequestInterceptor
}

// Option customizes a Client.
type Option func(*options)

// WithHTTPClient uses httpClient for connections. Its Timeout should be zero.
func WithHTTPClient(httpClient *nethttp.Client) Option {
	return func(o *options) {
		o.httpClient = httpClient
	}
}

// WithRoundTripper replaces the round tripper of the underlying HTTP client.
func WithRoundTripper(rt nethttp.RoundTripper) Option {
	return func(o *options) {
		o.roundTripper = rt
	}
}

// WithRetrierOptions passes options to the retrier, e.g. a custom sleeper.
func WithRetrierOptions(opts ...httpclient.RetrierOption) Option {
	return func(o *options) {
		o.retrierOpts = append(o.retrierOpts, opts...)
	}
}

// WithRequestInterceptor runs interceptor before every attempt.
func WithRequestInterceptor(interceptor httpclient.RequestInterceptor) Option {
	return func(o *options) {
		o.interceptors = append(o.interceptors, interceptor)
	}
}

// New assembles a Client from cfg. A nil log creates a logger from cfg.Log.
func New(cfg *config.Config, log logger.Logger, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("lichess: config is required")
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	policy := cfg.RetryPolicy()
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.New(cfg.Log.Level, cfg.Log.Pretty)
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	builder := httpclient.NewBuilder(log).
		WithBaseURL(cfg.API.BaseURL).
		WithAccessToken(cfg.API.AccessToken).
		WithTimeout(cfg.API.Timeout).
		WithUserAgent(cfg.API.UserAgent).
		WithRateLimit(cfg.Throttle.RequestsPerSecond, cfg.Throttle.Burst)
	if o.httpClient != nil {
		builder = builder.WithHTTPClient(o.httpClient)
	}
	if o.roundTripper != nil {
		builder = builder.WithTransport(o.roundTripper)
	}
	for _, interceptor := range o.interceptors {
		builder = builder.WithRequestInterceptor(interceptor)
	}

	log.Debug().
		Str("base_url", cfg.API.BaseURL).
		Bool("authenticated", cfg.API.AccessToken != "").
		Bool("retry_rate_limit", policy.RetryOnRateLimit).
		Bool("retry_transient", policy.RetryTransient).
		Msg("Lichess client created")

	return &Client{
		transport:    httpclient.NewRetrier(builder.Build(), policy, log, o.retrierOpts...),
		explorerURL:  strings.TrimRight(cfg.API.ExplorerURL, "/"),
		tablebaseURL: strings.TrimRight(cfg.API.TablebaseURL, "/"),
		logger:       log,
	}, nil
}

// Transport returns the retrying transport, for endpoints not wrapped here.
func (c *Client) Transport() httpclient.Transport {
	return c.transport
}

func requireArg(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &httpclient.ValidationError{Field: field, Message: field + " cannot be empty"}
	}
	return nil
}
