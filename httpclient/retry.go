package httpclient

import (
	"context"
	"errors"
	"io"
	"math/rand/v2"
	"time"

	"github.com/gaborage/lichess-go/httpclient/internal/tracking"
	"github.com/gaborage/lichess-go/logger"
)

const (
	// DefaultRateLimitDelay is used when a 429 response has no Retry-After
	DefaultRateLimitDelay = time.Second

	// DefaultJitter is the maximum fraction added to a transient backoff delay
	DefaultJitter = 0.25
)

// RetryPolicy configures the two independent retry budgets.
type RetryPolicy struct {
	// RetryOnRateLimit retries HTTP 429 responses.
	RetryOnRateLimit bool
	// MaxRateLimitRetries bounds 429 retries per logical call.
	MaxRateLimitRetries int
	// RateLimitDefaultDelay is waited when Retry-After is absent.
	RateLimitDefaultDelay time.Duration

	// RetryTransient retries failures without an HTTP response, for
	// requests marked retryable only.
	RetryTransient bool
	// MaxTransientRetries bounds transient retries per logical call.
	MaxTransientRetries int
	// TransientBaseDelay is the first backoff delay.
	TransientBaseDelay time.Duration
	// TransientMaxDelay caps the exponential delay before jitter. It does not
	// apply to Retry-After.
	TransientMaxDelay time.Duration
	// Jitter is the maximum random fraction (0.0 to 1.0) added to each
	// transient delay.
	Jitter float64
}

// DefaultRetryPolicy returns the default retry configuration.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		RetryOnRateLimit:      true,
		MaxRateLimitRetries:   3,
		RateLimitDefaultDelay: DefaultRateLimitDelay,
		RetryTransient:        true,
		MaxTransientRetries:   3,
		TransientBaseDelay:    time.Second,
		TransientMaxDelay:     30 * time.Second,
		Jitter:                DefaultJitter,
	}
}

// NoRetryPolicy disables both retry budgets.
func NoRetryPolicy() RetryPolicy {
	p := DefaultRetryPolicy()
	p.RetryOnRateLimit = false
	p.RetryTransient = false
	return p
}

// Validate checks the policy invariants.
func (p RetryPolicy) Validate() error {
	switch {
	case p.MaxRateLimitRetries < 0:
		return &ValidationError{Field: "MaxRateLimitRetries", Message: "must not be negative"}
	case p.MaxTransientRetries < 0:
		return &ValidationError{Field: "MaxTransientRetries", Message: "must not be negative"}
	case p.RateLimitDefaultDelay < 0:
		return &ValidationError{Field: "RateLimitDefaultDelay", Message: "must not be negative"}
	case p.TransientBaseDelay < 0:
		return &ValidationError{Field: "TransientBaseDelay", Message: "must not be negative"}
	case p.TransientBaseDelay > p.TransientMaxDelay:
		return &ValidationError{Field: "TransientBaseDelay", Message: "must not exceed TransientMaxDelay"}
	case p.Jitter < 0 || p.Jitter > 1:
		return &ValidationError{Field: "Jitter", Message: "must be between 0 and 1"}
	}
	return nil
}

// TransientDelay returns the delay before transient retry number attempt
// (0-based): min(base*2^attempt, max) plus up to Jitter of that value.
// random must be in [0, 1).
func (p RetryPolicy) TransientDelay(attempt int, random float64) time.Duration {
	delay := p.TransientBaseDelay
	for i := 0; i < attempt && delay < p.TransientMaxDelay; i++ {
		delay *= 2
	}
	if delay > p.TransientMaxDelay {
		delay = p.TransientMaxDelay
	}
	if p.Jitter > 0 && random > 0 {
		delay += time.Duration(random * p.Jitter * float64(delay))
	}
	return delay
}

// RateLimitDelay returns the wait before retrying a 429 response. The
// server's Retry-After is honored in full.
func (p RetryPolicy) RateLimitDelay(err *RateLimitError) time.Duration {
	if err.HasRetryAfter {
		return max(err.RetryAfter, 0)
	}
	return p.RateLimitDefaultDelay
}

// Sleeper waits for d or until ctx is done, returning ctx.Err() in that case.
type Sleeper func(ctx context.Context, d time.Duration) error

// RetrierOption configures a Retrier.
type RetrierOption func(*Retrier)

// WithSleeper replaces the timer-based sleep, for deterministic tests.
func WithSleeper(sleep Sleeper) RetrierOption {
	return func(r *Retrier) {
		r.sleep = sleep
	}
}

// WithRandom replaces the jitter source. random must return values in [0, 1).
func WithRandom(random func() float64) RetrierOption {
	return func(r *Retrier) {
		r.random = random
	}
}

// Retrier wraps a Transport with automatic retries. It implements Transport
// itself, so the two compose explicitly. Attempts are strictly sequential.
type Retrier struct {
	inner  Transport
	policy RetryPolicy
	logger logger.Logger
	sleep  Sleeper
	random func() float64
}

// NewRetrier creates a Retrier around inner.
func NewRetrier(inner Transport, policy RetryPolicy, log logger.Logger, opts ...RetrierOption) *Retrier {
	if log == nil {
		log = logger.NewNop()
	}
	r := &Retrier{
		inner:  inner,
		policy: policy,
		logger: log,
		sleep:  sleepContext,
		random: rand.Float64,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Policy returns the retry configuration in use.
func (r *Retrier) Policy() RetryPolicy {
	return r.policy
}

// Send retries inner.Send according to the policy
func (r *Retrier) Send(ctx context.Context, req *Request, out any) error {
	return r.run(ctx, req, func(ctx context.Context) error {
		return r.inner.Send(ctx, req, out)
	})
}

// SendText retries inner.SendText according to the policy
func (r *Retrier) SendText(ctx context.Context, req *Request, accept string) (string, error) {
	var text string
	err := r.run(ctx, req, func(ctx context.Context) error {
		var err error
		text, err = r.inner.SendText(ctx, req, accept)
		return err
	})
	return text, err
}

// Open retries establishing the stream. Failures after the body was handed
// out are not retried.
func (r *Retrier) Open(ctx context.Context, req *Request) (io.ReadCloser, error) {
	var body io.ReadCloser
	err := r.run(ctx, req, func(ctx context.Context) error {
		var err error
		body, err = r.inner.Open(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// run executes call until it succeeds, fails with a non-retryable error, or
// a budget is exhausted. The last error is returned unchanged.
func (r *Retrier) run(ctx context.Context, req *Request, call func(context.Context) error) error {
	var rateLimitRetries, transientRetries int

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := call(ctx)
		if err == nil {
			return nil
		}

		delay, reason, ok := r.nextDelay(req, err, &rateLimitRetries, &transientRetries)
		if !ok {
			return err
		}

		r.logger.Info().
			Err(err).
			Str("method", req.Method()).
			Str("url", req.Target()).
			Int("attempt", attempt).
			Dur("delay", delay).
			Str("reason", string(reason)).
			Msg("Retrying HTTP request")
		tracking.RecordRetry(ctx, string(reason))

		if err := r.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// nextDelay decides whether err is retried and how long to wait first.
func (r *Retrier) nextDelay(req *Request, err error, rateLimitRetries, transientRetries *int) (time.Duration, ErrorType, bool) {
	var rateLimited *RateLimitError
	if errors.As(err, &rateLimited) {
		if !r.policy.RetryOnRateLimit || *rateLimitRetries >= r.policy.MaxRateLimitRetries {
			return 0, "", false
		}
		*rateLimitRetries++
		return r.policy.RateLimitDelay(rateLimited), RateLimited, true
	}

	var transient *TransientError
	if errors.As(err, &transient) {
		if !r.policy.RetryTransient || !req.Retryable() || *transientRetries >= r.policy.MaxTransientRetries {
			return 0, "", false
		}
		delay := r.policy.TransientDelay(*transientRetries, r.random())
		*transientRetries++
		return delay, Transient, true
	}

	return 0, "", false
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
