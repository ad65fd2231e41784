package httpclient

import (
	"context"
	"errors"
	"io"
	nethttp "net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedTransport returns the scripted errors in order, then succeeds.
type scriptedTransport struct {
	mu     sync.Mutex
	script []error
	calls  int
}

func (s *scriptedTransport) next() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.script) == 0 {
		return nil
	}
	err := s.script[0]
	s.script = s.script[1:]
	return err
}

func (s *scriptedTransport) Send(_ context.Context, _ *Request, out any) error {
	if err := s.next(); err != nil {
		return err
	}
	if p, ok := out.(*string); ok {
		*p = "ok"
	}
	return nil
}

func (s *scriptedTransport) SendText(_ context.Context, _ *Request, _ string) (string, error) {
	if err := s.next(); err != nil {
		return "", err
	}
	return "1. e4 *", nil
}

func (s *scriptedTransport) Open(_ context.Context, _ *Request) (io.ReadCloser, error) {
	if err := s.next(); err != nil {
		return nil, err
	}
	return io.NopCloser(strings.NewReader("{\"a\":1}\n")), nil
}

func (s *scriptedTransport) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// sleepRecorder records requested sleeps without waiting.
type sleepRecorder struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.sleeps = append(r.sleeps, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *sleepRecorder) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.sleeps...)
}

func fixedRandom(v float64) func() float64 {
	return func() float64 { return v }
}

func newTestRetrier(inner Transport, policy RetryPolicy, sleeps *sleepRecorder) *Retrier {
	return NewRetrier(inner, policy, createTestLogger(), WithSleeper(sleeps.sleep), WithRandom(fixedRandom(0.5)))
}

func TestRetryPolicyDefaults(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.True(t, p.RetryOnRateLimit)
	assert.True(t, p.RetryTransient)
	assert.Equal(t, 3, p.MaxRateLimitRetries)
	assert.Equal(t, 3, p.MaxTransientRetries)
	assert.Equal(t, time.Second, p.RateLimitDefaultDelay)
	assert.Equal(t, time.Second, p.TransientBaseDelay)
	assert.Equal(t, 30*time.Second, p.TransientMaxDelay)
	assert.InDelta(t, DefaultJitter, p.Jitter, 1e-9)
	require.NoError(t, p.Validate())

	none := NoRetryPolicy()
	assert.False(t, none.RetryOnRateLimit)
	assert.False(t, none.RetryTransient)
}

func TestRetryPolicyValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RetryPolicy)
		field  string
	}{
		{"negative rate limit retries", func(p *RetryPolicy) { p.MaxRateLimitRetries = -1 }, "MaxRateLimitRetries"},
		{"negative transient retries", func(p *RetryPolicy) { p.MaxTransientRetries = -1 }, "MaxTransientRetries"},
		{"negative default delay", func(p *RetryPolicy) { p.RateLimitDefaultDelay = -time.Second }, "RateLimitDefaultDelay"},
		{"base above max", func(p *RetryPolicy) { p.TransientBaseDelay = time.Minute }, "TransientBaseDelay"},
		{"jitter above one", func(p *RetryPolicy) { p.Jitter = 1.5 }, "Jitter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultRetryPolicy()
			tt.mutate(&p)
			var validationErr *ValidationError
			require.ErrorAs(t, p.Validate(), &validationErr)
			assert.Equal(t, tt.field, validationErr.Field)
		})
	}
}

func TestTransientDelay(t *testing.T) {
	p := RetryPolicy{TransientBaseDelay: time.Second, TransientMaxDelay: 30 * time.Second, Jitter: 0.25}

	t.Run("exponential and capped without jitter", func(t *testing.T) {
		expected := []time.Duration{1, 2, 4, 8, 16, 30, 30, 30}
		for attempt, want := range expected {
			assert.Equal(t, want*time.Second, p.TransientDelay(attempt, 0), "attempt %d", attempt)
		}
	})

	t.Run("jitter adds a fraction of the delay", func(t *testing.T) {
		assert.Equal(t, 1125*time.Millisecond, p.TransientDelay(0, 0.5))
		assert.Equal(t, 2250*time.Millisecond, p.TransientDelay(1, 0.5))
		assert.LessOrEqual(t, p.TransientDelay(50, 0.99), 30*time.Second+30*time.Second/4)
	})
}

func TestRateLimitDelay(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.Equal(t, 5*time.Second, p.RateLimitDelay(&RateLimitError{RetryAfter: 5 * time.Second, HasRetryAfter: true}))
	assert.Equal(t, time.Duration(0), p.RateLimitDelay(&RateLimitError{RetryAfter: -time.Second, HasRetryAfter: true}))
	assert.Equal(t, time.Second, p.RateLimitDelay(&RateLimitError{}))
	assert.Equal(t, 2*time.Minute, p.RateLimitDelay(&RateLimitError{RetryAfter: 2 * time.Minute, HasRetryAfter: true}),
		"retry-after above the transient cap is honored in full")
}

func TestRetrierRateLimitWaitsRetryAfter(t *testing.T) {
	var sleeps sleepRecorder
	inner := &scriptedTransport{script: []error{
		&RateLimitError{RetryAfter: 5 * time.Second, HasRetryAfter: true},
	}}
	policy := DefaultRetryPolicy()
	policy.MaxRateLimitRetries = 1

	var out string
	err := newTestRetrier(inner, policy, &sleeps).Send(context.Background(), Post("/api/challenge/ai"), &out)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 2, inner.callCount())
	assert.Equal(t, []time.Duration{5 * time.Second}, sleeps.recorded())
}

func TestRetrierRateLimitDefaultDelayAndBudget(t *testing.T) {
	var sleeps sleepRecorder
	final := &RateLimitError{}
	inner := &scriptedTransport{script: []error{&RateLimitError{}, &RateLimitError{}, final}}
	policy := DefaultRetryPolicy()
	policy.MaxRateLimitRetries = 2
	policy.RateLimitDefaultDelay = 3 * time.Second

	err := newTestRetrier(inner, policy, &sleeps).Send(context.Background(), Get("/api/x"), nil)
	assert.Same(t, final, err)
	assert.Equal(t, 3, inner.callCount())
	assert.Equal(t, []time.Duration{3 * time.Second, 3 * time.Second}, sleeps.recorded())
}

func TestRetrierRateLimitDisabled(t *testing.T) {
	var sleeps sleepRecorder
	inner := &scriptedTransport{script: []error{&RateLimitError{}}}
	policy := DefaultRetryPolicy()
	policy.RetryOnRateLimit = false

	err := newTestRetrier(inner, policy, &sleeps).Send(context.Background(), Get("/api/x"), nil)
	assert.True(t, IsErrorType(err, RateLimited))
	assert.Equal(t, 1, inner.callCount())
	assert.Empty(t, sleeps.recorded())
}

func TestRetrierTransientBackoff(t *testing.T) {
	var sleeps sleepRecorder
	original := &TransientError{Message: "connection reset"}
	inner := &scriptedTransport{script: []error{
		&TransientError{Message: "connection reset"},
		&TransientError{Message: "connection reset"},
		&TransientError{Message: "connection reset"},
		original,
	}}
	policy := RetryPolicy{
		RetryTransient:      true,
		MaxTransientRetries: 3,
		TransientBaseDelay:  time.Second,
		TransientMaxDelay:   30 * time.Second,
		Jitter:              DefaultJitter,
	}

	err := newTestRetrier(inner, policy, &sleeps).Send(context.Background(), Get("/api/x"), nil)
	assert.Same(t, original, err, "the last transient error is propagated unchanged")
	assert.Equal(t, 4, inner.callCount())

	delays := sleeps.recorded()
	require.Len(t, delays, 3)
	bound := 30*time.Second + time.Duration(DefaultJitter*float64(30*time.Second))
	for i, d := range delays {
		assert.LessOrEqual(t, d, bound)
		if i > 0 {
			assert.GreaterOrEqual(t, d, delays[i-1], "delays must be non-decreasing")
		}
	}
	assert.Equal(t, []time.Duration{1125 * time.Millisecond, 2250 * time.Millisecond, 4500 * time.Millisecond}, delays)
}

func TestRetrierTransientSucceedsAfterRetry(t *testing.T) {
	var sleeps sleepRecorder
	inner := &scriptedTransport{script: []error{&TransientError{Timeout: true}}}

	text, err := newTestRetrier(inner, DefaultRetryPolicy(), &sleeps).
		SendText(context.Background(), Get("/game/export/abc"), MediaTypePGN)
	require.NoError(t, err)
	assert.Equal(t, "1. e4 *", text)
	assert.Len(t, sleeps.recorded(), 1)
}

func TestRetrierTransientRequiresRetryableRequest(t *testing.T) {
	tests := []struct {
		name      string
		req       *Request
		wantCalls int
	}{
		{"post is not retried", Post("/api/challenge/ai"), 1},
		{"post opted in", Post("/api/cloud-eval").WithRetry(), 2},
		{"get opted out", Get("/api/x").WithoutRetry(), 1},
		{"get retried", Get("/api/x"), 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sleeps sleepRecorder
			inner := &scriptedTransport{script: []error{&TransientError{}}}
			_ = newTestRetrier(inner, DefaultRetryPolicy(), &sleeps).Send(context.Background(), tt.req, nil)
			assert.Equal(t, tt.wantCalls, inner.callCount())
		})
	}
}

func TestRetrierNeverRetriesOtherErrors(t *testing.T) {
	errs := []error{
		&NotFoundError{},
		&AuthenticationError{},
		&AuthenticationError{Local: true},
		&AuthorizationError{Scope: "email:read"},
		&GenericError{Status: 500},
		&DecodeError{Err: errors.New("bad json")},
		&ValidationError{Field: "url"},
		&InterceptorError{Stage: "request", Err: errors.New("denied")},
		errors.New("plain"),
	}

	for _, want := range errs {
		t.Run(want.Error(), func(t *testing.T) {
			var sleeps sleepRecorder
			inner := &scriptedTransport{script: []error{want}}
			err := newTestRetrier(inner, DefaultRetryPolicy(), &sleeps).Send(context.Background(), Get("/api/x"), nil)
			assert.Same(t, want, err)
			assert.Equal(t, 1, inner.callCount())
			assert.Empty(t, sleeps.recorded())
		})
	}
}

func TestRetrierSeparateBudgets(t *testing.T) {
	var sleeps sleepRecorder
	inner := &scriptedTransport{script: []error{
		&RateLimitError{},
		&TransientError{},
		&RateLimitError{},
		&TransientError{},
	}}
	policy := DefaultRetryPolicy()
	policy.MaxRateLimitRetries = 2
	policy.MaxTransientRetries = 2

	err := newTestRetrier(inner, policy, &sleeps).Send(context.Background(), Get("/api/x"), nil)
	require.NoError(t, err)
	assert.Equal(t, 5, inner.callCount())
}

func TestRetrierCancellationDuringSleep(t *testing.T) {
	inner := &scriptedTransport{script: []error{&RateLimitError{RetryAfter: time.Hour, HasRetryAfter: true}}}
	retrier := NewRetrier(inner, DefaultRetryPolicy(), createTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := retrier.Send(ctx, Get("/api/x"), nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsErrorType(err, RateLimited))
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, 1, inner.callCount())
}

func TestRetrierChecksContextBeforeEachAttempt(t *testing.T) {
	var sleeps sleepRecorder
	inner := &scriptedTransport{script: []error{&TransientError{}}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := newTestRetrier(inner, DefaultRetryPolicy(), &sleeps).Send(ctx, Get("/api/x"), nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, inner.callCount())
}

func TestRetrierAttemptsAreSequential(t *testing.T) {
	var inFlight, maxInFlight int32
	inner := &blockingTransport{inFlight: &inFlight, maxInFlight: &maxInFlight, failures: 3}
	retrier := NewRetrier(inner, DefaultRetryPolicy(), createTestLogger(), WithSleeper(func(context.Context, time.Duration) error { return nil }))

	require.NoError(t, retrier.Send(context.Background(), Get("/api/x"), nil))
	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInFlight))
}

type blockingTransport struct {
	scriptedTransport
	inFlight    *int32
	maxInFlight *int32
	failures    int32
	attempts    int32
}

func (b *blockingTransport) Send(context.Context, *Request, any) error {
	n := atomic.AddInt32(b.inFlight, 1)
	defer atomic.AddInt32(b.inFlight, -1)
	for {
		current := atomic.LoadInt32(b.maxInFlight)
		if n <= current || atomic.CompareAndSwapInt32(b.maxInFlight, current, n) {
			break
		}
	}
	time.Sleep(time.Millisecond)
	if atomic.AddInt32(&b.attempts, 1) <= b.failures {
		return &TransientError{}
	}
	return nil
}

func TestRetrierOpenRetriesBeforeStreaming(t *testing.T) {
	var sleeps sleepRecorder
	inner := &scriptedTransport{script: []error{&RateLimitError{}, &TransientError{}}}
	retrier := newTestRetrier(inner, DefaultRetryPolicy(), &sleeps)

	type item struct {
		A int `json:"a"`
	}
	got, ok, err := LastNDJSON[item](context.Background(), retrier, Get("/api/stream"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, got.A)
	assert.Equal(t, 3, inner.callCount())
	assert.Len(t, sleeps.recorded(), 2)
}

func TestRetrierWithRealTransport(t *testing.T) {
	var calls int32
	server := newIPv4TestServer(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(nethttp.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"id":"thibault"}`))
	}))

	retrier := NewRetrier(newTestTransport(server.URL).Build(), DefaultRetryPolicy(), createTestLogger())
	got, err := SendJSON[account](context.Background(), retrier, Get("/api/user/thibault"))
	require.NoError(t, err)
	assert.Equal(t, "thibault", got.ID)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestRetrierDoesNotRetryThrottleDeadline(t *testing.T) {
	var calls int32
	inner := NewBuilder(createTestLogger()).
		WithTransport(countingTransport(&calls)).
		WithRateLimit(0.001, 1).
		Build()
	require.NoError(t, inner.Send(context.Background(), Get("/api/x"), nil))

	var sleeps sleepRecorder
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	err := newTestRetrier(inner, DefaultRetryPolicy(), &sleeps).Send(ctx, Get("/api/x"), nil)

	require.ErrorIs(t, err, ErrThrottled)
	assert.False(t, IsErrorType(err, Transient))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Empty(t, sleeps.recorded())
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), 0))
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
	assert.ErrorIs(t, sleepContext(ctx, 0), context.Canceled)
}
