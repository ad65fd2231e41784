package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/gaborage/lichess-go/httpclient/internal/tracking"
	"github.com/gaborage/lichess-go/logger"
	"github.com/gaborage/lichess-go/requestid"
)

const (
	// DefaultBaseURL is the main API origin
	DefaultBaseURL = "https://lichess.org"

	// DefaultTimeout is the default request timeout duration
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent identifies the library when no user agent is configured
	DefaultUserAgent = "lichess-go"

	// maxErrorBodyBytes bounds how much of a non-2xx body is read for mapping
	maxErrorBodyBytes = 64 << 10
)

// client implements the Transport interface
type client struct {
	httpClient           *nethttp.Client
	logger               logger.Logger
	config               *Config
	requestInterceptors  []RequestInterceptor
	responseInterceptors []ResponseInterceptor
	limiter              *rate.Limiter
	newRequestID         func() string
	callCount            int64
}

// Builder provides a fluent interface for configuring the transport
type Builder struct {
	config     *Config
	logger     logger.Logger
	httpClient *nethttp.Client
	roundTrip  nethttp.RoundTripper
}

// NewBuilder creates a new transport builder
func NewBuilder(log logger.Logger) *Builder {
	if log == nil {
		log = logger.NewNop()
	}
	return &Builder{
		config: &Config{
			BaseURL:              DefaultBaseURL,
			Timeout:              DefaultTimeout,
			UserAgent:            DefaultUserAgent,
			RequestInterceptors:  []RequestInterceptor{},
			ResponseInterceptors: []ResponseInterceptor{},
			DefaultHeaders:       make(map[string]string),
		},
		logger: log,
	}
}

// WithBaseURL sets the origin relative requests are resolved against
func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.config.BaseURL = strings.TrimRight(baseURL, "/")
	return b
}

// WithAccessToken sets the bearer token. An empty token means anonymous access.
func (b *Builder) WithAccessToken(token string) *Builder {
	b.config.AccessToken = token
	return b
}

// WithTimeout sets the per-request deadline. For streams it only bounds the
// wait for response headers. Zero disables it.
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.config.Timeout = timeout
	return b
}

// WithUserAgent sets the User-Agent header
func (b *Builder) WithUserAgent(userAgent string) *Builder {
	b.config.UserAgent = userAgent
	return b
}

// WithDefaultHeader adds a default header that will be sent with all requests
func (b *Builder) WithDefaultHeader(key, value string) *Builder {
	b.config.DefaultHeaders[key] = value
	return b
}

// WithRequestInterceptor adds a request interceptor
func (b *Builder) WithRequestInterceptor(interceptor RequestInterceptor) *Builder {
	b.config.RequestInterceptors = append(b.config.RequestInterceptors, interceptor)
	return b
}

// WithResponseInterceptor adds a response interceptor
func (b *Builder) WithResponseInterceptor(interceptor ResponseInterceptor) *Builder {
	b.config.ResponseInterceptors = append(b.config.ResponseInterceptors, interceptor)
	return b
}

// WithRateLimit throttles outgoing attempts client-side. A non-positive rate disables it.
func (b *Builder) WithRateLimit(requestsPerSecond float64, burst int) *Builder {
	b.config.RequestsPerSecond = requestsPerSecond
	b.config.Burst = burst
	return b
}

// WithHTTPClient uses the given client for connections and pooling. Its
// Timeout should be zero; deadlines are applied per request.
func (b *Builder) WithHTTPClient(httpClient *nethttp.Client) *Builder {
	b.httpClient = httpClient
	return b
}

// WithTransport sets the round tripper of the underlying HTTP client
func (b *Builder) WithTransport(rt nethttp.RoundTripper) *Builder {
	b.roundTrip = rt
	return b
}

// Build creates the transport with the configured options
func (b *Builder) Build() Transport {
	httpClient := b.httpClient
	if httpClient == nil {
		httpClient = &nethttp.Client{}
	}
	if b.roundTrip != nil {
		copied := *httpClient
		copied.Transport = b.roundTrip
		httpClient = &copied
	}

	var limiter *rate.Limiter
	if b.config.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(b.config.RequestsPerSecond), max(b.config.Burst, 1))
	}

	headers := make(map[string]string, len(b.config.DefaultHeaders))
	for k, v := range b.config.DefaultHeaders {
		headers[k] = v
	}
	cfg := *b.config
	cfg.DefaultHeaders = headers

	return &client{
		httpClient:           httpClient,
		logger:               b.logger,
		config:               &cfg,
		requestInterceptors:  append([]RequestInterceptor(nil), b.config.RequestInterceptors...),
		responseInterceptors: append([]ResponseInterceptor(nil), b.config.ResponseInterceptors...),
		limiter:              limiter,
		newRequestID:         requestid.New,
	}
}

// Send performs the exchange and decodes the JSON body into out
func (c *client) Send(ctx context.Context, req *Request, out any) error {
	body, err := c.exchange(ctx, req, "", false)
	if err != nil {
		return err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return body.readError(ctx, err)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &DecodeError{Err: err}
	}
	return nil
}

// SendText performs the exchange and returns the body as text
func (c *client) SendText(ctx context.Context, req *Request, accept string) (string, error) {
	if accept == "" && req != nil && req.accept == "" {
		accept = MediaTypeText
	}
	body, err := c.exchange(ctx, req, accept, false)
	if err != nil {
		return "", err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return "", body.readError(ctx, err)
	}
	return string(data), nil
}

// Open performs the exchange and hands the body to the caller. The timeout
// stops applying once the response headers arrived.
func (c *client) Open(ctx context.Context, req *Request) (io.ReadCloser, error) {
	body, err := c.exchange(ctx, req, "", true)
	if err != nil {
		return nil, err
	}
	return body, nil
}

// exchange runs one HTTP attempt up to the response headers. Non-2xx responses
// are mapped to typed errors; 2xx bodies are returned open.
func (c *client) exchange(ctx context.Context, req *Request, accept string, stream bool) (*responseBody, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	token, err := c.tokenFor(req)
	if err != nil {
		c.logger.Warn().
			Str("method", req.method).
			Str("url", req.target).
			Msg("Access token required but not configured")
		return nil, err
	}

	payload, contentType, err := req.encodeBody()
	if err != nil {
		return nil, err
	}

	if err := c.throttle(ctx); err != nil {
		return nil, err
	}

	attemptCtx, rel, timedOut := c.attemptContext(ctx)

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}
	httpReq, err := nethttp.NewRequestWithContext(attemptCtx, req.method, req.resolve(c.config.BaseURL), bodyReader)
	if err != nil {
		rel.release()
		return nil, &ValidationError{Field: "url", Message: "failed to create HTTP request: " + err.Error()}
	}

	requestID, ok := requestid.FromContext(ctx)
	if !ok {
		requestID = c.newRequestID()
	}
	c.applyHeaders(httpReq, req, accept, contentType, token, requestID, stream)

	spanCtx, span := startAttemptSpan(attemptCtx, httpReq)
	httpReq = httpReq.WithContext(spanCtx)

	if err := c.runRequestInterceptors(spanCtx, httpReq); err != nil {
		rel.release()
		ierr := &InterceptorError{Stage: "request", Err: err}
		endAttemptSpan(span, 0, ierr)
		return nil, ierr
	}

	logger.IncrementCallCount(ctx)
	callCount := atomic.AddInt64(&c.callCount, 1)
	c.logRequest(httpReq, requestID, payload)

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		rel.release()
		failure := c.transportFailure(ctx, err, timedOut)
		c.finishAttempt(ctx, span, httpReq, 0, failure, time.Since(start))
		c.logFailure(httpReq, requestID, failure, time.Since(start))
		return nil, failure
	}

	if err := c.runResponseInterceptors(spanCtx, httpReq, httpResp); err != nil {
		httpResp.Body.Close()
		rel.release()
		ierr := &InterceptorError{Stage: "response", Err: err}
		c.finishAttempt(ctx, span, httpReq, httpResp.StatusCode, ierr, time.Since(start))
		return nil, ierr
	}

	stats := Stats{ElapsedTime: time.Since(start), CallCount: callCount}

	if !IsSuccessStatus(httpResp.StatusCode) {
		data, _ := io.ReadAll(io.LimitReader(httpResp.Body, maxErrorBodyBytes))
		httpResp.Body.Close()
		rel.release()
		mapped := MapResponse(httpResp.StatusCode, httpResp.Header, data)
		c.finishAttempt(ctx, span, httpReq, httpResp.StatusCode, mapped, stats.ElapsedTime)
		c.logResponse(httpReq, requestID, httpResp.StatusCode, stats, mapped)
		return nil, mapped
	}

	c.finishAttempt(ctx, span, httpReq, httpResp.StatusCode, nil, stats.ElapsedTime)
	c.logResponse(httpReq, requestID, httpResp.StatusCode, stats, nil)

	body := &responseBody{ReadCloser: httpResp.Body, release: rel, timedOut: timedOut}
	if stream {
		body.stopTimer()
	}
	return body, nil
}

// tokenFor returns the token to attach. Relative requests carry the token
// whenever one is configured; absolute ones only when they require auth.
func (c *client) tokenFor(req *Request) (string, error) {
	token := c.config.AccessToken
	if req.requireAuth && token == "" {
		return "", &AuthenticationError{Message: "access token is not configured", Local: true}
	}
	if req.absolute && !req.requireAuth {
		return "", nil
	}
	return token, nil
}

// ErrThrottled is returned when the client-side rate limiter cannot grant a
// slot before the context deadline. It also matches context.DeadlineExceeded
// and is never retried.
var ErrThrottled = errors.New("client throttle exceeds deadline")

// throttle waits for the client-side rate limiter, if any.
func (c *client) throttle(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %w", ErrThrottled, context.DeadlineExceeded)
	}
	return nil
}

// attemptContext derives the context of one attempt. The returned flag is set
// when the configured timeout, rather than the caller, canceled it.
func (c *client) attemptContext(ctx context.Context) (context.Context, *attemptRelease, *atomic.Bool) {
	attemptCtx, cancel := context.WithCancel(ctx)
	timedOut := &atomic.Bool{}
	rel := &attemptRelease{cancel: cancel}
	if c.config.Timeout > 0 {
		rel.timer = time.AfterFunc(c.config.Timeout, func() {
			timedOut.Store(true)
			cancel()
		})
	}
	return attemptCtx, rel, timedOut
}

// transportFailure maps an error from the HTTP client. The caller's own
// cancellation is returned as the context error.
func (c *client) transportFailure(ctx context.Context, err error, timedOut *atomic.Bool) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	transient := MapTransportError(err)
	if timedOut.Load() {
		transient.Timeout = true
		transient.Message = "request timeout after " + c.config.Timeout.String()
	}
	return transient
}

func (c *client) finishAttempt(ctx context.Context, span trace.Span, httpReq *nethttp.Request, status int, err error, elapsed time.Duration) {
	endAttemptSpan(span, status, err)
	tracking.RecordRequest(ctx, httpReq.Method, httpReq.URL.Hostname(), status, errorTypeName(err), elapsed)
}

// applyHeaders applies headers to the HTTP request
func (c *client) applyHeaders(httpReq *nethttp.Request, req *Request, accept, contentType, token, requestID string, stream bool) {
	// Apply default headers first
	for key, value := range c.config.DefaultHeaders {
		httpReq.Header.Set(key, value)
	}
	if c.config.UserAgent != "" {
		httpReq.Header.Set("User-Agent", c.config.UserAgent)
	}

	// Apply request-specific headers (these override defaults)
	for key, value := range req.headers {
		httpReq.Header.Set(key, value)
	}

	switch {
	case accept != "":
		httpReq.Header.Set("Accept", accept)
	case req.accept != "":
		httpReq.Header.Set("Accept", req.accept)
	case stream:
		httpReq.Header.Set("Accept", MediaTypeNDJSON)
	default:
		httpReq.Header.Set("Accept", MediaTypeJSON)
	}

	if contentType != "" && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set(HeaderXRequestID, requestID)
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
}

// runRequestInterceptors executes all request interceptors
func (c *client) runRequestInterceptors(ctx context.Context, req *nethttp.Request) error {
	for _, interceptor := range c.requestInterceptors {
		if err := interceptor(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

// runResponseInterceptors executes all response interceptors
func (c *client) runResponseInterceptors(ctx context.Context, req *nethttp.Request, resp *nethttp.Response) error {
	for _, interceptor := range c.responseInterceptors {
		if err := interceptor(ctx, req, resp); err != nil {
			return err
		}
	}
	return nil
}

// logRequest logs the outgoing request
func (c *client) logRequest(httpReq *nethttp.Request, requestID string, payload []byte) {
	logEvent := c.logger.Debug().
		Str("direction", "outbound").
		Str("method", httpReq.Method).
		Str("url", httpReq.URL.String()).
		Str("request_id", requestID).
		Interface("headers", map[string][]string(httpReq.Header))

	if len(payload) > 0 {
		logEvent.Int("body_bytes", len(payload))
	}

	logEvent.Msg("HTTP client request")
}

// logResponse logs the response headers outcome
func (c *client) logResponse(httpReq *nethttp.Request, requestID string, status int, stats Stats, err error) {
	logEvent := c.logger.Debug()
	if err != nil {
		logEvent = c.logger.Warn().Err(err)
	}
	logEvent.
		Str("direction", "inbound").
		Str("method", httpReq.Method).
		Str("url", httpReq.URL.String()).
		Str("request_id", requestID).
		Int("status", status).
		Dur("elapsed", stats.ElapsedTime).
		Int64("call_count", stats.CallCount).
		Msg("HTTP client response")
}

// logFailure logs an attempt that produced no response
func (c *client) logFailure(httpReq *nethttp.Request, requestID string, err error, elapsed time.Duration) {
	c.logger.Warn().
		Err(err).
		Str("direction", "inbound").
		Str("method", httpReq.Method).
		Str("url", httpReq.URL.String()).
		Str("request_id", requestID).
		Dur("elapsed", elapsed).
		Msg("HTTP client request failed")
}

// attemptRelease stops the attempt timer and cancels the attempt context.
type attemptRelease struct {
	cancel context.CancelFunc
	timer  *time.Timer
	once   sync.Once
}

func (r *attemptRelease) stopTimer() {
	if r.timer != nil {
		r.timer.Stop()
	}
}

func (r *attemptRelease) release() {
	r.once.Do(func() {
		r.stopTimer()
		r.cancel()
	})
}

// responseBody owns a 2xx body and the attempt it belongs to. Closing it
// releases the connection and the attempt context.
type responseBody struct {
	io.ReadCloser
	release  *attemptRelease
	timedOut *atomic.Bool
	once     sync.Once
	closeErr error
}

func (b *responseBody) stopTimer() {
	b.release.stopTimer()
}

func (b *responseBody) Close() error {
	b.once.Do(func() {
		b.closeErr = b.ReadCloser.Close()
		b.release.release()
	})
	return b.closeErr
}

// readError maps a failure while reading the body.
func (b *responseBody) readError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var clientErr ClientError
	if errors.As(err, &clientErr) {
		return err
	}
	return &TransientError{
		Message: "failed to read response body",
		Timeout: b.timedOut.Load() || isTimeout(err),
		Err:     err,
	}
}
