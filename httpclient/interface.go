package httpclient

import (
	"context"
	"io"
	nethttp "net/http"
	"time"
)

const (
	// HeaderXRequestID carries the request id, generated per attempt unless
	// the context holds one from requestid.WithID
	HeaderXRequestID = "X-Request-ID"

	MediaTypeJSON   = "application/json"
	MediaTypeNDJSON = "application/x-ndjson"
	MediaTypePGN    = "application/x-chess-pgn"
	MediaTypeText   = "text/plain"
	MediaTypeForm   = "application/x-www-form-urlencoded"
)

// Transport performs one HTTP exchange per call and never retries on its own.
// Wrap it with a Retrier for automatic retries.
type Transport interface {
	// Send decodes a 2xx JSON body into out. A nil out drains and discards the body.
	Send(ctx context.Context, req *Request, out any) error
	// SendText returns a 2xx body as text, requesting the given media type.
	SendText(ctx context.Context, req *Request, accept string) (string, error)
	// Open returns a 2xx body for incremental reading. The caller must close it.
	Open(ctx context.Context, req *Request) (io.ReadCloser, error)
}

// Stats contains request execution statistics
type Stats struct {
	ElapsedTime time.Duration
	CallCount   int64
}

// RequestInterceptor is called before sending the request
type RequestInterceptor func(ctx context.Context, req *nethttp.Request) error

// ResponseInterceptor is called after receiving the response headers
type ResponseInterceptor func(ctx context.Context, req *nethttp.Request, resp *nethttp.Response) error

// Config holds the transport configuration
type Config struct {
	BaseURL              string
	AccessToken          string
	Timeout              time.Duration
	UserAgent            string
	RequestInterceptors  []RequestInterceptor
	ResponseInterceptors []ResponseInterceptor
	DefaultHeaders       map[string]string
	// RequestsPerSecond enables a client-side throttle when positive
	RequestsPerSecond float64
	Burst             int
}
