package httpclient

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ClientError is implemented by every error the transport returns besides
// context cancellation. The set is closed: callers switch on Type() or use
// errors.As with the concrete types below.
type ClientError interface {
	error
	Type() ErrorType
	clientError()
}

// ErrorType defines the category of client error
type ErrorType string

const (
	NotFound       ErrorType = "not_found"
	Authentication ErrorType = "authentication"
	Authorization  ErrorType = "authorization"
	RateLimited    ErrorType = "rate_limited"
	Generic        ErrorType = "generic"
	Transient      ErrorType = "transient"

	// Decode, Validation and Interceptor are raised outside the HTTP status taxonomy.
	Decode      ErrorType = "decode"
	Validation  ErrorType = "validation"
	Interceptor ErrorType = "interceptor"
)

// NotFoundError is returned for HTTP 404.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("not found: %s (status: %d)", e.Message, http.StatusNotFound)
}

func (e *NotFoundError) Type() ErrorType { return NotFound }
func (e *NotFoundError) StatusCode() int { return http.StatusNotFound }
func (*NotFoundError) clientError()      {}

// AuthenticationError is returned for HTTP 401, or locally when an operation
// requires a token and none is configured. Local errors never reached the network.
type AuthenticationError struct {
	Message string
	Local   bool
}

func (e *AuthenticationError) Error() string {
	if e.Local {
		return fmt.Sprintf("authentication required: %s", e.Message)
	}
	return fmt.Sprintf("authentication failed: %s (status: %d)", e.Message, http.StatusUnauthorized)
}

func (e *AuthenticationError) Type() ErrorType { return Authentication }
func (*AuthenticationError) clientError()      {}

// StatusCode returns 401, or 0 for a local failure.
func (e *AuthenticationError) StatusCode() int {
	if e.Local {
		return 0
	}
	return http.StatusUnauthorized
}

// AuthorizationError is returned for HTTP 403. Scope holds the missing OAuth
// scope when the server reported one.
type AuthorizationError struct {
	Message string
	Scope   string
}

func (e *AuthorizationError) Error() string {
	if e.Scope != "" {
		return fmt.Sprintf("forbidden: %s (status: %d, missing scope: %s)", e.Message, http.StatusForbidden, e.Scope)
	}
	return fmt.Sprintf("forbidden: %s (status: %d)", e.Message, http.StatusForbidden)
}

func (e *AuthorizationError) Type() ErrorType { return Authorization }
func (e *AuthorizationError) StatusCode() int { return http.StatusForbidden }
func (*AuthorizationError) clientError()      {}

// RateLimitError is returned for HTTP 429. HasRetryAfter is false when the
// server omitted Retry-After or sent an unparsable value.
type RateLimitError struct {
	Message       string
	RetryAfter    time.Duration
	HasRetryAfter bool
}

func (e *RateLimitError) Error() string {
	if e.HasRetryAfter {
		return fmt.Sprintf("rate limited: %s (status: %d, retry after: %v)", e.Message, http.StatusTooManyRequests, e.RetryAfter)
	}
	return fmt.Sprintf("rate limited: %s (status: %d)", e.Message, http.StatusTooManyRequests)
}

func (e *RateLimitError) Type() ErrorType { return RateLimited }
func (e *RateLimitError) StatusCode() int { return http.StatusTooManyRequests }
func (*RateLimitError) clientError()      {}

// GenericError is returned for any other non-2xx status.
type GenericError struct {
	Status  int
	Message string
	Body    []byte
}

func (e *GenericError) Error() string {
	return fmt.Sprintf("HTTP error: %s (status: %d)", e.Message, e.Status)
}

func (e *GenericError) Type() ErrorType { return Generic }
func (e *GenericError) StatusCode() int { return e.Status }
func (*GenericError) clientError()      {}

// TransientError is returned when no HTTP response was received: connection
// failures, resets, DNS errors and timeouts.
type TransientError struct {
	Message string
	Timeout bool
	Err     error
}

func (e *TransientError) Error() string {
	kind := "network error"
	if e.Timeout {
		kind = "timeout error"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", kind, e.Message)
}

func (e *TransientError) Type() ErrorType { return Transient }
func (e *TransientError) Unwrap() error   { return e.Err }
func (*TransientError) clientError()      {}

// DecodeError reports JSON that could not be decoded from a 2xx body.
// Line is the 1-based NDJSON line number, or 0 for a single document.
type DecodeError struct {
	Line int
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("decode error: line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("decode error: %v", e.Err)
}

func (e *DecodeError) Type() ErrorType { return Decode }
func (e *DecodeError) Unwrap() error   { return e.Err }
func (*DecodeError) clientError()      {}

// ValidationError reports a malformed request, detected before any I/O.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s (field: %s)", e.Message, e.Field)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

func (e *ValidationError) Type() ErrorType { return Validation }
func (*ValidationError) clientError()      {}

// InterceptorError wraps a failure returned by a request or response interceptor.
type InterceptorError struct {
	Stage string
	Err   error
}

func (e *InterceptorError) Error() string {
	return fmt.Sprintf("interceptor error (stage: %s): %v", e.Stage, e.Err)
}

func (e *InterceptorError) Type() ErrorType { return Interceptor }
func (e *InterceptorError) Unwrap() error   { return e.Err }
func (*InterceptorError) clientError()      {}

// IsErrorType checks if an error is of a specific type
func IsErrorType(err error, errorType ErrorType) bool {
	if err == nil {
		return false
	}
	var clientErr ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type() == errorType
	}
	return false
}

// IsHTTPStatusError checks if an error carries a specific HTTP status code
func IsHTTPStatusError(err error, statusCode int) bool {
	var statusErr interface{ StatusCode() int }
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode() == statusCode
	}
	return false
}

// IsSuccessStatus checks if a status code represents success (2xx)
func IsSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
