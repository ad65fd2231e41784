package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestErrorTypes(t *testing.T) {
	cause := errors.New("connection reset")

	tests := []struct {
		name     string
		err      ClientError
		expected ErrorType
		contains string
	}{
		{"not found", &NotFoundError{Message: "No such user"}, NotFound, "status: 404"},
		{"authentication", &AuthenticationError{Message: "No such token"}, Authentication, "status: 401"},
		{"local authentication", &AuthenticationError{Message: "no token", Local: true}, Authentication, "authentication required"},
		{"authorization", &AuthorizationError{Message: "Missing scope", Scope: "challenge:write"}, Authorization, "missing scope: challenge:write"},
		{"rate limited", &RateLimitError{Message: "slow down", RetryAfter: time.Minute, HasRetryAfter: true}, RateLimited, "retry after: 1m0s"},
		{"generic", &GenericError{Status: 500, Message: "boom"}, Generic, "status: 500"},
		{"transient", &TransientError{Message: "request execution failed", Err: cause}, Transient, "connection reset"},
		{"timeout", &TransientError{Message: "request timeout", Timeout: true}, Transient, "timeout error"},
		{"decode", &DecodeError{Line: 3, Err: cause}, Decode, "line 3"},
		{"validation", &ValidationError{Field: "url", Message: "URL cannot be empty"}, Validation, "field: url"},
		{"interceptor", &InterceptorError{Stage: "request", Err: cause}, Interceptor, "stage: request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Type())
			assert.Contains(t, tt.err.Error(), tt.contains)
			assert.True(t, IsErrorType(tt.err, tt.expected))
			assert.True(t, IsErrorType(fmt.Errorf("wrapped: %w", tt.err), tt.expected))
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("underlying")

	assert.ErrorIs(t, &TransientError{Err: cause}, cause)
	assert.ErrorIs(t, &DecodeError{Err: cause}, cause)
	assert.ErrorIs(t, &InterceptorError{Err: cause}, cause)
}

func TestIsErrorType(t *testing.T) {
	assert.False(t, IsErrorType(nil, Transient))
	assert.False(t, IsErrorType(errors.New("plain"), Transient))
	assert.False(t, IsErrorType(context.Canceled, Transient))
	assert.False(t, IsErrorType(&NotFoundError{}, Generic))
}

func TestIsHTTPStatusError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		want   bool
	}{
		{"not found", &NotFoundError{}, http.StatusNotFound, true},
		{"unauthorized", &AuthenticationError{}, http.StatusUnauthorized, true},
		{"local auth has no status", &AuthenticationError{Local: true}, http.StatusUnauthorized, false},
		{"forbidden", &AuthorizationError{}, http.StatusForbidden, true},
		{"too many requests", &RateLimitError{}, http.StatusTooManyRequests, true},
		{"generic status", &GenericError{Status: 503}, 503, true},
		{"generic other status", &GenericError{Status: 503}, 500, false},
		{"wrapped", fmt.Errorf("ctx: %w", &GenericError{Status: 502}), 502, true},
		{"transient", &TransientError{}, 0, false},
		{"nil", nil, 404, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsHTTPStatusError(tt.err, tt.status))
		})
	}
}

func TestIsSuccessStatus(t *testing.T) {
	assert.True(t, IsSuccessStatus(200))
	assert.True(t, IsSuccessStatus(204))
	assert.True(t, IsSuccessStatus(299))
	assert.False(t, IsSuccessStatus(199))
	assert.False(t, IsSuccessStatus(300))
	assert.False(t, IsSuccessStatus(404))
}
