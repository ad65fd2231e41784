package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// maxMessageBytes caps raw body text used as an error message
	maxMessageBytes = 512

	// HeaderAcceptedScopes lists the scopes an endpoint accepts on 403 responses
	HeaderAcceptedScopes = "X-Accepted-OAuth-Scopes"

	defaultErrorMessage = "unexpected response"
)

// messageFields are checked in order for a server error message.
var messageFields = []string{"error", "message", "error_description"}

// scopeFields are checked in order for a missing OAuth scope.
var scopeFields = []string{"missingScope", "scope"}

var maxRetryAfterSeconds = float64(math.MaxInt64 / int64(time.Second))

var missingScopePattern = regexp.MustCompile(`(?i)missing scope:?\s*([A-Za-z0-9_:.-]+)`)

// MapResponse converts a non-2xx response into exactly one error variant.
// It never panics, whatever the body contains.
func MapResponse(status int, header http.Header, body []byte) ClientError {
	return mapResponse(status, header, body, time.Now())
}

func mapResponse(status int, header http.Header, body []byte, now time.Time) ClientError {
	fields := parseErrorBody(body)
	message := errorMessage(status, fields, body)

	switch status {
	case http.StatusUnauthorized:
		return &AuthenticationError{Message: message}
	case http.StatusForbidden:
		return &AuthorizationError{Message: message, Scope: missingScope(fields, message, header)}
	case http.StatusNotFound:
		return &NotFoundError{Message: message}
	case http.StatusTooManyRequests:
		retryAfter, ok := parseRetryAfter(header.Get("Retry-After"), now)
		return &RateLimitError{Message: message, RetryAfter: retryAfter, HasRetryAfter: ok}
	default:
		return &GenericError{Status: status, Message: message, Body: body}
	}
}

// MapTransportError converts a failure without an HTTP response into a TransientError.
func MapTransportError(err error) *TransientError {
	var transient *TransientError
	if errors.As(err, &transient) {
		return transient
	}
	return &TransientError{
		Message: "request execution failed",
		Timeout: isTimeout(err),
		Err:     err,
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// parseErrorBody returns the top-level fields of a JSON object body, or nil.
func parseErrorBody(body []byte) map[string]json.RawMessage {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil
	}
	return fields
}

func errorMessage(status int, fields map[string]json.RawMessage, body []byte) string {
	for _, name := range messageFields {
		if msg := fieldText(fields[name]); msg != "" {
			return msg
		}
	}

	if fields == nil {
		if text := truncate(strings.TrimSpace(string(body)), maxMessageBytes); text != "" {
			return text
		}
	}

	if text := http.StatusText(status); text != "" {
		return text
	}
	return defaultErrorMessage
}

// fieldText renders a JSON value as message text. Strings are unquoted;
// objects and arrays are kept as compact JSON.
func fieldText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	if string(raw) == "null" {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return truncate(string(raw), maxMessageBytes)
	}
	return truncate(buf.String(), maxMessageBytes)
}

func missingScope(fields map[string]json.RawMessage, message string, header http.Header) string {
	for _, name := range scopeFields {
		var s string
		if err := json.Unmarshal(fields[name], &s); err == nil && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	if m := missingScopePattern.FindStringSubmatch(message); len(m) == 2 {
		return m[1]
	}
	return strings.TrimSpace(header.Get(HeaderAcceptedScopes))
}

// parseRetryAfter accepts delay-seconds or an HTTP-date. Negative or past
// values clamp to zero.
func parseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil && !math.IsNaN(secs) {
		switch {
		case secs <= 0:
			return 0, true
		case secs >= maxRetryAfterSeconds:
			return time.Duration(math.MaxInt64), true
		}
		return time.Duration(secs * float64(time.Second)), true
	}
	if at, err := http.ParseTime(value); err == nil {
		return max(at.Sub(now), 0), true
	}
	return 0, false
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
