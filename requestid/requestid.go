// Package requestid carries a caller-chosen request id through a context so
// every HTTP attempt made for one operation can be correlated.
package requestid

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// WithID returns a context carrying id. An empty id is ignored.
func WithID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// FromContext returns the request id stored in ctx, if any.
func FromContext(ctx context.Context) (string, bool) {
	if id, ok := ctx.Value(requestIDKey).(string); ok && id != "" {
		return id, true
	}
	return "", false
}

// New generates a random request id.
func New() string {
	return uuid.NewString()
}

// Ensure returns the id stored in ctx or a new one.
func Ensure(ctx context.Context) string {
	if id, ok := FromContext(ctx); ok {
		return id
	}
	return New()
}
