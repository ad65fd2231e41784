package logger

import (
	"context"
	"sync/atomic"
)

// contextKey is the type for context keys to avoid collisions
type contextKey string

const (
	// callCounterKey tracks HTTP attempts issued on behalf of one logical operation
	callCounterKey contextKey = "http_call_counter"
)

// WithCallCounter returns a context carrying a fresh HTTP attempt counter.
// The transport increments it for every attempt, retries included, so callers
// can report how many exchanges an operation needed.
func WithCallCounter(ctx context.Context) context.Context {
	var counter int64
	return context.WithValue(ctx, callCounterKey, &counter)
}

// IncrementCallCount increments the attempt counter in ctx, if any.
func IncrementCallCount(ctx context.Context) {
	if counter, ok := ctx.Value(callCounterKey).(*int64); ok && counter != nil {
		atomic.AddInt64(counter, 1)
	}
}

// CallCount returns the number of attempts recorded in ctx.
func CallCount(ctx context.Context) int64 {
	if counter, ok := ctx.Value(callCounterKey).(*int64); ok && counter != nil {
		return atomic.LoadInt64(counter)
	}
	return 0
}
