// Package trace assigns and propagates per-call trace IDs through context.
package trace

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey struct{}

// NewID returns a fresh trace ID.
func NewID() string {
	return uuid.NewString()
}

// With returns a context carrying the given trace ID.
func With(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, traceID)
}

// FromContext extracts the trace ID, or "" when none is bound.
func FromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(ctxKey{}).(string); ok {
		return id
	}
	return ""
}
