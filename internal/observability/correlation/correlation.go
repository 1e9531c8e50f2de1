// Package correlation tags work that crosses process boundaries (HTTP
// requests, scheduler runs) with one lexically sortable identifier, so a
// cron trigger, its job run, and the audit rows it writes line up in logs.
package correlation

import (
	"context"

	"github.com/oklog/ulid/v2"
)

type correlationKey struct{}

// NewID returns a fresh correlation identifier.
func NewID() string {
	return ulid.Make().String()
}

// FromContext returns the correlation ID, or "" when absent.
func FromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(correlationKey{}).(string); ok {
		return id
	}
	return ""
}

// WithID stores the correlation ID on the context.
func WithID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationKey{}, id)
}

// Ensure returns a context that carries a correlation ID, minting one when
// the caller did not supply it.
func Ensure(ctx context.Context) (context.Context, string) {
	if ctx == nil {
		ctx = context.Background()
	}
	if id := FromContext(ctx); id != "" {
		return ctx, id
	}
	id := NewID()
	return WithID(ctx, id), id
}
