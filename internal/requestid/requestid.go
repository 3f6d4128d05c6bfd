// Package requestid propagates a per-request correlation ID through
// context. IDs arrive on the X-Request-ID header or are minted here.
package requestid

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey struct{}

// WithRequestID returns a context carrying the given request ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext extracts the request ID from context, or generates a
// fresh one so log lines are never left without a correlation ID.
func FromContext(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.New().String()
}

// Ensure returns a context carrying the supplied ID, minting a new one
// when the caller has none. Lets clients pass their own correlation ID
// through a whole request chain.
func Ensure(ctx context.Context, id string) (context.Context, string) {
	if id == "" {
		id = uuid.New().String()
	}
	return WithRequestID(ctx, id), id
}

// New mints a request ID and returns the enriched context and the ID.
func New(ctx context.Context) (context.Context, string) {
	return Ensure(ctx, "")
}
