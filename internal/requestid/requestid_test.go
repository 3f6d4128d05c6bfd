package requestid

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithRequestID_RoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-123")
	assert.Equal(t, "req-123", FromContext(ctx))
}

func TestFromContext_GeneratesWhenMissing(t *testing.T) {
	id := FromContext(context.Background())
	assert.NotEmpty(t, id)

	// Each bare-context call mints a fresh ID.
	assert.NotEqual(t, id, FromContext(context.Background()))
}

func TestEnsure(t *testing.T) {
	// Caller-supplied ID is kept.
	ctx, id := Ensure(context.Background(), "client-abc")
	assert.Equal(t, "client-abc", id)
	assert.Equal(t, "client-abc", FromContext(ctx))

	// Empty ID gets minted.
	_, id = Ensure(context.Background(), "")
	assert.NotEmpty(t, id)
}

func TestNew(t *testing.T) {
	ctx, id := New(context.Background())
	assert.NotEmpty(t, id)
	assert.Equal(t, id, FromContext(ctx))
}
