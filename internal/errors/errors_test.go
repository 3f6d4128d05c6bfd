package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAPIError_Error(t *testing.T) {
	err := NewAPIError("anthropic", 429, "rate limited")
	assert.Contains(t, err.Error(), "anthropic")
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "rate limited")
}

func TestAPIError_WithWrapped(t *testing.T) {
	inner := errors.New("connection refused")
	err := &APIError{Service: "anthropic", StatusCode: 500, Message: "fail", Err: inner}
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestProcessingError(t *testing.T) {
	inner := NewAPIError("anthropic", 503, "unavailable")
	err := &ProcessingError{Attempts: 5, Err: inner}
	assert.Contains(t, err.Error(), "5 attempt")
	assert.ErrorAs(t, err, new(*APIError))

	var pe *ProcessingError
	assert.True(t, errors.As(err, &pe))
}

func TestMalformedStateError(t *testing.T) {
	err := &MalformedStateError{Field: "nextActions", Reason: "neither string nor object"}
	assert.Contains(t, err.Error(), "nextActions")
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewAPIError("anthropic", 429, "rate limit")))
	assert.True(t, IsRetryable(NewAPIError("anthropic", 502, "bad gateway")))
	assert.True(t, IsRetryable(NewAPIError("anthropic", 503, "unavailable")))
	assert.True(t, IsRetryable(ErrTimeout))
	assert.True(t, IsRetryable(ErrRateLimit))
	assert.True(t, IsRetryable(ErrUnavailable))

	assert.False(t, IsRetryable(NewAPIError("anthropic", 401, "unauth")))
	assert.False(t, IsRetryable(NewAPIError("anthropic", 404, "not found")))
	assert.False(t, IsRetryable(ErrInvalidInput))
	assert.False(t, IsRetryable(&MalformedStateError{Field: "blockers", Reason: "not an array"}))
}
