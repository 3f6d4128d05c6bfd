// Package errors provides structured error types for pulsetrack.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrTimeout          = errors.New("operation timed out")
	ErrRateLimit        = errors.New("rate limit exceeded")
	ErrNotFound         = errors.New("resource not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnavailable      = errors.New("service unavailable")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// APIError represents an error from an external API call.
type APIError struct {
	Service    string
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s API error (status %d): %s: %v", e.Service, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("%s API error (status %d): %s", e.Service, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// NewAPIError creates a new API error.
func NewAPIError(service string, statusCode int, message string) *APIError {
	return &APIError{Service: service, StatusCode: statusCode, Message: message}
}

// ProcessingError means the language-model cycle for one update did not
// complete: the call exhausted its retries or returned output that failed to
// parse. The raw update text is still persisted; only the structured state is
// missing.
type ProcessingError struct {
	Attempts int
	Err      error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("update processing failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// MalformedStateError means a structured state read from storage or from the
// model had an unexpected shape. It is recovered locally via normalization
// and never fatal.
type MalformedStateError struct {
	Field  string
	Reason string
}

func (e *MalformedStateError) Error() string {
	return fmt.Sprintf("malformed structured state: %s: %s", e.Field, e.Reason)
}

// IsRetryable returns true if the error is likely transient and worth retrying.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429, 500, 502, 503, 504:
			return true
		}
	}
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrRateLimit) || errors.Is(err, ErrUnavailable)
}
