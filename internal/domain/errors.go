package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrRateLimited       = errors.New("rate limited")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrTimeout           = errors.New("upstream timeout")
	ErrMalformedResponse = errors.New("malformed upstream response")
	ErrUnknownTool       = errors.New("unknown tool")
	ErrSigningFailed     = errors.New("signing failed")
	ErrWSDisconnect      = errors.New("websocket disconnected")
)

// NotFoundError is a not-found failure that keeps the reference the caller
// asked for, so the rendered error can name it. It matches ErrNotFound under
// errors.Is.
type NotFoundError struct {
	Ref string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("market %q not found", e.Ref)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ValidationError reports a tool argument that failed schema validation. It is
// raised before any upstream call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid argument %q: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError for the given field.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
