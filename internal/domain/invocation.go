package domain

import (
	"context"
	"time"
)

// InvocationOutcome classifies how a tool invocation ended.
type InvocationOutcome string

const (
	InvocationOK         InvocationOutcome = "ok"
	InvocationInvalid    InvocationOutcome = "validation_error"
	InvocationNotFound   InvocationOutcome = "not_found"
	InvocationAuthError  InvocationOutcome = "auth_error"
	InvocationRateLimit  InvocationOutcome = "rate_limited"
	InvocationTimeout    InvocationOutcome = "timeout"
	InvocationParseError InvocationOutcome = "parse_error"
	InvocationUnknown    InvocationOutcome = "unknown_tool"
	InvocationError      InvocationOutcome = "error"
)

// Invocation is the audit record of a single tool call.
type Invocation struct {
	ID        string // uuid
	Tool      string
	Arguments []byte // JSON as received, after default injection
	Outcome   InvocationOutcome
	Duration  time.Duration
	CreatedAt time.Time
}

// InvocationStore persists tool-call audit records. Writes are best-effort and
// must never block or fail a tool invocation.
type InvocationStore interface {
	Record(ctx context.Context, inv Invocation) error
	Recent(ctx context.Context, limit int) ([]Invocation, error)
}
