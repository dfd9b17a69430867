package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/polyquery/polymarket-mcp/internal/domain"
)

// InvocationStore implements domain.InvocationStore using PostgreSQL.
type InvocationStore struct {
	pool *pgxpool.Pool
}

// NewInvocationStore creates an InvocationStore backed by the given pool.
func NewInvocationStore(pool *pgxpool.Pool) *InvocationStore {
	return &InvocationStore{pool: pool}
}

// Record appends one tool-call audit row. Arguments are stored as JSONB.
func (s *InvocationStore) Record(ctx context.Context, inv domain.Invocation) error {
	const query = `
		INSERT INTO tool_invocations (id, tool, arguments, outcome, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	args := inv.Arguments
	if len(args) == 0 {
		args = []byte("{}")
	}

	_, err := s.pool.Exec(ctx, query,
		inv.ID,
		inv.Tool,
		args,
		string(inv.Outcome),
		inv.Duration.Milliseconds(),
		inv.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: record invocation %s: %w", inv.Tool, err)
	}
	return nil
}

// Recent returns the newest audit rows, most recent first.
func (s *InvocationStore) Recent(ctx context.Context, limit int) ([]domain.Invocation, error) {
	if limit <= 0 {
		limit = 50
	}

	const query = `
		SELECT id, tool, arguments, outcome, duration_ms, created_at
		FROM tool_invocations
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list invocations: %w", err)
	}
	defer rows.Close()

	var out []domain.Invocation
	for rows.Next() {
		var inv domain.Invocation
		var outcome string
		var durationMS int64

		if err := rows.Scan(&inv.ID, &inv.Tool, &inv.Arguments, &outcome, &durationMS, &inv.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan invocation: %w", err)
		}
		inv.Outcome = domain.InvocationOutcome(outcome)
		inv.Duration = time.Duration(durationMS) * time.Millisecond

		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list invocations rows: %w", err)
	}
	return out, nil
}

// Compile-time interface check.
var _ domain.InvocationStore = (*InvocationStore)(nil)
