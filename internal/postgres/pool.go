package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool creates a pgxpool and verifies connectivity.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return pool, nil
}

// planScope is the reusable WHERE fragment for plan-scoped queries:
// a NULL parameter selects free-mode rows (plan_id IS NULL), a non-NULL
// parameter selects that plan's rows.
func planScope(column, param string) string {
	return "((" + param + "::uuid IS NULL AND " + column + " IS NULL) OR " + column + " = " + param + "::uuid)"
}
