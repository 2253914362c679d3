package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// CompletionRepository answers "was this task instance completed".
type CompletionRepository interface {
	// Exists checks for a completion matching (task_id, scheduled_date,
	// plan_id). The plan comparison is null-safe: a free-mode completion
	// (plan_id NULL) matches a free-mode schedule entry.
	Exists(ctx context.Context, taskID, scheduledDate string, planID *string) (bool, error)
}

type completionRepository struct {
	pool *pgxpool.Pool
}

// NewCompletionRepository wraps a pgxpool with the CompletionRepository interface.
func NewCompletionRepository(pool *pgxpool.Pool) CompletionRepository {
	return &completionRepository{pool: pool}
}

func (r *completionRepository) Exists(ctx context.Context, taskID, scheduledDate string, planID *string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM task_completions
			WHERE task_id = $1
			  AND scheduled_date = $2::date
			  AND plan_id IS NOT DISTINCT FROM $3::uuid
		)
	`, taskID, scheduledDate, planID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("completion exists for task %s on %s: %w", taskID, scheduledDate, err)
	}
	return exists, nil
}
