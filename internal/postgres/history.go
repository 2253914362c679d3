package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lenmanean/doer-sub005/internal/domain"
)

// HistoryRepository is the read/append surface over scheduling_history.
// Accept writes its history row inside the proposal transaction; this
// repository serves the audit read path and ad-hoc appends.
type HistoryRepository interface {
	Append(ctx context.Context, e *domain.SchedulingHistoryEntry) error
	ListRecent(ctx context.Context, userID string, limit int) ([]*domain.SchedulingHistoryEntry, error)
}

type historyRepository struct {
	pool *pgxpool.Pool
}

// NewHistoryRepository wraps a pgxpool with the HistoryRepository interface.
func NewHistoryRepository(pool *pgxpool.Pool) HistoryRepository {
	return &historyRepository{pool: pool}
}

func (r *historyRepository) Append(ctx context.Context, e *domain.SchedulingHistoryEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO scheduling_history
			(id, user_id, plan_id, day, task_id, schedule_id, action, detail, created_at)
		VALUES
			($1, $2, $3, $4::date, $5, $6, $7, $8, $9)
	`,
		e.ID, e.UserID, e.PlanID, e.Day, e.TaskID, e.ScheduleID,
		e.Action, e.Detail, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append scheduling history: %w", err)
	}
	return nil
}

func (r *historyRepository) ListRecent(ctx context.Context, userID string, limit int) ([]*domain.SchedulingHistoryEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, plan_id, to_char(day, 'YYYY-MM-DD'),
		       task_id, schedule_id, action, detail, created_at
		FROM scheduling_history
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list scheduling history: %w", err)
	}
	defer rows.Close()

	var out []*domain.SchedulingHistoryEntry
	for rows.Next() {
		var e domain.SchedulingHistoryEntry
		err := rows.Scan(
			&e.ID, &e.UserID, &e.PlanID, &e.Day,
			&e.TaskID, &e.ScheduleID, &e.Action, &e.Detail, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan scheduling history: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
