package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lenmanean/doer-sub005/internal/domain"
)

// TaskRepository abstracts database access for tasks.
type TaskRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Task, error)
	// ListIndefiniteRecurring returns the user's recurring tasks with no
	// end date in the given plan scope — the ones the materializer
	// synthesizes missing schedule rows for.
	ListIndefiniteRecurring(ctx context.Context, userID string, planID *string) ([]*domain.Task, error)
}

type taskRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRepository wraps a pgxpool with the TaskRepository interface.
func NewTaskRepository(pool *pgxpool.Pool) TaskRepository {
	return &taskRepository{pool: pool}
}

const taskColumns = `
	t.id, t.user_id, t.plan_id, t.name, t.priority, t.duration_minutes,
	t.complexity_score, t.is_recurring, t.is_indefinite, t.recurrence_days,
	COALESCE(t.default_start_time, ''), COALESCE(t.default_end_time, ''),
	t.created_at, t.updated_at`

func (r *taskRepository) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+taskColumns+`
		FROM tasks t
		WHERE t.id = $1
	`, id)

	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &domain.TaskNotFoundError{TaskID: id}
		}
		return nil, err
	}
	return task, nil
}

func (r *taskRepository) ListIndefiniteRecurring(ctx context.Context, userID string, planID *string) ([]*domain.Task, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+taskColumns+`
		FROM tasks t
		WHERE t.user_id = $1
		  AND t.is_recurring AND t.is_indefinite
		  AND `+planScope("t.plan_id", "$2")+`
		ORDER BY t.created_at
	`, userID, planID)
	if err != nil {
		return nil, fmt.Errorf("list indefinite recurring tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func scanTask(row interface{ Scan(...any) error }) (*domain.Task, error) {
	var t domain.Task
	var days []int32
	err := row.Scan(
		&t.ID, &t.UserID, &t.PlanID, &t.Name, &t.Priority, &t.DurationMinutes,
		&t.ComplexityScore, &t.IsRecurring, &t.IsIndefinite, &days,
		&t.DefaultStart, &t.DefaultEnd, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}
	t.RecurrenceDays = make([]time.Weekday, 0, len(days))
	for _, d := range days {
		t.RecurrenceDays = append(t.RecurrenceDays, time.Weekday(d))
	}
	return &t, nil
}
