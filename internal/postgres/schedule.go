package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lenmanean/doer-sub005/internal/domain"
)

// ScheduleRepository abstracts database access for schedule entries.
type ScheduleRepository interface {
	// ListDetectable returns entries in the detector's scope: the given
	// plan (nil = free mode), date <= maxDate, status in
	// {scheduled, overdue, rescheduling}, joined with task metadata.
	ListDetectable(ctx context.Context, userID string, planID *string, maxDate string) ([]*domain.DueEntry, error)
	// ListActiveBetween returns non-rescheduled entries in [from, to],
	// joined with task metadata, for conflict and scoring computation.
	// excludeID omits the entry being moved.
	ListActiveBetween(ctx context.Context, userID string, planID *string, from, to, excludeID string) ([]*domain.DueEntry, error)
	GetByID(ctx context.Context, id string) (*domain.ScheduleEntry, error)
	Insert(ctx context.Context, e *domain.ScheduleEntry) error
	SetStatus(ctx context.Context, id string, status domain.ScheduleStatus) error
	FindByTaskAndDate(ctx context.Context, taskID, date string) (*domain.ScheduleEntry, error)
}

type scheduleRepository struct {
	pool *pgxpool.Pool
}

// NewScheduleRepository wraps a pgxpool with the ScheduleRepository interface.
func NewScheduleRepository(pool *pgxpool.Pool) ScheduleRepository {
	return &scheduleRepository{pool: pool}
}

const scheduleColumns = `
	s.id, s.task_id, s.user_id, s.plan_id,
	to_char(s.date, 'YYYY-MM-DD'), s.start_time, s.end_time,
	s.duration_minutes, s.day_index, s.status, s.reschedule_count,
	s.pending_reschedule_id, s.created_at, s.updated_at`

func (r *scheduleRepository) ListDetectable(ctx context.Context, userID string, planID *string, maxDate string) ([]*domain.DueEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+scheduleColumns+`, t.name, t.priority, t.complexity_score
		FROM task_schedule s
		JOIN tasks t ON t.id = s.task_id
		WHERE s.user_id = $1
		  AND s.date <= $2::date
		  AND s.status = ANY($3)
		  AND `+planScope("s.plan_id", "$4")+`
		ORDER BY s.date, s.start_time
	`, userID, maxDate,
		[]string{string(domain.ScheduleScheduled), string(domain.ScheduleOverdue), string(domain.ScheduleRescheduling)},
		planID,
	)
	if err != nil {
		return nil, fmt.Errorf("list detectable schedule entries: %w", err)
	}
	defer rows.Close()

	var entries []*domain.DueEntry
	for rows.Next() {
		var e domain.DueEntry
		if err := scanSchedule(rows, &e.ScheduleEntry, &e.TaskName, &e.Priority, &e.ComplexityScore); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func (r *scheduleRepository) ListActiveBetween(ctx context.Context, userID string, planID *string, from, to, excludeID string) ([]*domain.DueEntry, error) {
	// An empty excludeID goes over the wire as NULL so it is never cast
	// to uuid.
	var exclude *string
	if excludeID != "" {
		exclude = &excludeID
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+scheduleColumns+`, t.name, t.priority, t.complexity_score
		FROM task_schedule s
		JOIN tasks t ON t.id = s.task_id
		WHERE s.user_id = $1
		  AND s.date BETWEEN $2::date AND $3::date
		  AND s.status <> $4
		  AND ($5::uuid IS NULL OR s.id <> $5::uuid)
		  AND `+planScope("s.plan_id", "$6")+`
		ORDER BY s.date, s.start_time
	`, userID, from, to, string(domain.ScheduleRescheduled), exclude, planID)
	if err != nil {
		return nil, fmt.Errorf("list schedule entries %s..%s: %w", from, to, err)
	}
	defer rows.Close()

	var entries []*domain.DueEntry
	for rows.Next() {
		var e domain.DueEntry
		if err := scanSchedule(rows, &e.ScheduleEntry, &e.TaskName, &e.Priority, &e.ComplexityScore); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func (r *scheduleRepository) GetByID(ctx context.Context, id string) (*domain.ScheduleEntry, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+scheduleColumns+`
		FROM task_schedule s
		WHERE s.id = $1
	`, id)

	var e domain.ScheduleEntry
	if err := scanSchedule(row, &e); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &domain.ScheduleNotFoundError{ScheduleID: id}
		}
		return nil, err
	}
	return &e, nil
}

func (r *scheduleRepository) Insert(ctx context.Context, e *domain.ScheduleEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	_, err := r.pool.Exec(ctx, `
		INSERT INTO task_schedule
			(id, task_id, user_id, plan_id, date, start_time, end_time,
			 duration_minutes, day_index, status, reschedule_count, created_at, updated_at)
		VALUES
			($1, $2, $3, $4, $5::date, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		e.ID, e.TaskID, e.UserID, e.PlanID, e.Date, e.StartTime, e.EndTime,
		e.DurationMinutes, e.DayIndex, string(e.Status), e.RescheduleCount,
		e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert schedule entry for task %s on %s: %w", e.TaskID, e.Date, err)
	}
	return nil
}

func (r *scheduleRepository) SetStatus(ctx context.Context, id string, status domain.ScheduleStatus) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE task_schedule
		SET status = $1, updated_at = $2
		WHERE id = $3
	`, string(status), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set schedule %s status %s: %w", id, status, err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.ScheduleNotFoundError{ScheduleID: id}
	}
	return nil
}

func (r *scheduleRepository) FindByTaskAndDate(ctx context.Context, taskID, date string) (*domain.ScheduleEntry, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+scheduleColumns+`
		FROM task_schedule s
		WHERE s.task_id = $1 AND s.date = $2::date
		ORDER BY s.start_time
		LIMIT 1
	`, taskID, date)

	var e domain.ScheduleEntry
	if err := scanSchedule(row, &e); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

// scanSchedule reads a schedule row from any pgx row type. extra receives
// trailing columns (task join fields) when present.
func scanSchedule(row interface{ Scan(...any) error }, e *domain.ScheduleEntry, extra ...any) error {
	var status string
	dest := []any{
		&e.ID, &e.TaskID, &e.UserID, &e.PlanID,
		&e.Date, &e.StartTime, &e.EndTime,
		&e.DurationMinutes, &e.DayIndex, &status, &e.RescheduleCount,
		&e.PendingRescheduleID, &e.CreatedAt, &e.UpdatedAt,
	}
	dest = append(dest, extra...)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		return fmt.Errorf("scan schedule entry: %w", err)
	}
	e.Status = domain.ScheduleStatus(status)
	return nil
}
