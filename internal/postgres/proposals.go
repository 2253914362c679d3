package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lenmanean/doer-sub005/internal/domain"
	"github.com/lenmanean/doer-sub005/internal/timeutil"
)

// ProposalRepository holds the transactional proposal lifecycle. Creation,
// accept, and reject each run in a single transaction with the affected
// rows locked, so the "at most one pending proposal per schedule entry"
// invariant holds under concurrent orchestrator passes. A partial unique
// index on (task_schedule_id) WHERE status = 'pending' backs it up.
type ProposalRepository interface {
	// CreatePending inserts a pending proposal and flips the schedule row
	// to pending_reschedule. Idempotent: when a pending proposal already
	// references the schedule entry the existing one is returned and the
	// second return value is false.
	CreatePending(ctx context.Context, p *domain.RescheduleProposal) (*domain.RescheduleProposal, bool, error)
	// Accept applies the proposed placement to the schedule entry, marks
	// the proposal accepted, and appends a scheduling history record.
	// Returns ProposalNotPendingError when the proposal is missing or not
	// pending.
	Accept(ctx context.Context, proposalID, userID string, decidedAt time.Time) (*domain.RescheduleProposal, error)
	// Reject marks the proposal rejected and resets the schedule entry to
	// overdue so the next detection pass picks it up again.
	Reject(ctx context.Context, proposalID, userID string, decidedAt time.Time) (*domain.RescheduleProposal, error)
	// ListPending returns pending proposals in the plan scope joined with
	// task metadata, newest last.
	ListPending(ctx context.Context, userID string, planID *string) ([]*domain.PendingProposal, error)
}

type proposalRepository struct {
	pool *pgxpool.Pool
}

// NewProposalRepository wraps a pgxpool with the ProposalRepository interface.
func NewProposalRepository(pool *pgxpool.Pool) ProposalRepository {
	return &proposalRepository{pool: pool}
}

const proposalColumns = `
	p.id, p.task_schedule_id, p.task_id, p.user_id, p.plan_id,
	to_char(p.original_date, 'YYYY-MM-DD'), p.original_start_time, p.original_end_time, p.original_day_index,
	to_char(p.proposed_date, 'YYYY-MM-DD'), p.proposed_start_time, p.proposed_end_time, p.proposed_day_index,
	p.context_score, p.priority_penalty, p.density_penalty, p.final_score,
	p.reason, p.status, p.created_at, p.decided_at`

func (r *proposalRepository) CreatePending(ctx context.Context, p *domain.RescheduleProposal) (*domain.RescheduleProposal, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("begin create proposal: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Lock the schedule row first: every lifecycle operation takes this
	// lock, which serializes competing creates for the same entry.
	var date, startTime, endTime, status string
	var dayIndex int
	err = tx.QueryRow(ctx, `
		SELECT to_char(date, 'YYYY-MM-DD'), start_time, end_time, day_index, status
		FROM task_schedule
		WHERE id = $1 AND user_id = $2
		FOR UPDATE
	`, p.TaskScheduleID, p.UserID).Scan(&date, &startTime, &endTime, &dayIndex, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, &domain.ScheduleNotFoundError{ScheduleID: p.TaskScheduleID}
		}
		return nil, false, fmt.Errorf("lock schedule %s: %w", p.TaskScheduleID, err)
	}

	existing, err := scanProposal(tx.QueryRow(ctx, `
		SELECT `+proposalColumns+`
		FROM pending_reschedules p
		WHERE p.task_schedule_id = $1 AND p.status = $2
	`, p.TaskScheduleID, string(domain.ProposalPending)))
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	p.Status = domain.ProposalPending
	// Back-fill the original placement from the live schedule row.
	p.OriginalDate, p.OriginalStartTime, p.OriginalEndTime, p.OriginalDayIndex = date, startTime, endTime, dayIndex
	if delta, derr := timeutil.DaysBetween(p.OriginalDate, p.ProposedDate); derr == nil {
		p.ProposedDayIndex = p.OriginalDayIndex + delta
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO pending_reschedules
			(id, task_schedule_id, task_id, user_id, plan_id,
			 original_date, original_start_time, original_end_time, original_day_index,
			 proposed_date, proposed_start_time, proposed_end_time, proposed_day_index,
			 context_score, priority_penalty, density_penalty, final_score,
			 reason, status, created_at)
		VALUES
			($1, $2, $3, $4, $5,
			 $6::date, $7, $8, $9,
			 $10::date, $11, $12, $13,
			 $14, $15, $16, $17,
			 $18, $19, $20)
	`,
		p.ID, p.TaskScheduleID, p.TaskID, p.UserID, p.PlanID,
		p.OriginalDate, p.OriginalStartTime, p.OriginalEndTime, p.OriginalDayIndex,
		p.ProposedDate, p.ProposedStartTime, p.ProposedEndTime, p.ProposedDayIndex,
		p.ContextScore, p.PriorityPenalty, p.DensityPenalty, p.FinalScore,
		p.Reason, string(p.Status), p.CreatedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert proposal for schedule %s: %w", p.TaskScheduleID, err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE task_schedule
		SET status = $1, pending_reschedule_id = $2, updated_at = $3
		WHERE id = $4
	`, string(domain.SchedulePendingReschedule), p.ID, time.Now().UTC(), p.TaskScheduleID)
	if err != nil {
		return nil, false, fmt.Errorf("flag schedule %s pending_reschedule: %w", p.TaskScheduleID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("commit create proposal: %w", err)
	}
	return p, true, nil
}

func (r *proposalRepository) Accept(ctx context.Context, proposalID, userID string, decidedAt time.Time) (*domain.RescheduleProposal, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin accept proposal: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	p, err := lockPending(ctx, tx, proposalID, userID)
	if err != nil {
		return nil, err
	}

	reason := domain.RescheduleReason{
		OldDate:         p.OriginalDate,
		OldStartTime:    p.OriginalStartTime,
		OldEndTime:      p.OriginalEndTime,
		ContextScore:    p.ContextScore,
		PriorityPenalty: p.PriorityPenalty,
		DensityPenalty:  p.DensityPenalty,
		FinalScore:      p.FinalScore,
		RescheduledAt:   decidedAt,
	}
	detail, err := json.Marshal(reason)
	if err != nil {
		return nil, fmt.Errorf("marshal reschedule reason: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE task_schedule
		SET date = $1::date, start_time = $2, end_time = $3, day_index = $4,
		    status = $5, reschedule_count = reschedule_count + 1,
		    pending_reschedule_id = NULL, reschedule_reason = $6,
		    rescheduled_at = $7, updated_at = $7
		WHERE id = $8
	`,
		p.ProposedDate, p.ProposedStartTime, p.ProposedEndTime, p.ProposedDayIndex,
		string(domain.ScheduleRescheduled), detail, decidedAt, p.TaskScheduleID,
	)
	if err != nil {
		return nil, fmt.Errorf("apply proposal %s to schedule %s: %w", proposalID, p.TaskScheduleID, err)
	}

	if err := decide(ctx, tx, p, domain.ProposalAccepted, decidedAt); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO scheduling_history
			(id, user_id, plan_id, day, task_id, schedule_id, action, detail, created_at)
		VALUES
			($1, $2, $3, $4::date, $5, $6, $7, $8, $9)
	`,
		uuid.New().String(), p.UserID, p.PlanID, p.ProposedDate,
		p.TaskID, p.TaskScheduleID, "reschedule_applied", detail, decidedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("append scheduling history for proposal %s: %w", proposalID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit accept proposal: %w", err)
	}
	return p, nil
}

func (r *proposalRepository) Reject(ctx context.Context, proposalID, userID string, decidedAt time.Time) (*domain.RescheduleProposal, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin reject proposal: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	p, err := lockPending(ctx, tx, proposalID, userID)
	if err != nil {
		return nil, err
	}

	// Back to overdue: eligible for re-detection and a fresh proposal.
	_, err = tx.Exec(ctx, `
		UPDATE task_schedule
		SET status = $1, pending_reschedule_id = NULL, updated_at = $2
		WHERE id = $3
	`, string(domain.ScheduleOverdue), decidedAt, p.TaskScheduleID)
	if err != nil {
		return nil, fmt.Errorf("reset schedule %s after rejection: %w", p.TaskScheduleID, err)
	}

	if err := decide(ctx, tx, p, domain.ProposalRejected, decidedAt); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit reject proposal: %w", err)
	}
	return p, nil
}

func (r *proposalRepository) ListPending(ctx context.Context, userID string, planID *string) ([]*domain.PendingProposal, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+proposalColumns+`, t.name, t.priority
		FROM pending_reschedules p
		JOIN tasks t ON t.id = p.task_id
		WHERE p.user_id = $1
		  AND p.status = $2
		  AND `+planScope("p.plan_id", "$3")+`
		ORDER BY p.created_at
	`, userID, string(domain.ProposalPending), planID)
	if err != nil {
		return nil, fmt.Errorf("list pending proposals: %w", err)
	}
	defer rows.Close()

	var out []*domain.PendingProposal
	for rows.Next() {
		var pp domain.PendingProposal
		var status string
		err := rows.Scan(
			&pp.ID, &pp.TaskScheduleID, &pp.TaskID, &pp.UserID, &pp.PlanID,
			&pp.OriginalDate, &pp.OriginalStartTime, &pp.OriginalEndTime, &pp.OriginalDayIndex,
			&pp.ProposedDate, &pp.ProposedStartTime, &pp.ProposedEndTime, &pp.ProposedDayIndex,
			&pp.ContextScore, &pp.PriorityPenalty, &pp.DensityPenalty, &pp.FinalScore,
			&pp.Reason, &status, &pp.CreatedAt, &pp.DecidedAt,
			&pp.TaskName, &pp.TaskPriority,
		)
		if err != nil {
			return nil, fmt.Errorf("scan pending proposal: %w", err)
		}
		pp.Status = domain.ProposalStatus(status)
		out = append(out, &pp)
	}
	return out, rows.Err()
}

// lockPending loads a proposal FOR UPDATE and verifies it is still pending.
func lockPending(ctx context.Context, tx pgx.Tx, proposalID, userID string) (*domain.RescheduleProposal, error) {
	p, err := scanProposal(tx.QueryRow(ctx, `
		SELECT `+proposalColumns+`
		FROM pending_reschedules p
		WHERE p.id = $1 AND p.user_id = $2
		FOR UPDATE
	`, proposalID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &domain.ProposalNotPendingError{ProposalID: proposalID}
		}
		return nil, err
	}
	if p.Status != domain.ProposalPending {
		return nil, &domain.ProposalNotPendingError{ProposalID: proposalID}
	}
	return p, nil
}

func decide(ctx context.Context, tx pgx.Tx, p *domain.RescheduleProposal, status domain.ProposalStatus, decidedAt time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE pending_reschedules
		SET status = $1, decided_at = $2
		WHERE id = $3
	`, string(status), decidedAt, p.ID)
	if err != nil {
		return fmt.Errorf("mark proposal %s %s: %w", p.ID, status, err)
	}
	p.Status = status
	p.DecidedAt = &decidedAt
	return nil
}

func scanProposal(row interface{ Scan(...any) error }) (*domain.RescheduleProposal, error) {
	var p domain.RescheduleProposal
	var status string
	err := row.Scan(
		&p.ID, &p.TaskScheduleID, &p.TaskID, &p.UserID, &p.PlanID,
		&p.OriginalDate, &p.OriginalStartTime, &p.OriginalEndTime, &p.OriginalDayIndex,
		&p.ProposedDate, &p.ProposedStartTime, &p.ProposedEndTime, &p.ProposedDayIndex,
		&p.ContextScore, &p.PriorityPenalty, &p.DensityPenalty, &p.FinalScore,
		&p.Reason, &status, &p.CreatedAt, &p.DecidedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan proposal: %w", err)
	}
	p.Status = domain.ProposalStatus(status)
	return &p, nil
}
