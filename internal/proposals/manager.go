// Package proposals drives the reschedule-proposal lifecycle: create,
// list, accept, reject. State changes are transactional in the store;
// lifecycle events go out on Kafka for the notification layer.
package proposals

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/lenmanean/doer-sub005/internal/clock"
	"github.com/lenmanean/doer-sub005/internal/domain"
	"github.com/lenmanean/doer-sub005/internal/kafka"
	"github.com/lenmanean/doer-sub005/internal/postgres"
	"github.com/lenmanean/doer-sub005/pkg/retry"
	"github.com/lenmanean/doer-sub005/pkg/telemetry"
)

// EventsTopic carries proposal lifecycle events, keyed by task id.
const EventsTopic = "reschedule.proposals"

// Manager coordinates proposal state transitions.
type Manager struct {
	repo        postgres.ProposalRepository
	completions postgres.CompletionRepository
	producer    kafka.Producer // nil disables event emission
	clock       clock.Clock
	logger      *slog.Logger
}

// NewManager creates a Manager. producer may be nil.
func NewManager(
	repo postgres.ProposalRepository,
	completions postgres.CompletionRepository,
	producer kafka.Producer,
	clk clock.Clock,
	logger *slog.Logger,
) *Manager {
	return &Manager{
		repo:        repo,
		completions: completions,
		producer:    producer,
		clock:       clk,
		logger:      logger,
	}
}

// Event is the JSON payload published on proposal transitions.
type Event struct {
	Event    string                     `json:"event"`
	Proposal *domain.RescheduleProposal `json:"proposal"`
}

// Create records a pending proposal moving the task's schedule entry to
// the slot. Idempotent: a second call while a pending proposal exists for
// the same schedule entry returns the existing proposal untouched.
func (m *Manager) Create(ctx context.Context, task domain.OverdueTask, slot *domain.RescheduleSlot, userID string) (*domain.RescheduleProposal, error) {
	p := &domain.RescheduleProposal{
		TaskScheduleID:    task.ScheduleID,
		TaskID:            task.TaskID,
		UserID:            userID,
		PlanID:            task.PlanID,
		ProposedDate:      slot.Date,
		ProposedStartTime: slot.StartTime,
		ProposedEndTime:   slot.EndTime,
		ContextScore:      slot.ContextScore,
		PriorityPenalty:   slot.PriorityPenalty,
		DensityPenalty:    slot.DensityPenalty,
		FinalScore:        slot.FinalScore,
		Reason:            domain.ReasonOverdue,
		CreatedAt:         m.clock.Now().UTC(),
	}

	created, isNew, err := m.repo.CreatePending(ctx, p)
	if err != nil {
		return nil, err
	}
	if !isNew {
		m.logger.Debug("pending proposal already exists",
			slog.String("schedule_id", task.ScheduleID),
			slog.String("proposal_id", created.ID),
		)
		return created, nil
	}

	telemetry.ProposalsCreated.Inc()
	m.publish(ctx, "proposal.created", created)
	m.logger.Info("reschedule proposal created",
		slog.String("proposal_id", created.ID),
		slog.String("task_id", task.TaskID),
		slog.String("schedule_id", task.ScheduleID),
		slog.String("proposed_date", slot.Date),
		slog.String("proposed_start", slot.StartTime),
		slog.Float64("score", slot.FinalScore),
	)
	return created, nil
}

// Accept applies a pending proposal: the schedule entry moves to the
// proposed placement and becomes rescheduled. Returns
// ProposalNotPendingError on a second accept (or any non-pending state).
func (m *Manager) Accept(ctx context.Context, proposalID, userID string) (*domain.RescheduleProposal, error) {
	p, err := m.repo.Accept(ctx, proposalID, userID, m.clock.Now().UTC())
	if err != nil {
		return nil, err
	}
	telemetry.ProposalsDecided.WithLabelValues("accepted").Inc()
	m.publish(ctx, "proposal.accepted", p)
	m.logger.Info("reschedule proposal accepted",
		slog.String("proposal_id", p.ID),
		slog.String("task_id", p.TaskID),
		slog.String("new_date", p.ProposedDate),
	)
	return p, nil
}

// Reject discards a pending proposal and resets the schedule entry to
// overdue, making it eligible for a fresh proposal on the next pass.
func (m *Manager) Reject(ctx context.Context, proposalID, userID string) (*domain.RescheduleProposal, error) {
	p, err := m.repo.Reject(ctx, proposalID, userID, m.clock.Now().UTC())
	if err != nil {
		return nil, err
	}
	telemetry.ProposalsDecided.WithLabelValues("rejected").Inc()
	m.publish(ctx, "proposal.rejected", p)
	m.logger.Info("reschedule proposal rejected",
		slog.String("proposal_id", p.ID),
		slog.String("task_id", p.TaskID),
	)
	return p, nil
}

// ListPending returns the user's pending proposals in the plan scope,
// hiding any whose task was completed through another path after the
// proposal was created. Completion-check failures fail open — a proposal
// is kept rather than hidden from the user.
func (m *Manager) ListPending(ctx context.Context, userID string, planID *string) ([]*domain.PendingProposal, error) {
	pending, err := m.repo.ListPending(ctx, userID, planID)
	if err != nil {
		return nil, err
	}

	out := pending[:0]
	for _, p := range pending {
		completed, err := m.completions.Exists(ctx, p.TaskID, p.OriginalDate, p.PlanID)
		if err != nil {
			m.logger.Warn("completion check failed, keeping proposal",
				slog.String("proposal_id", p.ID),
				slog.String("error", err.Error()),
			)
			out = append(out, p)
			continue
		}
		if completed {
			telemetry.ProposalsFiltered.Inc()
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// publish emits a lifecycle event, best-effort with retries. A publish
// failure never affects the state change it reports.
func (m *Manager) publish(ctx context.Context, event string, p *domain.RescheduleProposal) {
	if m.producer == nil {
		return
	}
	payload, err := json.Marshal(Event{Event: event, Proposal: p})
	if err != nil {
		m.logger.Error("marshal proposal event", slog.String("error", err.Error()))
		return
	}
	err = retry.Do(ctx, retry.Config{MaxAttempts: 3, BaseDelay: 200 * time.Millisecond}, func() error {
		return m.producer.Publish(ctx, EventsTopic, p.TaskID, payload)
	})
	if err != nil {
		telemetry.EventPublishFailures.Inc()
		m.logger.Error("publish proposal event failed",
			slog.String("event", event),
			slog.String("proposal_id", p.ID),
			slog.String("error", err.Error()),
		)
	}
}
