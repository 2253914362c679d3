// Package orchestrator ties detection, slot scoring, and proposal
// creation into one pass per (user, plan scope). Proposals are never
// applied automatically — every reschedule waits for an explicit user
// decision.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/lenmanean/doer-sub005/internal/clock"
	"github.com/lenmanean/doer-sub005/internal/detector"
	"github.com/lenmanean/doer-sub005/internal/domain"
	"github.com/lenmanean/doer-sub005/internal/postgres"
	"github.com/lenmanean/doer-sub005/internal/proposals"
	redisstore "github.com/lenmanean/doer-sub005/internal/redis"
	"github.com/lenmanean/doer-sub005/internal/settings"
	"github.com/lenmanean/doer-sub005/internal/slots"
	"github.com/lenmanean/doer-sub005/internal/timeutil"
	"github.com/lenmanean/doer-sub005/pkg/telemetry"
)

const runLockTTL = 2 * time.Minute

// Orchestrator runs the detect → score → propose pass.
type Orchestrator struct {
	resolver  *settings.Resolver
	detector  *detector.Detector
	finder    *slots.Finder
	proposals *proposals.Manager
	plans     postgres.PlanRepository
	schedules postgres.ScheduleRepository
	locker    redisstore.Locker // nil disables run locking
	clock     clock.Clock
	logger    *slog.Logger
}

// New creates an Orchestrator. locker may be nil.
func New(
	resolver *settings.Resolver,
	det *detector.Detector,
	finder *slots.Finder,
	mgr *proposals.Manager,
	plans postgres.PlanRepository,
	schedules postgres.ScheduleRepository,
	locker redisstore.Locker,
	clk clock.Clock,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		resolver:  resolver,
		detector:  det,
		finder:    finder,
		proposals: mgr,
		plans:     plans,
		schedules: schedules,
		locker:    locker,
		clock:     clk,
		logger:    logger,
	}
}

// Run executes one rescheduling pass for the user in the given plan scope
// (nil planID = free mode). Returns the proposals created. A disabled
// auto-reschedule toggle or a concurrently running pass short-circuits to
// an empty result. Per-task failures reset that entry to overdue and do
// not abort the batch.
func (o *Orchestrator) Run(ctx context.Context, userID string, planID *string) ([]*domain.RescheduleProposal, error) {
	ctx, span := otel.Tracer("orchestrator").Start(ctx, "orchestrator.run")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	log := o.logger.With(slog.String("user_id", userID), slog.String("scope", scopeLabel(planID)))

	enabled, err := o.resolver.AutoRescheduleEnabled(ctx, userID)
	if err != nil {
		telemetry.OrchestratorRuns.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("auto-reschedule toggle: %w", err)
	}
	if !enabled {
		telemetry.OrchestratorRuns.WithLabelValues("disabled").Inc()
		log.Debug("auto-reschedule disabled, skipping pass")
		return nil, nil
	}

	if o.locker != nil {
		release, ok, err := o.locker.TryAcquire(ctx, runKey(userID, planID), runLockTTL)
		if err != nil {
			telemetry.OrchestratorRuns.WithLabelValues("error").Inc()
			return nil, err
		}
		if !ok {
			telemetry.OrchestratorRuns.WithLabelValues("locked").Inc()
			log.Info("pass already running for this scope, skipping")
			return nil, nil
		}
		defer release(ctx)
	}

	ws, err := o.resolver.Workday(ctx, userID)
	if err != nil {
		telemetry.OrchestratorRuns.WithLabelValues("error").Inc()
		return nil, err
	}
	now := o.clock.Now().In(clock.LocationFor(ws.Timezone))

	if _, err := o.detector.MaterializeRecurring(ctx, userID, planID, now); err != nil {
		telemetry.OrchestratorRuns.WithLabelValues("error").Inc()
		return nil, err
	}
	overdue, err := o.detector.Detect(ctx, userID, planID, now)
	if err != nil {
		telemetry.OrchestratorRuns.WithLabelValues("error").Inc()
		return nil, err
	}
	if len(overdue) == 0 {
		telemetry.OrchestratorRuns.WithLabelValues("completed").Inc()
		return nil, nil
	}
	log.Info("overdue tasks detected", slog.Int("count", len(overdue)))

	planEnd := ""
	if planID != nil {
		plan, err := o.plans.GetByID(ctx, *planID, userID)
		if err != nil {
			telemetry.OrchestratorRuns.WithLabelValues("error").Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, "plan lookup failed")
			return nil, err
		}
		planEnd = plan.EndDate
	}

	var created []*domain.RescheduleProposal
	for _, task := range overdue {
		if task.Status == domain.SchedulePendingReschedule {
			continue
		}
		p, err := o.rescheduleOne(ctx, log, userID, planID, task, ws, now, planEnd)
		if err != nil {
			telemetry.OrchestratorTaskErrors.Inc()
			span.RecordError(err)
			log.Error("reschedule failed, resetting to overdue",
				slog.String("task_id", task.TaskID),
				slog.String("schedule_id", task.ScheduleID),
				slog.String("error", err.Error()),
			)
			if resetErr := o.schedules.SetStatus(ctx, task.ScheduleID, domain.ScheduleOverdue); resetErr != nil {
				log.Error("status reset failed",
					slog.String("schedule_id", task.ScheduleID),
					slog.String("error", resetErr.Error()),
				)
			}
			continue
		}
		if p != nil {
			created = append(created, p)
		}
	}

	telemetry.OrchestratorRuns.WithLabelValues("completed").Inc()
	return created, nil
}

// rescheduleOne handles a single overdue task: flag it rescheduling, find
// a slot (with fallbacks), and create the proposal.
func (o *Orchestrator) rescheduleOne(
	ctx context.Context,
	log *slog.Logger,
	userID string,
	planID *string,
	task domain.OverdueTask,
	ws domain.WorkdaySettings,
	now time.Time,
	planEnd string,
) (*domain.RescheduleProposal, error) {
	// Idempotent: an entry stuck in rescheduling from an interrupted pass
	// is picked up as-is.
	if task.Status != domain.ScheduleRescheduling {
		if err := o.schedules.SetStatus(ctx, task.ScheduleID, domain.ScheduleRescheduling); err != nil {
			return nil, err
		}
	}

	slot, err := o.finder.Find(ctx, userID, task, ws, slots.Search{
		Now:     now,
		MaxDays: ws.RescheduleWindowDays,
		PlanEnd: planEnd,
	})
	if err != nil {
		return nil, err
	}

	if slot == nil {
		if planID == nil {
			// Free mode: no feasible slot in the window means tomorrow at
			// workday start.
			slot = o.fallbackSlot(task, ws, now)
			log.Info("no slot found, using tomorrow fallback",
				slog.String("task_id", task.TaskID),
				slog.String("date", slot.Date),
			)
		} else {
			// Plan scope: push the plan's end date out one day and search
			// just that day.
			newEnd, err := o.plans.ExtendEndDate(ctx, *planID, userID, 1)
			if err != nil {
				return nil, err
			}
			log.Info("no slot in plan window, extended plan by one day",
				slog.String("plan_id", *planID),
				slog.String("new_end", newEnd),
			)
			slot, err = o.finder.Find(ctx, userID, task, ws, slots.Search{
				Now:       now,
				StartDate: newEnd,
				MaxDays:   0,
				PlanEnd:   newEnd,
			})
			if err != nil {
				return nil, err
			}
			if slot == nil {
				return nil, fmt.Errorf("no slot for task %s even after plan extension", task.TaskID)
			}
		}
	}

	return o.proposals.Create(ctx, task, slot, userID)
}

// fallbackSlot places the task at workday start tomorrow.
func (o *Orchestrator) fallbackSlot(task domain.OverdueTask, ws domain.WorkdaySettings, now time.Time) *domain.RescheduleSlot {
	duration := task.DurationMinutes
	if duration <= 0 {
		duration = 30
	}
	start := ws.StartHour*60 + ws.StartMinute
	return &domain.RescheduleSlot{
		Date:      timeutil.FormatDate(now.AddDate(0, 0, 1)),
		StartTime: timeutil.FormatClock(start),
		EndTime:   timeutil.FormatClock(start + duration),
		DayIndex:  1,
	}
}

func runKey(userID string, planID *string) string {
	return "resched:run:" + userID + ":" + scopeLabel(planID)
}

func scopeLabel(planID *string) string {
	if planID == nil {
		return "free"
	}
	return *planID
}
