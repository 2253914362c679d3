// Package sweeper runs the rescheduling pass on a schedule for every user
// who keeps auto-reschedule on, so overdue work is reproposed without
// waiting for the user to open the app.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/lenmanean/doer-sub005/internal/domain"
	"github.com/lenmanean/doer-sub005/internal/postgres"
	"github.com/lenmanean/doer-sub005/pkg/telemetry"
)

// Runner is the per-scope pass the sweeper drives. Satisfied by
// *orchestrator.Orchestrator.
type Runner interface {
	Run(ctx context.Context, userID string, planID *string) ([]*domain.RescheduleProposal, error)
}

// Elector gates the sweep so only one replica executes it. Satisfied by
// *redis.LeaderElector.
type Elector interface {
	AcquireOrRenew(ctx context.Context) (bool, error)
}

// Sweeper wakes on a cron schedule, wins (or keeps) leadership, and runs
// the orchestrator for every opted-in user across all their scopes.
type Sweeper struct {
	runner   Runner
	settings postgres.SettingsRepository
	plans    postgres.PlanRepository
	elector  Elector // nil disables leader election (single instance)
	logger   *slog.Logger
}

// New creates a Sweeper. elector may be nil.
func New(
	runner Runner,
	settings postgres.SettingsRepository,
	plans postgres.PlanRepository,
	elector Elector,
	logger *slog.Logger,
) *Sweeper {
	return &Sweeper{
		runner:   runner,
		settings: settings,
		plans:    plans,
		elector:  elector,
		logger:   logger,
	}
}

// Start parses spec as a standard 5-field cron expression and blocks until
// ctx is cancelled, firing Sweep at each tick.
func (s *Sweeper) Start(ctx context.Context, spec string) error {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return err
	}
	for {
		next := schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		if s.elector != nil {
			leader, err := s.elector.AcquireOrRenew(ctx)
			if err != nil {
				s.logger.Error("leader election failed", slog.String("error", err.Error()))
				continue
			}
			if !leader {
				s.logger.Debug("not the leader, skipping sweep")
				continue
			}
		}

		if err := s.Sweep(ctx); err != nil {
			s.logger.Error("sweep failed", slog.String("error", err.Error()))
		}
	}
}

// Sweep runs one full pass: every opted-in user, free mode plus each
// active plan. Per-user failures are logged and skipped so one bad row
// cannot stall the rest of the fleet.
func (s *Sweeper) Sweep(ctx context.Context) error {
	telemetry.SweepRuns.Inc()
	started := time.Now()

	userIDs, err := s.settings.ListAutoRescheduleUserIDs(ctx)
	if err != nil {
		return err
	}

	processed := 0
	for _, userID := range userIDs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.sweepUser(ctx, userID); err != nil {
			s.logger.Error("user sweep failed",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
			continue
		}
		processed++
		telemetry.SweepUsersProcessed.Inc()
	}

	s.logger.Info("sweep complete",
		slog.Int("users", processed),
		slog.Duration("elapsed", time.Since(started)),
	)
	return nil
}

func (s *Sweeper) sweepUser(ctx context.Context, userID string) error {
	if _, err := s.runner.Run(ctx, userID, nil); err != nil {
		return err
	}

	planIDs, err := s.plans.ListActiveIDs(ctx, userID)
	if err != nil {
		return err
	}
	for _, planID := range planIDs {
		id := planID
		if _, err := s.runner.Run(ctx, userID, &id); err != nil {
			return err
		}
	}
	return nil
}
