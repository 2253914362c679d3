// Package detector finds schedule entries whose window has elapsed without
// a matching completion. Detection itself is a pure query; synthesizing
// missing rows for indefinite recurring tasks is a separate, explicit
// materialization step so detection stays side-effect free.
package detector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lenmanean/doer-sub005/internal/domain"
	"github.com/lenmanean/doer-sub005/internal/postgres"
	"github.com/lenmanean/doer-sub005/internal/timeutil"
	"github.com/lenmanean/doer-sub005/pkg/telemetry"
)

// lookbackDays is how far back the materializer synthesizes missed
// recurring instances.
const lookbackDays = 7

// Detector scans a user's schedule for overdue task instances.
type Detector struct {
	schedules   postgres.ScheduleRepository
	tasks       postgres.TaskRepository
	completions postgres.CompletionRepository
	logger      *slog.Logger
}

// New creates a Detector.
func New(
	schedules postgres.ScheduleRepository,
	tasks postgres.TaskRepository,
	completions postgres.CompletionRepository,
	logger *slog.Logger,
) *Detector {
	return &Detector{
		schedules:   schedules,
		tasks:       tasks,
		completions: completions,
		logger:      logger,
	}
}

// Detect returns the overdue task instances in the given plan scope
// (nil planID = free mode). checkTime must already be in the user's
// timezone: its calendar date is "today" and its clock is "now".
//
// An entry is overdue when its date is strictly before today, or its date
// is today and its end time has passed. Entries with a completion recorded
// for (task_id, today, schedule plan_id) are excluded. Results are
// de-duplicated by schedule id. Store errors propagate — an empty result
// really means nothing is overdue.
func (d *Detector) Detect(ctx context.Context, userID string, planID *string, checkTime time.Time) ([]domain.OverdueTask, error) {
	today := timeutil.FormatDate(checkTime)
	nowClock := timeutil.ClockOf(checkTime)

	entries, err := d.schedules.ListDetectable(ctx, userID, planID, today)
	if err != nil {
		return nil, fmt.Errorf("detect overdue for user %s: %w", userID, err)
	}

	seen := make(map[string]bool, len(entries))
	var out []domain.OverdueTask
	for _, e := range entries {
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true

		overdue, err := isOverdue(e, today, nowClock)
		if err != nil {
			d.logger.Warn("skipping malformed schedule entry",
				slog.String("schedule_id", e.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if !overdue {
			continue
		}

		completed, err := d.completions.Exists(ctx, e.TaskID, today, e.PlanID)
		if err != nil {
			return nil, fmt.Errorf("completion check for task %s: %w", e.TaskID, err)
		}
		if completed {
			continue
		}

		out = append(out, domain.OverdueTask{
			TaskID:          e.TaskID,
			ScheduleID:      e.ID,
			PlanID:          e.PlanID,
			Name:            e.TaskName,
			ScheduledDate:   e.Date,
			StartTime:       e.StartTime,
			EndTime:         e.EndTime,
			DurationMinutes: e.DurationMinutes,
			Priority:        e.Priority,
			ComplexityScore: e.ComplexityScore,
			Status:          e.Status,
		})
	}

	scope := "free"
	if planID != nil {
		scope = "plan"
	}
	telemetry.DetectorOverdueFound.WithLabelValues(scope).Add(float64(len(out)))
	return out, nil
}

// MaterializeRecurring inserts overdue schedule rows for indefinite
// recurring tasks that should have run in the last lookbackDays days (or
// today) but have no schedule row. Returns the number of rows created.
func (d *Detector) MaterializeRecurring(ctx context.Context, userID string, planID *string, checkTime time.Time) (int, error) {
	tasks, err := d.tasks.ListIndefiniteRecurring(ctx, userID, planID)
	if err != nil {
		return 0, fmt.Errorf("materialize recurring for user %s: %w", userID, err)
	}

	created := 0
	for offset := -lookbackDays; offset <= 0; offset++ {
		day := checkTime.AddDate(0, 0, offset)
		date := timeutil.FormatDate(day)

		for _, task := range tasks {
			if task.DefaultStart == "" || task.DefaultEnd == "" {
				continue
			}
			if !occursOn(task, day) {
				continue
			}
			elapsed, err := windowElapsed(task, day, checkTime)
			if err != nil {
				d.logger.Warn("skipping recurring task with malformed window",
					slog.String("task_id", task.ID),
					slog.String("error", err.Error()),
				)
				continue
			}
			if !elapsed {
				continue
			}

			existing, err := d.schedules.FindByTaskAndDate(ctx, task.ID, date)
			if err != nil {
				return created, err
			}
			if existing != nil {
				continue
			}

			start, _ := timeutil.NormalizeClock(task.DefaultStart)
			end, _ := timeutil.NormalizeClock(task.DefaultEnd)
			duration, err := timeutil.MinutesBetween(start, end)
			if err != nil {
				continue
			}
			entry := &domain.ScheduleEntry{
				TaskID:          task.ID,
				UserID:          userID,
				PlanID:          task.PlanID,
				Date:            date,
				StartTime:       start,
				EndTime:         end,
				DurationMinutes: duration,
				Status:          domain.ScheduleOverdue,
			}
			if err := d.schedules.Insert(ctx, entry); err != nil {
				return created, err
			}
			created++
			d.logger.Info("materialized missed recurring instance",
				slog.String("task_id", task.ID),
				slog.String("schedule_id", entry.ID),
				slog.String("date", date),
			)
		}
	}

	telemetry.DetectorMaterialized.Add(float64(created))
	return created, nil
}

// isOverdue applies the elapsed-window rule to one entry.
func isOverdue(e *domain.DueEntry, today, nowClock string) (bool, error) {
	if e.Date < today {
		return true, nil
	}
	if e.Date > today {
		return false, nil
	}
	end, err := timeutil.NormalizeClock(e.EndTime)
	if err != nil {
		return false, err
	}
	return end < nowClock, nil
}

// occursOn reports whether a recurring instance starts on the given day.
// Cross-midnight tasks also match when the window's end day is in the
// recurrence set.
func occursOn(task *domain.Task, day time.Time) bool {
	if task.RecursOn(day.Weekday()) {
		return true
	}
	return task.CrossesMidnight() && task.RecursOn(day.AddDate(0, 0, 1).Weekday())
}

// windowElapsed reports whether the instance starting on day has ended
// before checkTime. Cross-midnight windows end on the following day.
func windowElapsed(task *domain.Task, day, checkTime time.Time) (bool, error) {
	endMinutes, err := timeutil.ClockMinutes(task.DefaultEnd)
	if err != nil {
		return false, err
	}
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, checkTime.Location())
	end := dayStart.Add(time.Duration(endMinutes) * time.Minute)
	if task.CrossesMidnight() {
		end = end.Add(24 * time.Hour)
	}
	return end.Before(checkTime), nil
}
