// Package slots enumerates and scores candidate reschedule placements for
// overdue tasks over a bounded future window.
package slots

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

// Search bounds one slot search.
type Search struct {
	// Now is the current time in the user's timezone; its date is day
	// zero of the window unless StartDate overrides it.
	Now time.Time
	// StartDate, when set, shifts the window start (the plan-extension
	// retry searches just the newly added day). The effective start is
	// never earlier than Now's date.
	StartDate string
	// MaxDays is the number of days beyond the start to search, so the
	// window spans MaxDays+1 calendar days.
	MaxDays int
	// PlanEnd, when set, truncates the window at the plan's end date.
	PlanEnd string
}

// Finder generates and scores candidate slots.
type Finder struct {
	schedules postgres.ScheduleRepository
	policy    Policy
	logger    *slog.Logger
}

// NewFinder creates a Finder with the given scoring policy.
func NewFinder(schedules postgres.ScheduleRepository, policy Policy, logger *slog.Logger) *Finder {
	return &Finder{schedules: schedules, policy: policy, logger: logger}
}

// Find returns the highest-scoring feasible slot for the task in the
// search window, or nil when no day yields a valid slot. Candidates are
// generated chronologically on a 15-minute grid across the workday,
// excluding past slots (today only), lunch overlaps, and conflicts with
// other active entries in the same plan scope. Ties keep the earliest
// candidate.
func (f *Finder) Find(ctx context.Context, userID string, task domain.OverdueTask, ws domain.WorkdaySettings, search Search) (*domain.RescheduleSlot, error) {
	started := time.Now()

	today := timeutil.FormatDate(search.Now)
	startDate := search.StartDate
	if startDate == "" || startDate < today {
		// The window never reaches into the past, even when a stale plan
		// end puts the requested start behind today.
		startDate = today
	}
	endDate, err := timeutil.AddDays(startDate, search.MaxDays)
	if err != nil {
		return nil, err
	}
	if search.PlanEnd != "" && endDate > search.PlanEnd {
		endDate = search.PlanEnd
	}
	if endDate < startDate {
		return nil, nil
	}

	duration := task.DurationMinutes
	if duration <= 0 {
		if d, derr := timeutil.MinutesBetween(task.StartTime, task.EndTime); derr == nil && d > 0 {
			duration = d
		} else {
			duration = 30
		}
	}

	others, err := f.schedules.ListActiveBetween(ctx, userID, task.PlanID, startDate, endDate, task.ScheduleID)
	if err != nil {
		return nil, fmt.Errorf("load conflicts for task %s: %w", task.TaskID, err)
	}
	byDay, err := groupByDay(others)
	if err != nil {
		return nil, err
	}

	workStart := ws.StartHour*60 + ws.StartMinute
	workEnd := ws.EndHour*60 + ws.EndMinute
	lunchStart := ws.LunchStartHour * 60
	lunchEnd := ws.LunchEndHour * 60
	nowMin, _ := timeutil.ClockMinutes(timeutil.ClockOf(search.Now))

	var best *domain.RescheduleSlot
	days, _ := timeutil.DaysBetween(startDate, endDate)
	for i := 0; i <= days; i++ {
		date, err := timeutil.AddDays(startDate, i)
		if err != nil {
			return nil, err
		}
		day := byDay[date]

		for start := workStart; start+duration <= workEnd; start += f.policy.GridStepMinutes {
			end := start + duration
			if date == today && start < nowMin {
				continue
			}
			if timeutil.Overlaps(start, end, lunchStart, lunchEnd) {
				continue
			}
			if conflicts(start, end, day) {
				continue
			}

			center := start + duration/2
			pp := f.policy.priorityPenalty(task.Priority, center, ws.Spacing, day.neighbors)
			dp := f.policy.densityPenalty(center, day.neighbors)
			cs := f.policy.contextScore(task.Priority, task.ComplexityScore, start, ws)
			score := f.policy.finalScore(pp, dp, cs)

			if best == nil || score > best.FinalScore {
				best = &domain.RescheduleSlot{
					Date:            date,
					StartTime:       timeutil.FormatClock(start),
					EndTime:         timeutil.FormatClock(end),
					DayIndex:        i,
					ContextScore:    cs,
					PriorityPenalty: pp,
					DensityPenalty:  dp,
					FinalScore:      score,
				}
			}
		}
	}

	outcome := "found"
	if best == nil {
		outcome = "none"
	}
	telemetry.SlotSearchDuration.WithLabelValues(outcome).Observe(time.Since(started).Seconds())
	return best, nil
}

// dayEntries is one day's scheduled intervals plus the reduced neighbor
// view scoring works on.
type dayEntries struct {
	intervals [][2]int
	neighbors []neighbor
}

func groupByDay(entries []*domain.DueEntry) (map[string]dayEntries, error) {
	byDay := make(map[string]dayEntries)
	for _, e := range entries {
		start, err := timeutil.ClockMinutes(e.StartTime)
		if err != nil {
			return nil, fmt.Errorf("schedule entry %s: %w", e.ID, err)
		}
		end, err := timeutil.ClockMinutes(e.EndTime)
		if err != nil {
			return nil, fmt.Errorf("schedule entry %s: %w", e.ID, err)
		}
		if end < start {
			end += 24 * 60
		}
		day := byDay[e.Date]
		day.intervals = append(day.intervals, [2]int{start, end})
		day.neighbors = append(day.neighbors, neighbor{
			centerMin: start + (end-start)/2,
			priority:  e.Priority,
		})
		byDay[e.Date] = day
	}
	return byDay, nil
}

func conflicts(start, end int, day dayEntries) bool {
	for _, iv := range day.intervals {
		if timeutil.Overlaps(start, end, iv[0], iv[1]) {
			return true
		}
	}
	return false
}
