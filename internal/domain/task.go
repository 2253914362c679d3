package domain

import "time"

// Task is a unit of work belonging to a user, optionally to a plan.
// A nil PlanID means "free mode": ad-hoc tasks scheduled outside any plan.
type Task struct {
	ID              string         `json:"id"`
	UserID          string         `json:"user_id"`
	PlanID          *string        `json:"plan_id,omitempty"`
	Name            string         `json:"name"`
	Priority        int            `json:"priority"` // 1–4, 1 = highest
	DurationMinutes int            `json:"duration_minutes"`
	ComplexityScore int            `json:"complexity_score"`
	IsRecurring     bool           `json:"is_recurring"`
	IsIndefinite    bool           `json:"is_indefinite"`
	RecurrenceDays  []time.Weekday `json:"recurrence_days,omitempty"`
	DefaultStart    string         `json:"default_start_time,omitempty"` // "HH:MM:SS"
	DefaultEnd      string         `json:"default_end_time,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// CrossesMidnight reports whether the task's default window spans midnight
// (end clock strictly before start clock).
func (t *Task) CrossesMidnight() bool {
	return t.DefaultStart != "" && t.DefaultEnd != "" && t.DefaultEnd < t.DefaultStart
}

// RecursOn reports whether the task's recurrence set includes the weekday.
func (t *Task) RecursOn(day time.Weekday) bool {
	for _, d := range t.RecurrenceDays {
		if d == day {
			return true
		}
	}
	return false
}
