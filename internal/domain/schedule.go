package domain

import "time"

// ScheduleStatus represents the states a schedule entry can be in.
type ScheduleStatus string

const (
	ScheduleScheduled         ScheduleStatus = "scheduled"
	ScheduleOverdue           ScheduleStatus = "overdue"
	ScheduleRescheduling      ScheduleStatus = "rescheduling"
	SchedulePendingReschedule ScheduleStatus = "pending_reschedule"
	ScheduleRescheduled       ScheduleStatus = "rescheduled"
)

// Detectable returns true if the overdue detector may consider this entry.
// Entries holding a pending proposal or already rescheduled are excluded.
func (s ScheduleStatus) Detectable() bool {
	return s == ScheduleScheduled || s == ScheduleOverdue || s == ScheduleRescheduling
}

// IsTerminal returns true if no further state transitions are possible
// for this schedule instance.
func (s ScheduleStatus) IsTerminal() bool {
	return s == ScheduleRescheduled
}

// ScheduleEntry is one concrete placement of a task on a calendar day.
// Date is "2006-01-02"; StartTime and EndTime are "HH:MM:SS" clock strings.
type ScheduleEntry struct {
	ID                  string          `json:"id"`
	TaskID              string          `json:"task_id"`
	UserID              string          `json:"user_id"`
	PlanID              *string         `json:"plan_id,omitempty"`
	Date                string          `json:"date"`
	StartTime           string          `json:"start_time"`
	EndTime             string          `json:"end_time"`
	DurationMinutes     int             `json:"duration_minutes"`
	DayIndex            int             `json:"day_index"`
	Status              ScheduleStatus  `json:"status"`
	RescheduleCount     int             `json:"reschedule_count"`
	PendingRescheduleID *string         `json:"pending_reschedule_id,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// DueEntry is a schedule entry joined with the task fields the detector
// and scorer need.
type DueEntry struct {
	ScheduleEntry
	TaskName        string `json:"task_name"`
	Priority        int    `json:"priority"`
	ComplexityScore int    `json:"complexity_score"`
}

// Completion records that a task instance was finished for a specific
// (task_id, scheduled_date, plan_id) triple. PlanID matches the schedule's
// plan, not necessarily the task's current plan.
type Completion struct {
	ID            string    `json:"id"`
	TaskID        string    `json:"task_id"`
	UserID        string    `json:"user_id"`
	PlanID        *string   `json:"plan_id,omitempty"`
	ScheduledDate string    `json:"scheduled_date"`
	CompletedAt   time.Time `json:"completed_at"`
}

// OverdueTask is a detector result: a schedule instance whose window has
// elapsed without a matching completion.
type OverdueTask struct {
	TaskID          string         `json:"task_id"`
	ScheduleID      string         `json:"schedule_id"`
	PlanID          *string        `json:"plan_id,omitempty"`
	Name            string         `json:"name"`
	ScheduledDate   string         `json:"scheduled_date"`
	StartTime       string         `json:"start_time"`
	EndTime         string         `json:"end_time"`
	DurationMinutes int            `json:"duration_minutes"`
	Priority        int            `json:"priority"`
	ComplexityScore int            `json:"complexity_score"`
	Status          ScheduleStatus `json:"status"`
}

// RescheduleSlot is a scored candidate placement produced by the slot finder.
type RescheduleSlot struct {
	Date            string  `json:"date"`
	StartTime       string  `json:"start_time"`
	EndTime         string  `json:"end_time"`
	DayIndex        int     `json:"day_index"`
	ContextScore    float64 `json:"context_score"`
	PriorityPenalty float64 `json:"priority_penalty"`
	DensityPenalty  float64 `json:"density_penalty"`
	FinalScore      float64 `json:"final_score"`
}

// SchedulingHistoryEntry is an append-only audit record of an applied
// adjustment. Not used for control flow.
type SchedulingHistoryEntry struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	PlanID     *string   `json:"plan_id,omitempty"`
	Day        string    `json:"day"`
	TaskID     string    `json:"task_id"`
	ScheduleID string    `json:"schedule_id"`
	Action     string    `json:"action"`
	Detail     []byte    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Plan is the slice of the plans table the rescheduler needs: the search
// window for plan-scoped tasks is bounded by EndDate.
type Plan struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	StartDate string    `json:"start_date"`
	EndDate   string    `json:"end_date"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
