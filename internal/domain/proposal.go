package domain

import "time"

// ProposalStatus represents the lifecycle state of a reschedule proposal.
type ProposalStatus string

const (
	ProposalPending  ProposalStatus = "pending"
	ProposalAccepted ProposalStatus = "accepted"
	ProposalRejected ProposalStatus = "rejected"
)

// IsTerminal returns true once a user decision has been applied.
func (s ProposalStatus) IsTerminal() bool {
	return s == ProposalAccepted || s == ProposalRejected
}

// ReasonOverdue tags proposals created by the overdue-detection pass.
const ReasonOverdue = "overdue"

// RescheduleProposal is a pending decision: a candidate move of one
// schedule entry from its original placement to a proposed one, awaiting
// explicit user accept/reject. At most one pending proposal may reference
// a given schedule entry at a time.
type RescheduleProposal struct {
	ID             string         `json:"id"`
	TaskScheduleID string         `json:"task_schedule_id"`
	TaskID         string         `json:"task_id"`
	UserID         string         `json:"user_id"`
	PlanID         *string        `json:"plan_id,omitempty"`

	OriginalDate      string `json:"original_date"`
	OriginalStartTime string `json:"original_start_time"`
	OriginalEndTime   string `json:"original_end_time"`
	OriginalDayIndex  int    `json:"original_day_index"`

	ProposedDate      string `json:"proposed_date"`
	ProposedStartTime string `json:"proposed_start_time"`
	ProposedEndTime   string `json:"proposed_end_time"`
	ProposedDayIndex  int    `json:"proposed_day_index"`

	ContextScore    float64 `json:"context_score"`
	PriorityPenalty float64 `json:"priority_penalty"`
	DensityPenalty  float64 `json:"density_penalty"`
	FinalScore      float64 `json:"final_score"`

	Reason    string         `json:"reason"`
	Status    ProposalStatus `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	DecidedAt *time.Time     `json:"decided_at,omitempty"`
}

// PendingProposal is a proposal joined with the task metadata the listing
// endpoint returns.
type PendingProposal struct {
	RescheduleProposal
	TaskName     string `json:"task_name"`
	TaskPriority int    `json:"task_priority"`
}

// RescheduleReason is the structured blob written onto the schedule entry
// when a proposal is accepted: the pre-move placement plus the score
// breakdown that justified it.
type RescheduleReason struct {
	OldDate         string    `json:"old_date"`
	OldStartTime    string    `json:"old_start_time"`
	OldEndTime      string    `json:"old_end_time"`
	ContextScore    float64   `json:"context_score"`
	PriorityPenalty float64   `json:"priority_penalty"`
	DensityPenalty  float64   `json:"density_penalty"`
	FinalScore      float64   `json:"final_score"`
	RescheduledAt   time.Time `json:"rescheduled_at"`
}
