package domain

import "fmt"

// ProposalNotPendingError is returned when a proposal is missing or no
// longer pending — accepting or rejecting the same proposal twice hits
// this, as does acting on an id that never existed.
type ProposalNotPendingError struct {
	ProposalID string
}

func (e *ProposalNotPendingError) Error() string {
	return fmt.Sprintf("proposal %s not found or already processed", e.ProposalID)
}

// PlanNotFoundError is returned when a plan ID does not exist for the user.
type PlanNotFoundError struct {
	PlanID string
}

func (e *PlanNotFoundError) Error() string {
	return fmt.Sprintf("plan not found: %s", e.PlanID)
}

// ScheduleNotFoundError is returned when a schedule entry ID does not exist.
type ScheduleNotFoundError struct {
	ScheduleID string
}

func (e *ScheduleNotFoundError) Error() string {
	return fmt.Sprintf("schedule entry not found: %s", e.ScheduleID)
}

// TaskNotFoundError is returned when a task ID does not exist.
type TaskNotFoundError struct {
	TaskID string
}

func (e *TaskNotFoundError) Error() string {
	return fmt.Sprintf("task not found: %s", e.TaskID)
}
