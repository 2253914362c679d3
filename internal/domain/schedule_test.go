package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScheduleStatus_Detectable(t *testing.T) {
	assert.True(t, ScheduleScheduled.Detectable())
	assert.True(t, ScheduleOverdue.Detectable())
	assert.True(t, ScheduleRescheduling.Detectable())
	assert.False(t, SchedulePendingReschedule.Detectable())
	assert.False(t, ScheduleRescheduled.Detectable())
}

func TestScheduleStatus_IsTerminal(t *testing.T) {
	assert.True(t, ScheduleRescheduled.IsTerminal())
	assert.False(t, ScheduleOverdue.IsTerminal())
	assert.False(t, SchedulePendingReschedule.IsTerminal())
}

func TestProposalStatus_IsTerminal(t *testing.T) {
	assert.False(t, ProposalPending.IsTerminal())
	assert.True(t, ProposalAccepted.IsTerminal())
	assert.True(t, ProposalRejected.IsTerminal())
}

func TestTask_CrossesMidnight(t *testing.T) {
	task := &Task{DefaultStart: "22:00:00", DefaultEnd: "02:00:00"}
	assert.True(t, task.CrossesMidnight())

	task = &Task{DefaultStart: "09:00:00", DefaultEnd: "17:00:00"}
	assert.False(t, task.CrossesMidnight())
}

func TestTask_RecursOn(t *testing.T) {
	task := &Task{RecurrenceDays: []time.Weekday{time.Monday, time.Wednesday}}
	assert.True(t, task.RecursOn(time.Monday))
	assert.True(t, task.RecursOn(time.Wednesday))
	assert.False(t, task.RecursOn(time.Sunday))

	empty := &Task{}
	assert.False(t, empty.RecursOn(time.Monday))
}

func TestSpacingMode_Valid(t *testing.T) {
	assert.True(t, SpacingStrict.Valid())
	assert.True(t, SpacingModerate.Valid())
	assert.True(t, SpacingLoose.Valid())
	assert.False(t, SpacingMode("aggressive").Valid())
	assert.False(t, SpacingMode("").Valid())
}

func TestDefaultWorkdaySettings(t *testing.T) {
	ws := DefaultWorkdaySettings()
	assert.Equal(t, 9, ws.StartHour)
	assert.Equal(t, 17, ws.EndHour)
	assert.Equal(t, 12, ws.LunchStartHour)
	assert.Equal(t, 13, ws.LunchEndHour)
	assert.Equal(t, 15, ws.BufferMinutes)
	assert.Equal(t, SpacingModerate, ws.Spacing)
	assert.Equal(t, 3, ws.RescheduleWindowDays)
	assert.Equal(t, "UTC", ws.Timezone)
}
