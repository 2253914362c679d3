package domain

import "time"

// SpacingMode controls how aggressively the slot scorer keeps
// similar-priority tasks apart.
type SpacingMode string

const (
	SpacingStrict   SpacingMode = "strict"
	SpacingModerate SpacingMode = "moderate"
	SpacingLoose    SpacingMode = "loose"
)

// Valid reports whether s is one of the known spacing modes.
func (s SpacingMode) Valid() bool {
	return s == SpacingStrict || s == SpacingModerate || s == SpacingLoose
}

// WorkdaySettings are the per-user scheduling preferences after defaults
// have been applied. Times are hour/minute pairs in the user's timezone.
type WorkdaySettings struct {
	StartHour            int
	StartMinute          int
	EndHour              int
	EndMinute            int
	LunchStartHour       int
	LunchEndHour         int
	BufferMinutes        int
	Spacing              SpacingMode
	RescheduleWindowDays int
	Timezone             string
}

// DefaultWorkdaySettings returns the hardcoded fallbacks: 9:00–17:00
// workday, 12:00–13:00 lunch, 15-minute buffer, moderate spacing,
// 3-day reschedule window, UTC.
func DefaultWorkdaySettings() WorkdaySettings {
	return WorkdaySettings{
		StartHour:            9,
		StartMinute:          0,
		EndHour:              17,
		EndMinute:            0,
		LunchStartHour:       12,
		LunchEndHour:         13,
		BufferMinutes:        15,
		Spacing:              SpacingModerate,
		RescheduleWindowDays: 3,
		Timezone:             "UTC",
	}
}

// UserSettings mirrors the user_settings row. Nil pointers mean "not set":
// the resolver falls back per-field to DefaultWorkdaySettings.
type UserSettings struct {
	UserID                string
	Timezone              *string
	WorkdayStart          *string // "HH:MM"
	WorkdayEnd            *string
	LunchStart            *string
	LunchEnd              *string
	BufferMinutes         *int
	PrioritySpacing       *string
	RescheduleWindowDays  *int
	AutoRescheduleEnabled bool
	UpdatedAt             time.Time
}
