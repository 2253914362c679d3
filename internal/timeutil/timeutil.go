// Package timeutil holds the pure date/clock arithmetic the rescheduler is
// built on. Dates are "2006-01-02" strings, clocks are "HH:MM" or
// "HH:MM:SS" strings; both compare correctly as plain strings once
// normalized, which is what the detector and scorer rely on.
package timeutil

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// ParseClock parses "HH:MM" or "HH:MM:SS" into hour, minute, second.
func ParseClock(s string) (h, m, sec int, err error) {
	switch len(s) {
	case 5:
		_, err = fmt.Sscanf(s, "%2d:%2d", &h, &m)
	case 8:
		_, err = fmt.Sscanf(s, "%2d:%2d:%2d", &h, &m, &sec)
	default:
		return 0, 0, 0, fmt.Errorf("invalid clock string %q", s)
	}
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid clock string %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 || sec < 0 || sec > 59 {
		return 0, 0, 0, fmt.Errorf("clock string %q out of range", s)
	}
	return h, m, sec, nil
}

// NormalizeClock returns the "HH:MM:SS" form of a clock string.
func NormalizeClock(s string) (string, error) {
	h, m, sec, err := ParseClock(s)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%02d:%02d:%02d", h, m, sec), nil
}

// ClockMinutes converts a clock string to minutes since midnight.
// Seconds are truncated.
func ClockMinutes(s string) (int, error) {
	h, m, _, err := ParseClock(s)
	if err != nil {
		return 0, err
	}
	return h*60 + m, nil
}

// FormatClock renders minutes-since-midnight as "HH:MM:SS".
// Values outside a single day wrap.
func FormatClock(minutes int) string {
	minutes %= 24 * 60
	if minutes < 0 {
		minutes += 24 * 60
	}
	return fmt.Sprintf("%02d:%02d:00", minutes/60, minutes%60)
}

// CrossesMidnight reports whether a window given by start/end clock strings
// spans midnight (end strictly before start).
func CrossesMidnight(start, end string) (bool, error) {
	s, err := ClockMinutes(start)
	if err != nil {
		return false, err
	}
	e, err := ClockMinutes(end)
	if err != nil {
		return false, err
	}
	return e < s, nil
}

// MinutesBetween returns the duration in minutes from start to end,
// treating end-before-start as a cross-midnight window.
func MinutesBetween(start, end string) (int, error) {
	s, err := ClockMinutes(start)
	if err != nil {
		return 0, err
	}
	e, err := ClockMinutes(end)
	if err != nil {
		return 0, err
	}
	if e < s {
		e += 24 * 60
	}
	return e - s, nil
}

// ParseDate parses a "2006-01-02" date string in the given location.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// FormatDate renders t's calendar date as "2006-01-02".
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// AddDays shifts a date string by n calendar days.
func AddDays(date string, n int) (string, error) {
	t, err := ParseDate(date, time.UTC)
	if err != nil {
		return "", err
	}
	return FormatDate(t.AddDate(0, 0, n)), nil
}

// DaysBetween returns the number of calendar days from a to b (b − a).
func DaysBetween(a, b string) (int, error) {
	ta, err := ParseDate(a, time.UTC)
	if err != nil {
		return 0, err
	}
	tb, err := ParseDate(b, time.UTC)
	if err != nil {
		return 0, err
	}
	return int(tb.Sub(ta).Hours() / 24), nil
}

// WeekdayOf returns the weekday of a date string.
func WeekdayOf(date string) (time.Weekday, error) {
	t, err := ParseDate(date, time.UTC)
	if err != nil {
		return 0, err
	}
	return t.Weekday(), nil
}

// ClockOf renders t's time of day as "HH:MM:SS".
func ClockOf(t time.Time) string {
	return t.Format("15:04:05")
}

// Overlaps reports whether the half-open minute intervals
// [aStart, aEnd) and [bStart, bEnd) intersect.
func Overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && bStart < aEnd
}
