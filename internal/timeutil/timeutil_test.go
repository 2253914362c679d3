package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		h, m, s int
		wantErr bool
	}{
		{in: "09:30", h: 9, m: 30},
		{in: "09:30:15", h: 9, m: 30, s: 15},
		{in: "00:00:00", h: 0, m: 0, s: 0},
		{in: "23:59:59", h: 23, m: 59, s: 59},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "9:30", wantErr: true},
		{in: "", wantErr: true},
		{in: "garbage!", wantErr: true},
	}
	for _, tc := range tests {
		h, m, s, err := ParseClock(tc.in)
		if tc.wantErr {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.h, h, tc.in)
		assert.Equal(t, tc.m, m, tc.in)
		assert.Equal(t, tc.s, s, tc.in)
	}
}

func TestNormalizeClock(t *testing.T) {
	got, err := NormalizeClock("17:00")
	require.NoError(t, err)
	assert.Equal(t, "17:00:00", got)

	got, err = NormalizeClock("17:00:30")
	require.NoError(t, err)
	assert.Equal(t, "17:00:30", got)

	_, err = NormalizeClock("25:00")
	assert.Error(t, err)
}

func TestClockMinutes(t *testing.T) {
	got, err := ClockMinutes("13:30:45")
	require.NoError(t, err)
	assert.Equal(t, 13*60+30, got) // seconds truncated

	got, err = ClockMinutes("00:00")
	require.NoError(t, err)
	assert.Equal(t, 0, got)
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "09:05:00", FormatClock(9*60+5))
	assert.Equal(t, "00:00:00", FormatClock(0))
	// Wraps past midnight.
	assert.Equal(t, "01:00:00", FormatClock(25*60))
	assert.Equal(t, "23:00:00", FormatClock(-60))
}

func TestCrossesMidnight(t *testing.T) {
	got, err := CrossesMidnight("22:00", "02:00")
	require.NoError(t, err)
	assert.True(t, got)

	got, err = CrossesMidnight("09:00", "17:00")
	require.NoError(t, err)
	assert.False(t, got)

	// Equal start and end does not cross.
	got, err = CrossesMidnight("10:00", "10:00")
	require.NoError(t, err)
	assert.False(t, got)
}

func TestMinutesBetween(t *testing.T) {
	got, err := MinutesBetween("09:00", "17:30")
	require.NoError(t, err)
	assert.Equal(t, 510, got)

	// Cross-midnight window.
	got, err = MinutesBetween("23:00", "01:00")
	require.NoError(t, err)
	assert.Equal(t, 120, got)
}

func TestAddDays(t *testing.T) {
	got, err := AddDays("2026-08-30", 3)
	require.NoError(t, err)
	assert.Equal(t, "2026-09-02", got)

	got, err = AddDays("2026-03-01", -1)
	require.NoError(t, err)
	assert.Equal(t, "2026-02-28", got)

	_, err = AddDays("not-a-date", 1)
	assert.Error(t, err)
}

func TestDaysBetween(t *testing.T) {
	got, err := DaysBetween("2026-08-20", "2026-08-26")
	require.NoError(t, err)
	assert.Equal(t, 6, got)

	got, err = DaysBetween("2026-08-26", "2026-08-20")
	require.NoError(t, err)
	assert.Equal(t, -6, got)
}

func TestWeekdayOf(t *testing.T) {
	got, err := WeekdayOf("2026-08-26")
	require.NoError(t, err)
	assert.Equal(t, time.Wednesday, got)
}

func TestClockOf(t *testing.T) {
	ts := time.Date(2026, 8, 26, 14, 5, 9, 0, time.UTC)
	assert.Equal(t, "14:05:09", ClockOf(ts))
}

func TestOverlaps(t *testing.T) {
	assert.True(t, Overlaps(60, 120, 90, 150))
	assert.True(t, Overlaps(60, 120, 60, 120))
	// Touching endpoints do not overlap (half-open intervals).
	assert.False(t, Overlaps(60, 120, 120, 180))
	assert.False(t, Overlaps(60, 120, 0, 60))
	assert.False(t, Overlaps(60, 120, 180, 240))
}
