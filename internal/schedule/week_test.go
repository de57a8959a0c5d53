package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audiocal/internal/model"
)

func TestISOWeekNumber(t *testing.T) {
	tests := []struct {
		date string
		want int
	}{
		{"2024-01-01", 1},  // Monday, ISO week 1 of 2024
		{"2023-01-01", 52}, // Sunday, still ISO week 52 of 2022
		{"2026-12-31", 53}, // 2026 is a 53-week ISO year
		{"2024-06-13", 24},
	}
	for _, tt := range tests {
		d, err := time.Parse("2006-01-02", tt.date)
		require.NoError(t, err)
		assert.Equal(t, tt.want, ISOWeekNumber(d), "date %s", tt.date)
	}
}

func TestWeekKeyForDate(t *testing.T) {
	tests := []struct {
		in     string
		want   model.WeekKey
		wantOK bool
	}{
		{"2024-01-01", model.WeekA, true}, // week 1, odd
		{"2024-01-08", model.WeekB, true}, // week 2, even
		{"2024-06-13T10:30:00Z", model.WeekB, true}, // week 24
		{"not-a-date", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := WeekKeyForDate(tt.in, time.UTC)
		assert.Equal(t, tt.wantOK, ok, "ok for %q", tt.in)
		assert.Equal(t, tt.want, got, "key for %q", tt.in)
	}
}

// Week parity repeats every 14 days within an ISO year.
func TestWeekKeyFortnightPeriod(t *testing.T) {
	start, err := time.Parse("2006-01-02", "2024-02-05")
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		d := start.AddDate(0, 0, 14*i)
		assert.Equal(t, WeekKeyForTime(start), WeekKeyForTime(d), "offset %d fortnights", i)
	}
}

// Known edge: a 53-week ISO year breaks the fortnight parity across the
// year boundary. 2026 has 53 weeks, so week 53 (odd, semaine_A) is
// followed by week 1 of 2027 (also odd): two consecutive semaine_A
// weeks. The system inherits this slippage deliberately.
func TestWeekKeyParitySlipAcross53WeekYear(t *testing.T) {
	w53, err := time.Parse("2006-01-02", "2026-12-28") // Monday of ISO week 53/2026
	require.NoError(t, err)
	w1 := w53.AddDate(0, 0, 7)

	require.Equal(t, 53, ISOWeekNumber(w53))
	require.Equal(t, 1, ISOWeekNumber(w1))
	assert.Equal(t, model.WeekA, WeekKeyForTime(w53))
	assert.Equal(t, model.WeekA, WeekKeyForTime(w1))
}

func TestMondayOf(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2024-06-13", "2024-06-10"}, // Thursday -> Monday
		{"2024-06-10", "2024-06-10"}, // Monday is its own Monday
		{"2024-06-16", "2024-06-10"}, // Sunday belongs to the preceding Monday
	}
	for _, tt := range tests {
		d, err := time.ParseInLocation("2006-01-02", tt.in, time.UTC)
		require.NoError(t, err)
		got := MondayOf(d)
		assert.Equal(t, tt.want, got.Format("2006-01-02"), "monday of %s", tt.in)
		assert.Equal(t, time.Monday, got.Weekday())
	}
}

func TestParseDate(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)

	d, ok := ParseDate("2024-06-13", loc)
	require.True(t, ok)
	assert.Equal(t, loc, d.Location())

	_, ok = ParseDate("13/06/2024", loc)
	assert.False(t, ok)
}
