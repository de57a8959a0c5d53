package schedule

import (
	"time"

	"audiocal/internal/model"
)

// ISOWeekNumber returns the ISO-8601 week number (Thursday-anchored) of
// the given date.
func ISOWeekNumber(t time.Time) int {
	_, week := t.ISOWeek()
	return week
}

// WeekKeyForTime maps a date to its timetable variant: odd ISO weeks are
// semaine_A, even weeks semaine_B. Parity repeats every 14 days except
// across an ISO year with 53 weeks, where the alternation slips by one.
func WeekKeyForTime(t time.Time) model.WeekKey {
	if ISOWeekNumber(t)%2 == 1 {
		return model.WeekA
	}
	return model.WeekB
}

// dateLayouts accepts both the bare dates the week navigation uses and
// the full timestamps carried by recording rows.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// ParseDate parses a date string in the given location. ok is false on
// unparseable input.
func ParseDate(s string, loc *time.Location) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.In(loc), true
		}
	}
	return time.Time{}, false
}

// WeekKeyForDate resolves a date string to its week variant. ok is false
// when the string does not parse; callers treat that as "unknown week"
// and render nothing rather than guessing.
func WeekKeyForDate(s string, loc *time.Location) (model.WeekKey, bool) {
	t, ok := ParseDate(s, loc)
	if !ok {
		return "", false
	}
	return WeekKeyForTime(t), true
}

// MondayOf returns midnight on the Monday of t's week, in t's location.
func MondayOf(t time.Time) time.Time {
	back := (int(t.Weekday()) + 6) % 7
	d := t.AddDate(0, 0, -back)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, t.Location())
}
