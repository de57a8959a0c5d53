// Package export renders the timetable as iCalendar data. Lessons
// recur on a two-week cycle, which maps directly onto an RRULE with
// FREQ=WEEKLY;INTERVAL=2 anchored on the exported week.
package export

import (
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"
	"github.com/teambition/rrule-go"

	"audiocal/internal/model"
	"audiocal/internal/schedule"
)

// ICSOptions controls a week export.
type ICSOptions struct {
	// Monday is the first day of the exported week.
	Monday time.Time
	// ExpandWeeks, when positive, emits concrete occurrences covering
	// that many weeks from Monday instead of recurring events.
	ExpandWeeks int
	// Location is the display timezone for event times.
	Location *time.Location
}

// WeekICS serializes the given week variant's lessons as an iCalendar
// document. Lessons whose times do not parse are skipped; they resolve
// to nothing on the grid either.
func WeekICS(tt model.Timetable, key model.WeekKey, opts ICSOptions) ([]byte, error) {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	monday := schedule.MondayOf(opts.Monday.In(opts.Location))
	week := tt.Week(key)

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//audiocal//timetable//FR")

	for dayIdx, dayKey := range model.Days {
		date := monday.AddDate(0, 0, dayIdx)
		for _, lesson := range week[dayKey] {
			start, ok := lessonTime(date, lesson.Start)
			if !ok {
				continue
			}
			end, ok := lessonTime(date, lesson.End)
			if !ok {
				continue
			}

			if opts.ExpandWeeks > 0 {
				if err := addExpanded(cal, key, lesson, start, end, opts.ExpandWeeks); err != nil {
					return nil, err
				}
			} else {
				if err := addRecurring(cal, key, lesson, start, end); err != nil {
					return nil, err
				}
			}
		}
	}

	return []byte(cal.Serialize()), nil
}

// addRecurring emits one VEVENT with a biweekly RRULE.
func addRecurring(cal *ical.Calendar, key model.WeekKey, lesson model.Lesson, start, end time.Time) error {
	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:     rrule.WEEKLY,
		Interval: 2,
		Dtstart:  start,
	})
	if err != nil {
		return fmt.Errorf("build recurrence for %s: %w", lesson.Course, err)
	}

	ev := cal.AddEvent(eventUID(key, lesson, start))
	ev.SetDtStampTime(start)
	ev.SetStartAt(start)
	ev.SetEndAt(end)
	// RRuleString excludes the DTSTART line; DTSTART is its own property.
	ev.AddRrule(rule.OrigOptions.RRuleString())
	fillEvent(ev, lesson)
	return nil
}

// addExpanded expands the biweekly recurrence into concrete occurrences
// across the requested horizon, one VEVENT each.
func addExpanded(cal *ical.Calendar, key model.WeekKey, lesson model.Lesson, start, end time.Time, weeks int) error {
	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:     rrule.WEEKLY,
		Interval: 2,
		Dtstart:  start,
	})
	if err != nil {
		return fmt.Errorf("build recurrence for %s: %w", lesson.Course, err)
	}

	horizon := start.AddDate(0, 0, 7*weeks)
	duration := end.Sub(start)

	for _, occStart := range rule.Between(start, horizon, true) {
		ev := cal.AddEvent(eventUID(key, lesson, occStart))
		ev.SetDtStampTime(occStart)
		ev.SetStartAt(occStart)
		ev.SetEndAt(occStart.Add(duration))
		fillEvent(ev, lesson)
	}
	return nil
}

func fillEvent(ev *ical.VEvent, lesson model.Lesson) {
	ev.SetSummary(lesson.Course)
	if lesson.Room != "" {
		ev.SetLocation(lesson.Room)
	}
	if lesson.Teacher != "" {
		ev.SetDescription(lesson.Teacher)
	}
}

// eventUID derives a stable UID so re-exports produce identical
// documents for unchanged timetables.
func eventUID(key model.WeekKey, lesson model.Lesson, start time.Time) string {
	seed := fmt.Sprintf("%s/%s/%s/%s", key, lesson.Course, lesson.Start, start.Format(time.RFC3339))
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(seed)).String() + "@audiocal"
}

func lessonTime(date time.Time, clock string) (time.Time, bool) {
	minutes, ok := schedule.ClockMinutes(clock)
	if !ok {
		return time.Time{}, false
	}
	return time.Date(date.Year(), date.Month(), date.Day(), minutes/60, minutes%60, 0, 0, date.Location()), true
}
