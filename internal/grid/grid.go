// Package grid composes the timetable, the slot resolver and the
// recording matcher into the presentation grid the dashboard renders:
// seven day columns of nine slot cells plus an "Others" row. Building a
// grid is pure; it owns no state and performs no I/O.
package grid

import (
	"time"

	"audiocal/internal/match"
	"audiocal/internal/model"
	"audiocal/internal/schedule"
)

// CellKind discriminates what a slot cell shows.
type CellKind string

const (
	// CellEmpty is a placeholder cell with no content.
	CellEmpty CellKind = "empty"
	// CellLesson shows a scheduled course card.
	CellLesson CellKind = "lesson"
	// CellRecordings shows weekend recording cards bucketed by clock time.
	CellRecordings CellKind = "recordings"
	// CellOccupied is covered by a multi-slot lesson starting earlier;
	// it is suppressed from rendering to avoid duplicate display.
	CellOccupied CellKind = "occupied"
)

// Cell is one slot cell in a day column.
type Cell struct {
	Kind      CellKind          `json:"kind"`
	SlotIndex int               `json:"slot_index"`
	Lesson    *model.Lesson     `json:"lesson,omitempty"`
	Span      int               `json:"span,omitempty"`
	// HasRecording marks lesson cells with at least one matching
	// recording in the registry.
	HasRecording bool              `json:"has_recording,omitempty"`
	// RecordingID is the first matching recording for a lesson cell,
	// when one exists.
	RecordingID string            `json:"recording_id,omitempty"`
	Recordings  []model.Recording `json:"recordings,omitempty"`
}

// Day is one rendered day column.
type Day struct {
	Key     string            `json:"key"`   // timetable day key, e.g. "lundi"
	Label   string            `json:"label"` // display name, e.g. "Lundi"
	Date    time.Time         `json:"date"`
	Weekend bool              `json:"weekend"`
	Today   bool              `json:"today"`
	Cells   []Cell            `json:"cells"`
	// Others lists the day's recordings that matched none of its
	// lessons. Empty on weekends, where recordings live in slot cells.
	Others []model.Recording `json:"others"`
}

// Stats summarizes the visible week for the dashboard header.
type Stats struct {
	Courses          int `json:"courses"`
	ScheduledMinutes int `json:"scheduled_minutes"`
	Recordings       int `json:"recordings"`
}

// Week is the full presentation grid for one week.
type Week struct {
	Key    model.WeekKey `json:"week_key"`
	Monday time.Time     `json:"monday"`
	Sunday time.Time     `json:"sunday"`
	Days   []Day         `json:"days"`
	Slots  []schedule.Slot `json:"slots"`
	Stats  Stats         `json:"stats"`
}

// Builder assembles week grids. The zero value is not usable; construct
// with NewBuilder.
type Builder struct {
	resolver schedule.Resolver
	loc      *time.Location
	now      func() time.Time
}

// NewBuilder creates a Builder for the given display location. now may
// be nil; it exists so tests can pin "today".
func NewBuilder(resolver schedule.Resolver, loc *time.Location, now func() time.Time) *Builder {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &Builder{resolver: resolver, loc: loc, now: now}
}

// Build composes the week grid for the week containing ref, using the
// timetable variant key and the full recording registry.
func (b *Builder) Build(tt model.Timetable, key model.WeekKey, registry []model.Recording, ref time.Time) *Week {
	monday := schedule.MondayOf(ref.In(b.loc))
	week := tt.Week(key)
	today := b.now().In(b.loc)

	out := &Week{
		Key:    key,
		Monday: monday,
		Sunday: monday.AddDate(0, 0, 6),
		Days:   make([]Day, 0, len(model.Days)),
		Slots:  schedule.Slots,
	}

	for dayIdx, dayKey := range model.Days {
		date := monday.AddDate(0, 0, dayIdx)
		weekend := dayIdx >= 5
		lessons := week[dayKey]
		dayRecordings := match.ForDay(registry, date, b.loc)

		day := Day{
			Key:     dayKey,
			Label:   model.DayLabels[dayIdx],
			Date:    date,
			Weekend: weekend,
			Today:   sameDate(date, today),
			Cells:   make([]Cell, len(schedule.Slots)),
			Others:  []model.Recording{},
		}

		if weekend {
			b.fillWeekendCells(&day, dayRecordings)
		} else {
			b.fillWeekdayCells(&day, lessons, registry)
			day.Others = match.Unmatched(dayRecordings, lessons)
		}

		out.Days = append(out.Days, day)
	}

	out.Stats = b.stats(week, registry)
	return out
}

// fillWeekdayCells resolves each slot to its lesson, if any, marking the
// cells a multi-slot lesson covers beyond its first as occupied.
func (b *Builder) fillWeekdayCells(day *Day, lessons model.DayLessons, registry []model.Recording) {
	occupied := make(map[int]bool)

	for slotIdx := range schedule.Slots {
		cell := Cell{Kind: CellEmpty, SlotIndex: slotIdx}

		if occupied[slotIdx] {
			cell.Kind = CellOccupied
			day.Cells[slotIdx] = cell
			continue
		}

		if lesson, ok := lessonAtSlot(b.resolver, lessons, slotIdx); ok {
			span := b.resolver.SlotSpan(lesson)
			for i := 1; i < span; i++ {
				occupied[slotIdx+i] = true
			}

			cell.Kind = CellLesson
			l := lesson
			cell.Lesson = &l
			cell.Span = span
			if rec, found := match.FirstForLesson(registry, lesson); found {
				cell.HasRecording = true
				cell.RecordingID = rec.ID
			}
		}

		day.Cells[slotIdx] = cell
	}
}

// fillWeekendCells buckets the day's recordings by creation clock time.
func (b *Builder) fillWeekendCells(day *Day, dayRecordings []model.Recording) {
	buckets := match.BucketByClock(dayRecordings, b.resolver, b.loc)
	for slotIdx := range schedule.Slots {
		cell := Cell{Kind: CellEmpty, SlotIndex: slotIdx}
		if recs := buckets[slotIdx]; len(recs) > 0 {
			cell.Kind = CellRecordings
			cell.Recordings = recs
		}
		day.Cells[slotIdx] = cell
	}
}

func (b *Builder) stats(week model.WeekTimetable, registry []model.Recording) Stats {
	s := Stats{Recordings: len(registry)}
	for _, lessons := range week {
		s.Courses += len(lessons)
		for _, lesson := range lessons {
			start, ok1 := schedule.ClockMinutes(lesson.Start)
			end, ok2 := schedule.ClockMinutes(lesson.End)
			if ok1 && ok2 {
				s.ScheduledMinutes += end - start
			}
		}
	}
	return s
}

// lessonAtSlot finds the first lesson of the day whose start resolves to
// the given slot index. Day lessons are not required to be pre-sorted.
func lessonAtSlot(resolver schedule.Resolver, lessons model.DayLessons, slotIdx int) (model.Lesson, bool) {
	for _, lesson := range lessons {
		if resolver.FindSlotIndex(lesson.Start) == slotIdx {
			return lesson, true
		}
	}
	return model.Lesson{}, false
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
