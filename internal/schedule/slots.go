package schedule

import "audiocal/internal/model"

// Slot is one of the nine fixed daily teaching periods. Slots are
// identified by their index in Slots; the table encodes the
// institution's period boundaries including the breaks between them.
type Slot struct {
	Start string // "HH:MM"
	End   string // "HH:MM"
	Label string
}

// Slots is the fixed period table. It is configuration frozen at compile
// time, not derived from any input document.
var Slots = []Slot{
	{Start: "08:10", End: "09:10", Label: "8h10-9h10"},
	{Start: "09:10", End: "10:10", Label: "9h10-10h10"},
	{Start: "10:20", End: "11:20", Label: "10h20-11h20"},
	{Start: "11:20", End: "12:20", Label: "11h20-12h20"},
	{Start: "12:30", End: "13:30", Label: "12h30-13h30"},
	{Start: "13:30", End: "14:30", Label: "13h30-14h30"},
	{Start: "14:30", End: "15:30", Label: "14h30-15h30"},
	{Start: "15:40", End: "16:40", Label: "15h40-16h40"},
	{Start: "16:40", End: "17:40", Label: "16h40-17h40"},
}

const (
	// DefaultStartTolerance is how far (minutes) a lesson start may sit
	// from a slot start and still resolve to that slot.
	DefaultStartTolerance = 15
	// DefaultSpanTolerance is the minimum overlap (minutes) past a
	// following slot's start for a lesson to claim that slot too.
	DefaultSpanTolerance = 10
)

// Resolver maps lesson times onto the fixed slot table. Tolerances are
// configurable so timetable variants with looser period boundaries can
// share this code; the zero value is not usable, use NewResolver.
type Resolver struct {
	startTolerance int
	spanTolerance  int
}

// NewResolver builds a Resolver, substituting defaults for
// non-positive tolerances.
func NewResolver(startTolerance, spanTolerance int) Resolver {
	if startTolerance <= 0 {
		startTolerance = DefaultStartTolerance
	}
	if spanTolerance <= 0 {
		spanTolerance = DefaultSpanTolerance
	}
	return Resolver{startTolerance: startTolerance, spanTolerance: spanTolerance}
}

// DefaultResolver uses the institution's standard tolerances.
var DefaultResolver = NewResolver(DefaultStartTolerance, DefaultSpanTolerance)

// FindSlotIndex resolves a lesson start time to a slot index: the first
// slot whose start lies within the start tolerance, or -1. The table is
// chronological, so the first match is also the closest in practice; the
// scan short-circuits rather than picking a minimum distance.
func (r Resolver) FindSlotIndex(start string) int {
	startMin, ok := ClockMinutes(start)
	if !ok {
		return -1
	}
	for i, slot := range Slots {
		slotMin, _ := ClockMinutes(slot.Start)
		if abs(startMin-slotMin) <= r.startTolerance {
			return i
		}
	}
	return -1
}

// FindSlotIndexByTime resolves an arbitrary clock time to the slot whose
// [start, end) interval contains it. Times before the first slot clamp
// to index 0; times after the table, and times falling inside the
// breaks between slots, resolve to the last index.
func (r Resolver) FindSlotIndexByTime(clock string) int {
	minutes, ok := ClockMinutes(clock)
	if !ok {
		return len(Slots) - 1
	}
	for i := len(Slots) - 1; i >= 0; i-- {
		start, _ := ClockMinutes(Slots[i].Start)
		end, _ := ClockMinutes(Slots[i].End)
		if minutes >= start && minutes < end {
			return i
		}
	}
	if first, _ := ClockMinutes(Slots[0].Start); minutes < first {
		return 0
	}
	return len(Slots) - 1
}

// SlotSpan computes how many consecutive slots a lesson occupies,
// starting from its resolved slot. The span extends while the lesson end
// exceeds the next slot's start by more than the span tolerance, so a
// two-hour block claims two period cells but a one-hour lesson running a
// few minutes long does not. Always at least 1.
func (r Resolver) SlotSpan(lesson model.Lesson) int {
	startIdx := r.FindSlotIndex(lesson.Start)
	if startIdx == -1 {
		return 1
	}

	endMin, ok := ClockMinutes(lesson.End)
	if !ok {
		return 1
	}

	span := 1
	for i := startIdx + 1; i < len(Slots); i++ {
		nextStart, _ := ClockMinutes(Slots[i].Start)
		if endMin > nextStart+r.spanTolerance {
			span++
		} else {
			break
		}
	}
	return span
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
