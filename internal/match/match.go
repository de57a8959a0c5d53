// Package match associates recordings with lessons. The association is
// a best-effort heuristic, not a foreign key: on weekdays a recording
// belongs to a lesson when the course name appears in the recording
// text; on weekends, where no timetable exists, recordings are bucketed
// purely by their creation clock time.
package match

import (
	"time"

	"audiocal/internal/model"
	"audiocal/internal/schedule"
)

// LessonMatches reports whether rec relates to lesson: the lesson's
// course name appears case-insensitively in the recording's summary or
// transcript.
func LessonMatches(lesson model.Lesson, rec model.Recording) bool {
	return rec.ContainsCourse(lesson.Course)
}

// FirstForLesson returns the first recording in registry order that
// matches the lesson. Slot lookups only ever surface one recording per
// lesson; further matches stay reachable through the registry listing.
func FirstForLesson(registry []model.Recording, lesson model.Lesson) (model.Recording, bool) {
	for _, rec := range registry {
		if LessonMatches(lesson, rec) {
			return rec, true
		}
	}
	return model.Recording{}, false
}

// HasRecording reports whether any recording matches the lesson.
func HasRecording(registry []model.Recording, lesson model.Lesson) bool {
	_, ok := FirstForLesson(registry, lesson)
	return ok
}

// ForDay filters the registry to recordings created on the given
// calendar day in the display location. Rows without a parseable
// timestamp are dropped.
func ForDay(registry []model.Recording, day time.Time, loc *time.Location) []model.Recording {
	y, m, d := day.In(loc).Date()
	out := make([]model.Recording, 0)
	for _, rec := range registry {
		created, ok := rec.CreatedTime(loc)
		if !ok {
			continue
		}
		cy, cm, cd := created.Date()
		if cy == y && cm == m && cd == d {
			out = append(out, rec)
		}
	}
	return out
}

// Unmatched returns the day's recordings whose text matches none of the
// day's course names. These fill the "Others" row for that day.
func Unmatched(dayRecordings []model.Recording, lessons model.DayLessons) []model.Recording {
	out := make([]model.Recording, 0)
	for _, rec := range dayRecordings {
		matched := false
		for _, lesson := range lessons {
			if LessonMatches(lesson, rec) {
				matched = true
				break
			}
		}
		if !matched {
			out = append(out, rec)
		}
	}
	return out
}

// BucketByClock groups a weekend day's recordings by slot index using
// their creation clock time. Registry order is preserved within each
// bucket. Rows without a parseable timestamp are dropped.
func BucketByClock(dayRecordings []model.Recording, resolver schedule.Resolver, loc *time.Location) map[int][]model.Recording {
	buckets := make(map[int][]model.Recording)
	for _, rec := range dayRecordings {
		created, ok := rec.CreatedTime(loc)
		if !ok {
			continue
		}
		clock := created.Format("15:04")
		idx := resolver.FindSlotIndexByTime(clock)
		buckets[idx] = append(buckets[idx], rec)
	}
	return buckets
}
