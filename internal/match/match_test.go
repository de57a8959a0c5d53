package match

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audiocal/internal/model"
	"audiocal/internal/schedule"
)

func TestLessonMatches(t *testing.T) {
	maths := model.Lesson{Course: "Mathématiques"}

	tests := []struct {
		name string
		rec  model.Recording
		want bool
	}{
		{
			name: "course name in summary",
			rec:  model.Recording{ResumeText: "Cours de Mathématiques du jour"},
			want: true,
		},
		{
			name: "different course does not match",
			rec:  model.Recording{ResumeText: "Physique"},
			want: false,
		},
		{
			name: "case-insensitive",
			rec:  model.Recording{ResumeText: "récap MATHÉMATIQUES chapitre 3"},
			want: true,
		},
		{
			name: "course name only in transcript",
			rec:  model.Recording{ResumeText: "Résumé sans titre", TranscriptionText: "aujourd'hui en mathématiques nous avons vu"},
			want: true,
		},
		{
			name: "empty recording text",
			rec:  model.Recording{},
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LessonMatches(maths, tt.rec))
		})
	}

	// A lesson with an empty course name must never match everything.
	assert.False(t, LessonMatches(model.Lesson{}, model.Recording{ResumeText: "anything"}))
}

func TestFirstForLesson(t *testing.T) {
	lesson := model.Lesson{Course: "Histoire"}
	registry := []model.Recording{
		{ID: "1", ResumeText: "Physique"},
		{ID: "2", ResumeText: "Histoire: la révolution"},
		{ID: "3", TranscriptionText: "cours d'histoire suite"},
	}

	rec, ok := FirstForLesson(registry, lesson)
	require.True(t, ok)
	assert.Equal(t, "2", rec.ID, "first match in registry order wins")

	_, ok = FirstForLesson(registry, model.Lesson{Course: "Chimie"})
	assert.False(t, ok)
}

func TestForDay(t *testing.T) {
	loc := time.UTC
	day := time.Date(2024, 6, 10, 0, 0, 0, 0, loc)

	registry := []model.Recording{
		{ID: "same-day", CreatedAt: "2024-06-10T09:30:00Z"},
		{ID: "other-day", CreatedAt: "2024-06-11T09:30:00Z"},
		{ID: "same-day-month-last-year", CreatedAt: "2023-06-10T09:30:00Z"},
		{ID: "no-date"},
		{ID: "bad-date", CreatedAt: "yesterday"},
	}

	got := ForDay(registry, day, loc)
	require.Len(t, got, 1)
	assert.Equal(t, "same-day", got[0].ID)
}

func TestUnmatched(t *testing.T) {
	lessons := model.DayLessons{
		{Course: "Mathématiques"},
		{Course: "Physique"},
	}
	dayRecordings := []model.Recording{
		{ID: "m", ResumeText: "mathématiques chapitre 2"},
		{ID: "libre", ResumeText: "réunion de classe"},
		{ID: "p", TranscriptionText: "TP de physique"},
	}

	got := Unmatched(dayRecordings, lessons)
	require.Len(t, got, 1)
	assert.Equal(t, "libre", got[0].ID)

	// No lessons: everything is unmatched.
	assert.Len(t, Unmatched(dayRecordings, nil), 3)
}

func TestBucketByClock(t *testing.T) {
	loc := time.UTC
	registry := []model.Recording{
		{ID: "early", CreatedAt: "2024-06-15T07:00:00Z"},   // before first slot -> 0
		{ID: "morning", CreatedAt: "2024-06-15T09:30:00Z"}, // inside slot 1
		{ID: "morning2", CreatedAt: "2024-06-15T09:45:00Z"},
		{ID: "late", CreatedAt: "2024-06-15T21:00:00Z"}, // after the table -> last slot
		{ID: "undated"},
	}

	buckets := BucketByClock(registry, schedule.DefaultResolver, loc)

	require.Len(t, buckets[0], 1)
	assert.Equal(t, "early", buckets[0][0].ID)

	require.Len(t, buckets[1], 2)
	assert.Equal(t, "morning", buckets[1][0].ID, "registry order preserved inside a bucket")
	assert.Equal(t, "morning2", buckets[1][1].ID)

	require.Len(t, buckets[len(schedule.Slots)-1], 1)
	assert.Equal(t, "late", buckets[len(schedule.Slots)-1][0].ID)
}
