package model

import (
	"regexp"
	"strings"
	"time"
)

// WeekKey selects one of the two alternating variants of the biweekly
// timetable. Odd ISO weeks map to WeekA, even weeks to WeekB.
type WeekKey string

const (
	WeekA WeekKey = "semaine_A"
	WeekB WeekKey = "semaine_B"
)

// Days lists the timetable day keys in grid order, Monday first.
// These are the keys used by the timetable document itself.
var Days = []string{"lundi", "mardi", "mercredi", "jeudi", "vendredi", "samedi", "dimanche"}

// DayLabels are the human-facing day names, index-aligned with Days.
var DayLabels = []string{"Lundi", "Mardi", "Mercredi", "Jeudi", "Vendredi", "Samedi", "Dimanche"}

// Lesson is a single scheduled course occurrence within one day of one
// week variant. Read-only once loaded; it has no identity beyond its
// position in the timetable.
type Lesson struct {
	Course  string `json:"cours"`
	Teacher string `json:"prof"`
	Room    string `json:"salle"`
	Start   string `json:"debut"` // "HH:MM"
	End     string `json:"fin"`   // "HH:MM"
}

// DayLessons is the ordered lesson sequence for one day. The document
// does not guarantee sort order by start time.
type DayLessons []Lesson

// WeekTimetable maps day key (Days values) to that day's lessons.
type WeekTimetable map[string]DayLessons

// Timetable is the full biweekly timetable, keyed by week variant.
type Timetable map[WeekKey]WeekTimetable

// Week returns the timetable for the given week key; missing variants
// yield an empty week rather than nil lookups downstream.
func (t Timetable) Week(key WeekKey) WeekTimetable {
	if t == nil {
		return WeekTimetable{}
	}
	if w, ok := t[key]; ok {
		return w
	}
	return WeekTimetable{}
}

// Recording is one audio-derived record produced by the external
// ingestion pipeline. This system only reads these rows; fields are
// decoded leniently and absent values stay zero.
type Recording struct {
	ID                string `json:"id"`
	AudioSource       string `json:"audio_source,omitempty"`
	CreatedAt         string `json:"created_at"`
	TranscriptionText string `json:"transcription_text,omitempty"`
	ResumeText        string `json:"resume_text,omitempty"`
	Status            string `json:"status,omitempty"`
}

// createdAtLayouts covers the timestamp shapes the ingestion pipeline
// has emitted: full RFC3339 (with or without sub-seconds) and bare dates.
var createdAtLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// CreatedTime parses the creation timestamp in the given display
// location. ok is false when the value is absent or unparseable; callers
// treat that as "no date" rather than an error.
func (r Recording) CreatedTime(loc *time.Location) (time.Time, bool) {
	if r.CreatedAt == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	// ParseInLocation keeps zone-less clock values in the display
	// location; layouts with an explicit zone are unaffected by it.
	for _, layout := range createdAtLayouts {
		if t, err := time.ParseInLocation(layout, r.CreatedAt, loc); err == nil {
			return t.In(loc), true
		}
	}
	return time.Time{}, false
}

// SummaryText returns the text shown in detail views: the summary when
// present, the transcript otherwise.
func (r Recording) SummaryText() string {
	if r.ResumeText != "" {
		return r.ResumeText
	}
	return r.TranscriptionText
}

// TranscriptText returns the text used for full-transcript display and
// plain-text export: the transcript when present, the summary otherwise.
func (r Recording) TranscriptText() string {
	if r.TranscriptionText != "" {
		return r.TranscriptionText
	}
	return r.ResumeText
}

var quotedTitleRe = regexp.MustCompile(`"([^"]{3,80})"`)

// Title derives a display title: the first quoted run of 3–80 characters
// in the recording text, then the audio source, then the row id.
func (r Recording) Title() string {
	if m := quotedTitleRe.FindStringSubmatch(r.SummaryText()); m != nil {
		return m[1]
	}
	if r.AudioSource != "" {
		return r.AudioSource
	}
	return r.ID
}

// ContainsCourse reports whether the course name appears, case
// insensitively, in the recording's summary or transcript. Empty course
// names never match; they are the zero value of a malformed lesson.
func (r Recording) ContainsCourse(course string) bool {
	if course == "" {
		return false
	}
	needle := strings.ToLower(course)
	if strings.Contains(strings.ToLower(r.ResumeText), needle) {
		return true
	}
	return strings.Contains(strings.ToLower(r.TranscriptionText), needle)
}
