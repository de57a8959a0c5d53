// Package web serves the dashboard: the rendered week grid, the JSON
// API, recording detail and export, search, and the ICS/PNG exports.
package web

import (
	"context"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"audiocal/internal/config"
	"audiocal/internal/export"
	"audiocal/internal/grid"
	appLog "audiocal/internal/log"
	"audiocal/internal/match"
	"audiocal/internal/model"
	"audiocal/internal/schedule"
	"audiocal/internal/state"
)

//go:embed templates
var embeddedTemplates embed.FS

// Refresher triggers a snapshot refresh on demand.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Server provides the dashboard HTTP surface over a snapshot store.
type Server struct {
	cfg       *config.Config
	store     *state.Store
	refresher Refresher
	builder   *grid.Builder
	resolver  schedule.Resolver
	loc       *time.Location
	mux       *http.ServeMux
	tmpl      *template.Template

	// Short-TTL cache of built week grids, keyed by the reference date.
	// It only smooths repeated page/API hits; refreshes clear it.
	weekMu    sync.Mutex
	weekCache map[string]weekCacheEntry
}

type weekCacheEntry struct {
	week      *grid.Week
	builtAt   time.Time
	fetchedAt time.Time
}

const weekCacheTTL = 30 * time.Second

// NewServer constructs a Server. refresher may be nil, in which case
// POST /api/refresh is unavailable.
func NewServer(cfg *config.Config, store *state.Store, refresher Refresher, loc *time.Location) (*Server, error) {
	if loc == nil {
		loc = time.Local
	}

	tmpl, err := template.ParseFS(embeddedTemplates, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	resolver := schedule.NewResolver(cfg.SlotToleranceMin, cfg.SpanToleranceMin)
	s := &Server{
		cfg:       cfg,
		store:     store,
		refresher: refresher,
		builder:   grid.NewBuilder(resolver, loc, nil),
		resolver:  resolver,
		loc:       loc,
		mux:       http.NewServeMux(),
		tmpl:      tmpl,
		weekCache: make(map[string]weekCacheEntry),
	}
	s.registerRoutes()
	return s, nil
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty username or password is treated as disabled.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="audiocal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /{$}", s.handleWeekPage)
	s.mux.HandleFunc("GET /week", s.handleWeekPage)
	s.mux.HandleFunc("GET /week.ics", s.handleWeekICS)
	s.mux.HandleFunc("GET /preview.png", s.handlePreview)

	s.mux.HandleFunc("GET /api/week", s.handleAPIWeek)
	s.mux.HandleFunc("GET /api/recordings", s.handleRecordings)
	s.mux.HandleFunc("GET /api/recordings/{id}", s.handleRecordingDetail)
	s.mux.HandleFunc("GET /api/recordings/{id}/export", s.handleRecordingExport)
	s.mux.HandleFunc("GET /api/registry/export", s.handleRegistryExport)
	s.mux.HandleFunc("GET /api/courses/{course}", s.handleCourseDetail)
	s.mux.HandleFunc("GET /api/search", s.handleSearch)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// resolveRef picks the reference date for a request: the explicit
// ?date= parameter when present, else the newest recording's creation
// date, else today. ok is false only for an explicit unparseable date.
func (s *Server) resolveRef(r *http.Request, snap *state.Snapshot) (time.Time, bool) {
	if q := r.URL.Query().Get("date"); q != "" {
		ref, ok := schedule.ParseDate(q, s.loc)
		return ref, ok
	}

	var newest time.Time
	for _, rec := range snap.Registry {
		if created, ok := rec.CreatedTime(s.loc); ok && created.After(newest) {
			newest = created
		}
	}
	if !newest.IsZero() {
		return newest, true
	}
	return time.Now().In(s.loc), true
}

// weekFor builds (or reuses) the grid for the request's week.
func (s *Server) weekFor(ref time.Time, snap *state.Snapshot) *grid.Week {
	key := schedule.MondayOf(ref).Format("2006-01-02")

	s.weekMu.Lock()
	if ent, ok := s.weekCache[key]; ok &&
		time.Since(ent.builtAt) < weekCacheTTL && ent.fetchedAt.Equal(snap.FetchedAt) {
		s.weekMu.Unlock()
		return ent.week
	}
	s.weekMu.Unlock()

	week := s.builder.Build(snap.Timetable, schedule.WeekKeyForTime(ref), snap.Registry, ref)

	s.weekMu.Lock()
	if len(s.weekCache) > 32 {
		s.weekCache = make(map[string]weekCacheEntry)
	}
	s.weekCache[key] = weekCacheEntry{week: week, builtAt: time.Now(), fetchedAt: snap.FetchedAt}
	s.weekMu.Unlock()

	return week
}

func (s *Server) snapshotOr503(w http.ResponseWriter) (*state.Snapshot, bool) {
	snap, ok := s.store.Current()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "données non chargées")
		return nil, false
	}
	return snap, true
}

// ---- week page ----

type weekPageData struct {
	Week      *grid.Week
	WeekLabel string
	DateRange string
	Hours     string
	RefDate   string
	PrevDate  string
	NextDate  string
	TodayDate string
	Rows      []pageRow
}

type pageRow struct {
	Label string
	Cells []grid.Cell
}

func (s *Server) handleWeekPage(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.store.Current()
	if !ok {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("<!DOCTYPE html><html><body><p>Erreur de chargement</p></body></html>"))
		return
	}

	ref, ok := s.resolveRef(r, snap)
	if !ok {
		http.Error(w, "date invalide", http.StatusBadRequest)
		return
	}

	week := s.weekFor(ref, snap)

	label := "Semaine A"
	if week.Key == model.WeekB {
		label = "Semaine B"
	}

	data := weekPageData{
		Week:      week,
		WeekLabel: label,
		DateRange: week.Monday.Format("02/01") + " - " + week.Sunday.Format("02/01"),
		Hours:     fmt.Sprintf("%dh", (week.Stats.ScheduledMinutes+30)/60),
		RefDate:   ref.Format("2006-01-02"),
		PrevDate:  ref.AddDate(0, 0, -7).Format("2006-01-02"),
		NextDate:  ref.AddDate(0, 0, 7).Format("2006-01-02"),
		TodayDate: time.Now().In(s.loc).Format("2006-01-02"),
		Rows:      gridRows(week),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, "week.html.tmpl", data); err != nil {
		appLog.Error("week page render failed", err)
	}
}

// gridRows transposes day-major grid columns into slot-major table rows.
func gridRows(week *grid.Week) []pageRow {
	rows := make([]pageRow, len(week.Slots))
	for slotIdx, slot := range week.Slots {
		row := pageRow{Label: slot.Label, Cells: make([]grid.Cell, 0, len(week.Days))}
		for _, day := range week.Days {
			row.Cells = append(row.Cells, day.Cells[slotIdx])
		}
		rows[slotIdx] = row
	}
	return rows
}

// ---- JSON API ----

type weekResponse struct {
	*grid.Week
	FetchedAt time.Time `json:"fetched_at"`
}

func (s *Server) handleAPIWeek(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshotOr503(w)
	if !ok {
		return
	}
	ref, ok := s.resolveRef(r, snap)
	if !ok {
		writeError(w, http.StatusBadRequest, "date invalide")
		return
	}

	week := s.weekFor(ref, snap)
	writeJSON(w, http.StatusOK, weekResponse{Week: week, FetchedAt: snap.FetchedAt})
}

func (s *Server) handleRecordings(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.snapshotOr503(w)
	if !ok {
		return
	}

	// Newest first, regardless of origin order; rows with unparseable
	// timestamps sink to the end.
	out := make([]model.Recording, len(snap.Registry))
	copy(out, snap.Registry)
	sort.SliceStable(out, func(i, j int) bool {
		ti, iok := out[i].CreatedTime(s.loc)
		tj, jok := out[j].CreatedTime(s.loc)
		if iok != jok {
			return iok
		}
		return ti.After(tj)
	})
	writeJSON(w, http.StatusOK, out)
}

type recordingDetail struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	AudioSource string        `json:"audio_source,omitempty"`
	CreatedAt   string        `json:"created_at,omitempty"`
	Status      string        `json:"status,omitempty"`
	SummaryHTML template.HTML `json:"summary_html"`
	Transcript  string        `json:"transcript"`
}

func detailFor(rec model.Recording) recordingDetail {
	return recordingDetail{
		ID:          rec.ID,
		Title:       rec.Title(),
		AudioSource: rec.AudioSource,
		CreatedAt:   rec.CreatedAt,
		Status:      rec.Status,
		SummaryHTML: SummaryHTML(rec.SummaryText()),
		Transcript:  rec.TranscriptText(),
	}
}

func (s *Server) findRecording(snap *state.Snapshot, id string) (model.Recording, bool) {
	for _, rec := range snap.Registry {
		if rec.ID == id {
			return rec, true
		}
	}
	return model.Recording{}, false
}

func (s *Server) handleRecordingDetail(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshotOr503(w)
	if !ok {
		return
	}
	rec, found := s.findRecording(snap, r.PathValue("id"))
	if !found {
		writeError(w, http.StatusNotFound, "enregistrement introuvable")
		return
	}
	writeJSON(w, http.StatusOK, detailFor(rec))
}

func (s *Server) handleRecordingExport(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshotOr503(w)
	if !ok {
		return
	}
	rec, found := s.findRecording(snap, r.PathValue("id"))
	if !found {
		writeError(w, http.StatusNotFound, "enregistrement introuvable")
		return
	}

	name := rec.AudioSource
	if name == "" {
		name = rec.ID
	}
	if name == "" {
		name = "transcription"
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+sanitizeFilename(name)+`.txt"`)
	_, _ = w.Write([]byte(rec.TranscriptText()))
}

func (s *Server) handleRegistryExport(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.snapshotOr503(w)
	if !ok {
		return
	}

	data, err := json.MarshalIndent(snap.Registry, "", "  ")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "export impossible")
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="audiocours-export.json"`)
	_, _ = w.Write(data)
}

// handleCourseDetail resolves a course name to its first matching
// recording, or to a placeholder detail built from the timetable when
// no recording matches.
func (s *Server) handleCourseDetail(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshotOr503(w)
	if !ok {
		return
	}
	course := r.PathValue("course")

	if rec, found := match.FirstForLesson(snap.Registry, model.Lesson{Course: course}); found {
		writeJSON(w, http.StatusOK, detailFor(rec))
		return
	}

	ref, _ := s.resolveRef(r, snap)
	lesson, found := findLessonByCourse(snap.Timetable.Week(schedule.WeekKeyForTime(ref)), course)
	if !found {
		writeError(w, http.StatusNotFound, "cours introuvable")
		return
	}

	stub := "Aucun enregistrement trouvé pour ce cours.\n\n" +
		"Professeur: " + lesson.Teacher + "\n" +
		"Salle: " + lesson.Room + "\n" +
		"Horaire: " + lesson.Start + " - " + lesson.End
	writeJSON(w, http.StatusOK, recordingDetail{
		Title:       lesson.Course,
		SummaryHTML: SummaryHTML(stub),
	})
}

func findLessonByCourse(week model.WeekTimetable, course string) (model.Lesson, bool) {
	for _, dayKey := range model.Days {
		for _, lesson := range week[dayKey] {
			if strings.EqualFold(lesson.Course, course) {
				return lesson, true
			}
		}
	}
	return model.Lesson{}, false
}

// ---- search ----

type lessonHit struct {
	Day    string       `json:"day"`
	Lesson model.Lesson `json:"lesson"`
}

type recordingHit struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type searchResponse struct {
	Query      string         `json:"query"`
	Lessons    []lessonHit    `json:"lessons"`
	Recordings []recordingHit `json:"recordings"`
	Total      int            `json:"total"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshotOr503(w)
	if !ok {
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	resp := searchResponse{Query: query, Lessons: []lessonHit{}, Recordings: []recordingHit{}}

	// Queries shorter than two characters match nothing.
	if len([]rune(query)) < 2 {
		writeJSON(w, http.StatusOK, resp)
		return
	}
	q := strings.ToLower(query)

	ref, refOK := s.resolveRef(r, snap)
	if !refOK {
		writeError(w, http.StatusBadRequest, "date invalide")
		return
	}
	week := snap.Timetable.Week(schedule.WeekKeyForTime(ref))

	for _, dayKey := range model.Days {
		for _, lesson := range week[dayKey] {
			text := strings.ToLower(lesson.Course + " " + lesson.Teacher + " " + lesson.Room)
			if strings.Contains(text, q) {
				resp.Lessons = append(resp.Lessons, lessonHit{Day: dayKey, Lesson: lesson})
			}
		}
	}

	for _, rec := range snap.Registry {
		text := strings.ToLower(rec.Title() + " " + rec.ResumeText + " " + rec.TranscriptionText)
		if strings.Contains(text, q) {
			resp.Recordings = append(resp.Recordings, recordingHit{ID: rec.ID, Title: rec.Title()})
		}
	}

	resp.Total = len(resp.Lessons) + len(resp.Recordings)
	writeJSON(w, http.StatusOK, resp)
}

// ---- ICS / preview / refresh ----

func (s *Server) handleWeekICS(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshotOr503(w)
	if !ok {
		return
	}
	ref, ok := s.resolveRef(r, snap)
	if !ok {
		writeError(w, http.StatusBadRequest, "date invalide")
		return
	}

	expand := 0
	if v := r.URL.Query().Get("expand"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			expand = n
		}
	}

	key := schedule.WeekKeyForTime(ref)
	data, err := export.WeekICS(snap.Timetable, key, export.ICSOptions{
		Monday:      ref,
		ExpandWeeks: expand,
		Location:    s.loc,
	})
	if err != nil {
		appLog.Error("ics export failed", err, "week_key", key)
		writeError(w, http.StatusInternalServerError, "export impossible")
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="semaine.ics"`)
	_, _ = w.Write(data)
}

// handlePreview serves the last captured PNG snapshot from disk.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, s.cfg.Capture.OutputPath)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.refresher == nil {
		writeError(w, http.StatusServiceUnavailable, "rafraîchissement indisponible")
		return
	}
	if err := s.refresher.Refresh(r.Context()); err != nil {
		appLog.Error("manual refresh failed", err)
		writeError(w, http.StatusBadGateway, "rafraîchissement échoué")
		return
	}

	s.weekMu.Lock()
	s.weekCache = make(map[string]weekCacheEntry)
	s.weekMu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ---- helpers ----

func sanitizeFilename(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', '"', ':', '*', '?', '<', '>', '|':
			return '-'
		}
		return r
	}, name)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
