package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audiocal/internal/config"
	"audiocal/internal/grid"
	"audiocal/internal/model"
	"audiocal/internal/state"
)

// 2024-06-10 is a Monday in ISO week 24, an even week, so it renders
// the semaine_B variant.
const testRefDate = "2024-06-10"

func testSnapshot() *state.Snapshot {
	tt := model.Timetable{
		model.WeekB: model.WeekTimetable{
			"lundi": {
				{Course: "Mathématiques", Teacher: "M. Durand", Room: "B204", Start: "10:20", End: "12:20"},
			},
			"mardi": {
				{Course: "Physique-Chimie", Teacher: "Mme Lefèvre", Room: "C101", Start: "08:10", End: "09:10"},
			},
		},
	}
	registry := []model.Recording{
		{
			ID:          "rec-1",
			AudioSource: "maths-lundi.m4a",
			CreatedAt:   "2024-06-10T10:25:00",
			ResumeText:  "Résumé du cours de **mathématiques**.",
			Status:      "done",
		},
		{
			ID:                "rec-2",
			CreatedAt:         "2024-06-10T14:00:00",
			TranscriptionText: "Transcription sans cours associé.",
			Status:            "done",
		},
	}
	return &state.Snapshot{Timetable: tt, Registry: registry, FetchedAt: time.Now()}
}

func newTestServer(t *testing.T, cfg *config.Config, snap *state.Snapshot) *Server {
	t.Helper()
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	store := state.NewStore()
	if snap != nil {
		gen := store.Begin()
		require.True(t, store.Commit(gen, snap))
	}

	srv, err := NewServer(cfg, store, nil, time.UTC)
	require.NoError(t, err)
	return srv
}

func doGet(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
	return rr
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	rr := doGet(t, srv.Handler(), "/health")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "OK", rr.Body.String())
}

func TestWeekPage(t *testing.T) {
	srv := newTestServer(t, nil, testSnapshot())
	rr := doGet(t, srv.Handler(), "/week?date="+testRefDate)

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `data-ready="true"`)
	assert.Contains(t, body, "Semaine B")
	assert.Contains(t, body, "Mathématiques")
	assert.Contains(t, body, `rowspan="2"`)
	assert.Contains(t, body, "/api/recordings/rec-1")
}

func TestWeekPageWithoutSnapshot(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	rr := doGet(t, srv.Handler(), "/week")

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "Erreur de chargement")
}

func TestAPIWeek(t *testing.T) {
	srv := newTestServer(t, nil, testSnapshot())
	rr := doGet(t, srv.Handler(), "/api/week?date="+testRefDate)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		WeekKey model.WeekKey `json:"week_key"`
		Days    []grid.Day    `json:"days"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, model.WeekB, resp.WeekKey)
	require.Len(t, resp.Days, 7)

	lundi := resp.Days[0]
	// 10:20 resolves to slot 2 and the two-hour lesson spans two slots.
	require.Equal(t, grid.CellLesson, lundi.Cells[2].Kind)
	assert.Equal(t, 2, lundi.Cells[2].Span)
	assert.True(t, lundi.Cells[2].HasRecording)
	assert.Equal(t, "rec-1", lundi.Cells[2].RecordingID)
	assert.Equal(t, grid.CellOccupied, lundi.Cells[3].Kind)
}

func TestAPIWeekBadDate(t *testing.T) {
	srv := newTestServer(t, nil, testSnapshot())
	rr := doGet(t, srv.Handler(), "/api/week?date=pas-une-date")

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAPIWeekWithoutSnapshot(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	rr := doGet(t, srv.Handler(), "/api/week")

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestRecordingDetail(t *testing.T) {
	srv := newTestServer(t, nil, testSnapshot())

	rr := doGet(t, srv.Handler(), "/api/recordings/rec-1")
	require.Equal(t, http.StatusOK, rr.Code)

	var detail struct {
		ID          string `json:"id"`
		Title       string `json:"title"`
		SummaryHTML string `json:"summary_html"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &detail))
	assert.Equal(t, "rec-1", detail.ID)
	assert.Equal(t, "maths-lundi.m4a", detail.Title)
	assert.Contains(t, detail.SummaryHTML, "<strong>mathématiques</strong>")
}

func TestRecordingDetailNotFound(t *testing.T) {
	srv := newTestServer(t, nil, testSnapshot())
	rr := doGet(t, srv.Handler(), "/api/recordings/nope")

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "introuvable")
}

func TestRecordingExport(t *testing.T) {
	srv := newTestServer(t, nil, testSnapshot())
	rr := doGet(t, srv.Handler(), "/api/recordings/rec-2/export")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/plain")
	// rec-2 has no audio source, so the file name falls back to the id.
	assert.Equal(t, `attachment; filename="rec-2.txt"`, rr.Header().Get("Content-Disposition"))
	assert.Equal(t, "Transcription sans cours associé.", rr.Body.String())
}

func TestRegistryExport(t *testing.T) {
	srv := newTestServer(t, nil, testSnapshot())
	rr := doGet(t, srv.Handler(), "/api/registry/export")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, `attachment; filename="audiocours-export.json"`, rr.Header().Get("Content-Disposition"))

	var out []model.Recording
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	assert.Len(t, out, 2)
}

func TestCourseDetail(t *testing.T) {
	srv := newTestServer(t, nil, testSnapshot())

	rr := doGet(t, srv.Handler(), "/api/courses/Mathématiques?date="+testRefDate)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "rec-1")
}

func TestCourseDetailPlaceholder(t *testing.T) {
	srv := newTestServer(t, nil, testSnapshot())

	rr := doGet(t, srv.Handler(), "/api/courses/Physique-Chimie?date="+testRefDate)
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Aucun enregistrement")
	assert.Contains(t, body, "Mme Lefèvre")
}

func TestCourseDetailUnknown(t *testing.T) {
	srv := newTestServer(t, nil, testSnapshot())
	rr := doGet(t, srv.Handler(), "/api/courses/Latin?date="+testRefDate)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSearch(t *testing.T) {
	srv := newTestServer(t, nil, testSnapshot())
	rr := doGet(t, srv.Handler(), "/api/search?q=math&date="+testRefDate)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp searchResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Lessons, 1)
	assert.Equal(t, "lundi", resp.Lessons[0].Day)
	require.Len(t, resp.Recordings, 1)
	assert.Equal(t, "rec-1", resp.Recordings[0].ID)
	assert.Equal(t, 2, resp.Total)
}

func TestSearchShortQuery(t *testing.T) {
	srv := newTestServer(t, nil, testSnapshot())
	rr := doGet(t, srv.Handler(), "/api/search?q=m")

	require.Equal(t, http.StatusOK, rr.Code)

	var resp searchResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Zero(t, resp.Total)
}

func TestWeekICS(t *testing.T) {
	srv := newTestServer(t, nil, testSnapshot())
	rr := doGet(t, srv.Handler(), "/week.ics?date="+testRefDate)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/calendar")
	body := rr.Body.String()
	assert.Contains(t, body, "BEGIN:VCALENDAR")
	assert.Contains(t, body, "Mathématiques")
	assert.Contains(t, body, "FREQ=WEEKLY")
}

func TestBasicAuth(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "prof", Password: "secret"}
	srv := newTestServer(t, cfg, testSnapshot())
	h := srv.Handler()

	// /health stays open.
	assert.Equal(t, http.StatusOK, doGet(t, h, "/health").Code)

	rr := doGet(t, h, "/api/week?date="+testRefDate)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Header().Get("WWW-Authenticate"), "Basic")

	req := httptest.NewRequest(http.MethodGet, "/api/week?date="+testRefDate, nil)
	req.SetBasicAuth("prof", "secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/week", nil)
	req.SetBasicAuth("prof", "wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

type stubRefresher struct {
	calls int
	err   error
}

func (s *stubRefresher) Refresh(context.Context) error {
	s.calls++
	return s.err
}

func TestRefresh(t *testing.T) {
	cfg := config.DefaultConfig()
	store := state.NewStore()
	gen := store.Begin()
	require.True(t, store.Commit(gen, testSnapshot()))

	ref := &stubRefresher{}
	srv, err := NewServer(cfg, store, ref, time.UTC)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/refresh", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, ref.calls)

	ref.err = errors.New("feed down")
	rr = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/refresh", nil))
	assert.Equal(t, http.StatusBadGateway, rr.Code)
}

func TestDefaultDateFollowsNewestRecording(t *testing.T) {
	srv := newTestServer(t, nil, testSnapshot())
	rr := doGet(t, srv.Handler(), "/week")

	// With no explicit date the page lands on the newest recording's
	// week, 2024-06-10 .. 2024-06-16.
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "10/06 - 16/06")
	assert.Contains(t, rr.Body.String(), "Semaine B")
}

func TestRecordingsList(t *testing.T) {
	srv := newTestServer(t, nil, testSnapshot())
	rr := doGet(t, srv.Handler(), "/api/recordings")

	require.Equal(t, http.StatusOK, rr.Code)

	var out []model.Recording
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Len(t, out, 2)
	// Newest first: rec-2 was created at 14:00, rec-1 at 10:25.
	assert.Equal(t, "rec-2", out[0].ID)
	assert.Equal(t, "rec-1", out[1].ID)
}
