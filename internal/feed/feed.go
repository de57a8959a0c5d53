// Package feed loads the two external JSON documents the dashboard
// consumes: the biweekly timetable and the audio-recording registry.
// Both are read-only inputs produced elsewhere; the registry may also
// come from a Postgres table (internal/registry), which satisfies the
// same source interface.
package feed

import (
	"context"
	"encoding/json"
	"fmt"

	"audiocal/internal/model"
)

// TimetableSource yields the full biweekly timetable.
type TimetableSource interface {
	Timetable(ctx context.Context) (model.Timetable, error)
}

// RegistrySource yields the full recording registry.
type RegistrySource interface {
	Recordings(ctx context.Context) ([]model.Recording, error)
}

// DecodeTimetable parses a timetable document: week variant -> day ->
// lessons. Unknown fields are ignored; absent days stay absent.
func DecodeTimetable(body []byte) (model.Timetable, error) {
	var tt model.Timetable
	if err := json.Unmarshal(body, &tt); err != nil {
		return nil, fmt.Errorf("decode timetable: %w", err)
	}
	return tt, nil
}

// DecodeRegistry parses a registry document: a flat array of recording
// rows in ingestion order. Missing fields decode to zero values, which
// downstream matching treats as "no match".
func DecodeRegistry(body []byte) ([]model.Recording, error) {
	var regs []model.Recording
	if err := json.Unmarshal(body, &regs); err != nil {
		return nil, fmt.Errorf("decode registry: %w", err)
	}
	return regs, nil
}

// HTTPTimetable fetches the timetable document over HTTP.
type HTTPTimetable struct {
	Fetcher *Fetcher
	URL     string
}

func (s *HTTPTimetable) Timetable(ctx context.Context) (model.Timetable, error) {
	res, err := s.Fetcher.Fetch(ctx, Document{ID: "timetable", URL: s.URL})
	if err != nil {
		return nil, fmt.Errorf("fetch timetable: %w", err)
	}
	return DecodeTimetable(res.Body)
}

// HTTPRegistry fetches the registry document over HTTP.
type HTTPRegistry struct {
	Fetcher *Fetcher
	URL     string
}

func (s *HTTPRegistry) Recordings(ctx context.Context) ([]model.Recording, error) {
	res, err := s.Fetcher.Fetch(ctx, Document{ID: "registry", URL: s.URL})
	if err != nil {
		return nil, fmt.Errorf("fetch registry: %w", err)
	}
	return DecodeRegistry(res.Body)
}
