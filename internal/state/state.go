// Package state owns the application's data snapshot. The original
// dashboard kept its documents in hidden mutable globals and applied
// overlapping fetches in whatever order they resolved; here the snapshot
// is an explicit immutable value committed through a single transition
// guarded by a generation counter, so only the most recently requested
// refresh wins.
package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"audiocal/internal/feed"
	appLog "audiocal/internal/log"
	"audiocal/internal/model"
)

// Snapshot is one wholesale view of the external data. It is never
// mutated after Commit; refreshes replace the whole value.
type Snapshot struct {
	Timetable model.Timetable
	Registry  []model.Recording
	FetchedAt time.Time
}

// Store holds the current snapshot and the refresh generation counter.
type Store struct {
	mu        sync.RWMutex
	nextGen   uint64
	committed uint64
	current   *Snapshot
}

// NewStore creates an empty store; Current reports ok=false until the
// first successful Commit.
func NewStore() *Store {
	return &Store{}
}

// Begin opens a refresh attempt and returns its generation.
func (s *Store) Begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextGen++
	return s.nextGen
}

// Commit installs the snapshot produced by the given generation. A
// commit is rejected when a newer generation has already committed, so
// a slow stale fetch can never overwrite fresher data.
func (s *Store) Commit(gen uint64, snap *Snapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen <= s.committed {
		return false
	}
	s.committed = gen
	s.current = snap
	return true
}

// Current returns the latest committed snapshot. ok is false before the
// first successful refresh; callers surface that as a terminal loading
// error, not a partial render.
func (s *Store) Current() (*Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil, false
	}
	return s.current, true
}

// Refresher fetches both documents and commits them as one snapshot.
type Refresher struct {
	Timetable feed.TimetableSource
	Registry  feed.RegistrySource
	Store     *Store
}

// Refresh runs one fetch cycle. Both documents are fetched even when
// the first fails, so one error report covers the whole cycle; any
// failure keeps the previous snapshot current. There are no retries.
func (r *Refresher) Refresh(ctx context.Context) error {
	gen := r.Store.Begin()

	tt, ttErr := r.Timetable.Timetable(ctx)
	regs, regErr := r.Registry.Recordings(ctx)
	if ttErr != nil || regErr != nil {
		var errs []error
		if ttErr != nil {
			errs = append(errs, fmt.Errorf("refresh timetable: %w", ttErr))
		}
		if regErr != nil {
			errs = append(errs, fmt.Errorf("refresh registry: %w", regErr))
		}
		return errors.Join(errs...)
	}

	snap := &Snapshot{
		Timetable: tt,
		Registry:  regs,
		FetchedAt: time.Now(),
	}
	if !r.Store.Commit(gen, snap) {
		appLog.Warn("stale refresh discarded", "generation", gen)
		return nil
	}

	appLog.Info("snapshot refreshed",
		"generation", gen,
		"recordings", len(regs),
		"week_variants", len(tt),
	)
	return nil
}
