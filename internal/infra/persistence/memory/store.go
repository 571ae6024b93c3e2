// Package memory provides an in-memory value repository used for tests,
// ephemeral runs and as the hydrated cache behind the SQL-backed stores.
package memory

import (
	"context"
	"errors"
	"sync"

	"valuegen/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain repository interface.
var _ domain.ValueRepository = (*Store)(nil)

// ErrMissingRunID is returned when a snapshot without a run id is saved.
var ErrMissingRunID = errors.New("snapshot has no run id")

// Store keeps finished runs in a map keyed by run id.
type Store struct {
	mu   sync.RWMutex
	runs map[string]domain.ValueSnapshot
}

// NewStore constructs an empty in-memory repository.
func NewStore() *Store {
	return &Store{runs: make(map[string]domain.ValueSnapshot)}
}

// Save stores a copy of snapshot, replacing any run with the same id.
func (s *Store) Save(_ context.Context, snapshot domain.ValueSnapshot) error {
	if snapshot.RunID == "" {
		return ErrMissingRunID
	}
	s.mu.Lock()
	s.runs[snapshot.RunID] = snapshot.Clone()
	s.mu.Unlock()
	return nil
}

// Get returns the run with the given id.
func (s *Store) Get(_ context.Context, runID string) (domain.ValueSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.runs[runID]
	if !ok {
		return domain.ValueSnapshot{}, domain.ErrNotFound{RunID: runID}
	}
	return snap.Clone(), nil
}

// Latest returns the newest run.
func (s *Store) Latest(ctx context.Context) (domain.ValueSnapshot, error) {
	runs, _ := s.List(ctx)
	if len(runs) == 0 {
		return domain.ValueSnapshot{}, domain.ErrNotFound{}
	}
	return s.Get(ctx, runs[0].RunID)
}

// List returns summaries of every run, newest first.
func (s *Store) List(_ context.Context) ([]domain.RunSummary, error) {
	s.mu.RLock()
	out := make([]domain.RunSummary, 0, len(s.runs))
	for _, snap := range s.runs {
		out = append(out, snap.Summary())
	}
	s.mu.RUnlock()
	domain.SortRunSummaries(out)
	return out, nil
}

// Close implements domain.ValueRepository.
func (s *Store) Close() error { return nil }

// ImportState replaces the stored runs with snapshots.
func (s *Store) ImportState(snapshots []domain.ValueSnapshot) {
	runs := make(map[string]domain.ValueSnapshot, len(snapshots))
	for _, snap := range snapshots {
		if snap.RunID == "" {
			continue
		}
		runs[snap.RunID] = snap.Clone()
	}
	s.mu.Lock()
	s.runs = runs
	s.mu.Unlock()
}

