// Package memory provides an in-process store.RunRepository.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/omarathon/riot-api-crawler/internal/store"
)

// RunStore keeps runs in a map. It is the default when no database is configured.
type RunStore struct {
	mu   sync.RWMutex
	runs map[uuid.UUID]store.Run
}

// NewRunStore constructs an empty RunStore.
func NewRunStore() *RunStore {
	return &RunStore{runs: make(map[uuid.UUID]store.Run)}
}

// StartRun inserts a running row unless one exists.
func (s *RunStore) StartRun(_ context.Context, id uuid.UUID, crawler string, startedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[id]; ok {
		return nil
	}
	s.runs[id] = store.Run{
		ID:        id,
		Crawler:   crawler,
		StartedAt: startedAt,
		UpdatedAt: startedAt,
		Status:    store.RunRunning,
	}
	return nil
}

// AddCounts applies delta to an existing run.
func (s *RunStore) AddCounts(_ context.Context, id uuid.UUID, delta store.Counts, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return store.ErrNotFound
	}
	run.Counts = run.Counts.Add(delta)
	if at.After(run.UpdatedAt) {
		run.UpdatedAt = at
	}
	s.runs[id] = run
	return nil
}

// FinishRun marks the run terminal.
func (s *RunStore) FinishRun(_ context.Context, id uuid.UUID, finishedAt time.Time, status store.RunStatus, reason *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return store.ErrNotFound
	}
	run.FinishedAt = &finishedAt
	run.UpdatedAt = finishedAt
	run.Status = status
	run.Reason = reason
	s.runs[id] = run
	return nil
}

// GetRun returns a run by id.
func (s *RunStore) GetRun(_ context.Context, id uuid.UUID) (store.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return store.Run{}, store.ErrNotFound
	}
	return run, nil
}

// ListRuns returns runs newest first.
func (s *RunStore) ListRuns(_ context.Context, status *store.RunStatus, limit, offset int) ([]store.Run, error) {
	s.mu.RLock()
	out := make([]store.Run, 0, len(s.runs))
	for _, run := range s.runs {
		if status != nil && run.Status != *status {
			continue
		}
		out = append(out, run)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if offset >= len(out) {
		return []store.Run{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}
