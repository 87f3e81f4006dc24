package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/site-analyzer/internal/store"
)

// RunIndex keeps run summaries in process memory for development and tests.
type RunIndex struct {
	mu   sync.RWMutex
	runs map[uuid.UUID]store.RunRecord
}

// NewRunIndex constructs an empty RunIndex.
func NewRunIndex() *RunIndex {
	return &RunIndex{runs: make(map[uuid.UUID]store.RunRecord)}
}

// UpsertRunStart records a running run unless it is already known.
func (s *RunIndex) UpsertRunStart(_ context.Context, run store.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; exists {
		return nil
	}
	run.Status = store.RunRunning
	run.LastUpdate = run.StartedAt
	s.runs[run.ID] = run
	return nil
}

// AddPageStats applies page deltas.
func (s *RunIndex) AddPageStats(_ context.Context, id uuid.UUID, deltaVisited, deltaFailed int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return fmt.Errorf("add page stats %s: %w", id, store.ErrNotFound)
	}
	run.PagesVisited += deltaVisited
	run.PagesFailed += deltaFailed
	if at.After(run.LastUpdate) {
		run.LastUpdate = at
	}
	s.runs[id] = run
	return nil
}

// CompleteRun marks the run finished.
func (s *RunIndex) CompleteRun(
	_ context.Context,
	id uuid.UUID,
	finishedAt time.Time,
	status store.RunStatus,
	links int64,
	errMsg *string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return fmt.Errorf("complete run %s: %w", id, store.ErrNotFound)
	}
	run.FinishedAt = &finishedAt
	run.Status = status
	run.LinksFound = links
	run.ErrorMessage = errMsg
	run.LastUpdate = finishedAt
	s.runs[id] = run
	return nil
}

// GetRun fetches a run by id.
func (s *RunIndex) GetRun(_ context.Context, id uuid.UUID) (store.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return store.RunRecord{}, store.ErrNotFound
	}
	return run, nil
}

// ListRuns returns runs ordered by start time, newest first.
func (s *RunIndex) ListRuns(_ context.Context, status *store.RunStatus, limit, offset int) ([]store.RunRecord, error) {
	s.mu.RLock()
	out := make([]store.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		if status != nil && run.Status != *status {
			continue
		}
		out = append(out, run)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if offset >= len(out) {
		return []store.RunRecord{}, nil
	}
	out = out[max(offset, 0):]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// Close implements store.RunIndex.
func (s *RunIndex) Close() error { return nil }
