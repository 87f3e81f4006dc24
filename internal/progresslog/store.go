// Package progresslog persists the per-run progress log that clients poll.
//
// Each run owns one JSON object named "<analysisId>-log.json". The run's own
// task is the only writer; Merge is a read-modify-write that overwrites scalar
// fields and appends to the action and summary lists. Readers never take a
// lock and rely on the blob store replacing objects whole.
package progresslog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/site-analyzer/internal/analyzer"
	"github.com/JakeFAU/site-analyzer/internal/storage"
)

const (
	objectSuffix = "-log.json"
	contentType  = "application/json"
)

// Store implements analyzer.LogStore on top of a storage.BlobStore.
type Store struct {
	blobs  storage.BlobStore
	logger *zap.Logger

	// writers serializes Merge per id inside this process.
	writers sync.Map
}

// New creates a Store.
func New(blobs storage.BlobStore, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{blobs: blobs, logger: logger}
}

// ObjectName returns the blob path for an analysis id.
func ObjectName(id string) string {
	return id + objectSuffix
}

// Create writes the initial entry for run.
func (s *Store) Create(ctx context.Context, run analyzer.Run) error {
	if err := validID(run.ID); err != nil {
		return err
	}
	if run.Actions == nil {
		run.Actions = []analyzer.Action{}
	}
	if run.Summaries == nil {
		run.Summaries = []analyzer.Summary{}
	}
	return s.write(ctx, run)
}

// Merge applies update to the stored entry and returns the merged state.
func (s *Store) Merge(ctx context.Context, id string, update analyzer.Update) (analyzer.Run, error) {
	if err := validID(id); err != nil {
		return analyzer.Run{}, err
	}
	mu := s.writerLock(id)
	mu.Lock()
	defer mu.Unlock()

	current, err := s.Read(ctx, id)
	if err != nil {
		return analyzer.Run{}, err
	}
	if current.Status.Terminal() {
		return current, fmt.Errorf("merge %s (%s): %w", id, current.Status, analyzer.ErrRunFinalized)
	}
	merged := current.Apply(update)
	if err := s.write(ctx, merged); err != nil {
		return analyzer.Run{}, err
	}
	if merged.Status.Terminal() {
		s.writers.Delete(id)
	}
	return merged, nil
}

// Read returns the latest stored snapshot. A missing or undecodable entry is
// reported as analyzer.ErrNotFound.
func (s *Store) Read(ctx context.Context, id string) (analyzer.Run, error) {
	if err := validID(id); err != nil {
		return analyzer.Run{}, fmt.Errorf("read log %q: %w", id, analyzer.ErrNotFound)
	}
	b, err := s.blobs.GetObject(ctx, ObjectName(id))
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return analyzer.Run{}, fmt.Errorf("read log %s: %w", id, analyzer.ErrNotFound)
		}
		return analyzer.Run{}, fmt.Errorf("read log %s: %w: %w", id, analyzer.ErrIO, err)
	}
	var run analyzer.Run
	if err := json.Unmarshal(b, &run); err != nil {
		s.logger.Warn("progress log unparseable", zap.String("analysis_id", id), zap.Error(err))
		return analyzer.Run{}, fmt.Errorf("decode log %s: %w", id, analyzer.ErrNotFound)
	}
	if run.ID == "" {
		run.ID = id
	}
	return run, nil
}

func (s *Store) write(ctx context.Context, run analyzer.Run) error {
	payload, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("encode log %s: %w", run.ID, err)
	}
	if _, err := s.blobs.PutObject(ctx, ObjectName(run.ID), contentType, bytes.NewReader(payload)); err != nil {
		return fmt.Errorf("write log %s: %w: %w", run.ID, analyzer.ErrIO, err)
	}
	return nil
}

func (s *Store) writerLock(id string) *sync.Mutex {
	mu, _ := s.writers.LoadOrStore(id, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// validID rejects ids that could escape the log namespace.
func validID(id string) error {
	if strings.TrimSpace(id) == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return fmt.Errorf("analysis id %q: %w", id, analyzer.ErrInput)
	}
	return nil
}
