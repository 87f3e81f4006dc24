package sinks

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/site-analyzer/internal/progress"
	"github.com/JakeFAU/site-analyzer/internal/store"
)

// StoreSink persists run lifecycle and page deltas into a store.RunIndex. It
// collapses page events per run to reduce write amplification.
type StoreSink struct {
	index  store.RunIndex
	logger *zap.Logger
}

// NewStoreSink constructs a StoreSink for the provided index.
func NewStoreSink(index store.RunIndex, logger *zap.Logger) *StoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{index: index, logger: logger}
}

// Consume forwards run events in order and flushes collapsed page deltas
// before any terminal event of the same run. It respects ctx deadlines and
// returns any index errors wrapped.
func (s *StoreSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.index == nil {
		return nil
	}
	pending := make(map[uuid.UUID]*pageDelta)

	for _, evt := range batch {
		runID := evt.RunUUID()
		switch evt.Stage {
		case progress.StageRunStart:
			if err := s.index.UpsertRunStart(ctx, store.RunRecord{
				ID:        runID,
				URL:       evt.URL,
				Domain:    evt.Domain,
				FullMode:  evt.FullMode,
				StartedAt: evt.TS,
			}); err != nil {
				return fmt.Errorf("upsert run start: %w", err)
			}
		case progress.StagePageDone, progress.StagePageFailed:
			recordPage(pending, runID, evt)
		case progress.StageRunDone, progress.StageRunError:
			if err := s.flushRun(ctx, pending, runID); err != nil {
				return err
			}
			if err := s.complete(ctx, runID, evt); err != nil {
				return err
			}
		}
	}

	for runID := range pending {
		if err := s.flushRun(ctx, pending, runID); err != nil {
			return err
		}
	}
	return nil
}

func (s *StoreSink) complete(ctx context.Context, runID uuid.UUID, evt progress.Event) error {
	status := store.RunSuccess
	var note *string
	if evt.Stage == progress.StageRunError {
		status = store.RunError
		if evt.Note != "" {
			msg := evt.Note
			note = &msg
		}
	}
	if err := s.index.CompleteRun(ctx, runID, evt.TS, status, evt.Links, note); err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	return nil
}

func (s *StoreSink) flushRun(ctx context.Context, pending map[uuid.UUID]*pageDelta, runID uuid.UUID) error {
	delta, ok := pending[runID]
	if !ok {
		return nil
	}
	delete(pending, runID)
	if delta.visited == 0 && delta.failed == 0 {
		return nil
	}
	if err := s.index.AddPageStats(ctx, runID, delta.visited, delta.failed, delta.at); err != nil {
		return fmt.Errorf("add page stats: %w", err)
	}
	return nil
}

func recordPage(pending map[uuid.UUID]*pageDelta, runID uuid.UUID, evt progress.Event) {
	delta := pending[runID]
	if delta == nil {
		delta = &pageDelta{}
		pending[runID] = delta
	}
	delta.visited++
	if evt.Stage == progress.StagePageFailed {
		delta.failed++
	}
	if evt.TS.After(delta.at) {
		delta.at = evt.TS
	}
}

// Close implements the Sink interface; it performs no action.
func (s *StoreSink) Close(context.Context) error {
	return nil
}

type pageDelta struct {
	visited int64
	failed  int64
	at      time.Time
}
