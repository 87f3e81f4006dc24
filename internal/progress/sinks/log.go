package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/site-analyzer/internal/progress"
)

// LogSink emits structured logs for debugging progress streams. It is useful
// during development when no run index is configured.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("analysis_id", evt.RunUUID().String()),
			zap.String("stage", string(evt.Stage)),
			zap.String("domain", evt.Domain),
			zap.String("url", evt.URL),
			zap.Bool("full_mode", evt.FullMode),
			zap.Int64("pages", evt.Pages),
			zap.Int64("links", evt.Links),
			zap.Duration("dur", evt.Dur),
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		s.logger.Info("progress event", fields...)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
