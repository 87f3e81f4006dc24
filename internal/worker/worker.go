// Package worker implements the analysis run execution loop.
package worker

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/site-analyzer/internal/analyzer"
	"github.com/JakeFAU/site-analyzer/internal/metrics"
	"github.com/JakeFAU/site-analyzer/internal/queue"
)

// Runner executes one analysis run to a terminal state.
type Runner interface {
	Execute(ctx context.Context, job analyzer.Job) error
}

// Worker consumes queued runs and hands them to the Runner one at a time.
type Worker struct {
	queue  queue.Queue
	runner Runner
	logger *zap.Logger
}

// New constructs a Worker.
func New(q queue.Queue, runner Runner, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		queue:  q,
		runner: runner,
		logger: logger,
	}
}

// Run blocks, consuming queue items until the context finishes or the queue
// closes. Jobs still buffered at cancellation are left for the dispatcher.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		job, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, queue.ErrClosed) {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued run", zap.String("analysis_id", job.ID))
		w.process(ctx, job)
	}
}

func (w *Worker) process(ctx context.Context, job analyzer.Job) {
	metrics.IncActiveRuns()
	defer metrics.DecActiveRuns()

	logger := w.logger.With(
		zap.String("analysis_id", job.ID),
		zap.String("url", job.URL),
		zap.String("domain", job.Domain),
	)
	if w.runner == nil {
		logger.Error("no runner configured")
		return
	}
	if err := w.safeExecute(ctx, job); err != nil {
		logger.Warn("analysis run failed", zap.Error(err))
		return
	}
	logger.Info("analysis run completed")
}

func (w *Worker) safeExecute(ctx context.Context, job analyzer.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: runner panic: %v", analyzer.ErrFatalRun, r)
		}
	}()
	return w.runner.Execute(ctx, job)
}
