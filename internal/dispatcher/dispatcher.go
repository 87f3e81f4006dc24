// Package dispatcher manages worker fan-out over the run queue.
package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/site-analyzer/internal/analyzer"
	"github.com/JakeFAU/site-analyzer/internal/metrics"
	"github.com/JakeFAU/site-analyzer/internal/queue"
	"github.com/JakeFAU/site-analyzer/internal/worker"
)

// Dispatcher fans out queue work to a pool of workers.
type Dispatcher struct {
	queue   queue.Queue
	workers []*worker.Worker
	abandon func(analyzer.Job)
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithAbandon registers fn to receive every job still queued when Run stops.
// Without it those jobs are discarded.
func WithAbandon(fn func(analyzer.Job)) Option {
	return func(d *Dispatcher) { d.abandon = fn }
}

// New creates a Dispatcher.
func New(q queue.Queue, workers []*worker.Worker, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		queue:   q,
		workers: workers,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// NewPool creates a Dispatcher with size workers sharing one runner.
func NewPool(q queue.Queue, runner worker.Runner, size int, logger *zap.Logger, opts ...Option) *Dispatcher {
	if size <= 0 {
		size = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	workers := make([]*worker.Worker, 0, size)
	for i := range size {
		workers = append(workers, worker.New(q, runner, logger.With(zap.Int("worker", i))))
	}
	return New(q, workers, opts...)
}

// Size reports the number of workers.
func (d *Dispatcher) Size() int { return len(d.workers) }

// Run starts all workers and blocks until the context finishes. In-flight
// runs observe the same cancellation. Once the workers have returned, jobs
// left in the closed queue are handed to the abandon hook.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(wk *worker.Worker) {
			defer wg.Done()
			wk.Run(ctx)
		}(w)
	}
	<-ctx.Done()
	d.queue.Close()
	wg.Wait()

	for _, job := range d.queue.Drain() {
		if d.abandon != nil {
			d.abandon(job)
		}
	}
}

// TryEnqueue proxies to the underlying queue without blocking.
func (d *Dispatcher) TryEnqueue(job analyzer.Job) error {
	if err := d.queue.TryEnqueue(job); err != nil {
		metrics.ObserveQueueRejected()
		return fmt.Errorf("queue enqueue: %w", err)
	}
	return nil
}
