// Package queue defines the run queue between the orchestrator and the
// worker pool. Implementations decide how runs are buffered; the in-process
// channel queue lives in queue/memory.
package queue

import (
	"context"
	"errors"

	"github.com/JakeFAU/site-analyzer/internal/analyzer"
)

// ErrClosed is returned by Dequeue and TryEnqueue after Close.
var ErrClosed = errors.New("queue closed")

// Queue buffers accepted analysis runs until a worker picks them up.
type Queue interface {
	// TryEnqueue accepts the job only if capacity is available right now.
	// It returns analyzer.ErrQueueFull otherwise.
	TryEnqueue(job analyzer.Job) error
	// Dequeue blocks until a job is available, the queue closes, or ctx ends.
	Dequeue(ctx context.Context) (analyzer.Job, error)
	// Close stops accepting jobs. It is safe to call more than once.
	Close()
	// Drain removes and returns the jobs still buffered after Close. It
	// returns nil while the queue is open.
	Drain() []analyzer.Job
}
