// Package memory provides queue implementations for local development and
// single-process servers.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/site-analyzer/internal/analyzer"
	"github.com/JakeFAU/site-analyzer/internal/queue"
)

// Queue is a bounded in-memory queue with context-aware operations.
type Queue struct {
	ch      chan analyzer.Job
	closeMu sync.RWMutex
	closed  bool
}

var _ queue.Queue = (*Queue)(nil)

// NewQueue constructs a new queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue{
		ch: make(chan analyzer.Job, capacity),
	}
}

// TryEnqueue pushes a job only when a slot is free.
func (q *Queue) TryEnqueue(job analyzer.Job) error {
	q.closeMu.RLock()
	defer q.closeMu.RUnlock()
	if q.closed {
		return queue.ErrClosed
	}
	select {
	case q.ch <- job:
		return nil
	default:
		return fmt.Errorf("enqueue %s: %w", job.ID, analyzer.ErrQueueFull)
	}
}

// Dequeue pops the next job, respecting context cancellation.
func (q *Queue) Dequeue(ctx context.Context) (analyzer.Job, error) {
	select {
	case <-ctx.Done():
		return analyzer.Job{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case job, ok := <-q.ch:
		if !ok {
			return analyzer.Job{}, queue.ErrClosed
		}
		return job, nil
	}
}

// Len reports the number of buffered jobs.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close closes the underlying channel for shutdown. Buffered jobs are still
// delivered to Dequeue.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}

// Drain empties a closed queue. Workers must have stopped dequeuing.
func (q *Queue) Drain() []analyzer.Job {
	q.closeMu.RLock()
	closed := q.closed
	q.closeMu.RUnlock()
	if !closed {
		return nil
	}
	var out []analyzer.Job
	for job := range q.ch {
		out = append(out, job)
	}
	return out
}
