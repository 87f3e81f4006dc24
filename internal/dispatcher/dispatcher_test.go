// Package dispatcher contains tests for worker coordination.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/site-analyzer/internal/analyzer"
	"github.com/JakeFAU/site-analyzer/internal/queue/memory"
	"github.com/JakeFAU/site-analyzer/internal/worker"
)

// TestDispatcherRunStartsWorkers ensures workers begin processing and stop on cancel.
func TestDispatcherRunStartsWorkers(t *testing.T) {
	t.Parallel()

	queue := &blockingQueue{started: make(chan struct{}, 1)}
	w := worker.New(queue, nil, zap.NewNop())
	dispatch := New(queue, []*worker.Worker{w})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		dispatch.Run(ctx)
		close(done)
	}()

	select {
	case <-queue.started:
	case <-time.After(time.Second):
		t.Fatal("worker did not begin dequeuing")
	}

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop after context cancel")
	}
}

func TestDispatcherTryEnqueueForwardsErrors(t *testing.T) {
	t.Parallel()

	queue := &errorQueue{err: errors.New("boom")}
	dispatch := New(queue, nil)

	err := dispatch.TryEnqueue(analyzer.Job{ID: "run"})
	if err == nil || err.Error() != "queue enqueue: boom" {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestDispatcherHandsQueuedJobsToAbandonOnShutdown(t *testing.T) {
	t.Parallel()

	q := memory.NewQueue(4)
	runner := &gateRunner{release: make(chan struct{}), started: make(chan string, 4)}
	var abandoned []string
	dispatch := NewPool(q, runner, 1, zap.NewNop(),
		WithAbandon(func(job analyzer.Job) { abandoned = append(abandoned, job.ID) }))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		dispatch.Run(ctx)
		close(done)
	}()

	require.NoError(t, dispatch.TryEnqueue(analyzer.Job{ID: "running"}))
	select {
	case id := <-runner.started:
		require.Equal(t, "running", id)
	case <-time.After(time.Second):
		t.Fatal("first run did not start")
	}
	require.NoError(t, dispatch.TryEnqueue(analyzer.Job{ID: "queued-1"}))
	require.NoError(t, dispatch.TryEnqueue(analyzer.Job{ID: "queued-2"}))

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop after context cancel")
	}
	require.Equal(t, []string{"queued-1", "queued-2"}, abandoned)
}

func TestDispatcherTryEnqueueReportsFullQueue(t *testing.T) {
	t.Parallel()

	dispatch := New(memory.NewQueue(1), nil)
	require.NoError(t, dispatch.TryEnqueue(analyzer.Job{ID: "a"}))
	err := dispatch.TryEnqueue(analyzer.Job{ID: "b"})
	require.ErrorIs(t, err, analyzer.ErrQueueFull)
}

func TestDispatcherPoolRunsConcurrently(t *testing.T) {
	t.Parallel()

	q := memory.NewQueue(4)
	runner := &gateRunner{release: make(chan struct{}), started: make(chan string, 4)}
	dispatch := NewPool(q, runner, 2, zap.NewNop())
	require.Equal(t, 2, dispatch.Size())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go dispatch.Run(ctx)

	require.NoError(t, dispatch.TryEnqueue(analyzer.Job{ID: "a"}))
	require.NoError(t, dispatch.TryEnqueue(analyzer.Job{ID: "b"}))

	seen := map[string]bool{}
	for range 2 {
		select {
		case id := <-runner.started:
			seen[id] = true
		case <-time.After(time.Second):
			t.Fatal("both runs should start before either finishes")
		}
	}
	require.Equal(t, map[string]bool{"a": true, "b": true}, seen)
	close(runner.release)
}

type gateRunner struct {
	release chan struct{}
	started chan string
}

func (g *gateRunner) Execute(ctx context.Context, job analyzer.Job) error {
	g.started <- job.ID
	select {
	case <-g.release:
	case <-ctx.Done():
	}
	return nil
}

type blockingQueue struct {
	started chan struct{}
}

func (q *blockingQueue) TryEnqueue(analyzer.Job) error { return nil }

func (q *blockingQueue) Dequeue(ctx context.Context) (analyzer.Job, error) {
	select {
	case q.started <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return analyzer.Job{}, fmt.Errorf("blocking dequeue canceled: %w", ctx.Err())
}

func (q *blockingQueue) Close() {}

func (q *blockingQueue) Drain() []analyzer.Job { return nil }

type errorQueue struct {
	err error
}

func (q *errorQueue) TryEnqueue(analyzer.Job) error {
	return q.err
}

func (q *errorQueue) Dequeue(context.Context) (analyzer.Job, error) {
	return analyzer.Job{}, nil
}

func (q *errorQueue) Close() {}

func (q *errorQueue) Drain() []analyzer.Job { return nil }
