package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JakeFAU/site-analyzer/internal/analyzer"
	"github.com/JakeFAU/site-analyzer/internal/queue"
)

func TestQueueEnqueueDequeue(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	result := make(chan analyzer.Job, 1)
	errCh := make(chan error, 1)

	go func() {
		item, err := q.Dequeue(context.Background())
		if err != nil {
			errCh <- err
			return
		}
		result <- item
	}()

	time.Sleep(10 * time.Millisecond) // allow goroutine to start
	job := analyzer.Job{ID: "run-1", URL: "https://example.com"}
	if err := q.TryEnqueue(job); err != nil {
		t.Fatalf("TryEnqueue() error = %v", err)
	}
	select {
	case err := <-errCh:
		t.Fatalf("Dequeue() error = %v", err)
	case got := <-result:
		if got.ID != "run-1" {
			t.Fatalf("expected run-1, got %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("dequeue did not return job")
	}
}

func TestQueueDequeueCanceled(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := q.Dequeue(ctx); err == nil ||
		err.Error() != "dequeue canceled: context canceled" {
		t.Fatalf("expected dequeue cancel error, got %v", err)
	}
}

func TestQueueTryEnqueueRejectsWhenFull(t *testing.T) {
	t.Parallel()

	q := NewQueue(2)
	for _, id := range []string{"a", "b"} {
		if err := q.TryEnqueue(analyzer.Job{ID: id}); err != nil {
			t.Fatalf("TryEnqueue(%s) error = %v", id, err)
		}
	}
	err := q.TryEnqueue(analyzer.Job{ID: "c"})
	if !errors.Is(err, analyzer.ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if q.Len() != 2 {
		t.Fatalf("expected 2 buffered jobs, got %d", q.Len())
	}
}

func TestQueueClose(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	if err := q.TryEnqueue(analyzer.Job{ID: "buffered"}); err != nil {
		t.Fatalf("TryEnqueue() error = %v", err)
	}
	q.Close()

	if err := q.TryEnqueue(analyzer.Job{ID: "late"}); !errors.Is(err, queue.ErrClosed) {
		t.Fatalf("expected ErrClosed from TryEnqueue, got %v", err)
	}
	got, err := q.Dequeue(context.Background())
	if err != nil || got.ID != "buffered" {
		t.Fatalf("expected buffered job after close, got %+v, %v", got, err)
	}
	if _, err := q.Dequeue(context.Background()); err == nil || err.Error() != "queue closed" {
		t.Fatalf("expected queue closed error, got %v", err)
	}
	// Closing twice should be safe.
	q.Close()
}

func TestQueueDrain(t *testing.T) {
	t.Parallel()

	q := NewQueue(3)
	for _, id := range []string{"a", "b"} {
		if err := q.TryEnqueue(analyzer.Job{ID: id}); err != nil {
			t.Fatalf("TryEnqueue(%s) error = %v", id, err)
		}
	}
	if got := q.Drain(); got != nil {
		t.Fatalf("open queue must not drain, got %+v", got)
	}

	q.Close()
	got := q.Drain()
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("expected [a b] drained in order, got %+v", got)
	}
	if q.Len() != 0 {
		t.Fatalf("expected empty queue after drain, got %d", q.Len())
	}
	if again := q.Drain(); len(again) != 0 {
		t.Fatalf("second drain should be empty, got %+v", again)
	}
}
