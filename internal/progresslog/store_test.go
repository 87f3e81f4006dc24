package progresslog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/site-analyzer/internal/analyzer"
	"github.com/JakeFAU/site-analyzer/internal/storage/memory"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newRun(id string) analyzer.Run {
	return analyzer.Run{
		ID:        id,
		URL:       "https://example.com",
		Domain:    "example",
		StartTime: testNow,
		Status:    analyzer.StatusStarting,
	}
}

func TestCreateAndRead(t *testing.T) {
	t.Parallel()

	blobs := memory.NewBlobStore()
	store := New(blobs, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, newRun("run-1")))

	got, err := store.Read(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, analyzer.StatusStarting, got.Status)
	assert.Equal(t, "example", got.Domain)
	assert.NotNil(t, got.Actions)
	assert.NotNil(t, got.Summaries)

	raw, err := blobs.GetObject(ctx, "run-1-log.json")
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"actions": []`)
	assert.Contains(t, string(raw), `"summaries": []`)
}

func TestMergeIsAppendOnly(t *testing.T) {
	t.Parallel()

	store := New(memory.NewBlobStore(), nil)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, newRun("run-2")))

	appended := 0
	for i := 0; i < 25; i++ {
		n := i%3 + 1
		u := analyzer.ProgressUpdate(float64(i))
		for j := 0; j < n; j++ {
			u = u.WithAction(testNow, fmt.Sprintf("step %d.%d", i, j))
		}
		if i%5 == 0 {
			u = u.WithSummary(testNow, fmt.Sprintf("summary %d", i))
		}
		merged, err := store.Merge(ctx, "run-2", u)
		require.NoError(t, err)
		appended += n
		require.Len(t, merged.Actions, appended)
	}

	got, err := store.Read(ctx, "run-2")
	require.NoError(t, err)
	require.Len(t, got.Actions, appended)
	assert.Equal(t, "step 0.0", got.Actions[0].Action)
	assert.Equal(t, "step 24.0", got.Actions[appended-1].Action)
	assert.Len(t, got.Summaries, 5)
	assert.InDelta(t, 24, got.Progress, 0.0001)
}

func TestMergeRejectsFinalizedRun(t *testing.T) {
	t.Parallel()

	store := New(memory.NewBlobStore(), nil)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, newRun("run-3")))

	_, err := store.Merge(ctx, "run-3",
		analyzer.StatusUpdate(analyzer.StatusCompleted, 100).WithEnd(testNow))
	require.NoError(t, err)

	_, err = store.Merge(ctx, "run-3", analyzer.Update{}.WithAction(testNow, "late"))
	require.ErrorIs(t, err, analyzer.ErrRunFinalized)

	got, err := store.Read(ctx, "run-3")
	require.NoError(t, err)
	assert.Equal(t, analyzer.StatusCompleted, got.Status)
	assert.Empty(t, got.Actions)
}

func TestReadNotFound(t *testing.T) {
	t.Parallel()

	blobs := memory.NewBlobStore()
	store := New(blobs, nil)
	ctx := context.Background()

	_, err := store.Read(ctx, "missing")
	assert.ErrorIs(t, err, analyzer.ErrNotFound)

	_, err = blobs.PutObject(ctx, "corrupt-log.json", "", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	_, err = store.Read(ctx, "corrupt")
	assert.ErrorIs(t, err, analyzer.ErrNotFound)

	_, err = store.Read(ctx, "../etc/passwd")
	assert.ErrorIs(t, err, analyzer.ErrNotFound)

	_, err = store.Merge(ctx, "missing", analyzer.Update{})
	assert.ErrorIs(t, err, analyzer.ErrNotFound)
}

func TestWriteFailureIsIOError(t *testing.T) {
	t.Parallel()

	store := New(failingBlobs{err: errors.New("disk full")}, nil)
	err := store.Create(context.Background(), newRun("run-4"))
	require.ErrorIs(t, err, analyzer.ErrIO)
	assert.ErrorContains(t, err, "disk full")

	_, err = store.Read(context.Background(), "run-4")
	require.ErrorIs(t, err, analyzer.ErrIO)
}

func TestCreateRejectsBadID(t *testing.T) {
	t.Parallel()

	store := New(memory.NewBlobStore(), nil)
	for _, id := range []string{"", "a/b", `a\b`, ".."} {
		run := newRun(id)
		assert.ErrorIs(t, store.Create(context.Background(), run), analyzer.ErrInput, id)
	}
}

type failingBlobs struct {
	err error
}

func (f failingBlobs) PutObject(context.Context, string, string, io.Reader) (string, error) {
	return "", f.err
}

func (f failingBlobs) GetObject(context.Context, string) ([]byte, error) {
	return nil, f.err
}
