package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/site-analyzer/internal/store"
)

func openIndex(t *testing.T) *RunIndex {
	t.Helper()
	idx, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestOpenCreatesDatabaseFile(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nested")
	idx, err := Open(dir)
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()
	assert.Equal(t, filepath.Join(dir, FileName), idx.Path())
	assert.FileExists(t, idx.Path())
}

func TestRunIndexLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	idx := openIndex(t)
	id := uuid.New()
	start := time.Date(2025, 5, 1, 10, 0, 0, 123, time.UTC)

	rec := store.RunRecord{ID: id, URL: "https://example.com", Domain: "example", FullMode: true, StartedAt: start}
	require.NoError(t, idx.UpsertRunStart(ctx, rec))
	require.NoError(t, idx.UpsertRunStart(ctx, rec))
	require.NoError(t, idx.AddPageStats(ctx, id, 2, 1, start.Add(time.Second)))
	require.NoError(t, idx.AddPageStats(ctx, id, 3, 0, start.Add(2*time.Second)))

	got, err := idx.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, store.RunRunning, got.Status)
	assert.True(t, got.FullMode)
	assert.Equal(t, start, got.StartedAt)
	assert.EqualValues(t, 5, got.PagesVisited)
	assert.EqualValues(t, 1, got.PagesFailed)
	assert.Equal(t, start.Add(2*time.Second), got.LastUpdate)
	assert.Nil(t, got.FinishedAt)
	assert.Nil(t, got.ErrorMessage)

	finished := start.Add(time.Minute)
	msg := "seed navigation failed"
	require.NoError(t, idx.CompleteRun(ctx, id, finished, store.RunError, 9, &msg))
	got, err = idx.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, store.RunError, got.Status)
	require.NotNil(t, got.FinishedAt)
	assert.Equal(t, finished, *got.FinishedAt)
	assert.EqualValues(t, 9, got.LinksFound)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, msg, *got.ErrorMessage)
}

func TestRunIndexNotFound(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	idx := openIndex(t)

	_, err := idx.GetRun(ctx, uuid.New())
	require.ErrorIs(t, err, store.ErrNotFound)
	require.ErrorIs(t, idx.AddPageStats(ctx, uuid.New(), 1, 0, time.Now()), store.ErrNotFound)
	require.ErrorIs(t, idx.CompleteRun(ctx, uuid.New(), time.Now(), store.RunSuccess, 1, nil), store.ErrNotFound)
}

func TestRunIndexListRuns(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	idx := openIndex(t)
	base := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	ids := make([]uuid.UUID, 5)
	for i := range ids {
		ids[i] = uuid.New()
		require.NoError(t, idx.UpsertRunStart(ctx, store.RunRecord{
			ID: ids[i], URL: "https://example.com", Domain: "example", StartedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, idx.CompleteRun(ctx, ids[1], base.Add(time.Hour), store.RunSuccess, 4, nil))

	all, err := idx.ListRuns(ctx, nil, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, ids[4], all[0].ID)
	assert.Equal(t, ids[0], all[4].ID)

	page, err := idx.ListRuns(ctx, nil, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[2], page[0].ID)
	assert.Equal(t, ids[1], page[1].ID)

	success := store.RunSuccess
	done, err := idx.ListRuns(ctx, &success, 10, 0)
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, ids[1], done[0].ID)
}
