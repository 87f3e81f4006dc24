// Package local_test tests the local filesystem blob store.
package local_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/site-analyzer/internal/storage"
	"github.com/JakeFAU/site-analyzer/internal/storage/local"
)

func TestNew(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		tempDir := t.TempDir()
		store, err := local.New(local.Config{BaseDir: tempDir})
		require.NoError(t, err)
		assert.Equal(t, tempDir, store.BaseDir())
	})

	t.Run("CreatesMissingDir", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "websites")
		_, err := local.New(local.Config{BaseDir: dir})
		require.NoError(t, err)
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("MissingBaseDir", func(t *testing.T) {
		_, err := local.New(local.Config{})
		assert.Error(t, err)
	})

	t.Run("BaseDirIsNotADirectory", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

		_, err := local.New(local.Config{BaseDir: file})
		assert.Error(t, err)
	})
}

func TestPutGetObject(t *testing.T) {
	tempDir := t.TempDir()
	store, err := local.New(local.Config{BaseDir: tempDir})
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("RoundTrip", func(t *testing.T) {
		uri, err := store.PutObject(ctx, "example.json", "application/json", bytes.NewReader([]byte(`{"a":1}`)))
		require.NoError(t, err)
		assert.Equal(t, "file://"+filepath.Join(tempDir, "example.json"), uri)

		got, err := store.GetObject(ctx, "example.json")
		require.NoError(t, err)
		assert.JSONEq(t, `{"a":1}`, string(got))
	})

	t.Run("Overwrite", func(t *testing.T) {
		_, err := store.PutObject(ctx, "over.json", "", bytes.NewReader([]byte("first")))
		require.NoError(t, err)
		_, err = store.PutObject(ctx, "over.json", "", bytes.NewReader([]byte("second")))
		require.NoError(t, err)

		got, err := store.GetObject(ctx, "over.json")
		require.NoError(t, err)
		assert.Equal(t, "second", string(got))

		entries, err := os.ReadDir(tempDir)
		require.NoError(t, err)
		for _, e := range entries {
			assert.NotContains(t, e.Name(), ".tmp", "temp files must not be left behind")
		}
	})

	t.Run("NestedPath", func(t *testing.T) {
		_, err := store.PutObject(ctx, "a/b/c/object.txt", "text/plain", bytes.NewReader([]byte("nested")))
		require.NoError(t, err)
		got, err := store.GetObject(ctx, "a/b/c/object.txt")
		require.NoError(t, err)
		assert.Equal(t, "nested", string(got))
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := store.GetObject(ctx, "nope.json")
		assert.ErrorIs(t, err, storage.ErrObjectNotFound)
	})

	t.Run("EmptyPath", func(t *testing.T) {
		_, err := store.PutObject(ctx, "", "text/plain", bytes.NewReader([]byte("data")))
		assert.Error(t, err)
	})

	t.Run("Traversal", func(t *testing.T) {
		_, err := store.PutObject(ctx, "../escape.json", "", bytes.NewReader([]byte("x")))
		assert.ErrorContains(t, err, "path traversal")
		_, err = store.GetObject(ctx, "../../etc/passwd")
		assert.ErrorContains(t, err, "path traversal")
	})
}

func TestConcurrentReadersSeeWholeObjects(t *testing.T) {
	store, err := local.New(local.Config{BaseDir: t.TempDir()})
	require.NoError(t, err)
	ctx := context.Background()

	small := bytes.Repeat([]byte("a"), 10)
	large := bytes.Repeat([]byte("b"), 1<<16)
	_, err = store.PutObject(ctx, "log.json", "", bytes.NewReader(small))
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			payload := small
			if i%2 == 0 {
				payload = large
			}
			_, putErr := store.PutObject(ctx, "log.json", "", bytes.NewReader(payload))
			assert.NoError(t, putErr)
		}
	}()
	for i := 0; i < 200; i++ {
		got, getErr := store.GetObject(ctx, "log.json")
		require.NoError(t, getErr)
		require.True(t, len(got) == len(small) || len(got) == len(large), "torn read of %d bytes", len(got))
	}
	wg.Wait()
}
