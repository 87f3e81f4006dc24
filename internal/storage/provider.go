// Package storage defines the blob storage abstraction behind the progress
// log and artifact stores. Backends live in the local, memory and gcs
// subpackages.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned by GetObject when path does not exist.
var ErrObjectNotFound = errors.New("object not found")

// BlobStore reads and writes whole objects by path.
type BlobStore interface {
	// PutObject replaces the object at path and returns its URI. Readers
	// never observe a partially written object.
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
	// GetObject returns the object's bytes or ErrObjectNotFound.
	GetObject(ctx context.Context, path string) ([]byte, error)
}

// Backend names accepted by configuration.
const (
	BackendLocal  = "local"
	BackendMemory = "memory"
	BackendGCS    = "gcs"
)
