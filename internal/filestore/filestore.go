// Package filestore stores uploaded document bytes. The GCS store backs
// production; the in-memory store backs tests and single-node runs.
package filestore

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a stored object does not exist, for
// example when a document's file went missing between upload and
// background processing.
var ErrNotFound = errors.New("file not found")

// BlobStore stores and retrieves uploaded file bytes by path.
type BlobStore interface {
	Save(ctx context.Context, path, contentType string, data []byte) error
	Load(ctx context.Context, path string) ([]byte, error)
}
