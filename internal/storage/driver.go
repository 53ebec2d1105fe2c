// Package storage abstracts the content-addressed object store that backs
// blob payload bytes. The relational store (internal/store) keeps the
// metadata (digest, size, media type); this package keeps the bytes.
package storage

import (
	"context"
	"io"
)

// Driver is the payload storage abstraction. Paths are plain keys (e.g.
// "blobs/sha256:...") — drivers decide how to lay them out underneath.
type Driver interface {
	// Writer returns a writer that replaces whatever is at path on Close.
	Writer(ctx context.Context, path string) (io.WriteCloser, error)
	// Reader opens path for reading. Returns an error if it does not exist.
	Reader(ctx context.Context, path string) (io.ReadCloser, error)
	// Stat returns the byte size of path.
	Stat(ctx context.Context, path string) (int64, error)
	// Copy duplicates src to dst, leaving src intact.
	Copy(ctx context.Context, src, dst string) error
	// Delete removes path. Deleting a missing path is not an error.
	Delete(ctx context.Context, path string) error
}
