package storage

import (
	"context"
	"io"
	"time"
)

// ObjectStore is the protocol the pipeline needs from a blob store. Originals
// are uploaded by clients through presigned URLs; the worker reads them back
// and writes derived objects next to them.
type ObjectStore interface {
	// Put writes an object with the given content type. Public objects are
	// readable without credentials (previews and annotated results).
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string, public bool) error

	// Get returns a reader for the object at key.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists reports whether an object is present at key. A missing object is
	// not an error.
	Exists(ctx context.Context, key string) (bool, error)

	// DeleteMany removes the given objects, tolerating already-missing keys.
	DeleteMany(ctx context.Context, keys []string) error

	// PresignPut mints a write-capable URL scoped to key, valid for expiry.
	PresignPut(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// Metadata contains storage object metadata.
type Metadata struct {
	Size        int64
	ContentType string
	ETag        string
}
