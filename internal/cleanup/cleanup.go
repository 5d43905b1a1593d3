// Package cleanup removes object store blobs left behind by deleted records.
package cleanup

import (
	"context"
	"log/slog"

	"github.com/Artem468/hakaton-ml-lep/internal/storage"
)

// Coordinator issues best-effort bulk deletes against the object store. The
// database delete is the authoritative success signal; storage failures are
// logged and swallowed, never surfaced to the caller.
type Coordinator struct {
	objects storage.ObjectStore
	log     *slog.Logger
}

func NewCoordinator(objects storage.ObjectStore, log *slog.Logger) *Coordinator {
	return &Coordinator{objects: objects, log: log}
}

// Remove deletes the given keys, tolerating already-missing objects.
func (c *Coordinator) Remove(ctx context.Context, keys []string) {
	if len(keys) == 0 {
		return
	}
	if err := c.objects.DeleteMany(ctx, keys); err != nil {
		c.log.Warn("object store cleanup failed", "keys", len(keys), "error", err)
	}
}
