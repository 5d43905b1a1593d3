// Package keygen builds object store keys for uploaded originals and the
// derived previews/results the worker writes next to them.
package keygen

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Artem468/hakaton-ml-lep/pkg/pipeline"
)

// FileKey builds the object key for an uploaded original:
//
//	uploads/<year>/<month>/<day>/batch_<id>/<uuid>.<ext>
//
// The date component uses UTC at call time and the extension is the
// lower-cased trailing segment of the original filename. The uuid token makes
// keys unique across calls; collisions are treated as negligible.
func FileKey(batchID uint, originalName string) string {
	parts := strings.Split(originalName, ".")
	ext := strings.ToLower(parts[len(parts)-1])
	now := time.Now().UTC()

	return fmt.Sprintf("%s/%04d/%02d/%02d/batch_%d/%s.%s",
		pipeline.PrefixUploads, now.Year(), now.Month(), now.Day(), batchID, uuid.New(), ext)
}

// Derived maps an original key into another namespace by replacing the first
// occurrence of the uploads prefix. When the key does not contain the prefix
// the replacement is a no-op, and the derived key falls back to prefixing the
// whole original key; both shapes stay unique per image.
func Derived(fileKey, prefix string) string {
	derived := strings.Replace(fileKey, pipeline.PrefixUploads, prefix, 1)
	if derived == fileKey {
		derived = prefix + "/" + fileKey
	}
	return derived
}

// PreviewKey returns the derived key for an image's down-scaled preview.
func PreviewKey(fileKey string) string {
	return Derived(fileKey, pipeline.PrefixPreviews)
}

// ResultKey returns the derived key for an image's annotated copy.
func ResultKey(fileKey string) string {
	return Derived(fileKey, pipeline.PrefixResults)
}
