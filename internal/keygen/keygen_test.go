package keygen

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileKeyShape(t *testing.T) {
	key := FileKey(12, "DJI_0042.TIFF")

	now := time.Now().UTC()
	prefix := fmt.Sprintf("uploads/%04d/%02d/%02d/batch_12/", now.Year(), now.Month(), now.Day())
	assert.True(t, strings.HasPrefix(key, prefix), "key %q should start with %q", key, prefix)
	assert.True(t, strings.HasSuffix(key, ".tiff"), "extension should be lower-cased: %q", key)
}

func TestFileKeyUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		key := FileKey(1, "a.jpg")
		_, dup := seen[key]
		require.False(t, dup, "duplicate key %q", key)
		seen[key] = struct{}{}
	}
}

func TestDerived(t *testing.T) {
	assert.Equal(t, "previews/2025/11/18/batch_3/x.jpg", PreviewKey("uploads/2025/11/18/batch_3/x.jpg"))
	assert.Equal(t, "results/2025/11/18/batch_3/x.jpg", ResultKey("uploads/2025/11/18/batch_3/x.jpg"))
}

func TestDerivedFallback(t *testing.T) {
	// Keys outside the uploads namespace are prefixed wholesale so two
	// distinct originals can never derive the same key.
	assert.Equal(t, "previews/legacy/x.jpg", PreviewKey("legacy/x.jpg"))
	assert.Equal(t, "results/legacy/x.jpg", ResultKey("legacy/x.jpg"))
}
