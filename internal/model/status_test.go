package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name      string
		reviewed  bool
		total     int64
		processed int64
		want      ProcessingStatus
	}{
		{"empty batch", false, 0, 0, StatusNotProcessed},
		{"nothing processed", false, 3, 0, StatusNotProcessed},
		{"partially processed", false, 3, 1, StatusProcessing},
		{"all processed", false, 3, 3, StatusCompleted},
		{"single image done", false, 1, 1, StatusCompleted},
		{"reviewed wins over completed", true, 3, 3, StatusReviewed},
		{"reviewed wins over in-progress", true, 3, 1, StatusReviewed},
		{"reviewed wins over empty", true, 0, 0, StatusReviewed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveStatus(tt.reviewed, tt.total, tt.processed))
		})
	}
}

func TestDeriveStatusTotality(t *testing.T) {
	valid := map[ProcessingStatus]bool{
		StatusReviewed:     true,
		StatusNotProcessed: true,
		StatusProcessing:   true,
		StatusCompleted:    true,
	}
	for _, reviewed := range []bool{false, true} {
		for total := int64(0); total <= 4; total++ {
			for processed := int64(0); processed <= total; processed++ {
				got := DeriveStatus(reviewed, total, processed)
				assert.True(t, valid[got], "unexpected status %q", got)
				if reviewed {
					assert.Equal(t, StatusReviewed, got)
				} else if processed == total && total > 0 {
					assert.Equal(t, StatusCompleted, got)
				}
			}
		}
	}
}
