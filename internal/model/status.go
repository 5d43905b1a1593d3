package model

// ProcessingStatus is the derived, never-persisted classification of a batch's
// progress. It is recomputed from image counts on every read.
type ProcessingStatus string

const (
	StatusReviewed     ProcessingStatus = "reviewed"
	StatusNotProcessed ProcessingStatus = "not_processed"
	StatusProcessing   ProcessingStatus = "processing"
	StatusCompleted    ProcessingStatus = "completed"
)

// DeriveStatus computes a batch's processing status from its manual review
// flag and the image counts. Reviewed takes precedence unconditionally; an
// empty batch is not_processed.
func DeriveStatus(reviewed bool, total, processed int64) ProcessingStatus {
	switch {
	case reviewed:
		return StatusReviewed
	case processed == 0:
		return StatusNotProcessed
	case processed < total:
		return StatusProcessing
	default:
		return StatusCompleted
	}
}
