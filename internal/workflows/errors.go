package workflows

import "errors"

// Worker-time failure taxonomy. These never escape a job: the runner folds
// them into the result payload and the image row keeps a null detection
// result, so the job stays retryable through a later Confirm.
var (
	// ErrFetch marks an object store read failure.
	ErrFetch = errors.New("fetch failed")

	// ErrPrediction marks a detection capability failure.
	ErrPrediction = errors.New("prediction failed")

	// ErrStorageWrite marks a failed annotated/preview write.
	ErrStorageWrite = errors.New("storage write failed")

	// ErrTimeout marks a job that exceeded its time limit.
	ErrTimeout = errors.New("job exceeded time limit")

	// ErrWorkflowNotFound is returned when a job names no registered workflow.
	ErrWorkflowNotFound = errors.New("workflow not found")
)
