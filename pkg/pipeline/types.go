package pipeline

// DetectRequest is the payload of one inference job. FileKey identifies both
// the original object in the store and the image row; ModelID selects the
// weights artifact.
type DetectRequest struct {
	FileKey string `json:"file_key"`
	ModelID uint   `json:"model_id"`
}

// DetectResult is the summary a worker returns for one job. Failures are
// carried in Error rather than raised past the job boundary, so the queue
// layer only ever sees them as data.
type DetectResult struct {
	FileKey    string `json:"file_key"`
	Detections int    `json:"detections_count,omitempty"`
	ResultKey  string `json:"result_key,omitempty"`
	PreviewKey string `json:"preview_key,omitempty"`
	Error      string `json:"error,omitempty"`
}

// JobDetect is the job name detection workflows are registered under.
const JobDetect = "detect"

// Object key namespace prefixes. Originals live under PrefixUploads; the
// worker derives the preview and result keys from an original's key.
const (
	PrefixUploads  = "uploads"
	PrefixPreviews = "previews"
	PrefixResults  = "results"
)
