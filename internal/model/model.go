package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ImageState tracks where an image sits in the dispatch lifecycle. It exists
// to guard against duplicate dispatch: Confirm only enqueues images it managed
// to move into StateInFlight.
type ImageState string

const (
	StatePending  ImageState = "pending"
	StateInFlight ImageState = "in_flight"
	StateDone     ImageState = "done"
	StateFailed   ImageState = "failed"
)

// Batch groups images uploaded and processed together. Reviewed is a manual
// sign-off flag, never set by the pipeline itself.
type Batch struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Name       *string   `gorm:"size:100" json:"name"`
	UploadedAt time.Time `gorm:"autoCreateTime" json:"uploaded_at"`
	Reviewed   bool      `gorm:"not null;default:false" json:"reviewed"`

	Images []Image `gorm:"foreignKey:BatchID;constraint:OnDelete:CASCADE" json:"-"`
}

// Image is one captured photo within a batch. FileKey is assigned at creation
// and never changes; Preview, Result and DetectionResult are written once by
// the inference worker.
type Image struct {
	ID              uint          `gorm:"primaryKey" json:"id"`
	BatchID         uint          `gorm:"not null;index" json:"batch_id"`
	FileKey         string        `gorm:"size:500;not null;uniqueIndex" json:"file_key"`
	Preview         *string       `gorm:"size:500" json:"preview"`
	Result          *string       `gorm:"size:500" json:"result"`
	Latitude        *float64      `gorm:"type:decimal(9,6)" json:"latitude"`
	Longitude       *float64      `gorm:"type:decimal(9,6)" json:"longitude"`
	CreatedAt       *time.Time    `json:"created_at"`
	DetectionResult DetectionList `gorm:"type:json" json:"detection_result"`
	State           ImageState    `gorm:"size:16;not null;default:'pending'" json:"-"`
}

// Processed reports whether the worker has persisted a detection result.
// A failed job leaves DetectionResult null, so failed images still count as
// unprocessed and a later Confirm retries them.
func (i *Image) Processed() bool {
	return i.DetectionResult != nil
}

// AiModel is an uploaded weights artifact. Immutable once stored; inference
// jobs reference it by id and only ever read it.
type AiModel struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Name       string    `gorm:"size:255;not null" json:"name"`
	FileKey    string    `gorm:"size:500;not null" json:"file_key"`
	UploadedAt time.Time `gorm:"autoCreateTime" json:"uploaded_at"`
}

// Detection is one finding of the detection capability for one image.
type Detection struct {
	Class      string     `json:"class"`
	Confidence float64    `json:"confidence"`
	BBox       [4]float64 `json:"bbox"`
}

// DetectionList is stored as a JSON column. A nil list means the image has not
// been processed; an empty non-nil list is a valid "no detections" result, so
// Value must keep the two distinguishable.
type DetectionList []Detection

func (l DetectionList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

func (l *DetectionList) Scan(src any) error {
	if src == nil {
		*l = nil
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("detection list: unsupported source type %T", src)
	}
	out := DetectionList{}
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("detection list: %w", err)
	}
	*l = out
	return nil
}
