// Package detect wraps the detection capability: running a model over an
// image and rendering the findings back onto it.
package detect

import (
	"context"

	"github.com/Artem468/hakaton-ml-lep/internal/model"
)

// Detector runs a detection model over one image. modelKey references the
// stored weights artifact. Zero detections is a valid outcome, not an error.
type Detector interface {
	Detect(ctx context.Context, modelKey string, imageData []byte) ([]model.Detection, error)
}
