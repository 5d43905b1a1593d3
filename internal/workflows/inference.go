package workflows

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/Artem468/hakaton-ml-lep/internal/detect"
	"github.com/Artem468/hakaton-ml-lep/internal/gps"
	"github.com/Artem468/hakaton-ml-lep/internal/keygen"
	"github.com/Artem468/hakaton-ml-lep/internal/model"
	"github.com/Artem468/hakaton-ml-lep/internal/storage"
	"github.com/Artem468/hakaton-ml-lep/pkg/pipeline"
)

// ImageStore is the slice of the persistence layer the worker needs.
type ImageStore interface {
	GetImageByFileKey(ctx context.Context, fileKey string) (*model.Image, error)
	GetModel(ctx context.Context, id uint) (*model.AiModel, error)
	CompleteImage(ctx context.Context, fileKey, previewKey, resultKey string, detections model.DetectionList, lat, lon *float64) error
	MarkFailed(ctx context.Context, fileKey string) error
}

// InferenceWorkflow processes one dispatched detection job: fetch the
// original, run the model, write the annotated copy and preview, persist the
// result.
type InferenceWorkflow struct {
	store    ImageStore
	objects  storage.ObjectStore
	detector detect.Detector
	gps      *gps.Extractor
	log      *slog.Logger
}

func NewInferenceWorkflow(st ImageStore, objects storage.ObjectStore, detector detect.Detector, extractor *gps.Extractor, log *slog.Logger) *InferenceWorkflow {
	return &InferenceWorkflow{
		store:    st,
		objects:  objects,
		detector: detector,
		gps:      extractor,
		log:      log,
	}
}

func (w *InferenceWorkflow) Name() string {
	return "InferenceWorkflow"
}

// Execute runs one job end to end. Every failure is captured into the result
// payload instead of propagating past the job boundary; on failure the image
// row is only touched to record the failed state, so its detection result
// stays null and Confirm can retry it.
func (w *InferenceWorkflow) Execute(wctx *WorkflowContext) *pipeline.DetectResult {
	res, err := w.run(wctx)
	if err != nil {
		w.log.Error("inference job failed",
			"run_id", wctx.RunID, "file_key", wctx.Request.FileKey, "error", err)
		if markErr := w.store.MarkFailed(context.WithoutCancel(wctx.Ctx), wctx.Request.FileKey); markErr != nil {
			w.log.Error("failed to record job failure",
				"run_id", wctx.RunID, "file_key", wctx.Request.FileKey, "error", markErr)
		}
		return &pipeline.DetectResult{FileKey: wctx.Request.FileKey, Error: err.Error()}
	}
	return res
}

func (w *InferenceWorkflow) run(wctx *WorkflowContext) (*pipeline.DetectResult, error) {
	ctx := wctx.Ctx
	fileKey := wctx.Request.FileKey
	log := w.log.With("run_id", wctx.RunID, "file_key", fileKey)

	img, err := w.store.GetImageByFileKey(ctx, fileKey)
	if err != nil {
		return nil, err
	}
	aiModel, err := w.store.GetModel(ctx, wctx.Request.ModelID)
	if err != nil {
		return nil, err
	}

	reader, err := w.objects.Get(ctx, fileKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	imageData, err := io.ReadAll(reader)
	reader.Close()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}

	decoded, format, err := detect.DecodeImage(imageData)
	if err != nil {
		return nil, err
	}
	log.Info("image fetched", "format", format, "bytes", len(imageData))

	// Coordinates supplied by the client at Init win over EXIF.
	lat, lon := img.Latitude, img.Longitude
	if lat == nil || lon == nil {
		lat, lon = w.gps.Coordinates(imageData)
	}

	detections, err := w.detector.Detect(ctx, aiModel.FileKey, imageData)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPrediction, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	log.Info("prediction finished", "detections", len(detections))

	annotated := detect.Annotate(decoded, detections)
	resultBytes, contentType, err := detect.Encode(annotated, format)
	if err != nil {
		return nil, err
	}
	resultKey := keygen.ResultKey(fileKey)
	if err := w.objects.Put(ctx, resultKey, bytes.NewReader(resultBytes), int64(len(resultBytes)), contentType, true); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageWrite, err)
	}

	previewBytes, contentType, err := detect.Encode(detect.Preview(decoded), format)
	if err != nil {
		return nil, err
	}
	previewKey := keygen.PreviewKey(fileKey)
	if err := w.objects.Put(ctx, previewKey, bytes.NewReader(previewBytes), int64(len(previewBytes)), contentType, true); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageWrite, err)
	}

	if err := w.store.CompleteImage(ctx, fileKey, previewKey, resultKey, detections, lat, lon); err != nil {
		return nil, err
	}
	log.Info("inference job persisted", "result_key", resultKey, "preview_key", previewKey)

	return &pipeline.DetectResult{
		FileKey:    fileKey,
		Detections: len(detections),
		ResultKey:  resultKey,
		PreviewKey: previewKey,
	}, nil
}
