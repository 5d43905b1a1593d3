package workflows

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Artem468/hakaton-ml-lep/internal/gps"
	"github.com/Artem468/hakaton-ml-lep/internal/model"
	"github.com/Artem468/hakaton-ml-lep/internal/storage"
	"github.com/Artem468/hakaton-ml-lep/internal/store"
	"github.com/Artem468/hakaton-ml-lep/pkg/pipeline"
)

type fakeDetector struct {
	detections []model.Detection
	err        error
	gotModel   string
}

func (f *fakeDetector) Detect(ctx context.Context, modelKey string, imageData []byte) ([]model.Detection, error) {
	f.gotModel = modelKey
	if f.err != nil {
		return nil, f.err
	}
	return f.detections, nil
}

type fixture struct {
	workflow *InferenceWorkflow
	store    *store.Store
	objects  *storage.FilesystemStore
	detector *fakeDetector
	batch    *model.Batch
	aiModel  *model.AiModel
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	st := store.New(db)
	require.NoError(t, st.Migrate())

	objects, err := storage.NewFilesystemStore(t.TempDir())
	require.NoError(t, err)

	batch := &model.Batch{}
	require.NoError(t, st.CreateBatch(ctx, batch))
	aiModel := &model.AiModel{Name: "yolo-lep", FileKey: "models/yolo-lep.pt"}
	require.NoError(t, st.CreateModel(ctx, aiModel))

	detector := &fakeDetector{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	workflow := NewInferenceWorkflow(st, objects, detector, gps.NewExtractor(gps.FallbackConfig{}), log)

	return &fixture{workflow: workflow, store: st, objects: objects, detector: detector, batch: batch, aiModel: aiModel}
}

func (f *fixture) addImage(t *testing.T, fileKey string, withObject bool) *model.Image {
	t.Helper()
	ctx := context.Background()
	img := &model.Image{BatchID: f.batch.ID, FileKey: fileKey, State: model.StateInFlight}
	require.NoError(t, f.store.CreateImage(ctx, img))
	if withObject {
		var buf bytes.Buffer
		require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 64, 48)), nil))
		require.NoError(t, f.objects.Put(ctx, fileKey, bytes.NewReader(buf.Bytes()), int64(buf.Len()), "image/jpeg", false))
	}
	return img
}

func (f *fixture) execute(fileKey string) *pipeline.DetectResult {
	return f.workflow.Execute(&WorkflowContext{
		Ctx:     context.Background(),
		Request: pipeline.DetectRequest{FileKey: fileKey, ModelID: f.aiModel.ID},
		RunID:   "test-run",
	})
}

func TestInferenceSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addImage(t, "uploads/2025/11/18/batch_1/a.jpg", true)
	f.detector.detections = []model.Detection{
		{Class: "insulator", Confidence: 0.87, BBox: [4]float64{1, 2, 30, 40}},
		{Class: "tower", Confidence: 0.55, BBox: [4]float64{5, 5, 60, 45}},
	}

	res := f.execute("uploads/2025/11/18/batch_1/a.jpg")
	require.Empty(t, res.Error)
	assert.Equal(t, 2, res.Detections)
	assert.Equal(t, "results/2025/11/18/batch_1/a.jpg", res.ResultKey)
	assert.Equal(t, "previews/2025/11/18/batch_1/a.jpg", res.PreviewKey)
	assert.Equal(t, "models/yolo-lep.pt", f.detector.gotModel)

	for _, key := range []string{res.ResultKey, res.PreviewKey} {
		exists, err := f.objects.Exists(ctx, key)
		require.NoError(t, err)
		assert.True(t, exists, "derived object %q must be written", key)
	}

	img, err := f.store.GetImageByFileKey(ctx, "uploads/2025/11/18/batch_1/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, model.StateDone, img.State)
	require.NotNil(t, img.Preview)
	require.NotNil(t, img.Result)
	require.Len(t, img.DetectionResult, 2)
	for _, d := range img.DetectionResult {
		assert.NotEmpty(t, d.Class)
		assert.GreaterOrEqual(t, d.Confidence, 0.0)
		assert.LessOrEqual(t, d.Confidence, 1.0)
	}
}

func TestInferenceEmptyDetections(t *testing.T) {
	f := newFixture(t)
	f.addImage(t, "uploads/b.jpg", true)
	f.detector.detections = []model.Detection{}

	res := f.execute("uploads/b.jpg")
	require.Empty(t, res.Error)
	assert.Zero(t, res.Detections)

	img, err := f.store.GetImageByFileKey(context.Background(), "uploads/b.jpg")
	require.NoError(t, err)
	assert.NotNil(t, img.DetectionResult, "zero detections must persist as empty array, not null")
	assert.Len(t, img.DetectionResult, 0)
}

func TestInferenceClientCoordinatesWin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lat, lon := 51.5, -0.12
	img := &model.Image{BatchID: f.batch.ID, FileKey: "uploads/c.jpg", Latitude: &lat, Longitude: &lon, State: model.StateInFlight}
	require.NoError(t, f.store.CreateImage(ctx, img))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8)), nil))
	require.NoError(t, f.objects.Put(ctx, "uploads/c.jpg", bytes.NewReader(buf.Bytes()), int64(buf.Len()), "image/jpeg", false))

	res := f.execute("uploads/c.jpg")
	require.Empty(t, res.Error)

	got, err := f.store.GetImageByFileKey(ctx, "uploads/c.jpg")
	require.NoError(t, err)
	require.NotNil(t, got.Latitude)
	assert.InDelta(t, 51.5, *got.Latitude, 1e-6)
	require.NotNil(t, got.Longitude)
	assert.InDelta(t, -0.12, *got.Longitude, 1e-6)
}

func TestInferenceFetchFailure(t *testing.T) {
	f := newFixture(t)
	f.addImage(t, "uploads/missing.jpg", false)

	res := f.execute("uploads/missing.jpg")
	assert.NotEmpty(t, res.Error)
	assert.Equal(t, "uploads/missing.jpg", res.FileKey)

	img, err := f.store.GetImageByFileKey(context.Background(), "uploads/missing.jpg")
	require.NoError(t, err)
	assert.Equal(t, model.StateFailed, img.State)
	assert.Nil(t, img.DetectionResult, "failed job must leave the record unprocessed")
}

func TestInferencePredictionFailure(t *testing.T) {
	f := newFixture(t)
	f.addImage(t, "uploads/d.jpg", true)
	f.detector.err = errors.New("model blew up")

	res := f.execute("uploads/d.jpg")
	assert.Contains(t, res.Error, "prediction failed")

	img, err := f.store.GetImageByFileKey(context.Background(), "uploads/d.jpg")
	require.NoError(t, err)
	assert.Equal(t, model.StateFailed, img.State)
	assert.Nil(t, img.DetectionResult)
}

func TestInferenceUnknownImage(t *testing.T) {
	f := newFixture(t)
	res := f.execute("uploads/never-created.jpg")
	assert.NotEmpty(t, res.Error)
}

// slowWorkflow blocks longer than any test limit.
type slowWorkflow struct{ delay time.Duration }

func (s *slowWorkflow) Name() string { return "slow" }

func (s *slowWorkflow) Execute(wctx *WorkflowContext) *pipeline.DetectResult {
	select {
	case <-time.After(s.delay):
	case <-wctx.Ctx.Done():
	}
	return &pipeline.DetectResult{FileKey: wctx.Request.FileKey}
}

func TestRunnerHardTimeout(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := NewRunner(nil, time.Hour, 20*time.Millisecond, nil, log)
	r.Register(pipeline.JobDetect, &slowWorkflow{delay: time.Hour})

	res := r.Run(context.Background(), "run-1", pipeline.DetectRequest{FileKey: "uploads/x.jpg"})
	assert.Contains(t, res.Error, "time limit")
}

func TestRunnerUnknownJob(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := NewRunner(nil, 0, 0, nil, log)

	res := r.Run(context.Background(), "run-1", pipeline.DetectRequest{FileKey: "uploads/x.jpg"})
	assert.Contains(t, res.Error, "workflow not found")
}
