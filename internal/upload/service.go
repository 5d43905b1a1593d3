// Package upload implements the upload handshake: Init hands out keys and
// presigned URLs, Confirm verifies the uploads landed and dispatches
// inference jobs.
package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Artem468/hakaton-ml-lep/internal/keygen"
	"github.com/Artem468/hakaton-ml-lep/internal/model"
	"github.com/Artem468/hakaton-ml-lep/internal/storage"
	"github.com/Artem468/hakaton-ml-lep/internal/store"
	"github.com/Artem468/hakaton-ml-lep/pkg/pipeline"
)

// ErrValidation marks a malformed request.
var ErrValidation = errors.New("validation")

// Dispatcher enqueues inference jobs onto the task queue.
type Dispatcher interface {
	DispatchDetect(ctx context.Context, req pipeline.DetectRequest) (runID string, err error)
}

// FileInput is one file announced in an Init call.
type FileInput struct {
	Filename  string   `json:"filename"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// InitFile is one allocated upload slot returned by Init.
type InitFile struct {
	ImageID   uint   `json:"image_id"`
	FileKey   string `json:"file_key"`
	UploadURL string `json:"upload_url"`
}

// InitResult is the Init response payload.
type InitResult struct {
	BatchID uint       `json:"batch_id"`
	Files   []InitFile `json:"files"`
}

// ConfirmResult is the Confirm response payload. ProcessedImages counts
// dispatched jobs, not their outcomes.
type ConfirmResult struct {
	BatchID         uint `json:"batch_id"`
	ProcessedImages int  `json:"processed_images"`
}

// Service is the upload session manager.
type Service struct {
	store         *store.Store
	objects       storage.ObjectStore
	dispatcher    Dispatcher
	presignExpiry time.Duration
	log           *slog.Logger
}

func NewService(st *store.Store, objects storage.ObjectStore, dispatcher Dispatcher, presignExpiry time.Duration, log *slog.Logger) *Service {
	return &Service{
		store:         st,
		objects:       objects,
		dispatcher:    dispatcher,
		presignExpiry: presignExpiry,
		log:           log,
	}
}

// Init creates a batch with one image record per announced file and mints a
// presigned PUT URL for each. Records and URLs are produced inside a single
// transaction, so a failure on any file leaves no partial batch behind. The
// binaries are uploaded later, directly by the client.
func (s *Service) Init(ctx context.Context, batchName *string, files []FileInput) (*InitResult, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: files must not be empty", ErrValidation)
	}
	for _, f := range files {
		if f.Filename == "" {
			return nil, fmt.Errorf("%w: filename must not be empty", ErrValidation)
		}
	}

	var result InitResult
	err := s.store.Transaction(ctx, func(tx *store.Store) error {
		batch := &model.Batch{Name: batchName}
		if err := tx.CreateBatch(ctx, batch); err != nil {
			return err
		}
		result.BatchID = batch.ID

		for _, f := range files {
			key := keygen.FileKey(batch.ID, f.Filename)
			img := &model.Image{
				BatchID:   batch.ID,
				FileKey:   key,
				Latitude:  f.Latitude,
				Longitude: f.Longitude,
				State:     model.StatePending,
			}
			if err := tx.CreateImage(ctx, img); err != nil {
				return err
			}
			url, err := s.objects.PresignPut(ctx, key, s.presignExpiry)
			if err != nil {
				return fmt.Errorf("presign %q: %w", key, err)
			}
			result.Files = append(result.Files, InitFile{
				ImageID:   img.ID,
				FileKey:   key,
				UploadURL: url,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("upload session initialized", "batch_id", result.BatchID, "files", len(result.Files))
	return &result, nil
}

// Confirm checks which announced uploads actually arrived in the object store
// and dispatches an inference job for each. Images that were already
// processed are skipped, so Confirm is safe to call repeatedly; images whose
// upload never completed are silently skipped and picked up by a later call.
func (s *Service) Confirm(ctx context.Context, batchID, modelID uint) (*ConfirmResult, error) {
	batch, err := s.store.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetModel(ctx, modelID); err != nil {
		return nil, err
	}

	images, err := s.store.UnprocessedImages(ctx, batch.ID)
	if err != nil {
		return nil, err
	}

	dispatched := 0
	for _, img := range images {
		exists, err := s.objects.Exists(ctx, img.FileKey)
		if err != nil {
			s.log.Warn("existence check failed", "file_key", img.FileKey, "error", err)
			continue
		}
		if !exists {
			continue
		}

		claimed, err := s.store.ClaimForDispatch(ctx, img.ID)
		if err != nil {
			return nil, err
		}
		if !claimed {
			// Another Confirm already has this image in flight.
			continue
		}

		runID, err := s.dispatcher.DispatchDetect(ctx, pipeline.DetectRequest{
			FileKey: img.FileKey,
			ModelID: modelID,
		})
		if err != nil {
			// Free the claim so a later Confirm can retry the image.
			if markErr := s.store.MarkFailed(ctx, img.FileKey); markErr != nil {
				s.log.Error("failed to release claim", "file_key", img.FileKey, "error", markErr)
			}
			s.log.Error("dispatch failed", "file_key", img.FileKey, "error", err)
			continue
		}
		s.log.Info("inference job dispatched", "file_key", img.FileKey, "model_id", modelID, "run_id", runID)
		dispatched++
	}

	return &ConfirmResult{BatchID: batch.ID, ProcessedImages: dispatched}, nil
}
