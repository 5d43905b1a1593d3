// Package store is the relational persistence layer for batches, images and
// model artifacts.
package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/Artem468/hakaton-ml-lep/internal/model"
)

// ErrNotFound is returned when a batch, image or model does not exist.
var ErrNotFound = errors.New("not found")

// Store wraps a gorm DB handle. All methods are safe for concurrent use.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the schema.
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&model.Batch{}, &model.Image{}, &model.AiModel{})
}

// Transaction runs fn inside a database transaction. The *Store passed to fn
// is scoped to that transaction; returning an error rolls everything back.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

func (s *Store) CreateBatch(ctx context.Context, batch *model.Batch) error {
	if err := s.db.WithContext(ctx).Create(batch).Error; err != nil {
		return fmt.Errorf("create batch: %w", err)
	}
	return nil
}

func (s *Store) CreateImage(ctx context.Context, img *model.Image) error {
	if err := s.db.WithContext(ctx).Create(img).Error; err != nil {
		return fmt.Errorf("create image: %w", err)
	}
	return nil
}

func (s *Store) CreateModel(ctx context.Context, m *model.AiModel) error {
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("create model: %w", err)
	}
	return nil
}

func (s *Store) GetBatch(ctx context.Context, id uint) (*model.Batch, error) {
	var batch model.Batch
	err := s.db.WithContext(ctx).First(&batch, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("batch %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get batch %d: %w", id, err)
	}
	return &batch, nil
}

func (s *Store) GetModel(ctx context.Context, id uint) (*model.AiModel, error) {
	var m model.AiModel
	err := s.db.WithContext(ctx).First(&m, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("model %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get model %d: %w", id, err)
	}
	return &m, nil
}

func (s *Store) GetImageByFileKey(ctx context.Context, fileKey string) (*model.Image, error) {
	var img model.Image
	err := s.db.WithContext(ctx).Where("file_key = ?", fileKey).First(&img).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("image %q: %w", fileKey, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get image %q: %w", fileKey, err)
	}
	return &img, nil
}

// UnprocessedImages returns the batch's images without a detection result.
// Failed images are included so a later Confirm retries them.
func (s *Store) UnprocessedImages(ctx context.Context, batchID uint) ([]model.Image, error) {
	var images []model.Image
	err := s.db.WithContext(ctx).
		Where("batch_id = ? AND detection_result IS NULL", batchID).
		Order("id").
		Find(&images).Error
	if err != nil {
		return nil, fmt.Errorf("list unprocessed images for batch %d: %w", batchID, err)
	}
	return images, nil
}

// ClaimForDispatch conditionally moves an image into the in-flight state.
// It reports false when the image is already in flight or done, which is what
// keeps two overlapping Confirm calls from dispatching the same image twice.
func (s *Store) ClaimForDispatch(ctx context.Context, imageID uint) (bool, error) {
	res := s.db.WithContext(ctx).Model(&model.Image{}).
		Where("id = ? AND state IN ?", imageID, []model.ImageState{model.StatePending, model.StateFailed}).
		Update("state", model.StateInFlight)
	if res.Error != nil {
		return false, fmt.Errorf("claim image %d: %w", imageID, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// CompleteImage persists a worker's output in a single update.
func (s *Store) CompleteImage(ctx context.Context, fileKey, previewKey, resultKey string, detections model.DetectionList, lat, lon *float64) error {
	if detections == nil {
		detections = model.DetectionList{}
	}
	updates := map[string]any{
		"preview":          previewKey,
		"result":           resultKey,
		"detection_result": detections,
		"state":            model.StateDone,
	}
	if lat != nil && lon != nil {
		updates["latitude"] = *lat
		updates["longitude"] = *lon
	}
	res := s.db.WithContext(ctx).Model(&model.Image{}).Where("file_key = ?", fileKey).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("complete image %q: %w", fileKey, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("complete image %q: %w", fileKey, ErrNotFound)
	}
	return nil
}

// MarkFailed records that a dispatched job errored. The detection result
// stays null, so the image remains eligible for a retried Confirm.
func (s *Store) MarkFailed(ctx context.Context, fileKey string) error {
	err := s.db.WithContext(ctx).Model(&model.Image{}).
		Where("file_key = ?", fileKey).
		Update("state", model.StateFailed).Error
	if err != nil {
		return fmt.Errorf("mark image %q failed: %w", fileKey, err)
	}
	return nil
}

// BatchCounts returns the total and processed image counts for one batch.
func (s *Store) BatchCounts(ctx context.Context, batchID uint) (total, processed int64, err error) {
	db := s.db.WithContext(ctx).Model(&model.Image{})
	if err = db.Where("batch_id = ?", batchID).Count(&total).Error; err != nil {
		return 0, 0, fmt.Errorf("count images for batch %d: %w", batchID, err)
	}
	err = s.db.WithContext(ctx).Model(&model.Image{}).
		Where("batch_id = ? AND detection_result IS NOT NULL", batchID).
		Count(&processed).Error
	if err != nil {
		return 0, 0, fmt.Errorf("count processed images for batch %d: %w", batchID, err)
	}
	return total, processed, nil
}

// GlobalCounts returns the total and processed image counts across all batches.
func (s *Store) GlobalCounts(ctx context.Context) (total, processed int64, err error) {
	if err = s.db.WithContext(ctx).Model(&model.Image{}).Count(&total).Error; err != nil {
		return 0, 0, fmt.Errorf("count images: %w", err)
	}
	err = s.db.WithContext(ctx).Model(&model.Image{}).
		Where("detection_result IS NOT NULL").
		Count(&processed).Error
	if err != nil {
		return 0, 0, fmt.Errorf("count processed images: %w", err)
	}
	return total, processed, nil
}

// ListBatches returns all batches with their images preloaded, newest first.
func (s *Store) ListBatches(ctx context.Context) ([]model.Batch, error) {
	var batches []model.Batch
	err := s.db.WithContext(ctx).Preload("Images").Order("uploaded_at DESC").Find(&batches).Error
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	return batches, nil
}

// ImagesForBatch returns a batch's images, newest first.
func (s *Store) ImagesForBatch(ctx context.Context, batchID uint) ([]model.Image, error) {
	var images []model.Image
	err := s.db.WithContext(ctx).Where("batch_id = ?", batchID).Order("id DESC").Find(&images).Error
	if err != nil {
		return nil, fmt.Errorf("list images for batch %d: %w", batchID, err)
	}
	return images, nil
}

// ListModels returns all model artifacts, newest first.
func (s *Store) ListModels(ctx context.Context) ([]model.AiModel, error) {
	var models []model.AiModel
	err := s.db.WithContext(ctx).Order("uploaded_at DESC").Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	return models, nil
}

// UpdateBatch applies partial updates to a batch.
func (s *Store) UpdateBatch(ctx context.Context, id uint, name *string, reviewed *bool) (*model.Batch, error) {
	batch, err := s.GetBatch(ctx, id)
	if err != nil {
		return nil, err
	}
	updates := map[string]any{}
	if name != nil {
		updates["name"] = *name
	}
	if reviewed != nil {
		updates["reviewed"] = *reviewed
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(batch).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("update batch %d: %w", id, err)
		}
	}
	return batch, nil
}

// DeleteBatch removes a batch and its images, returning every object store
// key the removed images referenced.
func (s *Store) DeleteBatch(ctx context.Context, id uint) ([]string, error) {
	var keys []string
	err := s.Transaction(ctx, func(tx *Store) error {
		if _, err := tx.GetBatch(ctx, id); err != nil {
			return err
		}
		images, err := tx.ImagesForBatch(ctx, id)
		if err != nil {
			return err
		}
		keys = objectKeys(images)
		if err := tx.db.Where("batch_id = ?", id).Delete(&model.Image{}).Error; err != nil {
			return fmt.Errorf("delete images for batch %d: %w", id, err)
		}
		if err := tx.db.Delete(&model.Batch{}, id).Error; err != nil {
			return fmt.Errorf("delete batch %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// DeleteImages removes images by id, returning their object store keys.
// ErrNotFound is returned when none of the ids matched.
func (s *Store) DeleteImages(ctx context.Context, ids []uint) ([]string, error) {
	var keys []string
	err := s.Transaction(ctx, func(tx *Store) error {
		var images []model.Image
		if err := tx.db.Where("id IN ?", ids).Find(&images).Error; err != nil {
			return fmt.Errorf("find images: %w", err)
		}
		if len(images) == 0 {
			return ErrNotFound
		}
		keys = objectKeys(images)
		if err := tx.db.Where("id IN ?", ids).Delete(&model.Image{}).Error; err != nil {
			return fmt.Errorf("delete images: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// objectKeys collects the non-null store keys of the given images.
func objectKeys(images []model.Image) []string {
	var keys []string
	for _, img := range images {
		if img.FileKey != "" {
			keys = append(keys, img.FileKey)
		}
		if img.Preview != nil && *img.Preview != "" {
			keys = append(keys, *img.Preview)
		}
		if img.Result != nil && *img.Result != "" {
			keys = append(keys, *img.Result)
		}
	}
	return keys
}
