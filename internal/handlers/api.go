// Package handlers exposes the synchronous HTTP surface of the pipeline.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Artem468/hakaton-ml-lep/internal/cleanup"
	"github.com/Artem468/hakaton-ml-lep/internal/keygen"
	"github.com/Artem468/hakaton-ml-lep/internal/model"
	"github.com/Artem468/hakaton-ml-lep/internal/storage"
	"github.com/Artem468/hakaton-ml-lep/internal/store"
	"github.com/Artem468/hakaton-ml-lep/internal/upload"
)

// API bundles the dependencies of the HTTP handlers.
type API struct {
	upload        *upload.Service
	store         *store.Store
	cleanup       *cleanup.Coordinator
	objects       storage.ObjectStore
	presignExpiry time.Duration
	log           *slog.Logger
}

func NewAPI(uploadSvc *upload.Service, st *store.Store, cl *cleanup.Coordinator, objects storage.ObjectStore, presignExpiry time.Duration, log *slog.Logger) *API {
	return &API{
		upload:        uploadSvc,
		store:         st,
		cleanup:       cl,
		objects:       objects,
		presignExpiry: presignExpiry,
		log:           log,
	}
}

// Routes mounts all API endpoints on the router.
func (a *API) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/models", a.listModels)
		r.Route("/batches", func(r chi.Router) {
			r.Get("/", a.listBatches)
			r.Post("/init", a.initUpload)
			r.Post("/confirm", a.confirmUpload)
			r.Get("/stats", a.stats)
			r.Get("/status/{id}", a.batchStatus)
			r.Get("/{id}", a.batchDetail)
			r.Patch("/{id}", a.updateBatch)
			r.Delete("/{id}", a.deleteBatch)
		})
		r.Post("/images/delete", a.deleteImages)
	})
}

type initUploadRequest struct {
	BatchName *string            `json:"batch_name"`
	Files     []upload.FileInput `json:"files"`
}

func (a *API) initUpload(w http.ResponseWriter, r *http.Request) {
	var req initUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := a.upload.Init(r.Context(), req.BatchName, req.Files)
	if err != nil {
		a.mapError(w, err)
		return
	}
	a.json(w, http.StatusCreated, res)
}

type confirmUploadRequest struct {
	BatchID uint `json:"batch_id"`
	ModelID uint `json:"model_id"`
}

func (a *API) confirmUpload(w http.ResponseWriter, r *http.Request) {
	var req confirmUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := a.upload.Confirm(r.Context(), req.BatchID, req.ModelID)
	if err != nil {
		a.mapError(w, err)
		return
	}
	a.json(w, http.StatusOK, res)
}

type batchStatusResponse struct {
	ID               uint                   `json:"id"`
	Name             *string                `json:"name"`
	UploadedAt       time.Time              `json:"uploaded_at"`
	ProcessingStatus model.ProcessingStatus `json:"processing_status"`
}

func (a *API) batchStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r)
	if !ok {
		return
	}
	batch, err := a.store.GetBatch(r.Context(), id)
	if err != nil {
		a.mapError(w, err)
		return
	}
	total, processed, err := a.store.BatchCounts(r.Context(), batch.ID)
	if err != nil {
		a.mapError(w, err)
		return
	}

	a.json(w, http.StatusOK, batchStatusResponse{
		ID:               batch.ID,
		Name:             batch.Name,
		UploadedAt:       batch.UploadedAt,
		ProcessingStatus: model.DeriveStatus(batch.Reviewed, total, processed),
	})
}

func (a *API) stats(w http.ResponseWriter, r *http.Request) {
	total, processed, err := a.store.GlobalCounts(r.Context())
	if err != nil {
		a.mapError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]int64{
		"total":         total,
		"processed":     processed,
		"not_processed": total - processed,
	})
}

type batchListItem struct {
	ID               uint                  `json:"id"`
	Name             *string               `json:"name"`
	UploadedAt       time.Time             `json:"uploaded_at"`
	PhotoCount       int                   `json:"photo_count"`
	DetectionResults []model.DetectionList `json:"detection_results"`
}

func (a *API) listBatches(w http.ResponseWriter, r *http.Request) {
	batches, err := a.store.ListBatches(r.Context())
	if err != nil {
		a.mapError(w, err)
		return
	}

	items := make([]batchListItem, 0, len(batches))
	for _, b := range batches {
		item := batchListItem{
			ID:               b.ID,
			Name:             b.Name,
			UploadedAt:       b.UploadedAt,
			PhotoCount:       len(b.Images),
			DetectionResults: []model.DetectionList{},
		}
		for _, img := range b.Images {
			if img.DetectionResult != nil {
				item.DetectionResults = append(item.DetectionResults, img.DetectionResult)
			}
		}
		items = append(items, item)
	}
	a.json(w, http.StatusOK, items)
}

func (a *API) batchDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r)
	if !ok {
		return
	}
	if _, err := a.store.GetBatch(r.Context(), id); err != nil {
		a.mapError(w, err)
		return
	}
	images, err := a.store.ImagesForBatch(r.Context(), id)
	if err != nil {
		a.mapError(w, err)
		return
	}
	a.json(w, http.StatusOK, images)
}

func (a *API) listModels(w http.ResponseWriter, r *http.Request) {
	models, err := a.store.ListModels(r.Context())
	if err != nil {
		a.mapError(w, err)
		return
	}
	type item struct {
		ID   uint   `json:"id"`
		Name string `json:"name"`
	}
	items := make([]item, 0, len(models))
	for _, m := range models {
		items = append(items, item{ID: m.ID, Name: m.Name})
	}
	a.json(w, http.StatusOK, items)
}

type updateBatchRequest struct {
	Name           *string  `json:"name"`
	Reviewed       *bool    `json:"reviewed"`
	UploadRequests []string `json:"upload_requests"`
}

// updateBatch renames a batch and/or sets the reviewed flag. Extra filenames
// in upload_requests get fresh keys and presigned URLs for late additions.
func (a *API) updateBatch(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r)
	if !ok {
		return
	}
	var req updateBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	batch, err := a.store.UpdateBatch(r.Context(), id, req.Name, req.Reviewed)
	if err != nil {
		a.mapError(w, err)
		return
	}

	presigned := map[string]string{}
	for _, filename := range req.UploadRequests {
		key := keygen.FileKey(batch.ID, filename)
		url, err := a.objects.PresignPut(r.Context(), key, a.presignExpiry)
		if err != nil {
			a.log.Warn("presign failed", "batch_id", batch.ID, "filename", filename, "error", err)
			continue
		}
		presigned[filename] = url
	}

	a.json(w, http.StatusOK, map[string]any{
		"id":             batch.ID,
		"name":           batch.Name,
		"reviewed":       batch.Reviewed,
		"presigned_urls": presigned,
	})
}

func (a *API) deleteBatch(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r)
	if !ok {
		return
	}
	keys, err := a.store.DeleteBatch(r.Context(), id)
	if err != nil {
		a.mapError(w, err)
		return
	}
	a.cleanup.Remove(r.Context(), keys)
	w.WriteHeader(http.StatusNoContent)
}

type deleteImagesRequest struct {
	IDs []uint `json:"ids"`
}

func (a *API) deleteImages(w http.ResponseWriter, r *http.Request) {
	var req deleteImagesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.IDs) == 0 {
		a.error(w, http.StatusBadRequest, "ids must not be empty")
		return
	}

	keys, err := a.store.DeleteImages(r.Context(), req.IDs)
	if err != nil {
		a.mapError(w, err)
		return
	}
	a.cleanup.Remove(r.Context(), keys)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) pathID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		a.error(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return uint(id), true
}

func (a *API) json(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.log.Error("write response", "error", err)
	}
}

func (a *API) error(w http.ResponseWriter, status int, detail string) {
	a.json(w, status, map[string]string{"detail": detail})
}

func (a *API) mapError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		a.error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, upload.ErrValidation):
		a.error(w, http.StatusBadRequest, err.Error())
	default:
		a.log.Error("request failed", "error", err)
		a.error(w, http.StatusInternalServerError, "internal error")
	}
}
