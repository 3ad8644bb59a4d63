package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/iudanet/gophsync/internal/models"
	"github.com/iudanet/gophsync/internal/server/storage"
	"github.com/iudanet/gophsync/pkg/api"
)

const (
	// DefaultMaxBatchSize максимальное число записей в одном пакете
	DefaultMaxBatchSize = 500
	// DefaultChangesLimit максимальное число записей в ответе на запрос изменений
	DefaultChangesLimit = 1000
)

// SyncHandler handles synchronization requests
type SyncHandler struct {
	logger       *slog.Logger
	storage      storage.EntityStorage
	maxBatchSize int
	changesLimit int
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(logger *slog.Logger, storage storage.EntityStorage) *SyncHandler {
	return &SyncHandler{
		logger:       logger,
		storage:      storage,
		maxBatchSize: DefaultMaxBatchSize,
		changesLimit: DefaultChangesLimit,
	}
}

// SetMaxBatchSize задает предел записей в пакете; неположительное значение игнорируется
func (h *SyncHandler) SetMaxBatchSize(n int) {
	if n > 0 {
		h.maxBatchSize = n
	}
}

// UploadBatch обрабатывает POST /api/v1/sync/{type}/batch
// Каждая запись применяется независимо; результат возвращается по каждой записи
func (h *SyncHandler) UploadBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entityType := chi.URLParam(r, "type")

	var req api.UploadBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Failed to decode upload request", "error", err)
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Entities) > h.maxBatchSize {
		h.sendError(w, fmt.Sprintf("batch of %d exceeds limit %d", len(req.Entities), h.maxBatchSize), http.StatusRequestEntityTooLarge)
		return
	}

	originID := req.OriginID
	if originID == "" {
		originID = r.Header.Get(api.OriginHeader)
	}

	h.logger.Info("Upload batch request",
		"entity_type", entityType,
		"origin_id", originID,
		"entities_count", len(req.Entities))

	resp := api.UploadBatchResponse{Results: make([]api.UploadResult, 0, len(req.Entities))}
	counts := make(map[models.UploadStatus]int)

	for _, apiEntity := range req.Entities {
		entity := fromAPIEntity(apiEntity)
		if entity.EntityType == "" {
			entity.EntityType = entityType
		}

		var outcome models.UploadOutcome
		if entity.EntityType != entityType {
			outcome = models.UploadOutcome{
				ID:      entity.ID,
				Version: entity.Version,
				Status:  models.UploadRejected,
				Message: fmt.Sprintf("entity type %q does not match %q", entity.EntityType, entityType),
			}
		} else {
			var err error
			outcome, err = h.storage.ApplyEntity(ctx, entity, originID)
			if err != nil {
				// Сбой хранилища не отклоняет запись: клиент повторит отправку
				h.logger.Error("Failed to apply entity", "error", err, "entity_type", entityType, "entity_id", entity.ID)
				outcome = models.UploadOutcome{
					ID:      entity.ID,
					Version: entity.Version,
					Status:  models.UploadRetry,
					Message: "temporary storage failure",
				}
			}
		}

		counts[outcome.Status]++
		resp.Results = append(resp.Results, toUploadResult(outcome))
	}

	h.sendJSON(w, resp, http.StatusOK)

	h.logger.Info("Upload batch completed",
		"entity_type", entityType,
		"applied", counts[models.UploadApplied],
		"duplicates", counts[models.UploadDuplicate],
		"conflicts", counts[models.UploadConflict],
		"rejected", counts[models.UploadRejected],
		"retry", counts[models.UploadRetry])
}

// GetChanges обрабатывает GET /api/v1/sync/{type}/changes?since=RFC3339Nano&limit=N
// Возвращает записи, измененные строго после since, и курсор для следующего запроса
func (h *SyncHandler) GetChanges(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entityType := chi.URLParam(r, "type")

	var since time.Time
	if sinceStr := r.URL.Query().Get("since"); sinceStr != "" {
		var err error
		since, err = time.Parse(time.RFC3339Nano, sinceStr)
		if err != nil {
			h.logger.Warn("Invalid since parameter", "since", sinceStr, "error", err)
			h.sendError(w, "invalid since parameter", http.StatusBadRequest)
			return
		}
	}

	limit := h.changesLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil || n <= 0 {
			h.sendError(w, "invalid limit parameter", http.StatusBadRequest)
			return
		}
		limit = min(n, h.changesLimit)
	}

	changes, err := h.storage.GetChangesSince(ctx, entityType, since, limit)
	if err != nil {
		h.logger.Error("Failed to get changes", "error", err, "entity_type", entityType)
		h.sendError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	resp := api.ChangesResponse{
		Cursor:   changes.Cursor,
		Entities: make([]api.Entity, 0, len(changes.Entities)),
	}
	for _, e := range changes.Entities {
		resp.Entities = append(resp.Entities, toAPIEntity(e))
	}

	h.sendJSON(w, resp, http.StatusOK)

	h.logger.Debug("Get changes completed",
		"entity_type", entityType,
		"since", since,
		"entities_count", len(resp.Entities))
}

// sendJSON отправляет JSON ответ
func (h *SyncHandler) sendJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON response", slog.Any("error", err))
	}
}

// sendError отправляет JSON ответ с ошибкой
func (h *SyncHandler) sendError(w http.ResponseWriter, message string, statusCode int) {
	resp := api.ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	}
	h.sendJSON(w, resp, statusCode)
}

func fromAPIEntity(e api.Entity) *models.SyncableEntity {
	return &models.SyncableEntity{
		ID:           e.ID,
		EntityType:   e.EntityType,
		Version:      e.Version,
		BaseVersion:  e.BaseVersion,
		Fields:       e.Fields,
		IsDeleted:    e.Deleted,
		CreatedAt:    e.CreatedAt,
		LastModified: e.LastModified,
	}
}

func toAPIEntity(e *models.SyncableEntity) api.Entity {
	return api.Entity{
		ID:           e.ID,
		EntityType:   e.EntityType,
		Version:      e.Version,
		BaseVersion:  e.Version,
		Fields:       e.Fields,
		Deleted:      e.IsDeleted,
		CreatedAt:    e.CreatedAt,
		LastModified: e.LastModified,
	}
}

func toUploadResult(o models.UploadOutcome) api.UploadResult {
	result := api.UploadResult{
		ID:      o.ID,
		Status:  string(o.Status),
		Message: o.Message,
		Version: o.Version,
	}
	if o.Current != nil {
		current := toAPIEntity(o.Current)
		result.Current = &current
	}
	return result
}
