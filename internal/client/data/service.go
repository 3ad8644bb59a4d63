package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/gophsync/internal/client/changes"
	"github.com/iudanet/gophsync/internal/client/storage"
	"github.com/iudanet/gophsync/internal/models"
)

// maxWriteAttempts bounds retries when a sync pass rewrites the entity between read and write.
const maxWriteAttempts = 3

var (
	// ErrAlreadyExists is returned by Create for an id that is already taken
	ErrAlreadyExists = errors.New("entity already exists")

	// ErrWriteContention is returned when every write attempt lost the version race
	ErrWriteContention = errors.New("entity keeps changing, write abandoned")
)

// Service определяет интерфейс локальных операций с записями.
// Все локальные изменения проходят здесь: версия, LastModified и журнал изменений.
type Service interface {
	Create(ctx context.Context, entityType, id string, fields map[string]any) (*models.SyncableEntity, error)
	Update(ctx context.Context, entityType, id string, fields map[string]any) (*models.SyncableEntity, error)
	Delete(ctx context.Context, entityType, id string) (*models.SyncableEntity, error)
	Get(ctx context.Context, entityType, id string) (*models.SyncableEntity, error)
	List(ctx context.Context, entityType string) ([]*models.SyncableEntity, error)
}

// service handles client-side writes on top of the local store
type service struct {
	store   storage.WriteStore
	tracker *changes.Tracker
	now     func() time.Time
}

// NewService creates a new data service
func NewService(store storage.WriteStore, tracker *changes.Tracker) Service {
	return &service{
		store:   store,
		tracker: tracker,
		now:     time.Now,
	}
}

// Create adds a new entity. An empty id is replaced by a generated UUID.
func (s *service) Create(ctx context.Context, entityType, id string, fields map[string]any) (*models.SyncableEntity, error) {
	// Генерируем ID если не задан
	if id == "" {
		id = uuid.New().String()
	}

	normalized, err := normalizeFields(fields)
	if err != nil {
		return nil, err
	}

	_, err = s.store.GetEntity(ctx, entityType, id)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: %s/%s", ErrAlreadyExists, entityType, id)
	case !errors.Is(err, storage.ErrEntityNotFound):
		return nil, fmt.Errorf("failed to get entity: %w", err)
	}

	now := s.now()
	entity := &models.SyncableEntity{
		ID:           id,
		EntityType:   entityType,
		Version:      1,
		Fields:       normalized,
		CreatedAt:    now,
		LastModified: now,
	}
	entity.MarkPending(models.PendingCreate)

	record, err := s.tracker.NewRecord(ctx, id, entityType, models.ChangeCreate, nil, normalized)
	if err != nil {
		return nil, err
	}
	// Запись и журнал сохраняются одной транзакцией
	if err := s.store.CommitChange(ctx, entity, 0, record); err != nil {
		if errors.Is(err, storage.ErrVersionMismatch) {
			return nil, fmt.Errorf("%w: %s/%s", ErrAlreadyExists, entityType, id)
		}
		return nil, fmt.Errorf("failed to save entity: %w", err)
	}

	return entity, nil
}

// Update replaces the fields of a live entity
func (s *service) Update(ctx context.Context, entityType, id string, fields map[string]any) (*models.SyncableEntity, error) {
	normalized, err := normalizeFields(fields)
	if err != nil {
		return nil, err
	}

	return s.mutate(ctx, entityType, id, func(current, next *models.SyncableEntity) models.PendingOperation {
		next.Fields = models.CloneFields(normalized)
		if current.PendingOperation == models.PendingCreate {
			// Сервер еще не видел запись - это все еще создание
			return models.PendingCreate
		}
		return models.PendingUpdate
	})
}

// Delete tombstones an entity. All fields are kept until the deletion is acknowledged.
func (s *service) Delete(ctx context.Context, entityType, id string) (*models.SyncableEntity, error) {
	return s.mutate(ctx, entityType, id, func(_, next *models.SyncableEntity) models.PendingOperation {
		next.IsDeleted = true
		return models.PendingDelete
	})
}

// mutate applies change to a fresh copy of a live entity and stores it guarded
// by the version it was read at, retrying when a sync pass got there first.
// The change record is committed with the winning attempt only.
func (s *service) mutate(
	ctx context.Context,
	entityType, id string,
	change func(current, next *models.SyncableEntity) models.PendingOperation,
) (*models.SyncableEntity, error) {
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		current, err := s.Get(ctx, entityType, id)
		if err != nil {
			return nil, err
		}

		next := current.Clone()
		op := change(current, next)
		next.Version = current.Version + 1
		next.LastModified = s.now()
		next.MarkPending(op)

		record, err := s.changeRecord(ctx, current, next)
		if err != nil {
			return nil, err
		}

		err = s.store.CommitChange(ctx, next, current.Version, record)
		if errors.Is(err, storage.ErrVersionMismatch) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to save entity: %w", err)
		}
		return next, nil
	}

	return nil, fmt.Errorf("%w: %s/%s", ErrWriteContention, entityType, id)
}

// changeRecord описывает переход current -> next для журнала
func (s *service) changeRecord(ctx context.Context, current, next *models.SyncableEntity) (*models.ChangeRecord, error) {
	if next.IsDeleted {
		return s.tracker.NewRecord(ctx, next.ID, next.EntityType, models.ChangeDelete, current.Fields, nil)
	}
	return s.tracker.NewRecord(ctx, next.ID, next.EntityType, models.ChangeUpdate, current.Fields, next.Fields)
}

// Get returns a live entity; tombstones are reported as not found
func (s *service) Get(ctx context.Context, entityType, id string) (*models.SyncableEntity, error) {
	entity, err := s.store.GetEntity(ctx, entityType, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get entity: %w", err)
	}

	// Проверяем что не удалено
	if entity.IsDeleted {
		return nil, fmt.Errorf("failed to get entity: %w", storage.ErrEntityNotFound)
	}

	return entity, nil
}

// List returns live entities of a type
func (s *service) List(ctx context.Context, entityType string) ([]*models.SyncableEntity, error) {
	entities, err := s.store.ListEntities(ctx, entityType, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	return entities, nil
}

// normalizeFields round-trips fields through JSON so values have the same
// dynamic types they will have after a store or wire round trip.
func normalizeFields(fields map[string]any) (map[string]any, error) {
	if fields == nil {
		return map[string]any{}, nil
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal fields: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal fields: %w", err)
	}
	return out, nil
}
