package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/gophsync/internal/client/storage"
	"github.com/iudanet/gophsync/internal/models"
)

// GetEntity retrieves an entity by type and ID
func (s *Storage) GetEntity(ctx context.Context, entityType, id string) (*models.SyncableEntity, error) {
	return s.getFrom(bucketEntities, entityType, id)
}

// GetBase retrieves the last acknowledged state of an entity
func (s *Storage) GetBase(ctx context.Context, entityType, id string) (*models.SyncableEntity, error) {
	return s.getFrom(bucketBases, entityType, id)
}

func (s *Storage) getFrom(root []byte, entityType, id string) (*models.SyncableEntity, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var entity *models.SyncableEntity

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket, err := typeBucket(tx, root, entityType)
		if err != nil {
			return err
		}
		if bucket == nil {
			return storage.ErrEntityNotFound
		}

		data := bucket.Get([]byte(id))
		if data == nil {
			return storage.ErrEntityNotFound
		}

		// Десериализуем
		entity = &models.SyncableEntity{}
		if err := json.Unmarshal(data, entity); err != nil {
			return fmt.Errorf("failed to unmarshal entity: %w", err)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	return entity, nil
}

// UpsertEntity stores or replaces an entity, optionally together with its base
func (s *Storage) UpsertEntity(ctx context.Context, entity *models.SyncableEntity, base *models.SyncableEntity) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}
	if err := entity.Validate(); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := putEntity(tx, bucketEntities, entity); err != nil {
			return err
		}
		if base != nil {
			return putEntity(tx, bucketBases, base)
		}
		return nil
	})

	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}

	return nil
}

// UpsertEntityIfVersion stores an entity only if the stored version equals expected
func (s *Storage) UpsertEntityIfVersion(ctx context.Context, entity *models.SyncableEntity, base *models.SyncableEntity, expected int64) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}
	if err := entity.Validate(); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := checkVersion(tx, entity, expected); err != nil {
			return err
		}
		if err := putEntity(tx, bucketEntities, entity); err != nil {
			return err
		}
		if base != nil {
			return putEntity(tx, bucketBases, base)
		}
		return nil
	})

	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}

	return nil
}

// CommitChange stores a local edit and its change record in one transaction
func (s *Storage) CommitChange(ctx context.Context, entity *models.SyncableEntity, expected int64, record *models.ChangeRecord) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}
	if err := entity.Validate(); err != nil {
		return err
	}

	var seq uint64
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := checkVersion(tx, entity, expected); err != nil {
			return err
		}
		if err := putEntity(tx, bucketEntities, entity); err != nil {
			return err
		}
		var err error
		seq, err = appendChange(tx, record)
		return err
	})

	if err != nil {
		return fmt.Errorf("commit change transaction failed: %w", err)
	}

	// Sequence выставляем только после commit
	record.Sequence = seq
	return nil
}

// checkVersion сравнивает сохраненную версию с ожидаемой (0 - записи нет)
func checkVersion(tx *bbolt.Tx, entity *models.SyncableEntity, expected int64) error {
	bucket, err := typeBucket(tx, bucketEntities, entity.EntityType)
	if err != nil {
		return err
	}

	var stored int64
	if data := bucket.Get([]byte(entity.ID)); data != nil {
		var current models.SyncableEntity
		if err := json.Unmarshal(data, &current); err != nil {
			return fmt.Errorf("failed to unmarshal entity %s: %w", entity.ID, err)
		}
		stored = current.Version
	}
	if stored != expected {
		return fmt.Errorf("%w: %s/%s stored %d, expected %d",
			storage.ErrVersionMismatch, entity.EntityType, entity.ID, stored, expected)
	}
	return nil
}

func putEntity(tx *bbolt.Tx, root []byte, entity *models.SyncableEntity) error {
	bucket, err := typeBucket(tx, root, entity.EntityType)
	if err != nil {
		return err
	}
	// Сохраняем по ключу ID
	if err := putJSON(bucket, []byte(entity.ID), entity); err != nil {
		return fmt.Errorf("failed to save entity %s: %w", entity.ID, err)
	}
	return nil
}

// ListEntities returns all entities of a type
func (s *Storage) ListEntities(ctx context.Context, entityType string, includeDeleted bool) ([]*models.SyncableEntity, error) {
	entities, err := s.scanEntities(entityType, func(e *models.SyncableEntity) bool {
		return includeDeleted || !e.IsDeleted
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	return entities, nil
}

// GetPendingEntities returns entities of a type with unsynced local changes
func (s *Storage) GetPendingEntities(ctx context.Context, entityType string) ([]*models.SyncableEntity, error) {
	entities, err := s.scanEntities(entityType, func(e *models.SyncableEntity) bool {
		return e.IsPendingSync
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get pending entities: %w", err)
	}
	return entities, nil
}

func (s *Storage) scanEntities(entityType string, keep func(*models.SyncableEntity) bool) ([]*models.SyncableEntity, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var entities []*models.SyncableEntity

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket, err := typeBucket(tx, bucketEntities, entityType)
		if err != nil {
			return err
		}
		if bucket == nil {
			// Нет bucket - возвращаем пустой массив
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			var entity models.SyncableEntity
			if err := json.Unmarshal(v, &entity); err != nil {
				return fmt.Errorf("failed to unmarshal entity %s: %w", k, err)
			}
			if keep(&entity) {
				entities = append(entities, &entity)
			}
			return nil
		})
	})

	return entities, err
}

// MarkSynced marks uploaded entities as acknowledged in one transaction
func (s *Storage) MarkSynced(ctx context.Context, entityType string, uploaded []*models.SyncableEntity) (int, error) {
	if s.db == nil {
		return 0, storage.ErrStorageClosed
	}

	cleared := 0

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := typeBucket(tx, bucketEntities, entityType)
		if err != nil {
			return err
		}

		for _, sent := range uploaded {
			data := bucket.Get([]byte(sent.ID))
			if data == nil {
				continue
			}
			var current models.SyncableEntity
			if err := json.Unmarshal(data, &current); err != nil {
				return fmt.Errorf("failed to unmarshal entity %s: %w", sent.ID, err)
			}

			base := sent.Clone()
			base.MarkSynced()

			switch {
			case current.Version == sent.Version:
				current.MarkSynced()
				cleared++
			case current.Version > sent.Version:
				// Запись изменилась локально во время синхронизации - остается pending
				current.BaseVersion = sent.Version
			default:
				continue
			}

			if err := putEntity(tx, bucketEntities, &current); err != nil {
				return err
			}
			if err := putEntity(tx, bucketBases, base); err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		return 0, fmt.Errorf("mark synced transaction failed: %w", err)
	}

	return cleared, nil
}
