package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/gophsync/internal/client/storage"
	"github.com/iudanet/gophsync/internal/models"
)

// SaveConflict stores or replaces the open conflict of an entity
func (s *Storage) SaveConflict(ctx context.Context, record *models.ConflictRecord) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := typeBucket(tx, bucketConflicts, record.EntityType)
		if err != nil {
			return err
		}
		return putJSON(bucket, []byte(record.EntityID), record)
	})

	if err != nil {
		return fmt.Errorf("save conflict transaction failed: %w", err)
	}

	return nil
}

// GetConflict returns the open conflict of an entity
func (s *Storage) GetConflict(ctx context.Context, entityType, id string) (*models.ConflictRecord, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var record *models.ConflictRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket, err := typeBucket(tx, bucketConflicts, entityType)
		if err != nil {
			return err
		}
		if bucket == nil {
			return storage.ErrConflictNotFound
		}

		data := bucket.Get([]byte(id))
		if data == nil {
			return storage.ErrConflictNotFound
		}

		record = &models.ConflictRecord{}
		if err := json.Unmarshal(data, record); err != nil {
			return fmt.Errorf("failed to unmarshal conflict: %w", err)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	return record, nil
}

// ListConflicts returns open conflicts of a type
func (s *Storage) ListConflicts(ctx context.Context, entityType string) ([]*models.ConflictRecord, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var records []*models.ConflictRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket, err := typeBucket(tx, bucketConflicts, entityType)
		if err != nil || bucket == nil {
			return err
		}

		return bucket.ForEach(func(k, v []byte) error {
			var record models.ConflictRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return fmt.Errorf("failed to unmarshal conflict %s: %w", k, err)
			}
			records = append(records, &record)
			return nil
		})
	})

	if err != nil {
		return nil, fmt.Errorf("failed to list conflicts: %w", err)
	}

	return records, nil
}

// DeleteConflict removes the open conflict of an entity
func (s *Storage) DeleteConflict(ctx context.Context, entityType, id string) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := typeBucket(tx, bucketConflicts, entityType)
		if err != nil {
			return err
		}
		return bucket.Delete([]byte(id))
	})

	if err != nil {
		return fmt.Errorf("delete conflict transaction failed: %w", err)
	}

	return nil
}
