package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"github.com/iudanet/gophsync/internal/client/storage"
	"github.com/iudanet/gophsync/internal/models"
)

const (
	keyCheckpointPrefix = "checkpoint:"
	keyOriginID         = "origin_id"
)

// SaveCheckpoint saves the sync watermark of an entity type
func (s *Storage) SaveCheckpoint(ctx context.Context, checkpoint models.SyncCheckpoint) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMetadata)
		if bucket == nil {
			return fmt.Errorf("metadata bucket not found")
		}

		if err := putJSON(bucket, []byte(keyCheckpointPrefix+checkpoint.EntityType), checkpoint); err != nil {
			return fmt.Errorf("failed to save checkpoint: %w", err)
		}
		return nil
	})
}

// GetCheckpoint retrieves the sync watermark of an entity type
// Returns a zero LastSyncedAt if no sync has been performed yet
func (s *Storage) GetCheckpoint(ctx context.Context, entityType string) (models.SyncCheckpoint, error) {
	checkpoint := models.SyncCheckpoint{EntityType: entityType}
	if s.db == nil {
		return checkpoint, storage.ErrStorageClosed
	}

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMetadata)
		if bucket == nil {
			return fmt.Errorf("metadata bucket not found")
		}

		data := bucket.Get([]byte(keyCheckpointPrefix + entityType))
		if data == nil {
			// Первая синхронизация
			return nil
		}
		return json.Unmarshal(data, &checkpoint)
	})

	if err != nil {
		return checkpoint, fmt.Errorf("failed to get checkpoint: %w", err)
	}

	return checkpoint, nil
}

// OriginID returns the replica identifier, generating a UUID on first use
func (s *Storage) OriginID(ctx context.Context) (string, error) {
	if s.db == nil {
		return "", storage.ErrStorageClosed
	}

	var originID string

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMetadata)
		if bucket == nil {
			return fmt.Errorf("metadata bucket not found")
		}

		if data := bucket.Get([]byte(keyOriginID)); data != nil {
			originID = string(data)
			return nil
		}

		originID = uuid.New().String()
		return bucket.Put([]byte(keyOriginID), []byte(originID))
	})

	if err != nil {
		return "", fmt.Errorf("failed to get origin id: %w", err)
	}

	return originID, nil
}
