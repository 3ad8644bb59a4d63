package boltdb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/iudanet/gophsync/internal/client/storage"
	"github.com/iudanet/gophsync/internal/models"
)

// AppendChange appends a change record; the key is the bucket sequence so
// iteration order equals insertion order
func (s *Storage) AppendChange(ctx context.Context, record *models.ChangeRecord) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	var seq uint64
	err := s.db.Update(func(tx *bbolt.Tx) error {
		var err error
		seq, err = appendChange(tx, record)
		return err
	})

	if err != nil {
		return fmt.Errorf("append change transaction failed: %w", err)
	}

	record.Sequence = seq
	return nil
}

// appendChange пишет запись под следующим номером последовательности типа
func appendChange(tx *bbolt.Tx, record *models.ChangeRecord) (uint64, error) {
	bucket, err := typeBucket(tx, bucketChanges, record.EntityType)
	if err != nil {
		return 0, err
	}

	seq, err := bucket.NextSequence()
	if err != nil {
		return 0, fmt.Errorf("failed to allocate sequence: %w", err)
	}

	stored := *record
	stored.Sequence = seq
	if err := putJSON(bucket, sequenceKey(seq), &stored); err != nil {
		return 0, err
	}
	return seq, nil
}

// GetChangesSince returns records of a type with Timestamp after since
func (s *Storage) GetChangesSince(ctx context.Context, entityType string, since time.Time) ([]*models.ChangeRecord, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var records []*models.ChangeRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket, err := typeBucket(tx, bucketChanges, entityType)
		if err != nil || bucket == nil {
			return err
		}

		return bucket.ForEach(func(k, v []byte) error {
			var record models.ChangeRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return fmt.Errorf("failed to unmarshal change %d: %w", binary.BigEndian.Uint64(k), err)
			}
			// Фильтруем по timestamp
			if record.Timestamp.After(since) {
				records = append(records, &record)
			}
			return nil
		})
	})

	if err != nil {
		return nil, fmt.Errorf("failed to get changes since %s: %w", since.Format(time.RFC3339Nano), err)
	}

	models.SortChangeRecords(records)
	return records, nil
}

// DeleteChangesBefore removes acknowledged records older than before
func (s *Storage) DeleteChangesBefore(ctx context.Context, entityType string, before time.Time) (int, error) {
	if s.db == nil {
		return 0, storage.ErrStorageClosed
	}

	removed := 0

	err := s.db.Update(func(tx *bbolt.Tx) error {
		changes, err := typeBucket(tx, bucketChanges, entityType)
		if err != nil {
			return err
		}
		entities, err := typeBucket(tx, bucketEntities, entityType)
		if err != nil {
			return err
		}

		var stale [][]byte
		err = changes.ForEach(func(k, v []byte) error {
			var record models.ChangeRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return fmt.Errorf("failed to unmarshal change: %w", err)
			}
			if !record.Timestamp.Before(before) {
				return nil
			}
			if pending, err := isPending(entities, record.EntityID); err != nil || pending {
				return err
			}
			// Нельзя удалять ключи во время ForEach - собираем их
			stale = append(stale, append([]byte(nil), k...))
			return nil
		})
		if err != nil {
			return err
		}

		for _, k := range stale {
			if err := changes.Delete(k); err != nil {
				return fmt.Errorf("failed to delete change: %w", err)
			}
			removed++
		}
		return nil
	})

	if err != nil {
		return 0, fmt.Errorf("cleanup transaction failed: %w", err)
	}

	return removed, nil
}

func isPending(entities *bbolt.Bucket, id string) (bool, error) {
	data := entities.Get([]byte(id))
	if data == nil {
		return false, nil
	}
	var entity models.SyncableEntity
	if err := json.Unmarshal(data, &entity); err != nil {
		return false, fmt.Errorf("failed to unmarshal entity %s: %w", id, err)
	}
	return entity.IsPendingSync, nil
}

func sequenceKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
