package boltdb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/iudanet/gophsync/internal/client/storage"
)

var (
	// BoltDB bucket names. Entity, base, change and conflict buckets hold
	// one nested bucket per entity type.
	bucketEntities  = []byte("entities")
	bucketBases     = []byte("bases")
	bucketChanges   = []byte("changes")
	bucketConflicts = []byte("conflicts")
	bucketMetadata  = []byte("metadata")
)

// Storage represents BoltDB storage implementation for client
type Storage struct {
	db *bbolt.DB
}

var (
	_ storage.LocalStore = (*Storage)(nil)
	_ storage.WriteStore = (*Storage)(nil)
)

// New creates a new BoltDB storage instance
// dbPath is the path to the BoltDB database file
func New(ctx context.Context, dbPath string) (*Storage, error) {
	// Открываем BoltDB
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}

	storage := &Storage{db: db}

	// Инициализируем buckets
	if err := storage.initBuckets(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	return storage, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// initBuckets создает необходимые buckets если они не существуют
func (s *Storage) initBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketEntities, bucketBases, bucketChanges, bucketConflicts, bucketMetadata} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("failed to create %s bucket: %w", name, err)
			}
		}
		return nil
	})
}

// typeBucket returns the nested bucket of an entity type, creating it when
// the transaction is writable. Returns nil for a missing bucket in read-only
// transactions.
func typeBucket(tx *bbolt.Tx, root []byte, entityType string) (*bbolt.Bucket, error) {
	parent := tx.Bucket(root)
	if parent == nil {
		return nil, fmt.Errorf("%s bucket not found", root)
	}
	if !tx.Writable() {
		return parent.Bucket([]byte(entityType)), nil
	}
	bucket, err := parent.CreateBucketIfNotExists([]byte(entityType))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s/%s bucket: %w", root, entityType, err)
	}
	return bucket, nil
}

func putJSON(bucket *bbolt.Bucket, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return bucket.Put(key, data)
}
