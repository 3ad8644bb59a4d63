package boltdb

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"github.com/iudanet/gophsync/internal/client/storage"
)

var allBuckets = [][]byte{bucketEntities, bucketBases, bucketChanges, bucketConflicts, bucketMetadata}

// newTestStorage создает временное хранилище для тестов
func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	store, err := New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestNew_Success(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "testdb.db")

	store, err := New(context.Background(), dbPath)
	require.NoError(t, err)
	require.NotNil(t, store)
	defer func() {
		require.NoError(t, store.Close())
	}()

	// Проверяем что файл БД действительно создан
	info, err := os.Stat(dbPath)
	require.NoError(t, err)
	assert.False(t, info.IsDir())

	// Проверяем, что бакеты существуют
	err = store.db.View(func(tx *bbolt.Tx) error {
		for _, b := range allBuckets {
			if tx.Bucket(b) == nil {
				return os.ErrNotExist
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestNew_InvalidPath(t *testing.T) {
	// Каталог не существует
	store, err := New(context.Background(), filepath.Join(t.TempDir(), "missing", "db.db"))
	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestClose(t *testing.T) {
	store, err := New(context.Background(), filepath.Join(t.TempDir(), "testdb.db"))
	require.NoError(t, err)

	require.NoError(t, store.Close())
	assert.Nil(t, store.db)

	// Второй вызов Close ничего не делает
	assert.NoError(t, store.Close())
}

func TestClosedStorage(t *testing.T) {
	ctx := context.Background()
	store, err := New(ctx, filepath.Join(t.TempDir(), "testdb.db"))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = store.GetEntity(ctx, "note", "n1")
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
	_, err = store.ListEntities(ctx, "note", true)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
	err = store.UpsertEntity(ctx, newEntity("n1", 1), nil)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
	_, err = store.MarkSynced(ctx, "note", nil)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
	_, err = store.GetChangesSince(ctx, "note", zeroTime)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
	_, err = store.GetConflict(ctx, "note", "n1")
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
	_, err = store.OriginID(ctx)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}

func TestInitBuckets_CreatesBuckets(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "testdb.db")

	// Открываем БД вручную без создания бакетов
	db, err := bbolt.Open(dbPath, 0600, nil)
	require.NoError(t, err)
	defer db.Close()

	store := &Storage{db: db}
	require.NoError(t, store.initBuckets())
	// Повторный вызов не ошибка
	require.NoError(t, store.initBuckets())

	err = db.View(func(tx *bbolt.Tx) error {
		for _, b := range allBuckets {
			if tx.Bucket(b) == nil {
				return os.ErrNotExist
			}
		}
		return nil
	})
	assert.NoError(t, err)
}
