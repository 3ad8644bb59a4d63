package boltdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"github.com/iudanet/gophsync/internal/models"
)

func TestStorage_Checkpoint(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	// Изначально, если checkpoint не сохранён, ожидаем нулевое время
	cp, err := store.GetCheckpoint(ctx, "note")
	require.NoError(t, err)
	assert.Equal(t, "note", cp.EntityType)
	assert.True(t, cp.LastSyncedAt.IsZero())

	require.NoError(t, store.SaveCheckpoint(ctx, models.SyncCheckpoint{EntityType: "note", LastSyncedAt: baseTime}))

	cp, err = store.GetCheckpoint(ctx, "note")
	require.NoError(t, err)
	assert.True(t, cp.LastSyncedAt.Equal(baseTime))

	// Checkpoint хранится отдельно для каждого типа
	cp, err = store.GetCheckpoint(ctx, "task")
	require.NoError(t, err)
	assert.True(t, cp.LastSyncedAt.IsZero())
}

func TestStorage_Checkpoint_BucketMissing(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	// Удаляем bucket metadata напрямую
	err := store.db.Update(func(tx *bbolt.Tx) error {
		return tx.DeleteBucket(bucketMetadata)
	})
	require.NoError(t, err)

	_, err = store.GetCheckpoint(ctx, "note")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metadata bucket not found")

	err = store.SaveCheckpoint(ctx, models.SyncCheckpoint{EntityType: "note", LastSyncedAt: baseTime})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metadata bucket not found")
}

func TestStorage_OriginID(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "origin.db")

	store, err := New(ctx, dbPath)
	require.NoError(t, err)

	first, err := store.OriginID(ctx)
	require.NoError(t, err)
	_, err = uuid.Parse(first)
	require.NoError(t, err)

	second, err := store.OriginID(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	require.NoError(t, store.Close())

	// Идентификатор реплики переживает перезапуск
	store, err = New(ctx, dbPath)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	reopened, err := store.OriginID(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, reopened)

	// Другая база - другая реплика
	other := newTestStorage(t)
	otherID, err := other.OriginID(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first, otherID)
}
