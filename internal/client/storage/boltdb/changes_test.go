package boltdb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophsync/internal/client/storage"
	"github.com/iudanet/gophsync/internal/models"
)

func newChange(entityID string, at time.Time) *models.ChangeRecord {
	return &models.ChangeRecord{
		ID:         "change-" + entityID + "-" + at.Format("150405.000"),
		EntityID:   entityID,
		EntityType: "note",
		ChangeType: models.ChangeUpdate,
		Timestamp:  at,
		NewValues:  map[string]any{"title": "x"},
		OriginID:   "replica-1",
	}
}

func TestStorage_AppendChange_AssignsSequence(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	first := newChange("n1", baseTime)
	second := newChange("n2", baseTime)
	require.NoError(t, store.AppendChange(ctx, first))
	require.NoError(t, store.AppendChange(ctx, second))

	assert.Equal(t, uint64(1), first.Sequence)
	assert.Equal(t, uint64(2), second.Sequence)

	// Последовательность своя у каждого типа
	task := newChange("t1", baseTime)
	task.EntityType = "task"
	require.NoError(t, store.AppendChange(ctx, task))
	assert.Equal(t, uint64(1), task.Sequence)
}

func TestStorage_CommitChange(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	record := newChange("n1", baseTime)
	require.NoError(t, store.CommitChange(ctx, newEntity("n1", 1), 0, record))
	assert.Equal(t, uint64(1), record.Sequence)

	got, err := store.GetEntity(ctx, "note", "n1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)

	// Устаревшая ожидаемая версия: ни запись, ни изменение не сохраняются
	stale := newChange("n1", baseTime.Add(time.Minute))
	err = store.CommitChange(ctx, newEntity("n1", 2), 0, stale)
	assert.ErrorIs(t, err, storage.ErrVersionMismatch)
	assert.Zero(t, stale.Sequence)

	got, err = store.GetEntity(ctx, "note", "n1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)

	records, err := store.GetChangesSince(ctx, "note", zeroTime)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, record.ID, records[0].ID)

	// Невалидная запись отклоняется до транзакции
	invalid := newEntity("", 1)
	err = store.CommitChange(ctx, invalid, 0, newChange("n2", baseTime))
	assert.ErrorIs(t, err, models.ErrInvalidEntity)
}

func TestStorage_GetChangesSince(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	// Вставляем не по порядку времени; равные timestamps упорядочиваются по sequence
	require.NoError(t, store.AppendChange(ctx, newChange("late", baseTime.Add(2*time.Minute))))
	require.NoError(t, store.AppendChange(ctx, newChange("a", baseTime.Add(time.Minute))))
	require.NoError(t, store.AppendChange(ctx, newChange("b", baseTime.Add(time.Minute))))
	require.NoError(t, store.AppendChange(ctx, newChange("old", baseTime)))

	records, err := store.GetChangesSince(ctx, "note", zeroTime)
	require.NoError(t, err)
	assert.Equal(t, []string{"old", "a", "b", "late"}, entityIDs(records))

	// since исключается
	records, err = store.GetChangesSince(ctx, "note", baseTime)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "late"}, entityIDs(records))

	records, err = store.GetChangesSince(ctx, "task", zeroTime)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestStorage_DeleteChangesBefore(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	// n1 синхронизирована, n2 ожидает отправки
	synced := newEntity("n1", 1)
	synced.MarkSynced()
	require.NoError(t, store.UpsertEntity(ctx, synced, nil))
	require.NoError(t, store.UpsertEntity(ctx, newEntity("n2", 1), nil))

	require.NoError(t, store.AppendChange(ctx, newChange("n1", baseTime)))
	require.NoError(t, store.AppendChange(ctx, newChange("n2", baseTime)))
	require.NoError(t, store.AppendChange(ctx, newChange("n1", baseTime.Add(time.Hour))))
	// Запись о сущности, которой уже нет в хранилище
	require.NoError(t, store.AppendChange(ctx, newChange("gone", baseTime)))

	removed, err := store.DeleteChangesBefore(ctx, "note", baseTime.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	records, err := store.GetChangesSince(ctx, "note", zeroTime)
	require.NoError(t, err)
	assert.Equal(t, []string{"n2", "n1"}, entityIDs(records))

	// Повторный вызов ничего не удаляет
	removed, err = store.DeleteChangesBefore(ctx, "note", baseTime.Add(time.Minute))
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func entityIDs(records []*models.ChangeRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.EntityID)
	}
	return out
}
