package models

import (
	"sort"
	"time"
)

// ChangeType is the kind of local mutation captured by a ChangeRecord.
type ChangeType string

// ChangeType константы
const (
	ChangeCreate ChangeType = "create"
	ChangeUpdate ChangeType = "update"
	ChangeDelete ChangeType = "delete"
)

// PendingOperation returns the pending operation a change of this type puts an entity into.
func (c ChangeType) PendingOperation() PendingOperation {
	switch c {
	case ChangeCreate:
		return PendingCreate
	case ChangeDelete:
		return PendingDelete
	default:
		return PendingUpdate
	}
}

// ChangeRecord представляет неизменяемую запись журнала локальных изменений.
// Записи только добавляются; порядок внутри типа задается Timestamp, при равенстве Sequence.
type ChangeRecord struct {
	Timestamp  time.Time      `json:"timestamp"`            // Timestamp время изменения на этом устройстве
	OldValues  map[string]any `json:"old_values,omitempty"` // OldValues значения полей до изменения
	NewValues  map[string]any `json:"new_values,omitempty"` // NewValues значения полей после изменения
	ID         string         `json:"id"`                   // ID ULID записи журнала
	EntityID   string         `json:"entity_id"`            // EntityID идентификатор измененной записи
	EntityType string         `json:"entity_type"`          // EntityType тип измененной записи
	ChangeType ChangeType     `json:"change_type"`          // ChangeType create / update / delete
	OriginID   string         `json:"origin_id"`            // OriginID реплика, создавшая изменение
	Sequence   uint64         `json:"sequence"`             // Sequence порядковый номер вставки внутри типа
}

// SortChangeRecords orders records by timestamp, breaking ties by insertion sequence.
func SortChangeRecords(records []*ChangeRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].Timestamp.Equal(records[j].Timestamp) {
			return records[i].Timestamp.Before(records[j].Timestamp)
		}
		return records[i].Sequence < records[j].Sequence
	})
}

// SyncCheckpoint is the per entity type watermark of the last fully processed remote cursor.
type SyncCheckpoint struct {
	LastSyncedAt time.Time `json:"last_synced_at"`
	EntityType   string    `json:"entity_type"`
}

// Advance returns the checkpoint moved to t, never moving it backwards.
func (c SyncCheckpoint) Advance(t time.Time) SyncCheckpoint {
	if t.After(c.LastSyncedAt) {
		c.LastSyncedAt = t
	}
	return c
}
