package models

import (
	"errors"
	"fmt"
	"time"
)

// PendingOperation describes which local mutation is waiting to be acknowledged by the remote.
type PendingOperation string

// PendingOperation константы
const (
	PendingNone   PendingOperation = "none"
	PendingCreate PendingOperation = "create"
	PendingUpdate PendingOperation = "update"
	PendingDelete PendingOperation = "delete"
)

// ErrInvalidEntity is returned by Validate for entities that break the model invariants.
var ErrInvalidEntity = errors.New("invalid entity")

// SyncableEntity представляет запись, подлежащую синхронизации с удаленным хранилищем.
// Поля предметной области хранятся в Fields как структурно сравнимая карта field -> value.
type SyncableEntity struct {
	LastModified     time.Time        `json:"last_modified"`     // LastModified время последнего изменения (локального или примененного удаленного)
	CreatedAt        time.Time        `json:"created_at"`        // CreatedAt время создания записи
	Fields           map[string]any   `json:"fields"`            // Fields данные записи
	ID               string           `json:"id"`                // ID стабильный идентификатор в пределах типа
	EntityType       string           `json:"entity_type"`       // EntityType тип записи, например "note" или "task"
	PendingOperation PendingOperation `json:"pending_operation"` // PendingOperation ожидающая подтверждения операция
	Version          int64            `json:"version"`           // Version монотонно растущая версия записи
	BaseVersion      int64            `json:"base_version"`      // BaseVersion версия последнего подтвержденного состояния, от которого сделана локальная правка
	IsDeleted        bool             `json:"is_deleted"`        // IsDeleted флаг soft delete (tombstone)
	IsPendingSync    bool             `json:"is_pending_sync"`   // IsPendingSync есть неотправленные локальные изменения
}

// Validate checks the entity invariants: identity is set and
// IsPendingSync is true exactly when PendingOperation is not none.
func (e *SyncableEntity) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidEntity)
	}
	if e.EntityType == "" {
		return fmt.Errorf("%w: empty entity type for %s", ErrInvalidEntity, e.ID)
	}
	if e.Version < 0 {
		return fmt.Errorf("%w: negative version for %s", ErrInvalidEntity, e.ID)
	}
	op := e.PendingOperation
	if op == "" {
		op = PendingNone
	}
	switch op {
	case PendingNone, PendingCreate, PendingUpdate, PendingDelete:
	default:
		return fmt.Errorf("%w: unknown pending operation %q", ErrInvalidEntity, op)
	}
	if e.IsPendingSync != (op != PendingNone) {
		return fmt.Errorf("%w: pending flag %t does not match operation %q", ErrInvalidEntity, e.IsPendingSync, op)
	}
	return nil
}

// MarkPending sets the pending flag together with its operation so the two never disagree.
func (e *SyncableEntity) MarkPending(op PendingOperation) {
	if op == PendingNone || op == "" {
		e.MarkSynced()
		return
	}
	e.PendingOperation = op
	e.IsPendingSync = true
}

// MarkSynced clears pending state. The entity becomes its own base.
func (e *SyncableEntity) MarkSynced() {
	e.PendingOperation = PendingNone
	e.IsPendingSync = false
	e.BaseVersion = e.Version
}

// ModifiedAfter reports whether e was modified strictly after other.
func (e *SyncableEntity) ModifiedAfter(other *SyncableEntity) bool {
	return e.LastModified.After(other.LastModified)
}

// Clone создает глубокую копию записи, включая вложенные карты и списки в Fields
func (e *SyncableEntity) Clone() *SyncableEntity {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Fields = CloneFields(e.Fields)
	return &clone
}

// CloneFields returns a deep copy of a field map. Nil stays nil.
func CloneFields(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return CloneFields(val)
	case []any:
		out := make([]any, len(val))
		for i := range val {
			out[i] = cloneValue(val[i])
		}
		return out
	case []string:
		out := make([]string, len(val))
		copy(out, val)
		return out
	case []byte:
		out := make([]byte, len(val))
		copy(out, val)
		return out
	default:
		return v
	}
}
