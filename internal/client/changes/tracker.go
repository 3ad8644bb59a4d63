// Package changes records every local mutation in the append-only change log.
package changes

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/iudanet/gophsync/internal/client/storage"
	"github.com/iudanet/gophsync/internal/models"
)

// Tracker appends ChangeRecords to the local change log. It never touches the
// entities themselves. Writers that must not log a change whose entity write
// lost a race build the record with NewRecord and commit both together.
type Tracker struct {
	store  storage.ChangeLogStorage
	meta   storage.MetadataStorage
	logger *slog.Logger
	now    func() time.Time
	origin string
	mu     sync.Mutex
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// NewTracker creates a change tracker on top of the change log storage.
// The replica origin id is read lazily from meta.
func NewTracker(store storage.ChangeLogStorage, meta storage.MetadataStorage, logger *slog.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		store:  store,
		meta:   meta,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// TrackCreate records the creation of an entity.
func (t *Tracker) TrackCreate(ctx context.Context, entityID, entityType string, newValues map[string]any) (*models.ChangeRecord, error) {
	return t.track(ctx, entityID, entityType, models.ChangeCreate, nil, newValues)
}

// TrackUpdate records an update of an entity.
func (t *Tracker) TrackUpdate(ctx context.Context, entityID, entityType string, oldValues, newValues map[string]any) (*models.ChangeRecord, error) {
	return t.track(ctx, entityID, entityType, models.ChangeUpdate, oldValues, newValues)
}

// TrackDelete records the tombstoning of an entity.
func (t *Tracker) TrackDelete(ctx context.Context, entityID, entityType string, oldValues map[string]any) (*models.ChangeRecord, error) {
	return t.track(ctx, entityID, entityType, models.ChangeDelete, oldValues, nil)
}

// GetChangesSince returns the records of a type written after since, in
// timestamp order with ties broken by insertion order.
func (t *Tracker) GetChangesSince(ctx context.Context, entityType string, since time.Time) ([]*models.ChangeRecord, error) {
	records, err := t.store.GetChangesSince(ctx, entityType, since)
	if err != nil {
		return nil, models.NewStorageError("get changes", err)
	}
	return records, nil
}

// CleanupOlderThan drops acknowledged records older than before. Records of
// entities that are still pending are kept.
func (t *Tracker) CleanupOlderThan(ctx context.Context, entityType string, before time.Time) (int, error) {
	removed, err := t.store.DeleteChangesBefore(ctx, entityType, before)
	if err != nil {
		return 0, models.NewStorageError("cleanup changes", err)
	}
	if removed > 0 {
		t.logger.Debug("Change log cleaned up",
			"entity_type", entityType,
			"removed", removed,
			"before", before)
	}
	return removed, nil
}

// NewRecord builds a change record stamped with the tracker clock and replica
// origin without appending it. Sequence is assigned when the record is stored.
func (t *Tracker) NewRecord(
	ctx context.Context,
	entityID, entityType string,
	changeType models.ChangeType,
	oldValues, newValues map[string]any,
) (*models.ChangeRecord, error) {
	if entityID == "" || entityType == "" {
		return nil, fmt.Errorf("%w: change without entity id or type", models.ErrInvalidEntity)
	}

	origin, err := t.originID(ctx)
	if err != nil {
		return nil, err
	}

	now := t.now()
	record := &models.ChangeRecord{
		ID:         ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		EntityID:   entityID,
		EntityType: entityType,
		ChangeType: changeType,
		Timestamp:  now,
		OldValues:  models.CloneFields(oldValues),
		NewValues:  models.CloneFields(newValues),
		OriginID:   origin,
	}
	return record, nil
}

func (t *Tracker) track(
	ctx context.Context,
	entityID, entityType string,
	changeType models.ChangeType,
	oldValues, newValues map[string]any,
) (*models.ChangeRecord, error) {
	record, err := t.NewRecord(ctx, entityID, entityType, changeType, oldValues, newValues)
	if err != nil {
		return nil, err
	}

	if err := t.store.AppendChange(ctx, record); err != nil {
		t.logger.Error("Failed to append change",
			"entity_type", entityType,
			"entity_id", entityID,
			"change_type", changeType,
			"error", err)
		return nil, models.NewStorageError("append change", err)
	}

	t.logger.Debug("Change tracked",
		"entity_type", entityType,
		"entity_id", entityID,
		"change_type", changeType,
		"sequence", record.Sequence)

	return record, nil
}

func (t *Tracker) originID(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.origin != "" {
		return t.origin, nil
	}
	origin, err := t.meta.OriginID(ctx)
	if err != nil {
		return "", models.NewStorageError("get origin id", err)
	}
	t.origin = origin
	return origin, nil
}
