package storage

import (
	"context"

	"github.com/iudanet/gophsync/internal/models"
)

// EntityStorage defines interface for storing syncable entities on client.
// Every entity write, local or sync-driven, goes through UpsertEntity or MarkSynced.
type EntityStorage interface {
	// GetEntity retrieves an entity (tombstones included)
	// Returns ErrEntityNotFound if entity doesn't exist
	GetEntity(ctx context.Context, entityType, id string) (*models.SyncableEntity, error)

	// UpsertEntity stores or replaces an entity.
	// If base is not nil it is stored as the entity's last acknowledged state
	// in the same transaction.
	UpsertEntity(ctx context.Context, entity *models.SyncableEntity, base *models.SyncableEntity) error

	// UpsertEntityIfVersion is UpsertEntity guarded by the stored version:
	// the write happens only if the stored entity has version expected, or
	// does not exist when expected is 0. Returns ErrVersionMismatch otherwise.
	UpsertEntityIfVersion(ctx context.Context, entity *models.SyncableEntity, base *models.SyncableEntity, expected int64) error

	// ListEntities returns all entities of a type
	ListEntities(ctx context.Context, entityType string, includeDeleted bool) ([]*models.SyncableEntity, error)

	// GetPendingEntities returns entities of a type with unsynced local changes
	GetPendingEntities(ctx context.Context, entityType string) ([]*models.SyncableEntity, error)

	// GetBase returns the last acknowledged state of an entity, the common
	// ancestor for three-way merges.
	// Returns ErrEntityNotFound if the entity was never synced
	GetBase(ctx context.Context, entityType, id string) (*models.SyncableEntity, error)

	// MarkSynced marks uploaded entities as acknowledged in one transaction.
	// An entity whose stored version moved past the uploaded one stays pending,
	// only its base is advanced. Returns the number of entities cleared.
	MarkSynced(ctx context.Context, entityType string, uploaded []*models.SyncableEntity) (int, error)
}

// WriteStore is the view of the store used by the local write path: entity
// reads plus entity writes that land together with their change record.
type WriteStore interface {
	EntityStorage

	// CommitChange stores entity guarded by the stored version like
	// UpsertEntityIfVersion and appends record in the same transaction.
	// On ErrVersionMismatch neither the entity nor the record is written.
	CommitChange(ctx context.Context, entity *models.SyncableEntity, expected int64, record *models.ChangeRecord) error
}
