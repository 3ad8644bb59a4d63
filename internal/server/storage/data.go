package storage

import (
	"context"
	"time"

	"github.com/iudanet/gophsync/internal/models"
)

// EntityStorage defines persistence of the authoritative entity copies
type EntityStorage interface {
	// ApplyEntity applies one uploaded entity with an optimistic version check.
	// The upload is applied when its BaseVersion equals the stored version,
	// acknowledged as duplicate when the stored copy already has the same
	// version and content, and reported as conflict (with the stored copy as
	// Current) otherwise. Deleted entities are stored as tombstones.
	ApplyEntity(ctx context.Context, entity *models.SyncableEntity, originID string) (models.UploadOutcome, error)

	// GetEntity retrieves a single entity, tombstones included.
	// Returns ErrEntityNotFound if entity doesn't exist
	GetEntity(ctx context.Context, entityType, id string) (*models.SyncableEntity, error)

	// GetChangesSince retrieves entities of a type (tombstones included) changed
	// strictly after since, oldest first, at most limit items. The returned
	// cursor is the change time of the last returned entity, or since when
	// nothing changed.
	GetChangesSince(ctx context.Context, entityType string, since time.Time, limit int) (*models.RemoteChanges, error)
}
