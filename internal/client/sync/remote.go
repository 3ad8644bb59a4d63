package sync

import (
	"context"
	"time"

	"github.com/iudanet/gophsync/internal/models"
)

//go:generate moq -out remote_mock.go . RemoteDataSource

// RemoteDataSource is the remote authority the manager reconciles with.
// Both calls must be safe to repeat: the remote deduplicates uploads by id and version.
type RemoteDataSource interface {
	// UploadBatch sends pending entities and returns one outcome per entity.
	// An error means the whole batch failed and nothing is known about its items.
	UploadBatch(ctx context.Context, entityType string, entities []*models.SyncableEntity) ([]models.UploadOutcome, error)

	// GetChangesSince returns entities of a type changed after since.
	GetChangesSince(ctx context.Context, entityType string, since time.Time) (*models.RemoteChanges, error)
}
