package storage

import (
	"context"

	"github.com/iudanet/gophsync/internal/models"
)

// MetadataStorage defines interface for storing client sync metadata
type MetadataStorage interface {
	// SaveCheckpoint saves the watermark of the last successful sync pass for a type
	SaveCheckpoint(ctx context.Context, checkpoint models.SyncCheckpoint) error

	// GetCheckpoint retrieves the watermark for a type
	// Returns a zero LastSyncedAt if no sync has been performed yet
	GetCheckpoint(ctx context.Context, entityType string) (models.SyncCheckpoint, error)

	// OriginID returns the identifier of this replica, creating it on first use
	OriginID(ctx context.Context) (string, error)
}
