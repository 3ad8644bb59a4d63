package storage

import (
	"context"

	"github.com/iudanet/gophsync/internal/models"
)

// ConflictStorage defines interface for conflicts parked for manual review
type ConflictStorage interface {
	// SaveConflict stores or replaces the open conflict of an entity
	SaveConflict(ctx context.Context, record *models.ConflictRecord) error

	// GetConflict returns the open conflict of an entity
	// Returns ErrConflictNotFound if there is none
	GetConflict(ctx context.Context, entityType, id string) (*models.ConflictRecord, error)

	// ListConflicts returns open conflicts of a type
	ListConflicts(ctx context.Context, entityType string) ([]*models.ConflictRecord, error)

	// DeleteConflict removes the open conflict of an entity
	DeleteConflict(ctx context.Context, entityType, id string) error
}

// LocalStore is everything the sync engine needs from the client database
type LocalStore interface {
	EntityStorage
	ChangeLogStorage
	MetadataStorage
	ConflictStorage
}
