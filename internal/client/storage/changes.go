package storage

import (
	"context"
	"time"

	"github.com/iudanet/gophsync/internal/models"
)

// ChangeLogStorage defines interface for the append-only change log
type ChangeLogStorage interface {
	// AppendChange appends a record and assigns its per-type Sequence
	AppendChange(ctx context.Context, record *models.ChangeRecord) error

	// GetChangesSince returns records of a type with Timestamp after since,
	// ordered by timestamp and then by sequence
	GetChangesSince(ctx context.Context, entityType string, since time.Time) ([]*models.ChangeRecord, error)

	// DeleteChangesBefore removes records older than before whose entity has no
	// pending local changes. Returns the number of removed records.
	DeleteChangesBefore(ctx context.Context, entityType string, before time.Time) (int, error)
}
