package storage

import "errors"

// Common client storage errors
var (
	// ErrEntityNotFound indicates that entity was not found
	ErrEntityNotFound = errors.New("entity not found")

	// ErrConflictNotFound indicates that no open conflict exists for entity
	ErrConflictNotFound = errors.New("conflict not found")

	// ErrVersionMismatch indicates that the stored entity changed since it was read
	ErrVersionMismatch = errors.New("entity version mismatch")

	// ErrStorageClosed indicates that storage is closed
	ErrStorageClosed = errors.New("storage is closed")
)
