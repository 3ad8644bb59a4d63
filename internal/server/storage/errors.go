package storage

import "errors"

// Common storage errors
var (
	// ErrEntityNotFound indicates that entity was not found in storage
	ErrEntityNotFound = errors.New("entity not found")

	// ErrInvalidEntity indicates that uploaded entity breaks the model invariants
	ErrInvalidEntity = errors.New("invalid entity")
)
