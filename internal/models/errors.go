package models

import (
	"errors"
	"fmt"
	"strings"
)

// NetworkError is a transient transport failure. The affected entities stay
// pending and the operation is retried with backoff.
type NetworkError struct {
	Err      error
	Op       string
	EntityID string
}

func (e *NetworkError) Error() string {
	return formatError("network error", e.Op, e.EntityID, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ValidationError is a permanent rejection of an entity by the remote. It is
// not retried automatically; the entity stays pending for manual intervention.
type ValidationError struct {
	Err      error
	Op       string
	EntityID string
	Reason   string
}

func (e *ValidationError) Error() string {
	if e.Reason != "" && e.Err == nil {
		return formatError("validation error", e.Op, e.EntityID, errors.New(e.Reason))
	}
	return formatError("validation error", e.Op, e.EntityID, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ConflictError signals that local and remote diverged. It routes the entity
// into the merge pipeline and is not a failure.
type ConflictError struct {
	EntityType string
	EntityID   string
	Conflicts  []FieldConflict
}

func (e *ConflictError) Error() string {
	fields := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		fields = append(fields, c.Field)
	}
	return fmt.Sprintf("conflict on %s/%s: [%s]", e.EntityType, e.EntityID, strings.Join(fields, ", "))
}

// StorageError is a local store failure. It is fatal to the current sync
// pass, which aborts without advancing its checkpoint.
type StorageError struct {
	Err error
	Op  string
}

func (e *StorageError) Error() string {
	return formatError("storage error", e.Op, "", e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// NewStorageError wraps err as a StorageError. A nil err stays nil and an
// existing StorageError is not wrapped twice.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// IsRetryable reports whether err is transient and worth retrying.
func IsRetryable(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// IsFatal reports whether err must abort a sync pass.
func IsFatal(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

func formatError(kind, op, entityID string, err error) string {
	var b strings.Builder
	b.WriteString(kind)
	if op != "" {
		b.WriteString(" during ")
		b.WriteString(op)
	}
	if entityID != "" {
		b.WriteString(" for ")
		b.WriteString(entityID)
	}
	if err != nil {
		b.WriteString(": ")
		b.WriteString(err.Error())
	}
	return b.String()
}
