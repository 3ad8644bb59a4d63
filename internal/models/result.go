package models

import "time"

// SyncStatus is the terminal status of one sync pass.
type SyncStatus string

// SyncStatus константы
const (
	SyncStatusSuccess  SyncStatus = "success"
	SyncStatusError    SyncStatus = "error"
	SyncStatusConflict SyncStatus = "conflict"
)

// SyncResult aggregates the outcome of one sync pass over one entity type.
// Per-item failures are collected in Errors instead of aborting the pass.
type SyncResult struct {
	Timestamp       time.Time  `json:"timestamp"`
	Errors          []error    `json:"-"`
	EntityType      string     `json:"entity_type"`
	Status          SyncStatus `json:"status"`
	UploadedCount   int        `json:"uploaded_count"`
	DownloadedCount int        `json:"downloaded_count"`
	ConflictCount   int        `json:"conflict_count"`
}

// Finalize derives Status from the collected errors and conflicts.
func (r *SyncResult) Finalize() {
	switch {
	case len(r.Errors) > 0:
		r.Status = SyncStatusError
	case r.ConflictCount > 0:
		r.Status = SyncStatusConflict
	default:
		r.Status = SyncStatusSuccess
	}
}

// HasRetryableErrors reports whether any collected error is transient.
func (r *SyncResult) HasRetryableErrors() bool {
	for _, err := range r.Errors {
		if IsRetryable(err) {
			return true
		}
	}
	return false
}
