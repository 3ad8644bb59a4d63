package models

import "time"

// FieldConflict describes a field that local and remote both changed from the
// common ancestor to different values.
type FieldConflict struct {
	BaseValue   any    `json:"base_value"`
	LocalValue  any    `json:"local_value"`
	RemoteValue any    `json:"remote_value"`
	Field       string `json:"field"`
}

// ConflictRecord is a divergence parked for manual review. It keeps both
// sides so the local edit can always be recovered.
type ConflictRecord struct {
	DetectedAt time.Time       `json:"detected_at"`
	Base       *SyncableEntity `json:"base,omitempty"`
	Local      *SyncableEntity `json:"local"`
	Remote     *SyncableEntity `json:"remote"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Conflicts  []FieldConflict `json:"conflicts"`
}

// UploadStatus is the per-item outcome reported by the remote for an uploaded entity.
type UploadStatus string

// UploadStatus константы
const (
	UploadApplied   UploadStatus = "applied"
	UploadDuplicate UploadStatus = "duplicate"
	UploadConflict  UploadStatus = "conflict"
	UploadRejected  UploadStatus = "rejected"
	UploadRetry     UploadStatus = "retry"
)

// Accepted reports whether the remote now holds the uploaded version.
func (s UploadStatus) Accepted() bool {
	return s == UploadApplied || s == UploadDuplicate
}

// UploadOutcome is the remote's answer for one uploaded entity.
// Current carries the remote's version when Status is UploadConflict.
type UploadOutcome struct {
	Current *SyncableEntity `json:"current,omitempty"`
	ID      string          `json:"id"`
	Status  UploadStatus    `json:"status"`
	Message string          `json:"message,omitempty"`
	Version int64           `json:"version"`
}

// RemoteChanges is a page of remote entities changed after a cursor.
type RemoteChanges struct {
	Cursor   time.Time         `json:"cursor"`
	Entities []*SyncableEntity `json:"entities"`
}
