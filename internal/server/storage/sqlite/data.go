package sqlite

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/iudanet/gophsync/internal/models"
	"github.com/iudanet/gophsync/internal/server/storage"
)

// queryer общий интерфейс *sql.DB и *sql.Tx для чтения одной строки
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const selectEntity = `
	SELECT entity_type, id, version, fields, fingerprint, deleted,
	       created_at, last_modified, changed_at
	FROM entities
`

// ApplyEntity applies one uploaded entity with an optimistic version check
func (s *Storage) ApplyEntity(ctx context.Context, entity *models.SyncableEntity, originID string) (models.UploadOutcome, error) {
	outcome := models.UploadOutcome{ID: entity.ID, Version: entity.Version}

	if err := validateUpload(entity); err != nil {
		outcome.Status = models.UploadRejected
		outcome.Message = err.Error()
		return outcome, nil
	}

	fields, fingerprint, err := encodeContent(entity)
	if err != nil {
		outcome.Status = models.UploadRejected
		outcome.Message = err.Error()
		return outcome, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return outcome, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	existing, existingFingerprint, err := getEntity(ctx, tx, entity.EntityType, entity.ID)
	switch {
	case errors.Is(err, storage.ErrEntityNotFound):
		existing = nil
	case err != nil:
		return outcome, err
	}

	switch {
	case existing == nil:
		// Новая запись принимается независимо от BaseVersion
		query := `
			INSERT INTO entities (
				entity_type, id, version, fields, fingerprint, deleted,
				origin_id, created_at, last_modified, changed_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err = tx.ExecContext(ctx, query,
			entity.EntityType,
			entity.ID,
			entity.Version,
			fields,
			fingerprint,
			boolToInt(entity.IsDeleted),
			originID,
			timeToUnix(entity.CreatedAt),
			timeToUnix(entity.LastModified),
			s.nextChangeTime(),
		)
		if err != nil {
			return outcome, fmt.Errorf("failed to insert entity: %w", err)
		}

	case existing.Version == entity.Version && existingFingerprint == fingerprint:
		// Повторная отправка уже примененной версии
		outcome.Status = models.UploadDuplicate
		return outcome, nil

	case entity.BaseVersion == existing.Version && entity.Version > existing.Version:
		query := `
			UPDATE entities
			SET version = ?, fields = ?, fingerprint = ?, deleted = ?,
			    origin_id = ?, last_modified = ?, changed_at = ?
			WHERE entity_type = ? AND id = ?
		`
		_, err = tx.ExecContext(ctx, query,
			entity.Version,
			fields,
			fingerprint,
			boolToInt(entity.IsDeleted),
			originID,
			timeToUnix(entity.LastModified),
			s.nextChangeTime(),
			entity.EntityType,
			entity.ID,
		)
		if err != nil {
			return outcome, fmt.Errorf("failed to update entity: %w", err)
		}

	default:
		outcome.Status = models.UploadConflict
		outcome.Message = fmt.Sprintf("base version %d does not match stored version %d", entity.BaseVersion, existing.Version)
		outcome.Current = existing
		return outcome, nil
	}

	if err := tx.Commit(); err != nil {
		return outcome, fmt.Errorf("failed to commit transaction: %w", err)
	}

	outcome.Status = models.UploadApplied
	return outcome, nil
}

// GetEntity retrieves a single entity, tombstones included
// Returns ErrEntityNotFound if entity doesn't exist
func (s *Storage) GetEntity(ctx context.Context, entityType, id string) (*models.SyncableEntity, error) {
	entity, _, err := getEntity(ctx, s.db, entityType, id)
	return entity, err
}

// GetChangesSince retrieves entities changed strictly after since, oldest first.
// The cursor is the changed_at of the last returned row, or the server change
// clock when nothing is returned, so an empty read never hands back a client time.
func (s *Storage) GetChangesSince(ctx context.Context, entityType string, since time.Time, limit int) (changes *models.RemoteChanges, err error) {
	query := selectEntity + `
		WHERE entity_type = ? AND changed_at > ?
		ORDER BY changed_at ASC
		LIMIT ?
	`
	if limit <= 0 {
		limit = -1 // без ограничения
	}

	// Водяной знак берется до запроса: одно соединение сериализует транзакции,
	// поэтому все изменения с отметкой не больше него уже видны запросу
	cursor := since
	if watermark := unixToTime(s.changeWatermark()); watermark.After(cursor) {
		cursor = watermark
	}

	rows, err := s.db.QueryContext(ctx, query, entityType, timeToUnix(since), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query changes: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	changes = &models.RemoteChanges{
		Cursor:   cursor,
		Entities: make([]*models.SyncableEntity, 0),
	}
	for rows.Next() {
		entity, _, changedAt, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		changes.Entities = append(changes.Entities, entity)
		changes.Cursor = unixToTime(changedAt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return changes, nil
}

// Fingerprint returns the content hash used to recognize a re-sent version
func Fingerprint(entity *models.SyncableEntity) (string, error) {
	_, fingerprint, err := encodeContent(entity)
	return fingerprint, err
}

func getEntity(ctx context.Context, q queryer, entityType, id string) (*models.SyncableEntity, string, error) {
	row := q.QueryRowContext(ctx, selectEntity+` WHERE entity_type = ? AND id = ?`, entityType, id)

	entity, fingerprint, _, err := scanEntity(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", storage.ErrEntityNotFound
		}
		return nil, "", err
	}
	return entity, fingerprint, nil
}

// scanner общий интерфейс *sql.Row и *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanEntity(row scanner) (*models.SyncableEntity, string, int64, error) {
	var (
		entity                             models.SyncableEntity
		fields, fingerprint                string
		deleted                            int
		createdAt, lastModified, changedAt int64
	)

	err := row.Scan(
		&entity.EntityType,
		&entity.ID,
		&entity.Version,
		&fields,
		&fingerprint,
		&deleted,
		&createdAt,
		&lastModified,
		&changedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", 0, err
		}
		return nil, "", 0, fmt.Errorf("failed to scan entity: %w", err)
	}

	if err := json.Unmarshal([]byte(fields), &entity.Fields); err != nil {
		return nil, "", 0, fmt.Errorf("failed to decode fields of %s/%s: %w", entity.EntityType, entity.ID, err)
	}
	entity.IsDeleted = intToBool(deleted)
	entity.CreatedAt = unixToTime(createdAt)
	entity.LastModified = unixToTime(lastModified)
	entity.MarkSynced()

	return &entity, fingerprint, changedAt, nil
}

func validateUpload(entity *models.SyncableEntity) error {
	switch {
	case entity.ID == "":
		return fmt.Errorf("%w: empty id", storage.ErrInvalidEntity)
	case entity.EntityType == "":
		return fmt.Errorf("%w: empty entity type", storage.ErrInvalidEntity)
	case entity.Version < 1:
		return fmt.Errorf("%w: version must be positive", storage.ErrInvalidEntity)
	case entity.BaseVersion < 0 || entity.BaseVersion >= entity.Version:
		return fmt.Errorf("%w: base version %d is not below version %d", storage.ErrInvalidEntity, entity.BaseVersion, entity.Version)
	}
	return nil
}

// encodeContent сериализует поля и считает blake2b отпечаток содержимого.
// json.Marshal сортирует ключи карты, поэтому отпечаток не зависит от порядка полей.
func encodeContent(entity *models.SyncableEntity) (string, string, error) {
	fields := entity.Fields
	if fields == nil {
		fields = map[string]any{}
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return "", "", fmt.Errorf("%w: fields are not JSON encodable: %v", storage.ErrInvalidEntity, err)
	}

	content, err := json.Marshal(struct {
		Fields  json.RawMessage `json:"fields"`
		Deleted bool            `json:"deleted"`
	}{Fields: data, Deleted: entity.IsDeleted})
	if err != nil {
		return "", "", fmt.Errorf("failed to encode content: %w", err)
	}

	sum := blake2b.Sum256(content)
	return string(data), hex.EncodeToString(sum[:]), nil
}

// boolToInt конвертирует bool в int для SQLite
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// intToBool конвертирует int из SQLite в bool
func intToBool(i int) bool {
	return i != 0
}

// timeToUnix конвертирует время в UnixNano; нулевое время хранится как 0
func timeToUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

// unixToTime конвертирует UnixNano из SQLite в time.Time
func unixToTime(ns int64) time.Time {
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns).UTC()
}
