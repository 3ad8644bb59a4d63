// Package sync reconciles the local store of one entity type with the remote
// data source: upload of pending edits, download of remote changes, conflict
// detection and resolution, checkpoint bookkeeping.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	gosync "sync"
	"time"

	"github.com/iudanet/gophsync/internal/client/changes"
	"github.com/iudanet/gophsync/internal/client/storage"
	"github.com/iudanet/gophsync/internal/conflict"
	"github.com/iudanet/gophsync/internal/models"
)

//go:generate moq -out manager_mock.go . Manager

// DefaultBatchSize is used when Config.BatchSize is not positive.
const DefaultBatchSize = 100

var (
	// ErrSyncInProgress is returned when a pass for the same entity type is already running
	ErrSyncInProgress = errors.New("sync already in progress")

	errMissingOutcome         = errors.New("remote returned no outcome for entity")
	errConflictWithoutCurrent = errors.New("remote reported conflict without its current version")
)

// Manager определяет интерфейс менеджера инкрементальной синхронизации одного типа записей
type Manager interface {
	// EntityType возвращает тип записей, который синхронизирует менеджер
	EntityType() string

	// PerformIncrementalSync выполняет один проход: upload, download, checkpoint.
	// Ошибки отдельных записей собираются в SyncResult.Errors; error возвращается
	// только для фатальных ошибок (StorageError, отмена контекста).
	PerformIncrementalSync(ctx context.Context) (*models.SyncResult, error)

	// GetPendingConflicts возвращает конфликты, ожидающие ручного разрешения
	GetPendingConflicts(ctx context.Context) ([]*models.ConflictRecord, error)

	// ApplyResolution применяет внешнее решение конфликта
	ApplyResolution(ctx context.Context, entityID string, resolved *models.SyncableEntity) error

	// PendingCount возвращает количество записей, ожидающих отправки
	PendingCount(ctx context.Context) (int, error)
}

// Config holds per-type sync settings.
type Config struct {
	EntityType      string
	Strategy        conflict.Strategy
	BatchSize       int
	ChangeRetention time.Duration
}

type manager struct {
	store   storage.LocalStore
	remote  RemoteDataSource
	tracker *changes.Tracker
	policy  *conflict.Policy
	logger  *slog.Logger
	now     func() time.Time
	cfg     Config
	mu      gosync.Mutex
}

// NewManager creates a sync manager for one entity type
func NewManager(
	cfg Config,
	store storage.LocalStore,
	remote RemoteDataSource,
	tracker *changes.Tracker,
	policy *conflict.Policy,
	logger *slog.Logger,
) (Manager, error) {
	if cfg.EntityType == "" {
		return nil, errors.New("entity type is required")
	}
	if cfg.Strategy == "" {
		cfg.Strategy = conflict.StrategyLastWriteWins
	}
	if _, err := conflict.ParseStrategy(string(cfg.Strategy)); err != nil {
		return nil, err
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if policy == nil {
		policy = conflict.NewPolicy(conflict.TieBreakPreferRemote)
	}

	return &manager{
		store:   store,
		remote:  remote,
		tracker: tracker,
		policy:  policy,
		logger:  logger.With("entity_type", cfg.EntityType),
		now:     time.Now,
		cfg:     cfg,
	}, nil
}

func (m *manager) EntityType() string {
	return m.cfg.EntityType
}

// PerformIncrementalSync runs one pass for the manager's entity type
func (m *manager) PerformIncrementalSync(ctx context.Context) (*models.SyncResult, error) {
	if !m.mu.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer m.mu.Unlock()

	started := m.now()
	result := &models.SyncResult{
		EntityType: m.cfg.EntityType,
		Timestamp:  started,
	}

	m.logger.Info("Starting synchronization", "strategy", m.cfg.Strategy)

	// 1. Читаем checkpoint
	checkpoint, err := m.store.GetCheckpoint(ctx, m.cfg.EntityType)
	if err != nil {
		return m.abort(result, models.NewStorageError("get checkpoint", err))
	}

	// 2. Upload phase
	currents, err := m.upload(ctx, result)
	if err != nil {
		return m.abort(result, err)
	}

	// 3. Download phase
	cursor, complete, err := m.download(ctx, checkpoint, currents, result)
	if err != nil {
		return m.abort(result, err)
	}

	// 4. Checkpoint двигается только после полного download и только по курсору
	// удаленной стороны: часы клиента и сервера не смешиваются
	if complete {
		next := checkpoint.Advance(cursor)
		if err := m.store.SaveCheckpoint(ctx, next); err != nil {
			return m.abort(result, models.NewStorageError("save checkpoint", err))
		}
	}

	result.Finalize()

	if complete && len(result.Errors) == 0 {
		m.collectGarbage(ctx)
	}

	m.logger.Info("Synchronization completed",
		"status", result.Status,
		"uploaded", result.UploadedCount,
		"downloaded", result.DownloadedCount,
		"conflicts", result.ConflictCount,
		"errors", len(result.Errors),
		"checkpoint_advanced", complete)

	return result, nil
}

func (m *manager) abort(result *models.SyncResult, err error) (*models.SyncResult, error) {
	result.Errors = append(result.Errors, err)
	result.Status = models.SyncStatusError

	m.logger.Error("Synchronization aborted", "error", err)

	return result, err
}

// upload sends the pending snapshot in batches. It returns the remote
// versions reported with conflict outcomes so the download phase reconciles them.
func (m *manager) upload(ctx context.Context, result *models.SyncResult) ([]*models.SyncableEntity, error) {
	pending, err := m.pendingSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return nil, nil
	}

	m.logger.Info("Collected local changes", "count", len(pending))

	var currents []*models.SyncableEntity
	size := m.cfg.BatchSize

	for start := 0; start < len(pending); start += size {
		// Отмена допустима только на границе batch
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		batch := pending[start:min(start+size, len(pending))]

		outcomes, err := m.remote.UploadBatch(ctx, m.cfg.EntityType, batch)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			m.logger.Warn("Batch upload failed",
				"batch_start", start,
				"batch_size", len(batch),
				"error", err)
			for _, entity := range batch {
				result.Errors = append(result.Errors, classify("upload", entity.ID, err))
			}
			continue
		}

		acked, conflicted := m.collectOutcomes(batch, outcomes, result)
		currents = append(currents, conflicted...)

		if len(acked) == 0 {
			continue
		}
		cleared, err := m.store.MarkSynced(ctx, m.cfg.EntityType, acked)
		if err != nil {
			return nil, models.NewStorageError("mark synced", err)
		}
		result.UploadedCount += len(acked)

		m.logger.Debug("Batch acknowledged",
			"acked", len(acked),
			"cleared", cleared)
	}

	return currents, nil
}

func (m *manager) collectOutcomes(
	batch []*models.SyncableEntity,
	outcomes []models.UploadOutcome,
	result *models.SyncResult,
) (acked, currents []*models.SyncableEntity) {
	byID := make(map[string]models.UploadOutcome, len(outcomes))
	for _, o := range outcomes {
		byID[o.ID] = o
	}

	for _, entity := range batch {
		outcome, ok := byID[entity.ID]
		if !ok {
			result.Errors = append(result.Errors, &models.NetworkError{Op: "upload", EntityID: entity.ID, Err: errMissingOutcome})
			continue
		}

		switch outcome.Status {
		case models.UploadApplied, models.UploadDuplicate:
			acked = append(acked, entity)
		case models.UploadConflict:
			m.logger.Info("Remote reported conflict",
				"entity_id", entity.ID,
				"local_version", entity.Version,
				"remote_version", outcome.Version)
			if outcome.Current == nil {
				// Без удаленной версии сверить нечего - запись остается pending до следующего прохода
				result.Errors = append(result.Errors, &models.NetworkError{
					Op:       "upload",
					EntityID: entity.ID,
					Err:      errConflictWithoutCurrent,
				})
				continue
			}
			currents = append(currents, outcome.Current)
		case models.UploadRejected:
			result.Errors = append(result.Errors, &models.ValidationError{Op: "upload", EntityID: entity.ID, Reason: outcome.Message})
		default:
			result.Errors = append(result.Errors, &models.NetworkError{
				Op:       "upload",
				EntityID: entity.ID,
				Err:      fmt.Errorf("remote asked to retry: %s", outcome.Message),
			})
		}
	}

	return acked, currents
}

// pendingSnapshot returns pending entities without an open manual conflict,
// in the order their first retained change was recorded.
func (m *manager) pendingSnapshot(ctx context.Context) ([]*models.SyncableEntity, error) {
	pending, err := m.store.GetPendingEntities(ctx, m.cfg.EntityType)
	if err != nil {
		return nil, models.NewStorageError("get pending entities", err)
	}
	if len(pending) == 0 {
		return nil, nil
	}

	open, err := m.store.ListConflicts(ctx, m.cfg.EntityType)
	if err != nil {
		return nil, models.NewStorageError("list conflicts", err)
	}
	held := make(map[string]struct{}, len(open))
	for _, c := range open {
		held[c.EntityID] = struct{}{}
	}

	records, err := m.tracker.GetChangesSince(ctx, m.cfg.EntityType, time.Time{})
	if err != nil {
		return nil, err
	}
	rank := make(map[string]int, len(records))
	for i, r := range records {
		if _, ok := rank[r.EntityID]; !ok {
			rank[r.EntityID] = i
		}
	}

	snapshot := make([]*models.SyncableEntity, 0, len(pending))
	for _, e := range pending {
		if _, ok := held[e.ID]; ok {
			m.logger.Debug("Holding back entity with open conflict", "entity_id", e.ID)
			continue
		}
		snapshot = append(snapshot, e)
	}

	sort.SliceStable(snapshot, func(i, j int) bool {
		ri, iok := rank[snapshot[i].ID]
		rj, jok := rank[snapshot[j].ID]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		case !snapshot[i].LastModified.Equal(snapshot[j].LastModified):
			return snapshot[i].LastModified.Before(snapshot[j].LastModified)
		default:
			return snapshot[i].ID < snapshot[j].ID
		}
	})

	return snapshot, nil
}

type applyKind int

const (
	applySkipped applyKind = iota
	applyInserted
	applyFastForward
	applyResolved
)

// download pulls remote changes and applies them together with the conflict
// currents reported by the upload phase. complete is false when the remote
// could not be read, in which case the checkpoint must stay where it is.
func (m *manager) download(
	ctx context.Context,
	checkpoint models.SyncCheckpoint,
	currents []*models.SyncableEntity,
	result *models.SyncResult,
) (cursor time.Time, complete bool, err error) {
	complete = true

	var remoteEntities []*models.SyncableEntity
	remoteChanges, err := m.remote.GetChangesSince(ctx, m.cfg.EntityType, checkpoint.LastSyncedAt)
	switch {
	case err != nil:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return cursor, false, ctxErr
		}
		m.logger.Warn("Failed to fetch remote changes", "error", err)
		result.Errors = append(result.Errors, classify("download", "", err))
		complete = false
	case remoteChanges != nil:
		cursor = remoteChanges.Cursor
		remoteEntities = remoteChanges.Entities
	}

	m.logger.Info("Received remote changes",
		"count", len(remoteEntities),
		"conflict_currents", len(currents))

	for _, remote := range latestByID(remoteEntities, currents) {
		kind, err := m.applyRemote(ctx, remote)
		if err != nil {
			var conflictErr *models.ConflictError
			switch {
			case errors.As(err, &conflictErr):
				result.ConflictCount++
			case errors.Is(err, storage.ErrVersionMismatch):
				// локальная запись изменилась во время прохода
				m.logger.Debug("Skipping remote entity edited locally during sync", "entity_id", remote.ID)
			case models.IsFatal(err):
				return cursor, false, err
			default:
				m.logger.Warn("Failed to apply remote entity", "entity_id", remote.ID, "error", err)
				result.Errors = append(result.Errors, err)
			}
			continue
		}

		switch kind {
		case applyInserted, applyFastForward:
			result.DownloadedCount++
		case applyResolved:
			result.DownloadedCount++
			result.ConflictCount++
		}
	}

	return cursor, complete, nil
}

// applyRemote reconciles one remote entity with the local store.
func (m *manager) applyRemote(ctx context.Context, incoming *models.SyncableEntity) (applyKind, error) {
	remote := incoming.Clone()
	if remote.EntityType == "" {
		remote.EntityType = m.cfg.EntityType
	}
	if remote.EntityType != m.cfg.EntityType {
		return applySkipped, &models.ValidationError{
			Op:       "download",
			EntityID: remote.ID,
			Reason:   fmt.Sprintf("unexpected entity type %q", remote.EntityType),
		}
	}
	remote.MarkSynced()
	if err := remote.Validate(); err != nil {
		return applySkipped, &models.ValidationError{Op: "download", EntityID: remote.ID, Err: err}
	}

	local, err := m.store.GetEntity(ctx, m.cfg.EntityType, remote.ID)
	if errors.Is(err, storage.ErrEntityNotFound) {
		// Новая запись
		return applyInserted, m.write(ctx, remote, remote, 0)
	}
	if err != nil {
		return applySkipped, models.NewStorageError("get entity", err)
	}

	if conflict.HasConflict(local, remote) {
		return m.resolve(ctx, local, remote)
	}

	switch {
	case local.IsPendingSync:
		if remote.Version == local.Version && conflict.SameContent(local, remote) {
			// Эхо нашей же загрузки
			if _, err := m.store.MarkSynced(ctx, m.cfg.EntityType, []*models.SyncableEntity{local}); err != nil {
				return applySkipped, models.NewStorageError("mark synced", err)
			}
		}
		return applySkipped, nil
	case remote.Version > local.Version:
		// Fast-forward
		return applyFastForward, m.write(ctx, remote, remote, local.Version)
	default:
		// Та же или более старая версия - идемпотентно пропускаем
		return applySkipped, nil
	}
}

func (m *manager) resolve(ctx context.Context, local, remote *models.SyncableEntity) (applyKind, error) {
	base, err := m.store.GetBase(ctx, m.cfg.EntityType, local.ID)
	if err != nil && !errors.Is(err, storage.ErrEntityNotFound) {
		return applySkipped, models.NewStorageError("get base", err)
	}

	merged := conflict.Merge(base, local, remote)
	in := conflict.Input{
		Base:      base,
		Local:     local,
		Remote:    remote,
		Conflicts: merged.Conflicts,
	}

	strategy := m.cfg.Strategy
	if !strategy.EntityLevel() && !merged.HasConflicts() {
		strategy = conflict.StrategyMerge
	}

	res, err := m.policy.Resolve(in, strategy)
	if err != nil {
		return applySkipped, fmt.Errorf("resolve conflict for %s: %w", local.ID, err)
	}

	if res.Outcome == conflict.OutcomePending {
		record := &models.ConflictRecord{
			EntityType: m.cfg.EntityType,
			EntityID:   local.ID,
			Base:       base,
			Local:      local,
			Remote:     remote,
			Conflicts:  merged.Conflicts,
			DetectedAt: m.now(),
		}
		if err := m.store.SaveConflict(ctx, record); err != nil {
			return applySkipped, models.NewStorageError("save conflict", err)
		}
		m.logger.Warn("Conflict needs manual resolution",
			"entity_id", local.ID,
			"fields", len(merged.Conflicts))
		return applySkipped, &models.ConflictError{
			EntityType: m.cfg.EntityType,
			EntityID:   local.ID,
			Conflicts:  merged.Conflicts,
		}
	}

	if err := m.write(ctx, res.Entity, remote, local.Version); err != nil {
		return applySkipped, err
	}
	if err := m.store.DeleteConflict(ctx, m.cfg.EntityType, local.ID); err != nil {
		return applySkipped, models.NewStorageError("delete conflict", err)
	}

	m.logger.Info("Conflict resolved",
		"entity_id", local.ID,
		"strategy", res.Strategy,
		"outcome", res.Outcome.String(),
		"version", res.Entity.Version)

	return applyResolved, nil
}

// write stores a sync-driven entity guarded by the local version it was
// derived from. base is the remote state acknowledged at this point.
func (m *manager) write(ctx context.Context, entity, base *models.SyncableEntity, expected int64) error {
	if err := m.store.UpsertEntityIfVersion(ctx, entity, base, expected); err != nil {
		return models.NewStorageError("apply entity", err)
	}
	return nil
}

func (m *manager) collectGarbage(ctx context.Context) {
	if m.cfg.ChangeRetention <= 0 {
		return
	}
	if _, err := m.tracker.CleanupOlderThan(ctx, m.cfg.EntityType, m.now().Add(-m.cfg.ChangeRetention)); err != nil {
		m.logger.Warn("Failed to clean up change log", "error", err)
	}
}

// GetPendingConflicts returns conflicts parked for manual review
func (m *manager) GetPendingConflicts(ctx context.Context) ([]*models.ConflictRecord, error) {
	records, err := m.store.ListConflicts(ctx, m.cfg.EntityType)
	if err != nil {
		return nil, models.NewStorageError("list conflicts", err)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].DetectedAt.Before(records[j].DetectedAt)
	})
	return records, nil
}

// ApplyResolution replaces a parked conflict with an externally resolved entity.
// The entity is uploaded by the next pass unless it equals the remote version.
func (m *manager) ApplyResolution(ctx context.Context, entityID string, resolved *models.SyncableEntity) error {
	if resolved == nil {
		return errors.New("resolved entity is required")
	}

	// Ждем завершения текущего прохода
	m.mu.Lock()
	defer m.mu.Unlock()

	record, err := m.store.GetConflict(ctx, m.cfg.EntityType, entityID)
	if err != nil {
		if errors.Is(err, storage.ErrConflictNotFound) {
			return fmt.Errorf("no open conflict for %s/%s: %w", m.cfg.EntityType, entityID, err)
		}
		return models.NewStorageError("get conflict", err)
	}

	local, err := m.store.GetEntity(ctx, m.cfg.EntityType, entityID)
	if err != nil {
		return models.NewStorageError("get entity", err)
	}

	res := conflict.ResolveManually(resolved, local, record.Remote)

	base := record.Remote.Clone()
	base.MarkSynced()

	if err := m.write(ctx, res.Entity, base, local.Version); err != nil {
		return err
	}
	if err := m.store.DeleteConflict(ctx, m.cfg.EntityType, entityID); err != nil {
		return models.NewStorageError("delete conflict", err)
	}

	m.logger.Info("Manual resolution applied",
		"entity_id", entityID,
		"outcome", res.Outcome.String(),
		"pending", res.Entity.IsPendingSync)

	return nil
}

// PendingCount returns the number of entities waiting for upload
func (m *manager) PendingCount(ctx context.Context) (int, error) {
	pending, err := m.store.GetPendingEntities(ctx, m.cfg.EntityType)
	if err != nil {
		return 0, models.NewStorageError("get pending entities", err)
	}
	return len(pending), nil
}

// classify turns a transport error into the taxonomy: validation errors stay
// permanent, everything else is treated as transient.
func classify(op, entityID string, err error) error {
	var ve *models.ValidationError
	if errors.As(err, &ve) {
		return &models.ValidationError{Op: op, EntityID: entityID, Err: err}
	}
	return &models.NetworkError{Op: op, EntityID: entityID, Err: err}
}

// latestByID merges two lists of remote entities, keeping the highest version
// of each id in first-seen order.
func latestByID(lists ...[]*models.SyncableEntity) []*models.SyncableEntity {
	index := make(map[string]int)
	var out []*models.SyncableEntity
	for _, list := range lists {
		for _, e := range list {
			if e == nil {
				continue
			}
			if i, ok := index[e.ID]; ok {
				if e.Version > out[i].Version {
					out[i] = e
				}
				continue
			}
			index[e.ID] = len(out)
			out = append(out, e)
		}
	}
	return out
}
