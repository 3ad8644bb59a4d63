package conflict

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/iudanet/gophsync/internal/models"
)

// Strategy selects how a divergence between local and remote is settled.
type Strategy string

// Strategy константы
const (
	StrategyServerWins    Strategy = "server_wins"
	StrategyClientWins    Strategy = "client_wins"
	StrategyLastWriteWins Strategy = "last_write_wins"
	StrategyMerge         Strategy = "merge"
	StrategyManual        Strategy = "manual"
)

// TieBreak decides last-write-wins when both sides carry the same LastModified.
type TieBreak string

// TieBreak константы
const (
	TieBreakPreferRemote TieBreak = "prefer_remote"
	TieBreakPreferLocal  TieBreak = "prefer_local"
)

// Outcome tells the caller what to do with a Resolution.
type Outcome int

const (
	// OutcomeAdoptRemote: store the remote version as synced.
	OutcomeAdoptRemote Outcome = iota
	// OutcomeKeepLocal: store the rebased local version, still pending upload.
	OutcomeKeepLocal
	// OutcomeMerged: store the merged version, pending upload.
	OutcomeMerged
	// OutcomePending: nothing is applied, the conflict needs manual review.
	OutcomePending
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAdoptRemote:
		return "adopt_remote"
	case OutcomeKeepLocal:
		return "keep_local"
	case OutcomeMerged:
		return "merged"
	case OutcomePending:
		return "pending"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

var (
	ErrUnknownStrategy = errors.New("unknown conflict resolution strategy")
	ErrUnknownTieBreak = errors.New("unknown tie break")
	ErrMissingSide     = errors.New("both local and remote entities are required")
)

// EntityLevel reports whether the strategy picks a whole side without
// looking at field conflicts, so running the merger first is pointless.
func (s Strategy) EntityLevel() bool {
	return s == StrategyServerWins || s == StrategyClientWins || s == StrategyLastWriteWins
}

// ParseStrategy accepts both snake_case and camelCase strategy names.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", "")) {
	case "serverwins":
		return StrategyServerWins, nil
	case "clientwins":
		return StrategyClientWins, nil
	case "lastwritewins", "lww":
		return StrategyLastWriteWins, nil
	case "merge":
		return StrategyMerge, nil
	case "manual":
		return StrategyManual, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
}

// ParseTieBreak accepts "prefer_remote" and "prefer_local"; empty means prefer remote.
func ParseTieBreak(s string) (TieBreak, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", "")) {
	case "", "preferremote", "remote":
		return TieBreakPreferRemote, nil
	case "preferlocal", "local":
		return TieBreakPreferLocal, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTieBreak, s)
}

// FieldMergeFunc combines the two sides of one conflicting field. Returning
// false declines, which sends the whole entity to manual review.
type FieldMergeFunc func(c models.FieldConflict) (any, bool)

// Input is everything a strategy may look at. Conflicts is the Merge output
// for Base, Local and Remote.
type Input struct {
	Base      *models.SyncableEntity
	Local     *models.SyncableEntity
	Remote    *models.SyncableEntity
	Conflicts []models.FieldConflict
}

// Resolution is the result of applying a strategy. Entity is nil for OutcomePending.
type Resolution struct {
	Entity   *models.SyncableEntity
	Strategy Strategy
	Outcome  Outcome
}

// Policy holds strategy settings shared by all sync managers: the
// last-write-wins tie break and the per-type field merge functions.
type Policy struct {
	mergers  map[string]map[string]FieldMergeFunc
	tieBreak TieBreak
	mu       sync.RWMutex
}

// NewPolicy creates a policy. An empty tieBreak means prefer remote.
func NewPolicy(tieBreak TieBreak) *Policy {
	if tieBreak == "" {
		tieBreak = TieBreakPreferRemote
	}
	return &Policy{
		mergers:  make(map[string]map[string]FieldMergeFunc),
		tieBreak: tieBreak,
	}
}

// RegisterFieldMerger installs the merge function used by StrategyMerge for
// one field of one entity type.
func (p *Policy) RegisterFieldMerger(entityType, field string, fn FieldMergeFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()

	byField, ok := p.mergers[entityType]
	if !ok {
		byField = make(map[string]FieldMergeFunc)
		p.mergers[entityType] = byField
	}
	byField[field] = fn
}

func (p *Policy) fieldMerger(entityType, field string) (FieldMergeFunc, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	fn, ok := p.mergers[entityType][field]
	return fn, ok
}

type resolveFunc func(p *Policy, in Input) Resolution

var strategies = map[Strategy]resolveFunc{
	StrategyServerWins:    resolveServerWins,
	StrategyClientWins:    resolveClientWins,
	StrategyLastWriteWins: resolveLastWriteWins,
	StrategyMerge:         resolveMerge,
	StrategyManual:        resolveManual,
}

// Resolve settles a conflict with the given strategy.
//
// Whatever the strategy, a resolved entity whose content equals the remote is
// reported as OutcomeAdoptRemote and is not pending: there is nothing left to
// upload. Any other resolved entity stays pending so the remote converges.
func (p *Policy) Resolve(in Input, strategy Strategy) (Resolution, error) {
	if in.Local == nil || in.Remote == nil {
		return Resolution{}, ErrMissingSide
	}
	fn, ok := strategies[strategy]
	if !ok {
		return Resolution{}, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}

	res := fn(p, in)
	res.Strategy = strategy

	if res.Outcome != OutcomePending && res.Outcome != OutcomeAdoptRemote && SameContent(res.Entity, in.Remote) {
		res.Entity = adoptRemote(in.Remote)
		res.Outcome = OutcomeAdoptRemote
	}
	return res, nil
}

// ResolveManually turns an entity supplied by an external reviewer into the
// resolution of a parked conflict between local and remote.
func ResolveManually(resolved, local, remote *models.SyncableEntity) Resolution {
	if SameContent(resolved, remote) {
		return Resolution{Entity: adoptRemote(remote), Outcome: OutcomeAdoptRemote, Strategy: StrategyManual}
	}
	out := rebase(resolved, local, remote)
	out.ID = local.ID
	out.EntityType = local.EntityType
	out.CreatedAt = local.CreatedAt
	return Resolution{Entity: out, Outcome: OutcomeMerged, Strategy: StrategyManual}
}

func resolveServerWins(_ *Policy, in Input) Resolution {
	return Resolution{Entity: adoptRemote(in.Remote), Outcome: OutcomeAdoptRemote}
}

func resolveClientWins(_ *Policy, in Input) Resolution {
	return Resolution{Entity: rebase(in.Local, in.Local, in.Remote), Outcome: OutcomeKeepLocal}
}

func resolveLastWriteWins(p *Policy, in Input) Resolution {
	switch {
	case in.Remote.ModifiedAfter(in.Local):
		return resolveServerWins(p, in)
	case in.Local.ModifiedAfter(in.Remote):
		return resolveClientWins(p, in)
	case p.tieBreak == TieBreakPreferLocal:
		return resolveClientWins(p, in)
	default:
		return resolveServerWins(p, in)
	}
}

func resolveMerge(p *Policy, in Input) Resolution {
	result := Merge(in.Base, in.Local, in.Remote)
	if !result.HasConflicts() {
		return Resolution{Entity: markRebased(result.Resolved), Outcome: OutcomeMerged}
	}

	merged := result.partial.Clone()
	for _, c := range result.Conflicts {
		fn, ok := p.fieldMerger(in.Local.EntityType, c.Field)
		if !ok {
			return resolveManual(p, in)
		}
		value, ok := fn(c)
		if !ok {
			return resolveManual(p, in)
		}
		assign(merged, c.Field, value)
	}
	return Resolution{Entity: markRebased(merged), Outcome: OutcomeMerged}
}

func resolveManual(_ *Policy, _ Input) Resolution {
	return Resolution{Outcome: OutcomePending}
}

func adoptRemote(remote *models.SyncableEntity) *models.SyncableEntity {
	out := remote.Clone()
	out.MarkSynced()
	return out
}

// rebase puts content on top of remote: next version after both sides,
// remote as the new ancestor, pending upload.
func rebase(content, local, remote *models.SyncableEntity) *models.SyncableEntity {
	out := content.Clone()
	out.Version = max(local.Version, remote.Version) + 1
	out.BaseVersion = remote.Version
	markPendingUpload(out)
	return out
}

func markRebased(e *models.SyncableEntity) *models.SyncableEntity {
	out := e.Clone()
	markPendingUpload(out)
	return out
}

func markPendingUpload(e *models.SyncableEntity) {
	if e.IsDeleted {
		e.MarkPending(models.PendingDelete)
		return
	}
	e.MarkPending(models.PendingUpdate)
}
