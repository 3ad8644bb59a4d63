package conflict

import (
	"reflect"
	"sort"

	"github.com/google/go-cmp/cmp"

	"github.com/iudanet/gophsync/internal/models"
)

// DeletedField is the pseudo-field under which the tombstone flag takes part in a merge.
const DeletedField = "_deleted"

// MergeResult holds either a fully reconciled entity or the field conflicts
// that prevented it. Resolved is nil whenever Conflicts is not empty.
type MergeResult struct {
	Resolved  *models.SyncableEntity
	Conflicts []models.FieldConflict

	// partial carries the reconciled fields even when conflicts remain,
	// with conflicting fields left at their local value.
	partial *models.SyncableEntity
}

// HasConflicts reports whether the merge left irreconcilable fields.
func (r MergeResult) HasConflicts() bool {
	return len(r.Conflicts) > 0
}

// Partial returns the merged entity with conflicting fields left at their local value.
func (r MergeResult) Partial() *models.SyncableEntity {
	return r.partial.Clone()
}

// absent marks a field missing from one side of the merge. It never equals a present value.
type absent struct{}

// Merge performs a three-way merge of local and remote against their common
// ancestor base. A nil base means the two sides share no ancestor.
//
// For every field: unchanged on both sides keeps base, changed on one side
// takes that side, changed on both to equal values takes the value, changed on
// both to different values is a FieldConflict. Lists and maps compare by deep
// structure; values of different dynamic types are never equal.
//
// Both local and remote are required: when either is nil the result is empty,
// with no Resolved entity and no conflicts.
func Merge(base, local, remote *models.SyncableEntity) MergeResult {
	if local == nil || remote == nil {
		return MergeResult{}
	}

	baseView := view(base)
	localView := view(local)
	remoteView := view(remote)

	merged := local.Clone()
	merged.Fields = make(map[string]any, len(localView))

	var conflicts []models.FieldConflict

	for _, field := range unionKeys(baseView, localView, remoteView) {
		b, l, r := lookup(baseView, field), lookup(localView, field), lookup(remoteView, field)

		var value any
		switch {
		case equal(l, b) && equal(r, b):
			value = b
		case !equal(l, b) && equal(r, b):
			value = l
		case equal(l, b) && !equal(r, b):
			value = r
		case equal(l, r):
			// convergent edit
			value = l
		default:
			conflicts = append(conflicts, models.FieldConflict{
				Field:       field,
				BaseValue:   present(b),
				LocalValue:  present(l),
				RemoteValue: present(r),
			})
			value = l
		}
		assign(merged, field, value)
	}

	merged.Version = max(local.Version, remote.Version) + 1
	merged.BaseVersion = remote.Version
	if remote.LastModified.After(merged.LastModified) {
		merged.LastModified = remote.LastModified
	}

	sort.Slice(conflicts, func(i, j int) bool {
		return conflicts[i].Field < conflicts[j].Field
	})

	result := MergeResult{Conflicts: conflicts, partial: merged}
	if len(conflicts) == 0 {
		result.Resolved = merged.Clone()
	}
	return result
}

// SameContent reports whether two entities carry equal fields and tombstone state.
func SameContent(a, b *models.SyncableEntity) bool {
	if a == nil || b == nil {
		return a == b
	}
	av, bv := view(a), view(b)
	if len(av) != len(bv) {
		return false
	}
	for k, v := range av {
		w, ok := bv[k]
		if !ok || !valuesEqual(v, w) {
			return false
		}
	}
	return true
}

// view flattens an entity into the field map the merge works on.
func view(e *models.SyncableEntity) map[string]any {
	out := make(map[string]any)
	if e == nil {
		return out
	}
	for k, v := range e.Fields {
		out[k] = v
	}
	out[DeletedField] = e.IsDeleted
	return out
}

func unionKeys(views ...map[string]any) []string {
	seen := make(map[string]struct{})
	var keys []string
	for _, v := range views {
		for k := range v {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func lookup(fields map[string]any, field string) any {
	if v, ok := fields[field]; ok {
		return v
	}
	return absent{}
}

func present(v any) any {
	if _, ok := v.(absent); ok {
		return nil
	}
	return v
}

// TakeField copies the state of field from src into dst. A field missing from
// src is removed from dst; DeletedField copies the tombstone flag.
func TakeField(dst, src *models.SyncableEntity, field string) {
	if dst.Fields == nil {
		dst.Fields = make(map[string]any)
	}
	assign(dst, field, lookup(view(src), field))
}

// SetField sets field of e to value. DeletedField expects a bool.
func SetField(e *models.SyncableEntity, field string, value any) {
	if e.Fields == nil {
		e.Fields = make(map[string]any)
	}
	assign(e, field, value)
}

func assign(e *models.SyncableEntity, field string, value any) {
	if field == DeletedField {
		deleted, _ := value.(bool)
		e.IsDeleted = deleted
		return
	}
	if _, ok := value.(absent); ok {
		delete(e.Fields, field)
		return
	}
	e.Fields[field] = models.CloneFields(map[string]any{field: value})[field]
}

func equal(a, b any) bool {
	_, aAbsent := a.(absent)
	_, bAbsent := b.(absent)
	if aAbsent || bAbsent {
		return aAbsent && bAbsent
	}
	return valuesEqual(a, b)
}

// valuesEqual compares by deep structure without type coercion: int 7 and
// float64 7 are different values.
func valuesEqual(a, b any) bool {
	if reflect.TypeOf(a) != reflect.TypeOf(b) {
		return false
	}
	return cmp.Equal(a, b)
}
