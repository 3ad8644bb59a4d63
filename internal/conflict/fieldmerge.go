package conflict

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/iudanet/gophsync/internal/models"
)

// Built-in field merger names accepted by ParseFieldMerger.
const (
	FieldMergeMax          = "max"
	FieldMergeMin          = "min"
	FieldMergePreferLocal  = "prefer_local"
	FieldMergePreferRemote = "prefer_remote"
	FieldMergeUnion        = "union"
)

var ErrUnknownFieldMerger = errors.New("unknown field merger")

var builtinFieldMergers = map[string]FieldMergeFunc{
	FieldMergeMax:          mergeMax,
	FieldMergeMin:          mergeMin,
	FieldMergePreferLocal:  mergePreferLocal,
	FieldMergePreferRemote: mergePreferRemote,
	FieldMergeUnion:        mergeUnion,
}

// ParseFieldMerger returns the built-in merge function with the given name.
//
//   - max, min: the larger or smaller of two numbers or two strings
//   - prefer_local, prefer_remote: always the value of that side
//   - union: local list followed by the remote elements it lacks
//
// max, min and union decline values they cannot compare, so the entity goes
// to manual review.
func ParseFieldMerger(name string) (FieldMergeFunc, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if fn, ok := builtinFieldMergers[key]; ok {
		return fn, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFieldMerger, name)
}

// FieldMergerNames lists the built-in merger names in sorted order.
func FieldMergerNames() []string {
	names := make([]string, 0, len(builtinFieldMergers))
	for name := range builtinFieldMergers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegisterFieldMergers installs built-in mergers from an entity type → field
// → merger name table. Nothing is registered when any name is unknown.
func (p *Policy) RegisterFieldMergers(table map[string]map[string]string) error {
	type binding struct {
		fn         FieldMergeFunc
		entityType string
		field      string
	}

	var (
		bindings []binding
		errs     []error
	)
	for entityType, fields := range table {
		for field, name := range fields {
			fn, err := ParseFieldMerger(name)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s.%s: %w", entityType, field, err))
				continue
			}
			bindings = append(bindings, binding{fn: fn, entityType: entityType, field: field})
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	for _, b := range bindings {
		p.RegisterFieldMerger(b.entityType, b.field, b.fn)
	}
	return nil
}

func mergePreferLocal(c models.FieldConflict) (any, bool) {
	return c.LocalValue, true
}

func mergePreferRemote(c models.FieldConflict) (any, bool) {
	return c.RemoteValue, true
}

func mergeMax(c models.FieldConflict) (any, bool) {
	order, ok := compareValues(c.LocalValue, c.RemoteValue)
	if !ok {
		return nil, false
	}
	if order >= 0 {
		return c.LocalValue, true
	}
	return c.RemoteValue, true
}

func mergeMin(c models.FieldConflict) (any, bool) {
	order, ok := compareValues(c.LocalValue, c.RemoteValue)
	if !ok {
		return nil, false
	}
	if order <= 0 {
		return c.LocalValue, true
	}
	return c.RemoteValue, true
}

func mergeUnion(c models.FieldConflict) (any, bool) {
	local, ok := c.LocalValue.([]any)
	if !ok {
		return nil, false
	}
	remote, ok := c.RemoteValue.([]any)
	if !ok {
		return nil, false
	}

	out := make([]any, 0, len(local)+len(remote))
	out = append(out, local...)
	for _, v := range remote {
		if !containsValue(out, v) {
			out = append(out, v)
		}
	}
	return out, true
}

func containsValue(list []any, v any) bool {
	for _, item := range list {
		if valuesEqual(item, v) {
			return true
		}
	}
	return false
}

// compareValues сравнивает два числа или две строки; прочие пары несравнимы
func compareValues(a, b any) (int, bool) {
	if as, ok := a.(string); ok {
		bs, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(as, bs), true
	}

	af, ok := number(a)
	if !ok {
		return 0, false
	}
	bf, ok := number(b)
	if !ok {
		return 0, false
	}
	switch {
	case af < bf:
		return -1, true
	case af > bf:
		return 1, true
	default:
		return 0, true
	}
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}
