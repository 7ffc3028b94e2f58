package rules

import (
	"errors"
	"reflect"
	"sort"
	"strings"

	"github.com/solatis/querykit/internal/expr"
	"github.com/solatis/querykit/internal/types"
)

/*
 * Order building ("Sort").
 *
 * Turns sort conditions into key-extractor lambdas in precedence order.
 * Never fails: unresolved paths, DirectionNone and members that cannot be
 * ordered (lists, unsupported types) are skipped silently. A mapped name
 * expands to one key per real path, in mapping order.
 *
 * ApplyOrder evaluates every key once per record, then stable-sorts:
 *   - nil keys (nil pointer, or a nil hop on the path) sort first ascending
 *   - enums order by ordinal
 *   - string keys compare lower-cased in case-insensitive mode
 */

// OrderKey is one level of an ordering.
type OrderKey struct {
	Path            string
	Direction       types.Direction
	Key             *expr.Lambda // x => x.<path>
	Family          Family
	CaseInsensitive bool
}

// Sort builds the order keys for conds over recordType.
func (e *Engine) Sort(recordType reflect.Type, conds []types.SortCondition, mappings types.Mappings) []OrderKey {
	if recordType == nil {
		return nil
	}
	var keys []OrderKey
	for _, c := range conds {
		if c.Direction == types.DirectionNone {
			continue
		}
		paths := mappings.Lookup(c.Field)
		if len(paths) == 0 {
			paths = []string{c.Field}
		}
		for _, path := range paths {
			rp, err := ResolvePath(recordType, path)
			if err != nil {
				e.logger.Debug("skipping unresolved sort member", "field", c.Field, "path", path)
				continue
			}
			info, ok := Classify(rp.Access.Type())
			if !ok || info.List {
				e.logger.Debug("skipping unorderable sort member", "field", c.Field, "type", rp.Access.Type().String())
				continue
			}
			keys = append(keys, OrderKey{
				Path:            rp.Path,
				Direction:       c.Direction,
				Key:             expr.NewLambda(rp.Access, rp.Param),
				Family:          info.Family,
				CaseInsensitive: e.opts.CaseInsensitive && info.Family == FamilyString,
			})
		}
	}
	return keys
}

// SortOf is the generic form of Engine.Sort for record type T.
func SortOf[T any](e *Engine, conds []types.SortCondition, mappings types.Mappings) []OrderKey {
	return e.Sort(reflect.TypeFor[T](), conds, mappings)
}

// ApplyOrder returns a new slice with records ordered by keys.
// The input slice is not modified.
func ApplyOrder[T any](records []T, keys []OrderKey) ([]T, error) {
	out := make([]T, len(records))
	copy(out, records)
	if len(keys) == 0 || len(out) < 2 {
		return out, nil
	}

	values := make([][]reflect.Value, len(out))
	for i := range out {
		row := make([]reflect.Value, len(keys))
		arg := reflect.ValueOf(&out[i]).Elem()
		for k, key := range keys {
			v, err := key.Key.Invoke(arg)
			switch {
			case errors.Is(err, types.ErrNullReference):
				v = reflect.Value{}
			case err != nil:
				return nil, err
			case key.CaseInsensitive:
				if s := indirectString(v); s != nil {
					v = reflect.ValueOf(strings.ToLower(*s))
				}
			}
			row[k] = v
		}
		values[i] = row
	}

	idx := make([]int, len(out))
	for i := range idx {
		idx[i] = i
	}

	var cmpErr error
	sort.SliceStable(idx, func(a, b int) bool {
		ra, rb := values[idx[a]], values[idx[b]]
		for k, key := range keys {
			c, err := expr.CompareNullable(ra[k], rb[k])
			if err != nil && cmpErr == nil {
				cmpErr = err
			}
			if c == 0 {
				continue
			}
			if key.Direction == types.DirectionDescending {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	if cmpErr != nil {
		return nil, cmpErr
	}

	sorted := make([]T, len(out))
	for i, j := range idx {
		sorted[i] = out[j]
	}
	return sorted, nil
}

// indirectString returns the string behind v, or nil for nil/non-string values.
func indirectString(v reflect.Value) *string {
	for v.IsValid() && v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if !v.IsValid() || v.Kind() != reflect.String {
		return nil
	}
	s := v.String()
	return &s
}
