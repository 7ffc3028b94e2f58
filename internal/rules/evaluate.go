// internal/rules/evaluate.go
package rules

import (
	"fmt"
	"sort"

	"github.com/solatis/querykit/internal/expr"
	"github.com/solatis/querykit/internal/types"
)

/*
 * Applying built predicates and orderings to materialised records.
 *
 * A record matches when every predicate holds (the predicates of one Where
 * build are implicitly AND-ed). Filtering preserves input order; ordering is
 * applied afterwards by ApplyOrder.
 *
 * Evaluation errors abort the pass: they indicate a predicate built for a
 * different record type or an unguarded nil hop, never a non-match.
 *
 * A Matcher runs its predicates cheapest first (PredicateCost), keeping
 * declaration order among equal costs.
 */

// Matcher is a compiled conjunction of predicates over T.
type Matcher[T any] struct {
	preds []func(T) (bool, error)
}

// NewMatcher compiles preds for record type T.
func NewMatcher[T any](preds []*expr.Lambda) (*Matcher[T], error) {
	type costed struct {
		fn   func(T) (bool, error)
		cost int
	}
	compiled := make([]costed, 0, len(preds))
	for i, p := range preds {
		fn, err := expr.Compile[T](p)
		if err != nil {
			return nil, fmt.Errorf("predicate %d: %w", i, err)
		}
		compiled = append(compiled, costed{fn: fn, cost: PredicateCost(p)})
	}
	sort.SliceStable(compiled, func(a, b int) bool { return compiled[a].cost < compiled[b].cost })

	m := &Matcher[T]{preds: make([]func(T) (bool, error), len(compiled))}
	for i, c := range compiled {
		m.preds[i] = c.fn
	}
	return m, nil
}

// Match reports whether rec satisfies every predicate.
// Short-circuits on the first non-match.
func (m *Matcher[T]) Match(rec T) (bool, error) {
	for _, p := range m.preds {
		ok, err := p(rec)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// Filter returns the matching records in input order.
func (m *Matcher[T]) Filter(records []T) ([]T, error) {
	out := make([]T, 0, len(records))
	for _, rec := range records {
		ok, err := m.Match(rec)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Filter applies preds to records.
func Filter[T any](records []T, preds []*expr.Lambda) ([]T, error) {
	m, err := NewMatcher[T](preds)
	if err != nil {
		return nil, err
	}
	return m.Filter(records)
}

// Run builds and applies a full query: Where (skipped when q is empty),
// then Sort.
func Run[T any](e *Engine, records []T, q Query, sorts []types.SortCondition) ([]T, error) {
	out := records
	if !q.IsEmpty() {
		preds, err := Where[T](e, q)
		if err != nil {
			return nil, err
		}
		out, err = Filter(records, preds)
		if err != nil {
			return nil, err
		}
	}
	return ApplyOrder(out, SortOf[T](e, sorts, q.Mappings))
}
