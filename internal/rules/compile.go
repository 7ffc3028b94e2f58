// internal/rules/compile.go
package rules

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/solatis/querykit/internal/expr"
	"github.com/solatis/querykit/internal/types"
)

/*
 * Predicate building ("Where").
 *
 * Compiles a Query into one predicate lambda per input item, in declaration
 * order:
 *   1. flat conditions, one predicate each
 *   2. the filter group tree, one combined predicate
 *   3. the filter object, one predicate per top-level field or nested group
 *   4. global search, one predicate
 *
 * Per condition: resolve the member path, classify its type, check the
 * operator against the family, parse the literal, build the comparison and
 * prefix the path's null guards. A logical name present in the mapping table
 * expands to one predicate per real path, OR-combined.
 *
 * Error handling is batch: every failing condition is recorded and the build
 * returns all of them as types.ValidationErrors with no predicates. With
 * SkipInvalidConditions the failing conditions are dropped (logged at debug)
 * and the remaining predicates are returned.
 *
 * Structural problems (nil record type, no input at all, non-struct filter
 * object, over-deep group tree) fail immediately regardless of leniency.
 */

// Query is the data-only input of a Where build.
type Query struct {
	Conditions []types.Condition
	Group      *types.Group
	Filter     any // filter object: struct of types.FilterField slots
	Search     string
	Mappings   types.Mappings
}

// IsEmpty reports whether the query carries no filter input at all.
func (q Query) IsEmpty() bool {
	return len(q.Conditions) == 0 && q.Group == nil && q.Filter == nil && q.Search == ""
}

// Where builds the predicates for q over records of type recordType.
func (e *Engine) Where(recordType reflect.Type, q Query) ([]*expr.Lambda, error) {
	if recordType == nil {
		return nil, fmt.Errorf("%w: nil record type", types.ErrInvalidFilterInput)
	}
	if q.IsEmpty() {
		return nil, fmt.Errorf("%w: query has no conditions, group, filter object or search", types.ErrInvalidFilterInput)
	}

	b := &builder{engine: e, root: recordType, mappings: q.Mappings}
	var preds []*expr.Lambda

	for _, c := range q.Conditions {
		if p := b.condition(c); p != nil {
			preds = append(preds, p)
		}
	}

	if q.Group != nil {
		p, err := b.group(*q.Group, 0)
		if err != nil {
			return nil, err
		}
		if p != nil {
			preds = append(preds, p)
		}
	}

	if q.Filter != nil {
		ps, err := b.filterObject(q.Filter)
		if err != nil {
			return nil, err
		}
		preds = append(preds, ps...)
	}

	if q.Search != "" {
		if p := b.search(q.Search); p != nil {
			preds = append(preds, p)
		}
	}

	if len(b.errs) > 0 && !e.opts.SkipInvalidConditions {
		return nil, b.errs
	}
	return preds, nil
}

// Where is the generic form of Engine.Where for record type T.
func Where[T any](e *Engine, q Query) ([]*expr.Lambda, error) {
	return e.Where(reflect.TypeFor[T](), q)
}

// builder carries the state of one Where build.
type builder struct {
	engine   *Engine
	root     reflect.Type
	mappings types.Mappings
	errs     types.ValidationErrors
}

// condition builds one condition, expanding mapped names.
// Returns nil for OpNone and for rejected conditions.
func (b *builder) condition(c types.Condition) *expr.Lambda {
	if c.Operator == types.OpNone {
		return nil
	}

	paths := b.mappings.Lookup(c.Field)
	if len(paths) == 0 {
		paths = []string{c.Field}
	}

	alts := make([]*expr.Lambda, 0, len(paths))
	for _, path := range paths {
		p, err := b.conditionOn(path, c.Operator, c.Value)
		if err != nil {
			b.reject(c, err)
			return nil
		}
		alts = append(alts, p)
	}
	return expr.OrAll(alts)
}

// conditionOn builds one condition against a single real member path.
func (b *builder) conditionOn(path string, op types.Operator, value string) (*expr.Lambda, error) {
	rp, err := ResolvePath(b.root, path)
	if err != nil {
		return nil, err
	}
	info, ok := Classify(rp.Access.Type())
	if !ok {
		return nil, fmt.Errorf("%w: %s has unsupported type %s", types.ErrInvalidOperator, rp.Path, rp.Access.Type())
	}
	body, err := BuildComparison(rp.Access, info, op, value, b.engine.opts)
	if err != nil {
		return nil, err
	}
	return rp.Lambda(rp.Guard(body)), nil
}

// reject records a failed condition and logs it when running lenient.
func (b *builder) reject(c types.Condition, err error) {
	b.errs = append(b.errs, &types.ValidationError{
		Field:    c.Field,
		Operator: c.Operator,
		Value:    c.Value,
		Kind:     kindOf(err),
		Err:      err,
	})
	if b.engine.opts.SkipInvalidConditions {
		b.engine.logger.Debug("dropping invalid filter condition",
			"field", c.Field,
			"operator", c.Operator.String(),
			"error", err)
	}
}

// kindOf maps a build error onto a ValidationError kind.
func kindOf(err error) types.ErrorKind {
	switch {
	case errors.Is(err, types.ErrInvalidOperator):
		return types.KindInvalidOperator
	case errors.Is(err, types.ErrInvalidLiteral), errors.Is(err, types.ErrTooManyValues):
		return types.KindInvalidLiteral
	default:
		return types.KindUnresolvedMember
	}
}

// group builds a filter tree node. Empty or all-None groups yield nil.
func (b *builder) group(g types.Group, depth int) (*expr.Lambda, error) {
	if depth > types.MaxGroupDepth {
		return nil, types.ErrGroupTooDeep
	}
	if g.IsLeaf() {
		return b.condition(*g.Condition), nil
	}

	children := make([]*expr.Lambda, 0, len(g.Groups))
	for _, child := range g.Groups {
		p, err := b.group(child, depth+1)
		if err != nil {
			return nil, err
		}
		if p != nil {
			children = append(children, p)
		}
	}
	if g.Link == types.LinkOr {
		return expr.OrAll(children), nil
	}
	return expr.AndAll(children), nil
}
