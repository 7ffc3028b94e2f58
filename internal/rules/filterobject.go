package rules

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/solatis/querykit/internal/expr"
	"github.com/solatis/querykit/internal/types"
)

/*
 * Filter objects.
 *
 * A filter object is a plain struct whose slots are types.FilterField (or
 * *types.FilterField) fields. Struct tag `filter:"<path>,<options>"`:
 *   - <path> overrides the member path (default: the Go field name)
 *   - ops=Equal|Contains restricts the operators the slot accepts
 *   - or / and link the members of a nested struct group (default and)
 *   - "-" skips the field
 *
 * A nested struct field is a sub-group. Its slot paths are relative to the
 * record root unless the group tag names a path, which then prefixes them.
 *
 * Whitelists are checked for every slot before any predicate is built, so a
 * strict build reports all operator violations of the object at once.
 */

var filterFieldType = reflect.TypeOf(types.FilterField{})

type filterSlot struct {
	name    string // Go field path inside the filter object
	path    string // member path on the record
	field   types.FilterField
	allowed []types.Operator // nil accepts every operator
}

type filterNode struct {
	slot     *filterSlot
	link     types.LinkOperator
	children []filterNode
}

type filterTag struct {
	path    string
	link    types.LinkOperator
	allowed []types.Operator
}

// parseFilterTag parses the filter struct tag of f.
func parseFilterTag(f reflect.StructField) (filterTag, bool, error) {
	raw, ok := f.Tag.Lookup("filter")
	if raw == "-" {
		return filterTag{}, false, nil
	}
	tag := filterTag{}
	if !ok {
		return tag, true, nil
	}

	parts := strings.Split(raw, ",")
	tag.path = strings.TrimSpace(parts[0])
	for _, opt := range parts[1:] {
		opt = strings.TrimSpace(opt)
		switch {
		case opt == "or":
			tag.link = types.LinkOr
		case opt == "and", opt == "":
			tag.link = types.LinkAnd
		case strings.HasPrefix(opt, "ops="):
			for _, name := range strings.Split(strings.TrimPrefix(opt, "ops="), "|") {
				op, err := types.ParseOperator(name)
				if err != nil {
					return filterTag{}, false, fmt.Errorf("%w: field %s: %v", types.ErrInvalidFilterInput, f.Name, err)
				}
				tag.allowed = append(tag.allowed, op)
			}
		default:
			return filterTag{}, false, fmt.Errorf("%w: field %s: unknown filter option %q", types.ErrInvalidFilterInput, f.Name, opt)
		}
	}
	return tag, true, nil
}

// collectFilter walks a filter struct value into a node tree.
func collectFilter(v reflect.Value, prefix, namePrefix string) ([]filterNode, error) {
	t := v.Type()
	var nodes []filterNode

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		tag, use, err := parseFilterTag(f)
		if err != nil {
			return nil, err
		}
		if !use {
			continue
		}

		fv := v.Field(i)
		if fv.Kind() == reflect.Pointer {
			if fv.IsNil() {
				continue
			}
			fv = fv.Elem()
		}

		name := namePrefix + f.Name
		switch {
		case fv.Type() == filterFieldType:
			path := tag.path
			if path == "" {
				path = f.Name
			}
			nodes = append(nodes, filterNode{slot: &filterSlot{
				name:    name,
				path:    prefix + path,
				field:   fv.Interface().(types.FilterField),
				allowed: tag.allowed,
			}})

		case fv.Kind() == reflect.Struct:
			childPrefix := prefix
			if tag.path != "" {
				childPrefix = prefix + tag.path + "."
			}
			children, err := collectFilter(fv, childPrefix, name+".")
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, filterNode{link: tag.link, children: children})
		}
	}
	return nodes, nil
}

// checkWhitelists records an InvalidOperator error for every slot whose
// operator is outside its whitelist and reports the offending slots.
func (b *builder) checkWhitelists(nodes []filterNode, bad map[*filterSlot]bool) {
	for _, n := range nodes {
		if n.slot == nil {
			b.checkWhitelists(n.children, bad)
			continue
		}
		s := n.slot
		if s.field.Operator == types.OpNone || s.allowed == nil || containsOp(s.allowed, s.field.Operator) {
			continue
		}
		bad[s] = true
		b.reject(types.Condition{Field: s.name, Operator: s.field.Operator, Value: s.field.Value},
			fmt.Errorf("%w: %s not allowed for filter field %s", types.ErrInvalidOperator, s.field.Operator, s.name))
	}
}

func containsOp(ops []types.Operator, op types.Operator) bool {
	for _, o := range ops {
		if o == op {
			return true
		}
	}
	return false
}

// filterObject builds one predicate per top-level slot or nested group.
func (b *builder) filterObject(filter any) ([]*expr.Lambda, error) {
	v := reflect.ValueOf(filter)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, fmt.Errorf("%w: nil filter object", types.ErrInvalidFilterInput)
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: filter object is %s, want struct", types.ErrInvalidFilterInput, v.Type())
	}

	nodes, err := collectFilter(v, "", "")
	if err != nil {
		return nil, err
	}

	bad := make(map[*filterSlot]bool)
	b.checkWhitelists(nodes, bad)
	if len(bad) > 0 && !b.engine.opts.SkipInvalidConditions {
		return nil, nil
	}

	var preds []*expr.Lambda
	for _, n := range nodes {
		if p := b.filterNode(n, bad); p != nil {
			preds = append(preds, p)
		}
	}
	return preds, nil
}

func (b *builder) filterNode(n filterNode, bad map[*filterSlot]bool) *expr.Lambda {
	if n.slot != nil {
		if bad[n.slot] {
			return nil
		}
		return b.condition(types.Condition{
			Field:    n.slot.path,
			Operator: n.slot.field.Operator,
			Value:    n.slot.field.Value,
		})
	}

	children := make([]*expr.Lambda, 0, len(n.children))
	for _, c := range n.children {
		if p := b.filterNode(c, bad); p != nil {
			children = append(children, p)
		}
	}
	if n.link == types.LinkOr {
		return expr.OrAll(children)
	}
	return expr.AndAll(children)
}
