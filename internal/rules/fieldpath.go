// internal/rules/fieldpath.go
package rules

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/solatis/querykit/internal/expr"
	"github.com/solatis/querykit/internal/types"
)

/*
 * Member path resolution over Go record types.
 *
 * Resolves dot-separated paths ("Customer.Address.City") against a struct
 * type and produces the expr.Member chain that reads the field. Enforces
 * MaxPathDepth (16) at resolution time.
 *
 * Each hop is matched, in order, by:
 *   1. exact exported Go field name (promoted fields included)
 *   2. case-insensitive field name
 *   3. json tag name
 * Unexported fields never resolve.
 *
 * Null guards: every pointer hop that is followed by another hop records a
 * guard `hop != nil`. Guard composes them in front of a comparison with
 * AndAlso so evaluation short-circuits before the nil dereference.
 *
 * Lookups are cached per (type, name) in a sync.Map; resolution is safe for
 * concurrent use.
 */

// ResolvedPath is a member path bound to a lambda parameter.
type ResolvedPath struct {
	Param    *expr.Parameter
	Access   expr.Node   // member chain reading the final field
	Guards   []expr.Node // non-nil checks for intermediate pointer hops
	Path     string      // canonical path using Go field names
	Nullable bool        // final field is a pointer
}

// ResolvePath resolves path on a fresh parameter of type root.
func ResolvePath(root reflect.Type, path string) (ResolvedPath, error) {
	return ResolveFrom(expr.NewParameter("x", root), path)
}

// ResolveFrom resolves path starting at param.
// Returns ErrPathTooDeep if path exceeds MaxPathDepth.
// Returns ErrUnresolvedMember (wrapped with the failing hop) otherwise.
func ResolveFrom(param *expr.Parameter, path string) (ResolvedPath, error) {
	return ResolveOn(param, param, path)
}

// ResolveOn resolves path starting at an arbitrary receiver node bound to param.
func ResolveOn(param *expr.Parameter, start expr.Node, path string) (ResolvedPath, error) {
	if strings.TrimSpace(path) == "" {
		return ResolvedPath{}, fmt.Errorf("%w: empty path", types.ErrUnresolvedMember)
	}
	hops := strings.Split(path, ".")
	if len(hops) > types.MaxPathDepth {
		return ResolvedPath{}, types.ErrPathTooDeep
	}

	var (
		node   = start
		guards []expr.Node
		names  = make([]string, 0, len(hops))
	)
	for i, hop := range hops {
		f, ok := FieldOf(node.Type(), strings.TrimSpace(hop))
		if !ok {
			return ResolvedPath{}, fmt.Errorf("%w: %q on %s", types.ErrUnresolvedMember, hop, node.Type())
		}
		m := expr.NewMember(node, f)
		if f.Type.Kind() == reflect.Pointer && i < len(hops)-1 {
			guards = append(guards, NotNull(m))
		}
		names = append(names, f.Name)
		node = m
	}

	return ResolvedPath{
		Param:    param,
		Access:   node,
		Guards:   guards,
		Path:     strings.Join(names, "."),
		Nullable: node.Type().Kind() == reflect.Pointer,
	}, nil
}

// Guard prefixes body with the path's null guards.
func (r ResolvedPath) Guard(body expr.Node) expr.Node {
	for i := len(r.Guards) - 1; i >= 0; i-- {
		body = expr.NewBinary(expr.AndAlso, r.Guards[i], body)
	}
	return body
}

// Lambda wraps body as a predicate over the path's parameter.
func (r ResolvedPath) Lambda(body expr.Node) *expr.Lambda {
	return expr.NewLambda(body, r.Param)
}

// NotNull builds `n != nil`.
func NotNull(n expr.Node) expr.Node {
	return expr.NewBinary(expr.NotEqual, n, expr.Null(n.Type()))
}

type fieldKey struct {
	t    reflect.Type
	name string
}

type fieldEntry struct {
	field reflect.StructField
	ok    bool
}

var fieldCache sync.Map // fieldKey -> fieldEntry

// FieldOf looks up an exported field by name on t (pointers followed).
func FieldOf(t reflect.Type, name string) (reflect.StructField, bool) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct || name == "" {
		return reflect.StructField{}, false
	}

	key := fieldKey{t: t, name: name}
	if cached, ok := fieldCache.Load(key); ok {
		e := cached.(fieldEntry)
		return e.field, e.ok
	}

	f, ok := lookupField(t, name)
	fieldCache.Store(key, fieldEntry{field: f, ok: ok})
	return f, ok
}

func lookupField(t reflect.Type, name string) (reflect.StructField, bool) {
	if f, ok := t.FieldByName(name); ok && f.IsExported() {
		return f, true
	}

	fields := reflect.VisibleFields(t)
	for _, f := range fields {
		if f.IsExported() && strings.EqualFold(f.Name, name) {
			return f, true
		}
	}
	for _, f := range fields {
		if !f.IsExported() {
			continue
		}
		tag, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if tag != "" && tag != "-" && strings.EqualFold(tag, name) {
			return f, true
		}
	}
	return reflect.StructField{}, false
}
