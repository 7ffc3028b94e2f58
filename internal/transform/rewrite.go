// internal/transform/rewrite.go
package transform

import (
	"reflect"
	"time"

	"github.com/solatis/querykit/internal/expr"
	"github.com/solatis/querykit/internal/log"
	"github.com/solatis/querykit/internal/rules"
)

/*
 * Cross-schema predicate rewriting.
 *
 * Retargets a predicate built over a source record type onto a target record
 * type. Member chains rooted at the predicate parameter are redirected
 * through the registry (exact path, then longest mapped prefix), fall back to
 * the same field name on the target, and otherwise re-resolve the trailing
 * hop on the rewritten parent.
 *
 * Best effort and silent: any member that cannot be placed on the target
 * makes its enclosing predicate unusable, and Rewrite returns nil. Failures
 * are logged at debug level only.
 *
 * Null safety: when the target introduces pointer hops the source did not
 * have, including a pointer leaf compared where the source compared a plain
 * value, the rewrite records `hop != nil` guards and prefixes them to the
 * nearest enclosing boolean node, so nil target values never match and never
 * fail evaluation.
 *
 * Captured values: time.Time captures and members read off a captured struct
 * are folded to constants; other captures stay late-bound, except the list
 * receiver of Any, which is folded.
 */

// Rewriter retargets predicates between record types.
type Rewriter struct {
	registry *Registry
	logger   log.Logger
}

// NewRewriter creates a rewriter over registry. A nil registry behaves like
// an empty one; a nil logger discards output.
func NewRewriter(registry *Registry, logger log.Logger) *Rewriter {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Rewriter{registry: registry, logger: log.OrNop(logger)}
}

// Rewrite retargets pred from src onto dst. With ignoreMappings the registry
// is bypassed and members resolve by name only. Returns nil when pred is not
// a predicate over src or when any member cannot be placed on dst.
func (rw *Rewriter) Rewrite(pred *expr.Lambda, src, dst reflect.Type, ignoreMappings bool) *expr.Lambda {
	if pred == nil || src == nil || dst == nil || len(pred.Params) != 1 || pred.Param().Type() != src {
		return nil
	}

	r := &rewrite{
		rw:     rw,
		src:    src,
		dst:    dst,
		params: make(map[*expr.Parameter]*expr.Parameter),
	}
	if !ignoreMappings {
		r.table = rw.registry.Lookup(src, dst)
	}

	param := expr.NewParameter(pred.Param().Name, dst)
	r.params[pred.Param()] = param

	body := r.boolNode(pred.Body)
	if body == nil || body.Type() != expr.BoolType() {
		return nil
	}
	return expr.NewLambda(body, param)
}

// Rewrite is the generic form of Rewriter.Rewrite.
func Rewrite[S, D any](rw *Rewriter, pred *expr.Lambda, ignoreMappings bool) *expr.Lambda {
	return rw.Rewrite(pred, reflect.TypeFor[S](), reflect.TypeFor[D](), ignoreMappings)
}

// rewrite carries the state of one Rewrite call.
type rewrite struct {
	rw       *Rewriter
	src, dst reflect.Type
	table    []PathMapping
	params   map[*expr.Parameter]*expr.Parameter
	guards   []expr.Node
}

// boolNode rewrites n and prefixes the guards its subtree introduced.
func (r *rewrite) boolNode(n expr.Node) expr.Node {
	mark := len(r.guards)
	out := r.node(n)
	return r.wrap(mark, out)
}

// wrap prefixes guards recorded since mark to n and drops them.
func (r *rewrite) wrap(mark int, n expr.Node) expr.Node {
	pending := r.guards[mark:]
	r.guards = r.guards[:mark]
	if n == nil || len(pending) == 0 {
		return n
	}
	for i := len(pending) - 1; i >= 0; i-- {
		n = expr.NewBinary(expr.AndAlso, pending[i], n)
	}
	return n
}

func (r *rewrite) node(n expr.Node) expr.Node {
	switch n := n.(type) {
	case *expr.Parameter:
		if np, ok := r.params[n]; ok {
			return np
		}
		return n
	case *expr.Constant:
		return n
	case *expr.Captured:
		if n.Type() == timeType {
			return expr.ConstOf(freeze(n.Value()), n.Type())
		}
		return n
	case *expr.Member:
		return r.member(n)
	case *expr.Unary:
		return r.unary(n)
	case *expr.Binary:
		return r.binary(n)
	case *expr.Call:
		return r.call(n)
	default:
		return n
	}
}

func (r *rewrite) unary(u *expr.Unary) expr.Node {
	switch u.Op {
	case expr.Not:
		operand := r.boolNode(u.Operand)
		if operand == nil {
			return nil
		}
		return expr.NotOf(operand)
	case expr.Convert:
		return r.node(u.Operand)
	default: // Deref
		operand := r.node(u.Operand)
		if operand == nil {
			return nil
		}
		if operand.Type().Kind() != reflect.Pointer {
			return operand
		}
		return expr.DerefOf(operand)
	}
}

func (r *rewrite) binary(b *expr.Binary) expr.Node {
	if b.Op.IsLogical() {
		left := r.boolNode(b.Left)
		right := r.boolNode(b.Right)
		if left == nil || right == nil {
			return nil
		}
		return expr.NewBinary(b.Op, left, right)
	}

	left := r.node(b.Left)
	right := r.node(b.Right)
	if left == nil || right == nil {
		return nil
	}
	left, right = r.align(left, right)
	if left == nil || right == nil {
		return nil
	}
	r.bridge(b.Left, left)
	r.bridge(b.Right, right)
	return expr.NewBinary(b.Op, left, right)
}

// bridge guards a target member that is a pointer where the source operand
// it replaces was not, so a nil target value never matches.
func (r *rewrite) bridge(orig, n expr.Node) {
	if n.Type().Kind() != reflect.Pointer || orig.Type().Kind() == reflect.Pointer {
		return
	}
	if _, ok := n.(*expr.Member); ok && r.isTargetAccess(n) {
		r.guards = append(r.guards, rules.NotNull(n))
	}
}

// align coerces the non-member side of a comparison to the type of the
// member side when exactly one side reads the target record.
func (r *rewrite) align(left, right expr.Node) (expr.Node, expr.Node) {
	lm, rm := r.isTargetAccess(left), r.isTargetAccess(right)
	switch {
	case lm && !rm:
		return left, r.coerce(right, left.Type())
	case rm && !lm:
		return r.coerce(left, right.Type()), right
	default:
		return left, right
	}
}

// isTargetAccess reports whether n is a member chain on a rewritten parameter.
func (r *rewrite) isTargetAccess(n expr.Node) bool {
	if u, ok := n.(*expr.Unary); ok && u.Op == expr.Deref {
		n = u.Operand
	}
	m, ok := n.(*expr.Member)
	if !ok {
		return false
	}
	p, ok := m.Root().(*expr.Parameter)
	if !ok {
		return false
	}
	for _, np := range r.params {
		if np == p {
			return true
		}
	}
	return false
}

// member places a member chain on the target.
func (r *rewrite) member(m *expr.Member) expr.Node {
	switch root := m.Root().(type) {
	case *expr.Captured:
		return r.foldCaptured(m)
	case *expr.Parameter:
		np, ok := r.params[root]
		if !ok {
			return m
		}
		if root == np {
			return m
		}
		return r.memberOn(m, root, np)
	default:
		return m
	}
}

// foldCaptured reads a member off a captured value and folds it.
func (r *rewrite) foldCaptured(m *expr.Member) expr.Node {
	v, err := expr.Eval(m, expr.Env{})
	if err != nil {
		r.rw.logger.Debug("cannot fold captured member", "member", m.String(), "error", err)
		return nil
	}
	return expr.ConstOf(freeze(v), m.Type())
}

func (r *rewrite) memberOn(m *expr.Member, old, np *expr.Parameter) expr.Node {
	path := m.Path()

	if old.Type() == r.src {
		if target, ok := resolve(r.table, path); ok {
			return r.resolveOn(np, np, target, path)
		}
	}

	if _, single := m.Receiver.(*expr.Parameter); single {
		return r.resolveOn(np, np, m.Field.Name, path)
	}

	parent := r.node(m.Receiver)
	if parent == nil {
		return nil
	}
	return r.resolveOn(np, parent, m.Field.Name, path)
}

// resolveOn resolves path below start and records its pointer guards.
func (r *rewrite) resolveOn(np *expr.Parameter, start expr.Node, path, source string) expr.Node {
	if start != expr.Node(np) && start.Type().Kind() == reflect.Pointer {
		r.guards = append(r.guards, rules.NotNull(start))
	}
	rp, err := rules.ResolveOn(np, start, path)
	if err != nil {
		r.rw.logger.Debug("unresolved member on target",
			"source_type", r.src.String(),
			"target_type", r.dst.String(),
			"member", source,
			"error", err)
		return nil
	}
	r.guards = append(r.guards, rp.Guards...)
	return rp.Access
}

// coerce converts n to type t for comparison with a target member.
func (r *rewrite) coerce(n expr.Node, t reflect.Type) expr.Node {
	if n.Type() == t {
		return n
	}
	if c, ok := n.(*expr.Constant); ok {
		return r.coerceConstant(c, t)
	}

	from := n.Type()
	switch {
	case t.Kind() == reflect.Pointer && from == t.Elem():
		return expr.ConvertTo(n, t)
	case from.Kind() == reflect.Pointer && from.Elem() == t:
		r.guards = append(r.guards, rules.NotNull(n))
		return expr.DerefOf(n)
	case expr.Convertible(indirectType(from), indirectType(t)):
		return expr.ConvertTo(n, t)
	}
	r.rw.logger.Debug("cannot coerce operand", "operand", n.String(), "from", from.String(), "to", t.String())
	return nil
}

func (r *rewrite) coerceConstant(c *expr.Constant, t reflect.Type) expr.Node {
	if c.IsNull() {
		if nullable(t) {
			return expr.Null(t)
		}
		return c
	}
	v, ok := coerceValue(c.Value, t)
	if !ok {
		r.rw.logger.Debug("cannot coerce literal", "literal", c.String(), "to", t.String())
		return nil
	}
	return expr.ConstOf(v, t)
}

// coerceValue converts v to t by lossless numeric conversion, else by
// formatting and re-parsing the literal text.
func coerceValue(v reflect.Value, t reflect.Type) (reflect.Value, bool) {
	base := indirectType(t)
	inner := v
	for inner.Kind() == reflect.Pointer {
		if inner.IsNil() {
			return reflect.Zero(t), nullable(t)
		}
		inner = inner.Elem()
	}

	if expr.Convertible(inner.Type(), base) {
		out := inner.Convert(base)
		if out.CanConvert(inner.Type()) && expr.Equals(out.Convert(inner.Type()), inner) {
			return wrapValue(out, t)
		}
	}

	info, ok := rules.Classify(base)
	if !ok {
		return reflect.Value{}, false
	}
	parsed, err := rules.ParseLiteral(info, rules.FormatLiteral(inner), false)
	if err != nil {
		return reflect.Value{}, false
	}
	return wrapValue(parsed, t)
}

// wrapValue converts a scalar value to t, adding the pointer level if t has one.
func wrapValue(v reflect.Value, t reflect.Type) (reflect.Value, bool) {
	out, err := expr.ConvertValue(v, t)
	if err != nil {
		return reflect.Value{}, false
	}
	return out, true
}

var timeType = reflect.TypeOf(time.Time{})

// freeze copies v out of the captured variable it may alias. Slices get a
// fresh backing array.
func freeze(v reflect.Value) reflect.Value {
	if v.Kind() == reflect.Slice {
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		reflect.Copy(out, v)
		return out
	}
	out := reflect.New(v.Type()).Elem()
	out.Set(v)
	return out
}

func indirectType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

func nullable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface:
		return true
	default:
		return false
	}
}
