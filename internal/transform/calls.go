// internal/transform/calls.go
package transform

import (
	"reflect"

	"gopkg.in/inf.v0"

	"github.com/solatis/querykit/internal/expr"
	"github.com/solatis/querykit/internal/rules"
)

/*
 * Call-form rewriting.
 *
 *   - Any: the list receiver is folded when captured; the element lambda is
 *     rewritten with its parameter added to the parameter set, so the body
 *     may reference both the element and the outer record.
 *   - Contains: when element and item types differ, a constant list is
 *     converted element-wise to the item type; otherwise the item is
 *     converted to the element type.
 *   - Compare: operands are aligned, then read through pointers.
 *   - string primitives: rebuilt over rewritten operands, reading through
 *     pointers the target introduced.
 */

var decPtrType = reflect.TypeOf((*inf.Dec)(nil))

func (r *rewrite) call(c *expr.Call) expr.Node {
	switch c.Method {
	case expr.Any:
		return r.anyCall(c)
	case expr.Contains:
		return r.containsCall(c)
	case expr.Compare:
		return r.compareCall(c)
	default:
		return r.stringCall(c)
	}
}

func (r *rewrite) anyCall(c *expr.Call) expr.Node {
	if len(c.Args) != 1 {
		return nil
	}
	lam, ok := c.Args[0].(*expr.Lambda)
	if !ok || len(lam.Params) != 1 {
		return nil
	}
	coll := r.list(c.Receiver)
	if coll == nil {
		return nil
	}
	ct := indirectType(coll.Type())
	if ct.Kind() != reflect.Slice && ct.Kind() != reflect.Array {
		return nil
	}

	old := lam.Param()
	elem := expr.NewParameter(old.Name, ct.Elem())
	r.params[old] = elem
	defer delete(r.params, old)

	body := r.boolNode(lam.Body)
	if body == nil || body.Type() != expr.BoolType() {
		return nil
	}
	return expr.NewCall(expr.Any, coll, expr.NewLambda(body, elem))
}

func (r *rewrite) containsCall(c *expr.Call) expr.Node {
	if len(c.Args) != 1 {
		return nil
	}
	coll := r.list(c.Receiver)
	item := r.node(c.Args[0])
	if coll == nil || item == nil {
		return nil
	}
	ct := indirectType(coll.Type())
	if ct.Kind() != reflect.Slice && ct.Kind() != reflect.Array {
		return nil
	}

	if elemT := ct.Elem(); elemT != item.Type() {
		if k, ok := coll.(*expr.Constant); ok && !k.IsNull() {
			coll = r.coerceList(k, item.Type())
		} else {
			item = r.coerce(item, elemT)
		}
		if coll == nil || item == nil {
			return nil
		}
	}
	return expr.NewCall(expr.Contains, coll, item)
}

func (r *rewrite) compareCall(c *expr.Call) expr.Node {
	if len(c.Args) != 2 {
		return nil
	}
	a, b := r.node(c.Args[0]), r.node(c.Args[1])
	if a == nil || b == nil {
		return nil
	}
	a, b = r.align(a, b)
	if a == nil || b == nil {
		return nil
	}
	return expr.NewCall(expr.Compare, nil, r.readThrough(a), r.readThrough(b))
}

func (r *rewrite) stringCall(c *expr.Call) expr.Node {
	recv := r.node(c.Receiver)
	if recv == nil {
		return nil
	}
	args := make([]expr.Node, len(c.Args))
	for i, a := range c.Args {
		n := r.node(a)
		if n == nil {
			return nil
		}
		args[i] = r.readThrough(n)
	}
	return expr.NewCall(c.Method, r.readThrough(recv), args...)
}

// list rewrites a list operand, folding a captured list to a constant.
func (r *rewrite) list(n expr.Node) expr.Node {
	if c, ok := n.(*expr.Captured); ok {
		return expr.ConstOf(freeze(c.Value()), c.Type())
	}
	return r.node(n)
}

// readThrough dereferences a pointer operand, guarding it against nil.
// Constants are dereferenced in place; decimals compare as pointers.
func (r *rewrite) readThrough(n expr.Node) expr.Node {
	t := n.Type()
	if t.Kind() != reflect.Pointer || t == decPtrType {
		return n
	}
	if c, ok := n.(*expr.Constant); ok {
		if c.IsNull() {
			return c
		}
		return expr.ConstOf(c.Value.Elem(), t.Elem())
	}
	r.guards = append(r.guards, rules.NotNull(n))
	return expr.DerefOf(n)
}

// coerceList converts every element of a constant list to t.
func (r *rewrite) coerceList(k *expr.Constant, t reflect.Type) expr.Node {
	src := reflect.Indirect(k.Value)
	out := reflect.MakeSlice(reflect.SliceOf(t), 0, src.Len())
	for i := 0; i < src.Len(); i++ {
		v, ok := coerceValue(src.Index(i), t)
		if !ok {
			r.rw.logger.Debug("cannot coerce list element", "element", i, "to", t.String())
			return nil
		}
		out = reflect.Append(out, v)
	}
	return expr.ConstOf(out, out.Type())
}
