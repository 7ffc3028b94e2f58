package expr

/*
 * Predicate combinators.
 *
 * And/Or join two predicates over the same record type. Each operand was
 * built with its own Parameter, so both bodies are rebound onto one fresh
 * shared Parameter by structural substitution before joining.
 *
 * AndAll/OrAll fold left to right:
 *   - empty input yields nil (no predicate)
 *   - a single input is returned unchanged (same pointer)
 */

// Substitute returns n with every occurrence of old replaced by repl.
// Unchanged subtrees are shared with the input.
func Substitute(n Node, old *Parameter, repl Node) Node {
	return Replace(n, map[*Parameter]Node{old: repl})
}

// Replace substitutes several parameters at once.
func Replace(n Node, subst map[*Parameter]Node) Node {
	switch n := n.(type) {
	case *Parameter:
		if r, ok := subst[n]; ok {
			return r
		}
		return n
	case *Member:
		recv := Replace(n.Receiver, subst)
		if recv == n.Receiver {
			return n
		}
		return NewMember(recv, n.Field)
	case *Unary:
		op := Replace(n.Operand, subst)
		if op == n.Operand {
			return n
		}
		return &Unary{Op: n.Op, Operand: op, typ: n.typ}
	case *Binary:
		l, r := Replace(n.Left, subst), Replace(n.Right, subst)
		if l == n.Left && r == n.Right {
			return n
		}
		return NewBinary(n.Op, l, r)
	case *Call:
		var recv Node
		if n.Receiver != nil {
			recv = Replace(n.Receiver, subst)
		}
		changed := recv != n.Receiver
		args := make([]Node, len(n.Args))
		for i, a := range n.Args {
			args[i] = Replace(a, subst)
			changed = changed || args[i] != a
		}
		if !changed {
			return n
		}
		return NewCall(n.Method, recv, args...)
	case *Lambda:
		body := Replace(n.Body, subst)
		if body == n.Body {
			return n
		}
		return NewLambda(body, n.Params...)
	default:
		return n
	}
}

// And joins a and b with AndAlso over a fresh shared parameter.
// A nil operand yields the other operand.
func And(a, b *Lambda) *Lambda {
	return join(AndAlso, a, b)
}

// Or joins a and b with OrElse over a fresh shared parameter.
// A nil operand yields the other operand.
func Or(a, b *Lambda) *Lambda {
	return join(OrElse, a, b)
}

func join(op BinaryOp, a, b *Lambda) *Lambda {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	p := NewParameter(a.Param().Name, a.Param().Type())
	left := Substitute(a.Body, a.Param(), p)
	right := Substitute(b.Body, b.Param(), p)
	return NewLambda(NewBinary(op, left, right), p)
}

// AndAll folds preds with And. Nil entries are skipped.
func AndAll(preds []*Lambda) *Lambda {
	return fold(AndAlso, preds)
}

// OrAll folds preds with Or. Nil entries are skipped.
func OrAll(preds []*Lambda) *Lambda {
	return fold(OrElse, preds)
}

func fold(op BinaryOp, preds []*Lambda) *Lambda {
	var acc *Lambda
	for _, p := range preds {
		if p == nil {
			continue
		}
		acc = join(op, acc, p)
	}
	return acc
}
