// internal/rules/cost.go
package rules

import (
	"reflect"

	"github.com/solatis/querykit/internal/expr"
)

/*
 * Cost model for predicate evaluation.
 *
 * Estimates the evaluation cost of a predicate tree so a Matcher can run
 * cheap predicates of a conjunction first. Where still returns predicates in
 * declaration order; only the Matcher reorders, and only stably.
 *
 * Cost formula per node: own cost * type multiplier, plus the cost of its
 * operands. Any multiplies its body by CostFanout, the assumed element count.
 * Short-circuit operators count both sides.
 */

const (
	// Node base costs
	CostConstant  = 0
	CostParameter = 0
	CostMember    = 2
	CostNullCheck = 1
	CostNot       = 1
	CostConvert   = 3
	CostEq        = 5
	CostOrder     = 7
	CostCompare   = 7
	CostContains  = 8
	CostPrefix    = 10
	CostSuffix    = 10
	CostSubstring = 24
	CostToLower   = 12

	// Assumed list length for Any and membership tests
	CostFanout = 8

	// Operand type multipliers
	MultiplierInt     = 1
	MultiplierBool    = 1
	MultiplierFloat   = 2
	MultiplierDecimal = 6
	MultiplierString  = 4
	MultiplierOther   = 3
)

// PredicateCost estimates the cost of evaluating l once.
func PredicateCost(l *expr.Lambda) int {
	return nodeCost(l.Body)
}

func nodeCost(n expr.Node) int {
	switch n := n.(type) {
	case nil:
		return 0
	case *expr.Constant, *expr.Captured:
		return CostConstant
	case *expr.Parameter:
		return CostParameter
	case *expr.Member:
		return CostMember + nodeCost(n.Receiver)
	case *expr.Unary:
		switch n.Op {
		case expr.Not:
			return CostNot + nodeCost(n.Operand)
		case expr.Deref:
			return CostNullCheck + nodeCost(n.Operand)
		default:
			return CostConvert + nodeCost(n.Operand)
		}
	case *expr.Binary:
		operands := nodeCost(n.Left) + nodeCost(n.Right)
		switch {
		case n.Op.IsLogical():
			return operands
		case isNullCheck(n):
			return CostNullCheck + operands
		case n.Op == expr.Equal || n.Op == expr.NotEqual:
			return CostEq*typeMultiplier(n.Left.Type()) + operands
		default:
			return CostOrder*typeMultiplier(n.Left.Type()) + operands
		}
	case *expr.Call:
		return callCost(n)
	case *expr.Lambda:
		if n == nil {
			return 0
		}
		return nodeCost(n.Body)
	default:
		return MultiplierOther
	}
}

func callCost(c *expr.Call) int {
	args := nodeCost(c.Receiver)
	for _, a := range c.Args {
		if _, ok := a.(*expr.Lambda); ok {
			continue
		}
		args += nodeCost(a)
	}

	switch c.Method {
	case expr.Any:
		var body *expr.Lambda
		if len(c.Args) > 0 {
			body, _ = c.Args[0].(*expr.Lambda)
		}
		if body == nil {
			return args + CostFanout*MultiplierOther
		}
		return args + CostFanout*nodeCost(body)
	case expr.Contains:
		if c.Receiver == nil {
			return args + CostContains*CostFanout*MultiplierOther
		}
		elem := c.Receiver.Type()
		if elem.Kind() == reflect.Slice {
			elem = elem.Elem()
		}
		return args + CostContains*CostFanout*typeMultiplier(elem)
	case expr.Compare:
		if len(c.Args) == 0 || c.Args[0] == nil {
			return args + CostCompare*MultiplierOther
		}
		return args + CostCompare*typeMultiplier(c.Args[0].Type())
	case expr.StartsWith:
		return args + CostPrefix
	case expr.EndsWith:
		return args + CostSuffix
	case expr.ToLower:
		return args + CostToLower
	default:
		return args + CostSubstring
	}
}

// isNullCheck reports whether b compares against a null constant.
func isNullCheck(b *expr.Binary) bool {
	c, ok := b.Right.(*expr.Constant)
	return ok && c.IsNull()
}

// typeMultiplier scales comparison costs by operand type.
func typeMultiplier(t reflect.Type) int {
	for t.Kind() == reflect.Pointer {
		if t == decPtrType {
			return MultiplierDecimal
		}
		t = t.Elem()
	}
	switch t {
	case decType:
		return MultiplierDecimal
	case timeType, uuidType:
		return MultiplierInt
	}
	switch t.Kind() {
	case reflect.Bool:
		return MultiplierBool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return MultiplierInt
	case reflect.Float32, reflect.Float64:
		return MultiplierFloat
	case reflect.String:
		return MultiplierString
	default:
		return MultiplierOther
	}
}
