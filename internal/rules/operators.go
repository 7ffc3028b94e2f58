// internal/rules/operators.go
package rules

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/solatis/querykit/internal/expr"
	"github.com/solatis/querykit/internal/types"
)

/*
 * Operator legality and comparison node construction.
 *
 * Legality by family:
 *   - String:  Equal, NotEqual, Contains, ContainsNot, StartsWith, EndsWith, ContainedIn
 *   - Bool, Guid: Equal, NotEqual, ContainedIn
 *   - numeric, DateTime, Enum: Equal, NotEqual, ordering, ContainedIn
 *   - list members of any family: Contains, ContainsNot (membership)
 *
 * Node shapes:
 *   - Equal/NotEqual/ordering: Binary over member and literal (lifted over nil)
 *   - Enum ordering: Compare(member, literal) <op> 0
 *   - string Contains/StartsWith/EndsWith: string call, guarded by
 *     `member != nil` only when the member is nullable
 *   - ContainsNot: negation of the guarded Contains
 *   - ContainedIn: Contains(literal set, member)
 *
 * Case-insensitive mode lower-cases the literal and wraps the member in
 * ToLower for every string operator.
 */

// Allowed reports whether op may be applied to a member of the given type.
func Allowed(info TypeInfo, op types.Operator) bool {
	if info.List {
		return op == types.OpContains || op == types.OpContainsNot
	}
	switch op {
	case types.OpEqual, types.OpNotEqual, types.OpContainedIn:
		return true
	case types.OpGreaterThan, types.OpGreaterOrEqual, types.OpLessThan, types.OpLessOrEqual:
		return info.Family.IsNumeric() || info.Family == FamilyDateTime || info.Family == FamilyEnum
	case types.OpContains, types.OpContainsNot, types.OpStartsWith, types.OpEndsWith:
		return info.Family == FamilyString
	default:
		return false
	}
}

// OperatorsFor lists the operators legal for a member type, in enum order.
func OperatorsFor(info TypeInfo) []types.Operator {
	var ops []types.Operator
	for op := types.OpEqual; op <= types.OpContainedIn; op++ {
		if Allowed(info, op) {
			ops = append(ops, op)
		}
	}
	return ops
}

// BuildComparison builds the comparison body for one condition on access.
// The caller composes path guards in front of the result.
func BuildComparison(access expr.Node, info TypeInfo, op types.Operator, text string, opts Options) (expr.Node, error) {
	if !Allowed(info, op) {
		return nil, fmt.Errorf("%w: %s on %s member", types.ErrInvalidOperator, op, info.Family)
	}
	if info.List {
		return buildMembership(access, info, op, text, opts)
	}
	if op == types.OpContainedIn {
		return buildContainedIn(access, info, text, opts)
	}

	lit, err := ParseLiteral(info, text, opts.UTCDateTimes)
	if err != nil {
		return nil, err
	}
	ci := opts.CaseInsensitive && info.Family == FamilyString

	switch op {
	case types.OpEqual, types.OpNotEqual:
		var body expr.Node
		if ci {
			body = guarded(access, info, expr.NewBinary(expr.Equal, lower(access, info), lowerConst(lit)))
		} else {
			body = expr.NewBinary(expr.Equal, access, expr.ConstOf(lit, info.Base))
		}
		if op == types.OpNotEqual {
			if ci {
				return expr.NotOf(body), nil
			}
			return expr.NewBinary(expr.NotEqual, access, expr.ConstOf(lit, info.Base)), nil
		}
		return body, nil

	case types.OpGreaterThan, types.OpGreaterOrEqual, types.OpLessThan, types.OpLessOrEqual:
		bop := binaryFor(op)
		if info.Family == FamilyEnum {
			cmp := expr.NewCall(expr.Compare, nil, access, expr.ConstOf(lit, info.Base))
			return guarded(access, info, expr.NewBinary(bop, cmp, expr.Const(0))), nil
		}
		return expr.NewBinary(bop, access, expr.ConstOf(lit, info.Base)), nil

	case types.OpContains, types.OpContainsNot, types.OpStartsWith, types.OpEndsWith:
		target := stringTarget(access, info, ci)
		arg := expr.ConstOf(lit, info.Base)
		if ci {
			arg = lowerConst(lit)
		}
		call := guarded(access, info, expr.NewCall(stringMethod(op), target, arg))
		if op == types.OpContainsNot {
			return expr.NotOf(call), nil
		}
		return call, nil
	}
	return nil, fmt.Errorf("%w: %s", types.ErrInvalidOperator, op)
}

// buildMembership handles Contains/ContainsNot on list members.
func buildMembership(access expr.Node, info TypeInfo, op types.Operator, text string, opts Options) (expr.Node, error) {
	lit, err := ParseLiteral(info, text, opts.UTCDateTimes)
	if err != nil {
		return nil, err
	}

	var body expr.Node
	if opts.CaseInsensitive && info.Family == FamilyString {
		// x.Tags.Any(t => ToLower(t) == lit)
		elemType := access.Type().Elem()
		elem := expr.NewParameter("e", elemType)
		elemInfo := TypeInfo{Family: info.Family, Type: elemType, Base: info.Base, Nullable: info.ElemNullable}
		match := guarded(elem, elemInfo, expr.NewBinary(expr.Equal, lower(elem, elemInfo), lowerConst(lit)))
		body = expr.NewCall(expr.Any, access, expr.NewLambda(match, elem))
	} else {
		body = expr.NewCall(expr.Contains, access, expr.ConstOf(lit, info.Base))
	}

	if op == types.OpContainsNot {
		return expr.NotOf(body), nil
	}
	return body, nil
}

// buildContainedIn builds Contains(literal set, member).
func buildContainedIn(access expr.Node, info TypeInfo, text string, opts Options) (expr.Node, error) {
	set, err := ParseLiteralList(info, text, opts.UTCDateTimes)
	if err != nil {
		return nil, err
	}
	if opts.CaseInsensitive && info.Family == FamilyString {
		lowered := reflect.MakeSlice(set.Type(), set.Len(), set.Len())
		for i := 0; i < set.Len(); i++ {
			lowered.Index(i).Set(lowerConst(set.Index(i)).Value)
		}
		call := expr.NewCall(expr.Contains, expr.ConstOf(lowered, set.Type()), lower(access, info))
		return guarded(access, info, call), nil
	}
	return expr.NewCall(expr.Contains, expr.ConstOf(set, set.Type()), access), nil
}

// guarded prefixes body with `access != nil` for nullable members.
func guarded(access expr.Node, info TypeInfo, body expr.Node) expr.Node {
	if !info.Nullable {
		return body
	}
	return expr.NewBinary(expr.AndAlso, NotNull(access), body)
}

// stringTarget is the receiver of a string call: dereferenced when
// nullable, lower-cased in case-insensitive mode.
func stringTarget(access expr.Node, info TypeInfo, ci bool) expr.Node {
	if ci {
		return lower(access, info)
	}
	if info.Nullable {
		return expr.DerefOf(access)
	}
	return access
}

func lower(access expr.Node, info TypeInfo) expr.Node {
	if info.Nullable {
		access = expr.DerefOf(access)
	}
	return expr.NewCall(expr.ToLower, access)
}

// lowerConst lower-cases a string literal, keeping its named type.
func lowerConst(lit reflect.Value) *expr.Constant {
	out := reflect.New(lit.Type()).Elem()
	out.SetString(strings.ToLower(lit.String()))
	return expr.ConstOf(out, lit.Type())
}

func binaryFor(op types.Operator) expr.BinaryOp {
	switch op {
	case types.OpGreaterThan:
		return expr.Greater
	case types.OpGreaterOrEqual:
		return expr.GreaterOrEqual
	case types.OpLessThan:
		return expr.Less
	default:
		return expr.LessOrEqual
	}
}

func stringMethod(op types.Operator) expr.Method {
	switch op {
	case types.OpStartsWith:
		return expr.StartsWith
	case types.OpEndsWith:
		return expr.EndsWith
	default:
		return expr.StringContains
	}
}
