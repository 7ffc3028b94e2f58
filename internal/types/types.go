// Package types provides domain models shared across querykit components.
//
// Zero-dependency design: types.go, rules.go and errors.go use only the
// standard library so the filter wire shapes can be imported by clients
// without pulling in the engine. ID utilities in ids.go import uuid but are
// isolated from the rest.
package types

import (
	"fmt"
	"strings"
)

// RecordID represents a UUIDv7 log record identifier.
// String alias keeps JSON and SQL serialization plain text.
type RecordID string

// Operator is the comparison applied by a filter condition.
type Operator int

const (
	OpNone Operator = iota
	OpEqual
	OpNotEqual
	OpGreaterThan
	OpGreaterOrEqual
	OpLessThan
	OpLessOrEqual
	OpContains
	OpContainsNot
	OpStartsWith
	OpEndsWith
	OpContainedIn
)

var operatorNames = [...]string{
	OpNone:           "None",
	OpEqual:          "Equal",
	OpNotEqual:       "NotEqual",
	OpGreaterThan:    "GreaterThan",
	OpGreaterOrEqual: "GreaterOrEqual",
	OpLessThan:       "LessThan",
	OpLessOrEqual:    "LessOrEqual",
	OpContains:       "Contains",
	OpContainsNot:    "ContainsNot",
	OpStartsWith:     "StartsWith",
	OpEndsWith:       "EndsWith",
	OpContainedIn:    "ContainedIn",
}

// Short aliases accepted on the wire in addition to the full names.
var operatorAliases = map[string]Operator{
	"eq":         OpEqual,
	"neq":        OpNotEqual,
	"gt":         OpGreaterThan,
	"gte":        OpGreaterOrEqual,
	"lt":         OpLessThan,
	"lte":        OpLessOrEqual,
	"contains":   OpContains,
	"ncontains":  OpContainsNot,
	"startswith": OpStartsWith,
	"endswith":   OpEndsWith,
	"in":         OpContainedIn,
}

// String returns the canonical operator name.
func (o Operator) String() string {
	if o < 0 || int(o) >= len(operatorNames) {
		return fmt.Sprintf("Operator(%d)", int(o))
	}
	return operatorNames[o]
}

// ParseOperator accepts a canonical name (case-insensitive) or a short alias.
// Empty input maps to OpNone.
func ParseOperator(s string) (Operator, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return OpNone, nil
	}
	for i, name := range operatorNames {
		if strings.EqualFold(name, s) {
			return Operator(i), nil
		}
	}
	if op, ok := operatorAliases[strings.ToLower(s)]; ok {
		return op, nil
	}
	return OpNone, fmt.Errorf("%w: unknown operator %q", ErrInvalidOperator, s)
}

// MarshalText implements encoding.TextMarshaler.
func (o Operator) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Operator) UnmarshalText(text []byte) error {
	op, err := ParseOperator(string(text))
	if err != nil {
		return err
	}
	*o = op
	return nil
}

// IsOrdering reports whether the operator is one of the four ordering comparisons.
func (o Operator) IsOrdering() bool {
	switch o {
	case OpGreaterThan, OpGreaterOrEqual, OpLessThan, OpLessOrEqual:
		return true
	default:
		return false
	}
}

// LinkOperator joins the members of a filter group.
type LinkOperator int

const (
	LinkAnd LinkOperator = iota
	LinkOr
)

// String returns "and" or "or".
func (l LinkOperator) String() string {
	if l == LinkOr {
		return "or"
	}
	return "and"
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *LinkOperator) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "", "and", "&&":
		*l = LinkAnd
	case "or", "||":
		*l = LinkOr
	default:
		return fmt.Errorf("%w: unknown link operator %q", ErrInvalidFilterInput, string(text))
	}
	return nil
}

// Direction is the sort direction of a sort condition.
type Direction int

const (
	DirectionNone Direction = iota
	DirectionAscending
	DirectionDescending
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionAscending:
		return "asc"
	case DirectionDescending:
		return "desc"
	default:
		return "none"
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
// Unknown text maps to DirectionNone; sort conditions never fail.
func (d *Direction) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "asc", "ascending":
		*d = DirectionAscending
	case "desc", "descending":
		*d = DirectionDescending
	default:
		*d = DirectionNone
	}
	return nil
}

// Resource limits enforced by the engines.
const (
	// MaxPathDepth bounds member path resolution.
	// 16 hops is far beyond any realistic record graph.
	MaxPathDepth = 16

	// MaxGroupDepth bounds filter group recursion.
	MaxGroupDepth = 32

	// MaxContainedInValues limits the literal set of a ContainedIn condition.
	MaxContainedInValues = 1024
)
