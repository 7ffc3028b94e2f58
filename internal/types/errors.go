package types

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for querykit operations.
var (
	// ErrUnresolvedMember indicates a member path hop does not exist or is unexported.
	ErrUnresolvedMember = errors.New("member path cannot be resolved")

	// ErrInvalidOperator indicates an operator that is unknown, illegal for the
	// member's family, or outside a filter field's whitelist.
	ErrInvalidOperator = errors.New("invalid operator for member type")

	// ErrInvalidLiteral indicates raw text that yields no usable literal.
	ErrInvalidLiteral = errors.New("value cannot be parsed for member type")

	// ErrInvalidFilterInput indicates a query with no usable input form.
	ErrInvalidFilterInput = errors.New("invalid filter input")

	// ErrPathTooDeep indicates a member path exceeds MaxPathDepth.
	ErrPathTooDeep = errors.New("member path exceeds maximum depth")

	// ErrGroupTooDeep indicates a filter group nesting exceeds MaxGroupDepth.
	ErrGroupTooDeep = errors.New("filter group exceeds maximum depth")

	// ErrTooManyValues indicates a ContainedIn literal exceeds MaxContainedInValues.
	ErrTooManyValues = errors.New("ContainedIn has too many values")

	// ErrNullReference indicates a member access through a nil pointer during evaluation.
	ErrNullReference = errors.New("member access through nil reference")

	// ErrTypeMismatch indicates an evaluated value has an unexpected type.
	ErrTypeMismatch = errors.New("type mismatch")
)

// ErrorKind tags a ValidationError with its failure category.
type ErrorKind string

const (
	KindUnresolvedMember ErrorKind = "unresolved_member"
	KindInvalidOperator  ErrorKind = "invalid_operator"
	KindInvalidLiteral   ErrorKind = "invalid_literal"
)

// ValidationError describes one rejected filter condition.
type ValidationError struct {
	Field    string
	Operator Operator
	Value    string
	Kind     ErrorKind
	Err      error // underlying cause; may be nil
}

// Error implements error.
func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("%s: field %q operator %s value %q", e.Kind, e.Field, e.Operator, e.Value)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the sentinel for the error kind plus the underlying cause.
func (e *ValidationError) Unwrap() []error {
	var sentinel error
	switch e.Kind {
	case KindUnresolvedMember:
		sentinel = ErrUnresolvedMember
	case KindInvalidOperator:
		sentinel = ErrInvalidOperator
	case KindInvalidLiteral:
		sentinel = ErrInvalidLiteral
	}
	errs := make([]error, 0, 2)
	if sentinel != nil {
		errs = append(errs, sentinel)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// ValidationErrors is the batch of every rejected condition of one build call.
type ValidationErrors []*ValidationError

// Error implements error.
func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, e := range v {
		parts = append(parts, e.Error())
	}
	return fmt.Sprintf("%d invalid filter condition(s): %s", len(v), strings.Join(parts, "; "))
}

// Unwrap exposes every entry to errors.Is and errors.As.
func (v ValidationErrors) Unwrap() []error {
	errs := make([]error, len(v))
	for i, e := range v {
		errs[i] = e
	}
	return errs
}

// HasKind reports whether any entry carries the given kind.
func (v ValidationErrors) HasKind(kind ErrorKind) bool {
	for _, e := range v {
		if e.Kind == kind {
			return true
		}
	}
	return false
}
