// Package expr is the predicate AST shared by the rule builders and the
// cross-schema rewriter.
//
// Nodes are immutable once built. Every transformation (parameter
// substitution, rewriting onto another record type) returns new nodes and
// leaves its input untouched, so a graph can be shared between goroutines
// and evaluated concurrently.
package expr

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/inf.v0"
)

var (
	boolType   = reflect.TypeOf(false)
	intType    = reflect.TypeOf(0)
	stringType = reflect.TypeOf("")
	timeType   = reflect.TypeOf(time.Time{})
	decPtrType = reflect.TypeOf((*inf.Dec)(nil))
	decType    = reflect.TypeOf(inf.Dec{})
)

// BoolType is the type every predicate body must have.
func BoolType() reflect.Type { return boolType }

// Node is a sealed predicate AST node.
type Node interface {
	// Type is the static type of the value the node produces.
	Type() reflect.Type
	String() string
	node()
}

// Parameter is a lambda parameter. Identity is pointer identity.
type Parameter struct {
	Name string
	typ  reflect.Type
}

// NewParameter creates a parameter bound to values of type t.
func NewParameter(name string, t reflect.Type) *Parameter {
	return &Parameter{Name: name, typ: t}
}

func (p *Parameter) Type() reflect.Type { return p.typ }
func (p *Parameter) String() string     { return p.Name }
func (*Parameter) node()                {}

// Constant is a literal value folded into the tree.
type Constant struct {
	Value reflect.Value
	typ   reflect.Type
}

// Const wraps v as a constant of v's dynamic type.
// Use Null for typed nil constants.
func Const(v any) *Constant {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		panic("expr: Const(nil); use Null with an explicit type")
	}
	return &Constant{Value: rv, typ: rv.Type()}
}

// ConstOf wraps an existing reflect.Value as a constant of type t.
// v must be assignable to t.
func ConstOf(v reflect.Value, t reflect.Type) *Constant {
	if v.Type() != t {
		out := reflect.New(t).Elem()
		out.Set(v)
		v = out
	}
	return &Constant{Value: v, typ: t}
}

// Null returns the nil constant of a nullable type.
func Null(t reflect.Type) *Constant {
	return &Constant{Value: reflect.Zero(t), typ: t}
}

// IsNull reports whether the constant holds a nil pointer, slice or interface.
func (c *Constant) IsNull() bool {
	return isNil(c.Value)
}

// Interface returns the constant's value.
func (c *Constant) Interface() any { return c.Value.Interface() }

func (c *Constant) Type() reflect.Type { return c.typ }
func (c *Constant) String() string     { return formatValue(c.Value) }
func (*Constant) node()                {}

// Captured is a reference to a caller variable. Evaluation reads the variable
// at call time; the rewriter folds it into a Constant.
type Captured struct {
	Name string
	ref  reflect.Value // pointer to the captured variable
}

// Capture references the variable behind ptr. Panics when ptr is not a
// non-nil pointer, like regexp.MustCompile on a bad pattern.
func Capture(name string, ptr any) *Captured {
	rv := reflect.ValueOf(ptr)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		panic(fmt.Sprintf("expr: Capture(%q) needs a non-nil pointer, got %T", name, ptr))
	}
	return &Captured{Name: name, ref: rv}
}

// Value reads the captured variable.
func (c *Captured) Value() reflect.Value { return c.ref.Elem() }

func (c *Captured) Type() reflect.Type { return c.ref.Type().Elem() }
func (c *Captured) String() string     { return "$" + c.Name }
func (*Captured) node()                {}

// Member reads a struct field from Receiver. A pointer receiver is followed
// implicitly; a nil receiver fails evaluation with ErrNullReference.
type Member struct {
	Receiver Node
	Field    reflect.StructField
}

// NewMember selects field on the receiver's struct type.
func NewMember(receiver Node, field reflect.StructField) *Member {
	return &Member{Receiver: receiver, Field: field}
}

// Path renders the member chain below its root, e.g. "Customer.Name".
func (m *Member) Path() string {
	if inner, ok := m.Receiver.(*Member); ok {
		return inner.Path() + "." + m.Field.Name
	}
	return m.Field.Name
}

// Root returns the node at the bottom of the member chain.
func (m *Member) Root() Node {
	if inner, ok := m.Receiver.(*Member); ok {
		return inner.Root()
	}
	return m.Receiver
}

func (m *Member) Type() reflect.Type { return m.Field.Type }
func (m *Member) String() string     { return m.Receiver.String() + "." + m.Field.Name }
func (*Member) node()                {}

// UnaryOp is the operator of a Unary node.
type UnaryOp int

const (
	// Not negates a bool.
	Not UnaryOp = iota
	// Convert changes the operand's static type (numeric widening, pointer wrap/unwrap).
	Convert
	// Deref reads the value behind a pointer.
	Deref
)

// Unary applies a single-operand operator.
type Unary struct {
	Op      UnaryOp
	Operand Node
	typ     reflect.Type
}

// NotOf negates a bool operand.
func NotOf(operand Node) *Unary {
	return &Unary{Op: Not, Operand: operand, typ: boolType}
}

// ConvertTo converts operand to type t.
func ConvertTo(operand Node, t reflect.Type) *Unary {
	return &Unary{Op: Convert, Operand: operand, typ: t}
}

// DerefOf reads through a pointer operand.
func DerefOf(operand Node) *Unary {
	t := operand.Type()
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return &Unary{Op: Deref, Operand: operand, typ: t}
}

func (u *Unary) Type() reflect.Type { return u.typ }

func (u *Unary) String() string {
	switch u.Op {
	case Not:
		return "!(" + u.Operand.String() + ")"
	case Convert:
		return "convert(" + u.Operand.String() + ", " + u.typ.String() + ")"
	default:
		return u.Operand.String() + ".Value"
	}
}

func (*Unary) node() {}

// BinaryOp is the operator of a Binary node.
type BinaryOp int

const (
	AndAlso BinaryOp = iota
	OrElse
	Equal
	NotEqual
	Greater
	GreaterOrEqual
	Less
	LessOrEqual
)

var binarySymbols = [...]string{
	AndAlso:        "&&",
	OrElse:         "||",
	Equal:          "==",
	NotEqual:       "!=",
	Greater:        ">",
	GreaterOrEqual: ">=",
	Less:           "<",
	LessOrEqual:    "<=",
}

func (op BinaryOp) String() string { return binarySymbols[op] }

// IsLogical reports whether op is AndAlso or OrElse.
func (op BinaryOp) IsLogical() bool { return op == AndAlso || op == OrElse }

// Binary applies a two-operand operator. The result is always bool.
// Comparisons are lifted: a nil pointer operand never panics.
type Binary struct {
	Op    BinaryOp
	Left  Node
	Right Node
}

// NewBinary builds a binary node.
func NewBinary(op BinaryOp, left, right Node) *Binary {
	return &Binary{Op: op, Left: left, Right: right}
}

func (b *Binary) Type() reflect.Type { return boolType }
func (b *Binary) String() string {
	return "(" + b.Left.String() + " " + b.Op.String() + " " + b.Right.String() + ")"
}
func (*Binary) node() {}

// Method identifies the operation of a Call node.
type Method int

const (
	// Any reports whether Args[0] (a one-parameter *Lambda) holds for some
	// element of the Receiver collection.
	Any Method = iota
	// Contains reports collection membership of Args[0] in Receiver.
	Contains
	// Compare is the three-way comparison of Args[0] and Args[1].
	Compare
	// StringContains reports whether Receiver contains the substring Args[0].
	StringContains
	StartsWith
	EndsWith
	// ToLower lower-cases the Receiver string.
	ToLower
)

var methodNames = [...]string{
	Any:            "Any",
	Contains:       "Contains",
	Compare:        "Compare",
	StringContains: "Contains",
	StartsWith:     "StartsWith",
	EndsWith:       "EndsWith",
	ToLower:        "ToLower",
}

func (m Method) String() string { return methodNames[m] }

// Call invokes a built-in method. Receiver is nil for Compare.
type Call struct {
	Method   Method
	Receiver Node
	Args     []Node
}

// NewCall builds a call node.
func NewCall(method Method, receiver Node, args ...Node) *Call {
	return &Call{Method: method, Receiver: receiver, Args: args}
}

func (c *Call) Type() reflect.Type {
	switch c.Method {
	case Compare:
		return intType
	case ToLower:
		return stringType
	default:
		return boolType
	}
}

func (c *Call) String() string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = a.String()
	}
	if c.Receiver == nil {
		return c.Method.String() + "(" + strings.Join(args, ", ") + ")"
	}
	return c.Receiver.String() + "." + c.Method.String() + "(" + strings.Join(args, ", ") + ")"
}

func (*Call) node() {}

// Lambda is a function literal. A predicate is a Lambda with one parameter
// and a bool body.
type Lambda struct {
	Params []*Parameter
	Body   Node
}

// NewLambda builds a lambda over params.
func NewLambda(body Node, params ...*Parameter) *Lambda {
	return &Lambda{Params: params, Body: body}
}

// Param returns the first parameter.
func (l *Lambda) Param() *Parameter { return l.Params[0] }

// IsPredicate reports whether l is a one-parameter lambda with a bool body.
func (l *Lambda) IsPredicate() bool {
	return l != nil && len(l.Params) == 1 && l.Body != nil && l.Body.Type() == boolType
}

func (l *Lambda) Type() reflect.Type { return l.Body.Type() }

func (l *Lambda) String() string {
	names := make([]string, len(l.Params))
	for i, p := range l.Params {
		names[i] = p.Name
	}
	head := strings.Join(names, ", ")
	if len(names) != 1 {
		head = "(" + head + ")"
	}
	return head + " => " + l.Body.String()
}

func (*Lambda) node() {}

// formatValue renders a literal for String().
func formatValue(v reflect.Value) string {
	if !v.IsValid() || isNil(v) {
		return "null"
	}
	switch x := v.Interface().(type) {
	case string:
		return strconv.Quote(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case *inf.Dec:
		return x.String()
	case fmt.Stringer:
		return x.String()
	}
	switch v.Kind() {
	case reflect.Pointer:
		return formatValue(v.Elem())
	case reflect.Slice, reflect.Array:
		parts := make([]string, v.Len())
		for i := range parts {
			parts[i] = formatValue(v.Index(i))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case reflect.String:
		return strconv.Quote(v.String())
	}
	return fmt.Sprintf("%v", v.Interface())
}

// isNil reports whether v is a nil pointer, interface, slice or map.
func isNil(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map:
		return v.IsNil()
	default:
		return false
	}
}
