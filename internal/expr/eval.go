package expr

import (
	"bytes"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/inf.v0"

	"github.com/solatis/querykit/internal/types"
)

/*
 * Tree-walking interpreter for predicate ASTs.
 *
 * Evaluation binds lambda parameters to reflect.Values in an Env and walks
 * the tree once per record. Comparisons are lifted over nil pointers:
 *   - Equal: two nils are equal, nil vs value is unequal
 *   - NotEqual: the negation of Equal
 *   - ordering with a nil operand is false
 *
 * Member access through a nil pointer fails with types.ErrNullReference.
 * The builders guard nullable hops with AndAlso so compiled predicates
 * never hit that error on well-formed trees.
 *
 * Ordering knows *inf.Dec, time.Time, uuid.UUID, strings, bools and every
 * numeric kind. Named integer types (enums) compare by ordinal.
 */

var uuidType = reflect.TypeOf(uuid.UUID{})

// Env binds parameters to values during evaluation.
type Env map[*Parameter]reflect.Value

// with returns a copy of env extended with p bound to v.
func (e Env) with(p *Parameter, v reflect.Value) Env {
	out := make(Env, len(e)+1)
	for k, val := range e {
		out[k] = val
	}
	out[p] = v
	return out
}

// Invoke evaluates the lambda body with args bound to its parameters.
func (l *Lambda) Invoke(args ...reflect.Value) (reflect.Value, error) {
	if len(args) != len(l.Params) {
		return reflect.Value{}, fmt.Errorf("%w: lambda takes %d argument(s), got %d", types.ErrTypeMismatch, len(l.Params), len(args))
	}
	env := make(Env, len(args))
	for i, p := range l.Params {
		env[p] = args[i]
	}
	return Eval(l.Body, env)
}

// Compile turns a predicate lambda over T into a Go function.
// Fails when the lambda is not a one-parameter bool lambda over T.
func Compile[T any](l *Lambda) (func(T) (bool, error), error) {
	want := reflect.TypeOf((*T)(nil)).Elem()
	if !l.IsPredicate() {
		return nil, fmt.Errorf("%w: not a predicate lambda", types.ErrTypeMismatch)
	}
	if got := l.Param().Type(); got != want {
		return nil, fmt.Errorf("%w: predicate over %s, want %s", types.ErrTypeMismatch, got, want)
	}
	return func(rec T) (bool, error) {
		v, err := l.Invoke(reflect.ValueOf(&rec).Elem())
		if err != nil {
			return false, err
		}
		return v.Bool(), nil
	}, nil
}

// Eval evaluates a node under env.
func Eval(n Node, env Env) (reflect.Value, error) {
	switch n := n.(type) {
	case *Parameter:
		v, ok := env[n]
		if !ok {
			return reflect.Value{}, fmt.Errorf("%w: unbound parameter %s", types.ErrTypeMismatch, n.Name)
		}
		return v, nil
	case *Constant:
		return n.Value, nil
	case *Captured:
		return n.Value(), nil
	case *Member:
		return evalMember(n, env)
	case *Unary:
		return evalUnary(n, env)
	case *Binary:
		return evalBinary(n, env)
	case *Call:
		return evalCall(n, env)
	case *Lambda:
		return reflect.Value{}, fmt.Errorf("%w: lambda outside a call", types.ErrTypeMismatch)
	default:
		return reflect.Value{}, fmt.Errorf("%w: unknown node %T", types.ErrTypeMismatch, n)
	}
}

// evalMember reads the field, following a pointer receiver.
func evalMember(m *Member, env Env) (reflect.Value, error) {
	recv, err := Eval(m.Receiver, env)
	if err != nil {
		return reflect.Value{}, err
	}
	for recv.Kind() == reflect.Pointer || recv.Kind() == reflect.Interface {
		if recv.IsNil() {
			return reflect.Value{}, fmt.Errorf("%w: %s", types.ErrNullReference, m)
		}
		recv = recv.Elem()
	}
	if recv.Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("%w: %s on %s", types.ErrTypeMismatch, m.Field.Name, recv.Type())
	}
	v, err := recv.FieldByIndexErr(m.Field.Index)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("%w: %s", types.ErrNullReference, m)
	}
	return v, nil
}

func evalUnary(u *Unary, env Env) (reflect.Value, error) {
	v, err := Eval(u.Operand, env)
	if err != nil {
		return reflect.Value{}, err
	}
	switch u.Op {
	case Not:
		return reflect.ValueOf(!v.Bool()), nil
	case Deref:
		if v.Kind() != reflect.Pointer {
			return v, nil
		}
		if v.IsNil() {
			return reflect.Value{}, fmt.Errorf("%w: %s", types.ErrNullReference, u.Operand)
		}
		return v.Elem(), nil
	default:
		return ConvertValue(v, u.typ)
	}
}

func evalBinary(b *Binary, env Env) (reflect.Value, error) {
	left, err := Eval(b.Left, env)
	if err != nil {
		return reflect.Value{}, err
	}

	// Short-circuit before touching the right operand.
	switch b.Op {
	case AndAlso:
		if !left.Bool() {
			return reflect.ValueOf(false), nil
		}
		right, err := Eval(b.Right, env)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(right.Bool()), nil
	case OrElse:
		if left.Bool() {
			return reflect.ValueOf(true), nil
		}
		right, err := Eval(b.Right, env)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(right.Bool()), nil
	}

	right, err := Eval(b.Right, env)
	if err != nil {
		return reflect.Value{}, err
	}

	switch b.Op {
	case Equal:
		return reflect.ValueOf(Equals(left, right)), nil
	case NotEqual:
		return reflect.ValueOf(!Equals(left, right)), nil
	}

	if isNil(left) || isNil(right) {
		return reflect.ValueOf(false), nil
	}
	c, err := CompareValues(left, right)
	if err != nil {
		return reflect.Value{}, err
	}
	var r bool
	switch b.Op {
	case Greater:
		r = c > 0
	case GreaterOrEqual:
		r = c >= 0
	case Less:
		r = c < 0
	case LessOrEqual:
		r = c <= 0
	}
	return reflect.ValueOf(r), nil
}

func evalCall(c *Call, env Env) (reflect.Value, error) {
	switch c.Method {
	case Any:
		return evalAny(c, env)
	case Contains:
		coll, err := Eval(c.Receiver, env)
		if err != nil {
			return reflect.Value{}, err
		}
		item, err := Eval(c.Args[0], env)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(containsValue(coll, item)), nil
	case Compare:
		a, err := Eval(c.Args[0], env)
		if err != nil {
			return reflect.Value{}, err
		}
		b, err := Eval(c.Args[1], env)
		if err != nil {
			return reflect.Value{}, err
		}
		n, err := CompareNullable(a, b)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(n), nil
	}

	recv, err := evalString(c.Receiver, env)
	if err != nil {
		return reflect.Value{}, err
	}
	if c.Method == ToLower {
		return reflect.ValueOf(strings.ToLower(recv)), nil
	}
	arg, err := evalString(c.Args[0], env)
	if err != nil {
		return reflect.Value{}, err
	}
	var r bool
	switch c.Method {
	case StringContains:
		r = strings.Contains(recv, arg)
	case StartsWith:
		r = strings.HasPrefix(recv, arg)
	case EndsWith:
		r = strings.HasSuffix(recv, arg)
	default:
		return reflect.Value{}, fmt.Errorf("%w: unknown method %d", types.ErrTypeMismatch, c.Method)
	}
	return reflect.ValueOf(r), nil
}

// evalAny binds the element parameter on top of the outer environment, so
// the inner body may still reference outer parameters.
func evalAny(c *Call, env Env) (reflect.Value, error) {
	coll, err := Eval(c.Receiver, env)
	if err != nil {
		return reflect.Value{}, err
	}
	pred, ok := c.Args[0].(*Lambda)
	if !ok || len(pred.Params) != 1 {
		return reflect.Value{}, fmt.Errorf("%w: Any needs a one-parameter lambda", types.ErrTypeMismatch)
	}
	coll = indirect(coll)
	if !coll.IsValid() || (coll.Kind() != reflect.Slice && coll.Kind() != reflect.Array) {
		return reflect.ValueOf(false), nil
	}
	for i := 0; i < coll.Len(); i++ {
		v, err := Eval(pred.Body, env.with(pred.Params[0], coll.Index(i)))
		if err != nil {
			return reflect.Value{}, err
		}
		if v.Bool() {
			return reflect.ValueOf(true), nil
		}
	}
	return reflect.ValueOf(false), nil
}

func evalString(n Node, env Env) (string, error) {
	v, err := Eval(n, env)
	if err != nil {
		return "", err
	}
	v = indirect(v)
	if !v.IsValid() {
		return "", fmt.Errorf("%w: %s", types.ErrNullReference, n)
	}
	if v.Kind() != reflect.String {
		return "", fmt.Errorf("%w: %s is %s, want string", types.ErrTypeMismatch, n, v.Type())
	}
	return v.String(), nil
}

// containsValue reports lifted-equality membership of item in coll.
func containsValue(coll, item reflect.Value) bool {
	coll = indirect(coll)
	if !coll.IsValid() || (coll.Kind() != reflect.Slice && coll.Kind() != reflect.Array) {
		return false
	}
	for i := 0; i < coll.Len(); i++ {
		if Equals(coll.Index(i), item) {
			return true
		}
	}
	return false
}

// indirect follows pointers and interfaces; a nil yields the invalid Value.
func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

// Equals is lifted equality: two nils are equal, nil and non-nil are not.
func Equals(a, b reflect.Value) bool {
	an, bn := isNil(a) || !a.IsValid(), isNil(b) || !b.IsValid()
	if an || bn {
		return an && bn
	}
	c, err := CompareValues(a, b)
	if err != nil {
		return reflect.DeepEqual(indirect(a).Interface(), indirect(b).Interface())
	}
	return c == 0
}

// CompareNullable orders nil before any value.
func CompareNullable(a, b reflect.Value) (int, error) {
	an, bn := isNil(a) || !a.IsValid(), isNil(b) || !b.IsValid()
	switch {
	case an && bn:
		return 0, nil
	case an:
		return -1, nil
	case bn:
		return 1, nil
	}
	return CompareValues(a, b)
}

// CompareValues is the three-way comparison of two non-nil values.
func CompareValues(a, b reflect.Value) (int, error) {
	if da, ok := asDec(a); ok {
		db, ok := asDec(b)
		if !ok {
			return 0, fmt.Errorf("%w: decimal vs %s", types.ErrTypeMismatch, b.Type())
		}
		return da.Cmp(db), nil
	}

	a, b = indirect(a), indirect(b)
	if !a.IsValid() || !b.IsValid() {
		return 0, types.ErrNullReference
	}

	switch {
	case a.Type() == timeType && b.Type() == timeType:
		return a.Interface().(time.Time).Compare(b.Interface().(time.Time)), nil
	case a.Type() == uuidType && b.Type() == uuidType:
		ua, ub := a.Interface().(uuid.UUID), b.Interface().(uuid.UUID)
		return bytes.Compare(ua[:], ub[:]), nil
	}

	ka, kb := kindClass(a.Kind()), kindClass(b.Kind())
	switch {
	case ka == classString && kb == classString:
		return strings.Compare(a.String(), b.String()), nil
	case ka == classBool && kb == classBool:
		return compareBool(a.Bool(), b.Bool()), nil
	case ka == classInt && kb == classInt:
		return cmp3(a.Int(), b.Int()), nil
	case ka == classUint && kb == classUint:
		return cmp3(a.Uint(), b.Uint()), nil
	case ka == classInt && kb == classUint:
		if a.Int() < 0 {
			return -1, nil
		}
		return cmp3(uint64(a.Int()), b.Uint()), nil
	case ka == classUint && kb == classInt:
		if b.Int() < 0 {
			return 1, nil
		}
		return cmp3(a.Uint(), uint64(b.Int())), nil
	case ka.numeric() && kb.numeric():
		return cmp3(toFloat(a), toFloat(b)), nil
	}
	return 0, fmt.Errorf("%w: cannot order %s and %s", types.ErrTypeMismatch, a.Type(), b.Type())
}

// asDec extracts a decimal from *inf.Dec or inf.Dec values.
func asDec(v reflect.Value) (*inf.Dec, bool) {
	if !v.IsValid() {
		return nil, false
	}
	switch v.Type() {
	case decPtrType:
		if v.IsNil() {
			return nil, false
		}
		return v.Interface().(*inf.Dec), true
	case decType:
		d := v.Interface().(inf.Dec)
		return &d, true
	}
	return nil, false
}

type kindClassification int

const (
	classOther kindClassification = iota
	classString
	classBool
	classInt
	classUint
	classFloat
)

func (k kindClassification) numeric() bool {
	return k == classInt || k == classUint || k == classFloat
}

func kindClass(k reflect.Kind) kindClassification {
	switch k {
	case reflect.String:
		return classString
	case reflect.Bool:
		return classBool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return classInt
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return classUint
	case reflect.Float32, reflect.Float64:
		return classFloat
	default:
		return classOther
	}
}

func toFloat(v reflect.Value) float64 {
	switch kindClass(v.Kind()) {
	case classInt:
		return float64(v.Int())
	case classUint:
		return float64(v.Uint())
	default:
		return v.Float()
	}
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}

type ordered interface {
	~int64 | ~uint64 | ~float64
}

func cmp3[T ordered](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// ConvertValue converts v to type t: pointer wrap and unwrap, numeric
// conversion between numeric kinds, identity for assignable types.
func ConvertValue(v reflect.Value, t reflect.Type) (reflect.Value, error) {
	if !v.IsValid() {
		return reflect.Zero(t), nil
	}
	if v.Type() == t {
		return v, nil
	}
	if t.Kind() == reflect.Pointer {
		if v.Kind() == reflect.Pointer {
			if v.IsNil() {
				return reflect.Zero(t), nil
			}
			v = v.Elem()
		}
		inner, err := ConvertValue(v, t.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		p := reflect.New(t.Elem())
		p.Elem().Set(inner)
		return p, nil
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return reflect.Value{}, types.ErrNullReference
		}
		return ConvertValue(v.Elem(), t)
	}
	if Convertible(v.Type(), t) {
		return v.Convert(t), nil
	}
	if v.Type().AssignableTo(t) {
		out := reflect.New(t).Elem()
		out.Set(v)
		return out, nil
	}
	return reflect.Value{}, fmt.Errorf("%w: cannot convert %s to %s", types.ErrTypeMismatch, v.Type(), t)
}

// Convertible reports whether a value of type from converts to type to
// without changing its meaning: numeric to numeric, or same underlying kind.
// Excludes reflect's integer-to-string rune conversion.
func Convertible(from, to reflect.Type) bool {
	if !from.ConvertibleTo(to) {
		return false
	}
	if kindClass(from.Kind()).numeric() && kindClass(to.Kind()).numeric() {
		return true
	}
	return from.Kind() == to.Kind()
}
