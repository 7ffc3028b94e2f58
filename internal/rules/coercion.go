// internal/rules/coercion.go
package rules

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/inf.v0"

	"github.com/solatis/querykit/internal/types"
)

/*
 * Type dispatch for filter literals.
 *
 * Classifies a member's Go type into one of ten primitive families and parses
 * raw condition text into a literal of that family. Dispatch is an explicit
 * switch on Family; there is no type-keyed registry.
 *
 * Families and their Go types:
 *   - String:   string kinds
 *   - Bool:     bool
 *   - Int32:    int8, int16, int32, uint8, uint16
 *   - Int64:    int, int64, uint, uint32, uint64
 *   - Decimal:  *inf.Dec, inf.Dec
 *   - Double:   float64
 *   - Float32:  float32
 *   - DateTime: time.Time
 *   - Guid:     uuid.UUID
 *   - Enum:     named integer types implementing Enumeration
 *
 * A pointer to any of these is the nullable variant; a slice of any of these
 * is a list member (membership operators only).
 *
 * Literal parsing is culture-invariant (strconv, fixed layouts). Empty or
 * unparseable scalar text yields ErrInvalidLiteral. ContainedIn lists split
 * on "|" and silently drop parts that do not parse; only an empty result
 * fails.
 */

// Family is the primitive type family of a member.
type Family int

const (
	FamilyUnsupported Family = iota
	FamilyString
	FamilyBool
	FamilyInt32
	FamilyInt64
	FamilyDecimal
	FamilyDouble
	FamilyFloat32
	FamilyDateTime
	FamilyGuid
	FamilyEnum
)

var familyNames = [...]string{
	FamilyUnsupported: "unsupported",
	FamilyString:      "string",
	FamilyBool:        "bool",
	FamilyInt32:       "int32",
	FamilyInt64:       "int64",
	FamilyDecimal:     "decimal",
	FamilyDouble:      "double",
	FamilyFloat32:     "float32",
	FamilyDateTime:    "datetime",
	FamilyGuid:        "guid",
	FamilyEnum:        "enum",
}

func (f Family) String() string { return familyNames[f] }

// IsNumeric reports whether the family is one of the numeric families.
func (f Family) IsNumeric() bool {
	switch f {
	case FamilyInt32, FamilyInt64, FamilyDecimal, FamilyDouble, FamilyFloat32:
		return true
	default:
		return false
	}
}

// Enumeration is implemented by named integer types usable as enum members.
// EnumNames is indexed by ordinal.
type Enumeration interface {
	EnumNames() []string
}

var (
	timeType        = reflect.TypeOf(time.Time{})
	uuidType        = reflect.TypeOf(uuid.UUID{})
	decPtrType      = reflect.TypeOf((*inf.Dec)(nil))
	decType         = reflect.TypeOf(inf.Dec{})
	enumerationType = reflect.TypeOf((*Enumeration)(nil)).Elem()
)

// DateTimeLayouts are the only accepted DateTime literal forms.
var DateTimeLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// TypeInfo describes a classified member type.
type TypeInfo struct {
	Family       Family
	Type         reflect.Type // declared member type
	Base         reflect.Type // literal type: scalar after unwrapping pointer and slice
	Nullable     bool         // declared type is a pointer (or *inf.Dec)
	List         bool         // declared type is a slice
	ElemNullable bool         // list elements are pointers
}

// Classify maps a Go type onto its family. ok is false for unsupported types.
func Classify(t reflect.Type) (TypeInfo, bool) {
	info := TypeInfo{Type: t}

	if t.Kind() == reflect.Slice {
		elem, ok := classifyScalar(t.Elem())
		if !ok {
			return TypeInfo{}, false
		}
		info.Family = elem.Family
		info.Base = elem.Base
		info.List = true
		info.ElemNullable = elem.Nullable
		return info, true
	}

	scalar, ok := classifyScalar(t)
	if !ok {
		return TypeInfo{}, false
	}
	scalar.Type = t
	return scalar, true
}

// classifyScalar handles one optional pointer level around a scalar type.
func classifyScalar(t reflect.Type) (TypeInfo, bool) {
	if t == decPtrType {
		return TypeInfo{Family: FamilyDecimal, Type: t, Base: t, Nullable: true}, true
	}
	if t.Kind() == reflect.Pointer {
		inner, ok := classifyScalar(t.Elem())
		if !ok || inner.Nullable {
			return TypeInfo{}, false
		}
		inner.Type = t
		inner.Nullable = true
		return inner, true
	}

	f := familyOf(t)
	if f == FamilyUnsupported {
		return TypeInfo{}, false
	}
	return TypeInfo{Family: f, Type: t, Base: t}, true
}

func familyOf(t reflect.Type) Family {
	switch t {
	case timeType:
		return FamilyDateTime
	case uuidType:
		return FamilyGuid
	case decType:
		return FamilyDecimal
	}
	if isEnum(t) {
		return FamilyEnum
	}
	switch t.Kind() {
	case reflect.String:
		return FamilyString
	case reflect.Bool:
		return FamilyBool
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Uint8, reflect.Uint16:
		return FamilyInt32
	case reflect.Int, reflect.Int64, reflect.Uint, reflect.Uint32, reflect.Uint64:
		return FamilyInt64
	case reflect.Float32:
		return FamilyFloat32
	case reflect.Float64:
		return FamilyDouble
	default:
		return FamilyUnsupported
	}
}

func isEnum(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
	default:
		return false
	}
	return t.Implements(enumerationType)
}

// EnumNames returns the ordinal-indexed names of an enum type.
func EnumNames(t reflect.Type) []string {
	if !isEnum(t) {
		return nil
	}
	return reflect.Zero(t).Interface().(Enumeration).EnumNames()
}

// ParseLiteral parses text into a value of info.Base.
// utc normalizes DateTime literals to UTC.
func ParseLiteral(info TypeInfo, text string, utc bool) (reflect.Value, error) {
	if info.Family != FamilyString {
		text = strings.TrimSpace(text)
	}
	if text == "" {
		return reflect.Value{}, fmt.Errorf("%w: empty value", types.ErrInvalidLiteral)
	}

	v, err := parseFamily(info, text, utc)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("%w: %q as %s", types.ErrInvalidLiteral, text, info.Family)
	}
	return v, nil
}

func parseFamily(info TypeInfo, text string, utc bool) (reflect.Value, error) {
	base := info.Base
	switch info.Family {
	case FamilyString:
		return reflect.ValueOf(text).Convert(base), nil

	case FamilyBool:
		b, err := strconv.ParseBool(text)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(b).Convert(base), nil

	case FamilyInt32, FamilyInt64:
		return parseInteger(base, text)

	case FamilyDouble, FamilyFloat32:
		f, err := strconv.ParseFloat(text, base.Bits())
		if err != nil {
			return reflect.Value{}, err
		}
		out := reflect.New(base).Elem()
		out.SetFloat(f)
		return out, nil

	case FamilyDecimal:
		d, ok := new(inf.Dec).SetString(text)
		if !ok {
			return reflect.Value{}, types.ErrInvalidLiteral
		}
		if base == decType {
			return reflect.ValueOf(*d), nil
		}
		return reflect.ValueOf(d), nil

	case FamilyDateTime:
		for _, layout := range DateTimeLayouts {
			t, err := time.Parse(layout, text)
			if err != nil {
				continue
			}
			if utc {
				t = t.UTC()
			}
			return reflect.ValueOf(t), nil
		}
		return reflect.Value{}, types.ErrInvalidLiteral

	case FamilyGuid:
		u, err := uuid.Parse(text)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(u), nil

	case FamilyEnum:
		names := EnumNames(base)
		for i, name := range names {
			if strings.EqualFold(name, text) {
				return enumValue(base, int64(i)), nil
			}
		}
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil || n < 0 || n >= int64(len(names)) {
			return reflect.Value{}, types.ErrInvalidLiteral
		}
		return enumValue(base, n), nil
	}
	return reflect.Value{}, types.ErrInvalidLiteral
}

func parseInteger(base reflect.Type, text string) (reflect.Value, error) {
	out := reflect.New(base).Elem()
	switch base.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(text, 10, base.Bits())
		if err != nil {
			return reflect.Value{}, err
		}
		out.SetUint(n)
	default:
		n, err := strconv.ParseInt(text, 10, base.Bits())
		if err != nil {
			return reflect.Value{}, err
		}
		out.SetInt(n)
	}
	return out, nil
}

func enumValue(t reflect.Type, ordinal int64) reflect.Value {
	out := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		out.SetUint(uint64(ordinal))
	default:
		out.SetInt(ordinal)
	}
	return out
}

// ParseLiteralList parses a "|"-separated ContainedIn list into a slice of
// info.Base. Parts that fail to parse are dropped.
func ParseLiteralList(info TypeInfo, text string, utc bool) (reflect.Value, error) {
	parts := strings.Split(text, "|")
	if len(parts) > types.MaxContainedInValues {
		return reflect.Value{}, types.ErrTooManyValues
	}
	out := reflect.MakeSlice(reflect.SliceOf(info.Base), 0, len(parts))
	for _, part := range parts {
		v, err := ParseLiteral(info, part, utc)
		if err != nil {
			continue
		}
		out = reflect.Append(out, v)
	}
	if out.Len() == 0 {
		return reflect.Value{}, fmt.Errorf("%w: no usable value in %q", types.ErrInvalidLiteral, text)
	}
	return out, nil
}

// FormatLiteral renders v (a value of a classified scalar type) as text that
// ParseLiteral accepts. Pointers are followed; nil renders as "".
func FormatLiteral(v reflect.Value) string {
	if !v.IsValid() {
		return ""
	}
	if v.Type() == decPtrType {
		if v.IsNil() {
			return ""
		}
		return v.Interface().(*inf.Dec).String()
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return ""
		}
		return FormatLiteral(v.Elem())
	}

	switch v.Type() {
	case timeType:
		return v.Interface().(time.Time).Format(time.RFC3339Nano)
	case uuidType:
		return v.Interface().(uuid.UUID).String()
	case decType:
		d := v.Interface().(inf.Dec)
		return d.String()
	}
	if isEnum(v.Type()) {
		names := EnumNames(v.Type())
		var n int64
		if kindIsUnsigned(v.Kind()) {
			n = int64(v.Uint())
		} else {
			n = v.Int()
		}
		if n >= 0 && n < int64(len(names)) {
			return names[n]
		}
		return strconv.FormatInt(n, 10)
	}

	switch v.Kind() {
	case reflect.String:
		return v.String()
	case reflect.Bool:
		return strconv.FormatBool(v.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(v.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'g', -1, v.Type().Bits())
	}
	return fmt.Sprintf("%v", v.Interface())
}

func kindIsUnsigned(k reflect.Kind) bool {
	switch k {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	default:
		return false
	}
}
