package expr

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"gopkg.in/inf.v0"

	"github.com/solatis/querykit/internal/types"
)

type address struct {
	City string
}

type customer struct {
	Name    string
	Age     int
	Score   *int
	Balance *inf.Dec
	Born    time.Time
	ID      uuid.UUID
	Address *address
	Tags    []string
}

func field(t reflect.Type, name string) reflect.StructField {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	f, ok := t.FieldByName(name)
	if !ok {
		panic("no field " + name)
	}
	return f
}

func member(recv Node, name string) *Member {
	return NewMember(recv, field(recv.Type(), name))
}

func intPtr(i int) *int { return &i }

func TestCompile_MemberComparison(t *testing.T) {
	p := NewParameter("x", reflect.TypeOf(customer{}))
	pred := NewLambda(NewBinary(Greater, member(p, "Age"), Const(30)), p)

	fn, err := Compile[customer](pred)
	if err != nil {
		t.Fatalf("Compile() error = %v, want nil", err)
	}

	tests := []struct {
		age  int
		want bool
	}{
		{age: 29, want: false},
		{age: 30, want: false},
		{age: 31, want: true},
	}
	for _, tt := range tests {
		got, err := fn(customer{Age: tt.age})
		if err != nil {
			t.Fatalf("predicate error = %v, want nil", err)
		}
		if got != tt.want {
			t.Errorf("Age=%d: got %v, want %v", tt.age, got, tt.want)
		}
	}
}

func TestCompile_RejectsWrongRecordType(t *testing.T) {
	p := NewParameter("x", reflect.TypeOf(address{}))
	pred := NewLambda(NewBinary(Equal, member(p, "City"), Const("Oslo")), p)

	_, err := Compile[customer](pred)
	if !errors.Is(err, types.ErrTypeMismatch) {
		t.Fatalf("Compile() error = %v, want ErrTypeMismatch", err)
	}
}

func TestEval_LiftedNullComparisons(t *testing.T) {
	p := NewParameter("x", reflect.TypeOf(customer{}))
	score := member(p, "Score")

	tests := []struct {
		name  string
		op    BinaryOp
		rhs   Node
		score *int
		want  bool
	}{
		{"nil equals null", Equal, Null(reflect.TypeOf((*int)(nil))), nil, true},
		{"value not equal null", NotEqual, Null(reflect.TypeOf((*int)(nil))), intPtr(3), true},
		{"nil not equal value", Equal, Const(3), nil, false},
		{"nil ordering is false", Greater, Const(3), nil, false},
		{"nil less is false", Less, Const(3), nil, false},
		{"pointer vs int equal", Equal, Const(3), intPtr(3), true},
		{"pointer vs int greater", Greater, Const(3), intPtr(4), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := NewLambda(NewBinary(tt.op, score, tt.rhs), p).Invoke(reflect.ValueOf(customer{Score: tt.score}))
			if err != nil {
				t.Fatalf("Invoke() error = %v, want nil", err)
			}
			if v.Bool() != tt.want {
				t.Errorf("got %v, want %v", v.Bool(), tt.want)
			}
		})
	}
}

func TestEval_MemberThroughNilPointer(t *testing.T) {
	p := NewParameter("x", reflect.TypeOf(customer{}))
	city := member(member(p, "Address"), "City")
	pred := NewLambda(NewBinary(Equal, city, Const("Oslo")), p)

	_, err := pred.Invoke(reflect.ValueOf(customer{}))
	if !errors.Is(err, types.ErrNullReference) {
		t.Fatalf("Invoke() error = %v, want ErrNullReference", err)
	}

	guarded := NewLambda(NewBinary(AndAlso,
		NewBinary(NotEqual, member(p, "Address"), Null(reflect.TypeOf((*address)(nil)))),
		NewBinary(Equal, city, Const("Oslo"))), p)
	v, err := guarded.Invoke(reflect.ValueOf(customer{}))
	if err != nil {
		t.Fatalf("guarded Invoke() error = %v, want nil", err)
	}
	if v.Bool() {
		t.Error("guarded predicate on nil Address = true, want false")
	}
}

func TestEval_DecimalTimeAndGuid(t *testing.T) {
	p := NewParameter("x", reflect.TypeOf(customer{}))
	id := uuid.MustParse("6f1c8e2a-8d61-4a3e-9d0a-4d7e2f0f9b11")
	born := time.Date(1990, 5, 1, 0, 0, 0, 0, time.UTC)
	rec := customer{Balance: inf.NewDec(12550, 2), Born: born, ID: id}

	tests := []struct {
		name string
		body Node
		want bool
	}{
		{"decimal greater", NewBinary(Greater, member(p, "Balance"), Const(inf.NewDec(1255, 1))), false},
		{"decimal equal different scale", NewBinary(Equal, member(p, "Balance"), Const(inf.NewDec(1255, 1))), true},
		{"time before", NewBinary(Less, member(p, "Born"), Const(born.Add(time.Hour))), true},
		{"guid equal", NewBinary(Equal, member(p, "ID"), Const(id)), true},
		{"guid not equal", NewBinary(NotEqual, member(p, "ID"), Const(uuid.Nil)), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := NewLambda(tt.body, p).Invoke(reflect.ValueOf(rec))
			if err != nil {
				t.Fatalf("Invoke() error = %v, want nil", err)
			}
			if v.Bool() != tt.want {
				t.Errorf("got %v, want %v", v.Bool(), tt.want)
			}
		})
	}
}

func TestEval_StringCallsAndMembership(t *testing.T) {
	p := NewParameter("x", reflect.TypeOf(customer{}))
	name := member(p, "Name")
	rec := customer{Name: "Darkwing Duck", Tags: []string{"hero", "duck"}}

	tests := []struct {
		name string
		body Node
		want bool
	}{
		{"contains", NewCall(StringContains, name, Const("wing")), true},
		{"starts with", NewCall(StartsWith, name, Const("Dark")), true},
		{"ends with", NewCall(EndsWith, name, Const("Dark")), false},
		{"lower contains", NewCall(StringContains, NewCall(ToLower, name), Const("dark")), true},
		{"list membership", NewCall(Contains, member(p, "Tags"), Const("duck")), true},
		{"literal set", NewCall(Contains, Const([]string{"Scrooge", "Darkwing Duck"}), name), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := NewLambda(tt.body, p).Invoke(reflect.ValueOf(rec))
			if err != nil {
				t.Fatalf("Invoke() error = %v, want nil", err)
			}
			if v.Bool() != tt.want {
				t.Errorf("got %v, want %v", v.Bool(), tt.want)
			}
		})
	}
}

func TestEval_AnyWithOuterParameter(t *testing.T) {
	p := NewParameter("x", reflect.TypeOf(customer{}))
	tag := NewParameter("t", reflect.TypeOf(""))
	// x.Tags.Any(t => t == x.Name)
	inner := NewLambda(NewBinary(Equal, tag, member(p, "Name")), tag)
	pred := NewLambda(NewCall(Any, member(p, "Tags"), inner), p)

	v, err := pred.Invoke(reflect.ValueOf(customer{Name: "duck", Tags: []string{"hero", "duck"}}))
	if err != nil {
		t.Fatalf("Invoke() error = %v, want nil", err)
	}
	if !v.Bool() {
		t.Error("Any() = false, want true")
	}
}

func TestEval_CapturedReadsAtCallTime(t *testing.T) {
	p := NewParameter("x", reflect.TypeOf(customer{}))
	minAge := 18
	pred := NewLambda(NewBinary(GreaterOrEqual, member(p, "Age"), Capture("minAge", &minAge)), p)

	rec := reflect.ValueOf(customer{Age: 20})
	v, _ := pred.Invoke(rec)
	if !v.Bool() {
		t.Fatal("Age 20 >= 18 = false, want true")
	}

	minAge = 21
	v, _ = pred.Invoke(rec)
	if v.Bool() {
		t.Error("Age 20 >= 21 = true, want false")
	}
}

func TestConvertValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		to   reflect.Type
		want any
	}{
		{"int to int64", 5, reflect.TypeOf(int64(0)), int64(5)},
		{"int to *int", 5, reflect.TypeOf((*int)(nil)), intPtr(5)},
		{"*int to int", intPtr(7), reflect.TypeOf(0), 7},
		{"int32 to *int64", int32(9), reflect.TypeOf((*int64)(nil)), func() *int64 { v := int64(9); return &v }()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ConvertValue(reflect.ValueOf(tt.in), tt.to)
			if err != nil {
				t.Fatalf("ConvertValue() error = %v, want nil", err)
			}
			if !reflect.DeepEqual(got.Interface(), tt.want) {
				t.Errorf("ConvertValue() = %v, want %v", got.Interface(), tt.want)
			}
		})
	}

	if _, err := ConvertValue(reflect.ValueOf(65), reflect.TypeOf("")); !errors.Is(err, types.ErrTypeMismatch) {
		t.Errorf("int to string error = %v, want ErrTypeMismatch", err)
	}
}

func TestCapture_PanicsOnNonPointer(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Capture(non-pointer) did not panic")
		}
	}()
	Capture("v", 5)
}

func TestString(t *testing.T) {
	p := NewParameter("x", reflect.TypeOf(customer{}))
	pred := NewLambda(NewBinary(AndAlso,
		NewBinary(Greater, member(p, "Age"), Const(5)),
		NewCall(StartsWith, member(p, "Name"), Const("D"))), p)

	want := `x => ((x.Age > 5) && x.Name.StartsWith("D"))`
	if got := pred.String(); got != want {
		t.Errorf("String() = %s, want %s", got, want)
	}
}
