package transform

import (
	"errors"
	"reflect"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/solatis/querykit/internal/expr"
	"github.com/solatis/querykit/internal/rules"
	"github.com/solatis/querykit/internal/types"
)

type level int

const (
	Low level = iota
	Mid
	High
)

func (level) EnumNames() []string { return []string{"Low", "Mid", "High"} }

type source struct {
	ID     int
	Name   string
	Label  string
	Score  int
	Ratio  float64
	Level  level
	Born   time.Time
	Tags   []string
	Secret string
}

type inner struct {
	ID    int
	Label *string
}

type target struct {
	Nested *inner
	Name   string
	Score  *int64
	Ratio  int
	Level  *level
	Born   time.Time
	Tags   []string
}

type limits struct {
	Min int
}

func strPtr(s string) *string { return &s }
func i64Ptr(n int64) *int64   { return &n }
func levelPtr(l level) *level { return &l }

func year(y int) time.Time { return time.Date(y, 1, 1, 0, 0, 0, 0, time.UTC) }

func targets() []target {
	return []target{
		{Nested: &inner{ID: 5, Label: strPtr("alpha")}, Name: "Ann", Score: i64Ptr(20), Ratio: 2, Level: levelPtr(High), Born: year(2000), Tags: []string{"a", "b"}},
		{Nested: &inner{ID: 1}, Name: "Bob", Ratio: 3, Born: year(1990)},
		{Name: "Cid", Score: i64Ptr(5), Ratio: 2, Level: levelPtr(Low), Born: year(2010), Tags: []string{"b"}},
	}
}

func newRewriter(t *testing.T) *Rewriter {
	t.Helper()
	reg := NewRegistry()
	err := Register[source, target](reg,
		PathMapping{Source: "ID", Target: "Nested.ID"},
		PathMapping{Source: "Label", Target: "Nested.Label"},
	)
	if err != nil {
		t.Fatalf("Register() error = %v, want nil", err)
	}
	return NewRewriter(reg, nil)
}

// build compiles one condition over source.
func build(t *testing.T, field string, op types.Operator, value string) *expr.Lambda {
	t.Helper()
	preds, err := rules.Where[source](rules.NewEngine(rules.Options{}, nil), rules.Query{
		Conditions: []types.Condition{{Field: field, Operator: op, Value: value}},
	})
	if err != nil {
		t.Fatalf("Where() error = %v, want nil", err)
	}
	return preds[0]
}

// matches applies pred to targets and returns the matching names.
func matches(t *testing.T, pred *expr.Lambda) []string {
	t.Helper()
	if pred == nil {
		t.Fatal("Rewrite() = nil, want a predicate")
	}
	out, err := rules.Filter(targets(), []*expr.Lambda{pred})
	if err != nil {
		t.Fatalf("Filter() error = %v, want nil", err)
	}
	names := make([]string, len(out))
	for i, rec := range out {
		names[i] = rec.Name
	}
	return names
}

func TestRewrite_Conditions(t *testing.T) {
	rw := newRewriter(t)

	tests := []struct {
		name  string
		field string
		op    types.Operator
		value string
		want  []string
	}{
		{"mapped to nested member", "ID", types.OpEqual, "5", []string{"Ann"}},
		{"mapped membership", "ID", types.OpContainedIn, "1|5", []string{"Ann", "Bob"}},
		{"nullable bridging ordering", "Score", types.OpGreaterThan, "10", []string{"Ann"}},
		{"nullable bridging not equal", "Score", types.OpNotEqual, "5", []string{"Ann"}},
		{"nullable enum not equal", "Level", types.OpNotEqual, "Low", []string{"Ann"}},
		{"nullable nested leaf not equal", "Label", types.OpNotEqual, "beta", []string{"Ann"}},
		{"string call on nullable target", "Label", types.OpStartsWith, "al", []string{"Ann"}},
		{"string call negated", "Label", types.OpContainsNot, "ph", []string{"Bob", "Cid"}},
		{"enum compare on nullable target", "Level", types.OpGreaterThan, "Low", []string{"Ann"}},
		{"same-name member", "Name", types.OpEndsWith, "b", []string{"Bob"}},
		{"list membership", "Tags", types.OpContains, "b", []string{"Ann", "Cid"}},
		{"lossless float literal", "Ratio", types.OpEqual, "2", []string{"Ann", "Cid"}},
		{"datetime", "Born", types.OpLessThan, "2005-01-01", []string{"Ann", "Bob"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pred := Rewrite[source, target](rw, build(t, tt.field, tt.op, tt.value), false)
			if got := matches(t, pred); !slices.Equal(got, tt.want) {
				t.Errorf("got %v, want %v (predicate %v)", got, tt.want, pred)
			}
		})
	}
}

func TestRewrite_Unusable(t *testing.T) {
	rw := newRewriter(t)

	nameOnTarget, err := rules.Where[target](rules.NewEngine(rules.Options{}, nil), rules.Query{
		Conditions: []types.Condition{{Field: "Name", Operator: types.OpEqual, Value: "Ann"}},
	})
	if err != nil {
		t.Fatalf("Where() error = %v, want nil", err)
	}
	rp, err := rules.ResolvePath(reflect.TypeFor[source](), "Name")
	if err != nil {
		t.Fatalf("ResolvePath() error = %v, want nil", err)
	}

	tests := []struct {
		name   string
		pred   *expr.Lambda
		ignore bool
	}{
		{"member missing on target", build(t, "Secret", types.OpEqual, "x"), false},
		{"mapping ignored", build(t, "ID", types.OpEqual, "5"), true},
		{"lossy literal", build(t, "Ratio", types.OpEqual, "2.5"), false},
		{"predicate over another type", nameOnTarget[0], false},
		{"non-bool body", rp.Lambda(rp.Access), false},
		{"nil predicate", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Rewrite[source, target](rw, tt.pred, tt.ignore); got != nil {
				t.Errorf("Rewrite() = %v, want nil", got)
			}
		})
	}
}

func TestRewrite_IgnoreMappingsKeepsSameName(t *testing.T) {
	rw := newRewriter(t)
	pred := Rewrite[source, target](rw, build(t, "Name", types.OpEqual, "Cid"), true)
	if got := matches(t, pred); !slices.Equal(got, []string{"Cid"}) {
		t.Errorf("got %v, want [Cid]", got)
	}
}

func TestRewrite_LogicalAndNot(t *testing.T) {
	rw := newRewriter(t)

	both := expr.And(build(t, "Name", types.OpStartsWith, "A"), build(t, "ID", types.OpEqual, "5"))
	if got := matches(t, Rewrite[source, target](rw, both, false)); !slices.Equal(got, []string{"Ann"}) {
		t.Errorf("and: got %v, want [Ann]", got)
	}

	either := expr.Or(build(t, "ID", types.OpEqual, "1"), build(t, "Score", types.OpLessThan, "10"))
	if got := matches(t, Rewrite[source, target](rw, either, false)); !slices.Equal(got, []string{"Bob", "Cid"}) {
		t.Errorf("or: got %v, want [Bob Cid]", got)
	}

	id := build(t, "ID", types.OpEqual, "5")
	not := expr.NewLambda(expr.NotOf(id.Body), id.Param())
	if got := matches(t, Rewrite[source, target](rw, not, false)); !slices.Equal(got, []string{"Bob", "Cid"}) {
		t.Errorf("not: got %v, want [Bob Cid]", got)
	}
}

func TestRewrite_ConvertIsUnwrapped(t *testing.T) {
	rw := newRewriter(t)
	rp, err := rules.ResolvePath(reflect.TypeFor[source](), "ID")
	if err != nil {
		t.Fatalf("ResolvePath() error = %v, want nil", err)
	}
	pred := rp.Lambda(expr.NewBinary(expr.Equal, expr.ConvertTo(rp.Access, reflect.TypeOf(int64(0))), expr.Const(int64(5))))

	got := Rewrite[source, target](rw, pred, false)
	if names := matches(t, got); !slices.Equal(names, []string{"Ann"}) {
		t.Errorf("got %v, want [Ann]", names)
	}
}

func TestRewrite_CapturedTimeIsFolded(t *testing.T) {
	rw := newRewriter(t)
	rp, err := rules.ResolvePath(reflect.TypeFor[source](), "Born")
	if err != nil {
		t.Fatalf("ResolvePath() error = %v, want nil", err)
	}
	cutoff := year(1995)
	pred := rp.Lambda(expr.NewBinary(expr.Greater, rp.Access, expr.Capture("cutoff", &cutoff)))

	got := Rewrite[source, target](rw, pred, false)
	cutoff = year(2020)

	if names := matches(t, got); !slices.Equal(names, []string{"Ann", "Cid"}) {
		t.Errorf("got %v, want [Ann Cid]", names)
	}
	body := got.Body.(*expr.Binary)
	if _, ok := body.Right.(*expr.Constant); !ok {
		t.Errorf("right operand = %T, want *expr.Constant", body.Right)
	}
}

func TestRewrite_CapturedMemberIsFolded(t *testing.T) {
	rw := newRewriter(t)
	rp, err := rules.ResolvePath(reflect.TypeFor[source](), "Score")
	if err != nil {
		t.Fatalf("ResolvePath() error = %v, want nil", err)
	}
	cfg := limits{Min: 10}
	field, _ := reflect.TypeOf(cfg).FieldByName("Min")
	floor := expr.NewMember(expr.Capture("cfg", &cfg), field)
	pred := rp.Lambda(expr.NewBinary(expr.GreaterOrEqual, rp.Access, floor))

	got := Rewrite[source, target](rw, pred, false)
	cfg.Min = 1

	if names := matches(t, got); !slices.Equal(names, []string{"Ann"}) {
		t.Errorf("got %v, want [Ann]", names)
	}
}

func TestRewrite_AnyOverCapturedList(t *testing.T) {
	rw := newRewriter(t)
	rp, err := rules.ResolvePath(reflect.TypeFor[source](), "Name")
	if err != nil {
		t.Fatalf("ResolvePath() error = %v, want nil", err)
	}
	names := []string{"Bob", "Cid"}
	elem := expr.NewParameter("n", reflect.TypeOf(""))
	body := expr.NewBinary(expr.Equal, elem, rp.Access)
	pred := rp.Lambda(expr.NewCall(expr.Any, expr.Capture("names", &names), expr.NewLambda(body, elem)))

	got := Rewrite[source, target](rw, pred, false)
	names[0] = "Ann"

	if m := matches(t, got); !slices.Equal(m, []string{"Bob", "Cid"}) {
		t.Errorf("got %v, want [Bob Cid]", m)
	}
}

func TestRewrite_MembershipCoercesListElements(t *testing.T) {
	rw := newRewriter(t)
	rp, err := rules.ResolvePath(reflect.TypeFor[source](), "Score")
	if err != nil {
		t.Fatalf("ResolvePath() error = %v, want nil", err)
	}
	pred := rp.Lambda(expr.NewCall(expr.Contains, expr.Const([]int{5, 7}), rp.Access))

	got := Rewrite[source, target](rw, pred, false)
	if m := matches(t, got); !slices.Equal(m, []string{"Cid"}) {
		t.Errorf("got %v, want [Cid]", m)
	}
	call := got.Body.(*expr.Call)
	if want := reflect.TypeOf([]*int64{}); call.Receiver.Type() != want {
		t.Errorf("list type = %v, want %v", call.Receiver.Type(), want)
	}
}

func TestRewrite_LeavesSourceUntouched(t *testing.T) {
	rw := newRewriter(t)
	pred := build(t, "Label", types.OpStartsWith, "al")
	before := pred.String()
	if Rewrite[source, target](rw, pred, false) == nil {
		t.Fatal("Rewrite() = nil, want a predicate")
	}
	if after := pred.String(); after != before {
		t.Errorf("source predicate changed: %s -> %s", before, after)
	}
}

func TestRegistry_Register(t *testing.T) {
	reg := NewRegistry()

	err := Register[source, target](reg, PathMapping{Source: "Nope", Target: "Name"})
	if !errors.Is(err, types.ErrUnresolvedMember) {
		t.Errorf("unknown source error = %v, want ErrUnresolvedMember", err)
	}
	err = Register[source, target](reg, PathMapping{Source: "Name", Target: "Nested.Nope"})
	if !errors.Is(err, types.ErrUnresolvedMember) {
		t.Errorf("unknown target error = %v, want ErrUnresolvedMember", err)
	}

	if err := Register[source, target](reg,
		PathMapping{Source: "id", Target: "nested.id"},
		PathMapping{Source: "Label", Target: "Name"},
	); err != nil {
		t.Fatalf("Register() error = %v, want nil", err)
	}
	if err := Register[source, target](reg, PathMapping{Source: "Label", Target: "Nested.Label"}); err != nil {
		t.Fatalf("Register() error = %v, want nil", err)
	}

	got := reg.Lookup(reflect.TypeFor[source](), reflect.TypeFor[target]())
	want := []PathMapping{{Source: "ID", Target: "Nested.ID"}, {Source: "Label", Target: "Nested.Label"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Lookup() = %v, want %v", got, want)
	}
	if other := reg.Lookup(reflect.TypeFor[target](), reflect.TypeFor[source]()); other != nil {
		t.Errorf("Lookup(reverse) = %v, want nil", other)
	}
}

func TestRegistry_LookupReturnsCopy(t *testing.T) {
	reg := NewRegistry()
	src, dst := reflect.TypeFor[source](), reflect.TypeFor[target]()
	if err := reg.Register(src, dst, PathMapping{Source: "Label", Target: "Nested.Label"}); err != nil {
		t.Fatalf("Register() error = %v, want nil", err)
	}

	snapshot := reg.Lookup(src, dst)
	if err := reg.Register(src, dst, PathMapping{Source: "Label", Target: "Name"}); err != nil {
		t.Fatalf("Register() error = %v, want nil", err)
	}
	if want := []PathMapping{{Source: "Label", Target: "Nested.Label"}}; !reflect.DeepEqual(snapshot, want) {
		t.Errorf("earlier Lookup() = %v, want %v unchanged by Register", snapshot, want)
	}

	got := reg.Lookup(src, dst)
	got[0].Target = "Nested.ID"
	if again := reg.Lookup(src, dst); again[0].Target != "Name" {
		t.Errorf("Lookup() target = %s, want Name unchanged by caller edits", again[0].Target)
	}
}

func TestRegistry_ConcurrentLookup(t *testing.T) {
	rw := newRewriter(t)
	pred := build(t, "ID", types.OpEqual, "5")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if Rewrite[source, target](rw, pred, false) == nil {
				t.Error("Rewrite() = nil, want a predicate")
			}
		}()
	}
	wg.Wait()
}

func TestResolveMapping(t *testing.T) {
	table := []PathMapping{
		{Source: "A", Target: "X"},
		{Source: "A.B", Target: "Y.Z"},
		{Source: "AB", Target: "W"},
	}

	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{"A", "X", true},
		{"A.B", "Y.Z", true},
		{"A.B.C", "Y.Z.C", true},
		{"A.Q", "X.Q", true},
		{"AB.C", "W.C", true},
		{"ABC", "", false},
		{"C", "", false},
	}
	for _, tt := range tests {
		got, ok := resolve(table, tt.path)
		if ok != tt.ok || got != tt.want {
			t.Errorf("resolve(%q) = %q, %v; want %q, %v", tt.path, got, ok, tt.want, tt.ok)
		}
	}
}
