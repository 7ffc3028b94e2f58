package rules

import (
	"reflect"
	"testing"

	"github.com/solatis/querykit/internal/expr"
	"github.com/solatis/querykit/internal/types"
)

func TestPredicateCost_Ordering(t *testing.T) {
	costOf := func(opts Options, c types.Condition) int {
		t.Helper()
		preds, err := Where[Person](NewEngine(opts, nil), Query{Conditions: []types.Condition{c}})
		if err != nil {
			t.Fatalf("Where() error = %v, want nil", err)
		}
		return PredicateCost(preds[0])
	}

	boolEq := costOf(Options{}, cond("Active", types.OpEqual, "true"))
	intGt := costOf(Options{}, cond("Age", types.OpGreaterThan, "3"))
	strEq := costOf(Options{}, cond("Name", types.OpEqual, "x"))
	strContains := costOf(Options{}, cond("Name", types.OpContains, "x"))
	ciContains := costOf(Options{CaseInsensitive: true}, cond("Name", types.OpContains, "x"))
	nested := costOf(Options{}, cond("Address.City", types.OpEqual, "x"))
	anyTag := costOf(Options{CaseInsensitive: true}, cond("Tags", types.OpContains, "x"))

	tests := []struct {
		name        string
		cheap, dear int
	}{
		{"bool equality before int ordering", boolEq, intGt},
		{"int ordering before string equality", intGt, strEq},
		{"string equality before substring", strEq, strContains},
		{"case-sensitive before case-insensitive", strContains, ciContains},
		{"flat before nested", strEq, nested},
		{"substring before list scan", ciContains, anyTag},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.cheap >= tt.dear {
				t.Errorf("cost %d >= %d, want cheaper", tt.cheap, tt.dear)
			}
		})
	}
}

func TestPredicateCost_HandBuiltCalls(t *testing.T) {
	x := expr.NewParameter("x", reflect.TypeOf(0))
	list := expr.Const([]int{1, 2})

	tests := []struct {
		name string
		call *expr.Call
	}{
		{"any without lambda", expr.NewCall(expr.Any, list, expr.Const(1))},
		{"any with nil lambda", expr.NewCall(expr.Any, list, (*expr.Lambda)(nil))},
		{"any without arguments", expr.NewCall(expr.Any, list)},
		{"contains without receiver", expr.NewCall(expr.Contains, nil, x)},
		{"compare without arguments", expr.NewCall(expr.Compare, nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PredicateCost(expr.NewLambda(tt.call, x)); got <= 0 {
				t.Errorf("PredicateCost() = %d, want > 0", got)
			}
		})
	}

	if got := PredicateCost(expr.NewLambda((*expr.Lambda)(nil), x)); got != 0 {
		t.Errorf("PredicateCost(nil body lambda) = %d, want 0", got)
	}
}
