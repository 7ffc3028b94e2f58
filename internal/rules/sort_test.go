package rules

import (
	"reflect"
	"slices"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/solatis/querykit/internal/types"
)

func sorted(t *testing.T, opts Options, conds []types.SortCondition, mappings types.Mappings) []string {
	t.Helper()
	keys := SortOf[Person](NewEngine(opts, nil), conds, mappings)
	out, err := ApplyOrder(people(), keys)
	if err != nil {
		t.Fatalf("ApplyOrder() error = %v, want nil", err)
	}
	return names(out)
}

func by(field string, dir types.Direction) types.SortCondition {
	return types.SortCondition{Field: field, Direction: dir}
}

func TestSort_Order(t *testing.T) {
	tests := []struct {
		name  string
		conds []types.SortCondition
		want  []string
	}{
		{"int ascending", []types.SortCondition{by("Age", types.DirectionAscending)},
			[]string{"Gosalyn Mallard", "Launchpad McQuack", "Darkwing Duck", "Scrooge McDuck"}},
		{"int descending", []types.SortCondition{by("Age", types.DirectionDescending)},
			[]string{"Scrooge McDuck", "Darkwing Duck", "Launchpad McQuack", "Gosalyn Mallard"}},
		{"string ascending", []types.SortCondition{by("Name", types.DirectionAscending)},
			[]string{"Darkwing Duck", "Gosalyn Mallard", "Launchpad McQuack", "Scrooge McDuck"}},
		{"nil first ascending", []types.SortCondition{by("Score", types.DirectionAscending)},
			[]string{"Launchpad McQuack", "Gosalyn Mallard", "Darkwing Duck", "Scrooge McDuck"}},
		{"nil last descending", []types.SortCondition{by("Score", types.DirectionDescending)},
			[]string{"Scrooge McDuck", "Darkwing Duck", "Gosalyn Mallard", "Launchpad McQuack"}},
		{"decimal", []types.SortCondition{by("Balance", types.DirectionDescending)},
			[]string{"Scrooge McDuck", "Darkwing Duck", "Gosalyn Mallard", "Launchpad McQuack"}},
		{"datetime", []types.SortCondition{by("Born", types.DirectionAscending)},
			[]string{"Scrooge McDuck", "Launchpad McQuack", "Darkwing Duck", "Gosalyn Mallard"}},
		{"enum by ordinal then name", []types.SortCondition{by("Favorite", types.DirectionAscending), by("Name", types.DirectionDescending)},
			[]string{"Launchpad McQuack", "Scrooge McDuck", "Gosalyn Mallard", "Darkwing Duck"}},
		{"nil hop sorts as nil", []types.SortCondition{by("Address.City", types.DirectionAscending)},
			[]string{"Launchpad McQuack", "Scrooge McDuck", "Darkwing Duck", "Gosalyn Mallard"}},
		{"stable on ties", []types.SortCondition{by("Active", types.DirectionAscending)},
			[]string{"Launchpad McQuack", "Scrooge McDuck", "Darkwing Duck", "Gosalyn Mallard"}},
		{"none direction skipped", []types.SortCondition{by("Age", types.DirectionNone), by("Rank", types.DirectionDescending)},
			[]string{"Scrooge McDuck", "Gosalyn Mallard", "Launchpad McQuack", "Darkwing Duck"}},
		{"unresolved skipped", []types.SortCondition{by("Nope", types.DirectionAscending), by("Height", types.DirectionAscending)},
			[]string{"Gosalyn Mallard", "Scrooge McDuck", "Darkwing Duck", "Launchpad McQuack"}},
		{"list skipped keeps input order", []types.SortCondition{by("Tags", types.DirectionDescending)},
			[]string{"Darkwing Duck", "Launchpad McQuack", "Gosalyn Mallard", "Scrooge McDuck"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sorted(t, Options{}, tt.conds, nil); !slices.Equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSort_CaseInsensitive(t *testing.T) {
	recs := []Person{{Name: "beta"}, {Name: "Alpha"}, {Name: "alpha2"}, {Name: "Beta0"}}
	conds := []types.SortCondition{by("Name", types.DirectionAscending)}

	ci, err := ApplyOrder(recs, SortOf[Person](NewEngine(Options{CaseInsensitive: true}, nil), conds, nil))
	if err != nil {
		t.Fatalf("ApplyOrder() error = %v, want nil", err)
	}
	if got, want := names(ci), []string{"Alpha", "alpha2", "beta", "Beta0"}; !slices.Equal(got, want) {
		t.Errorf("case-insensitive = %v, want %v", got, want)
	}

	cs, err := ApplyOrder(recs, SortOf[Person](NewEngine(Options{}, nil), conds, nil))
	if err != nil {
		t.Fatalf("ApplyOrder() error = %v, want nil", err)
	}
	if got, want := names(cs), []string{"Alpha", "Beta0", "alpha2", "beta"}; !slices.Equal(got, want) {
		t.Errorf("case-sensitive = %v, want %v", got, want)
	}
}

func TestSort_MappingExpandsToKeys(t *testing.T) {
	keys := SortOf[Person](NewEngine(Options{}, nil),
		[]types.SortCondition{by("Order", types.DirectionAscending)},
		types.Mappings{"Order": {"Favorite", "Age"}})
	if len(keys) != 2 {
		t.Fatalf("len(keys) = %d, want 2", len(keys))
	}
	if keys[0].Path != "Favorite" || keys[1].Path != "Age" {
		t.Errorf("keys = %s, %s; want Favorite, Age", keys[0].Path, keys[1].Path)
	}
	if keys[0].Family != FamilyEnum || keys[1].Family != FamilyInt64 {
		t.Errorf("families = %s, %s; want enum, int64", keys[0].Family, keys[1].Family)
	}

	got := sorted(t, Options{}, []types.SortCondition{by("Order", types.DirectionAscending)}, types.Mappings{"Order": {"Favorite", "Age"}})
	want := []string{"Launchpad McQuack", "Gosalyn Mallard", "Scrooge McDuck", "Darkwing Duck"}
	if !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestSort_NilRecordType(t *testing.T) {
	if keys := NewEngine(Options{}, nil).Sort(nil, []types.SortCondition{by("Age", types.DirectionAscending)}, nil); keys != nil {
		t.Errorf("Sort(nil) = %v, want nil", keys)
	}
}

func TestApplyOrder_DoesNotMutateInput(t *testing.T) {
	in := people()
	before := names(in)
	if _, err := ApplyOrder(in, SortOf[Person](NewEngine(Options{}, nil), []types.SortCondition{by("Age", types.DirectionAscending)}, nil)); err != nil {
		t.Fatalf("ApplyOrder() error = %v, want nil", err)
	}
	if !slices.Equal(names(in), before) {
		t.Errorf("input reordered: %v", names(in))
	}
}

// Property-based test: ordering by an int key matches a reference sort
func TestApplyOrder_PropertyMatchesReference(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	asc := SortOf[Person](NewEngine(Options{}, nil), []types.SortCondition{by("Age", types.DirectionAscending)}, nil)
	desc := SortOf[Person](NewEngine(Options{}, nil), []types.SortCondition{by("Age", types.DirectionDescending)}, nil)

	properties.Property("ascending then descending are mirror orders on distinct keys", prop.ForAll(
		func(ages []int) bool {
			ages = slices.Compact(slices.Sorted(slices.Values(ages)))
			recs := make([]Person, len(ages))
			for i, a := range ages {
				recs[len(ages)-1-i] = Person{Age: a}
			}

			up, err := ApplyOrder(recs, asc)
			if err != nil {
				return false
			}
			down, err := ApplyOrder(recs, desc)
			if err != nil {
				return false
			}
			for i := range up {
				if up[i].Age != ages[i] || down[len(down)-1-i].Age != ages[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(-1000, 1000)),
	))

	properties.Property("sorting is stable on equal keys", prop.ForAll(
		func(ages []int) bool {
			recs := make([]Person, len(ages))
			for i, a := range ages {
				recs[i] = Person{Age: a % 3, Rank: int16(i)}
			}
			out, err := ApplyOrder(recs, asc)
			if err != nil {
				return false
			}
			want := slices.Clone(recs)
			slices.SortStableFunc(want, func(a, b Person) int { return a.Age - b.Age })
			for i := range out {
				if out[i].Rank != want[i].Rank {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 100)),
	))

	properties.TestingRun(t)
}

func TestSort_KeyLambdaReadsMember(t *testing.T) {
	keys := SortOf[Person](NewEngine(Options{}, nil), []types.SortCondition{by("address.zip", types.DirectionAscending)}, nil)
	if len(keys) != 1 {
		t.Fatalf("len(keys) = %d, want 1", len(keys))
	}
	if keys[0].Path != "Address.Zip" {
		t.Errorf("Path = %q, want Address.Zip", keys[0].Path)
	}
	v, err := keys[0].Key.Invoke(reflect.ValueOf(people()[0]))
	if err != nil {
		t.Fatalf("Invoke() error = %v, want nil", err)
	}
	if got := *v.Interface().(*string); got != "12345" {
		t.Errorf("Invoke() = %q, want 12345", got)
	}
}
