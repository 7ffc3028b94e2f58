package rules

import (
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/solatis/querykit/internal/expr"
	"github.com/solatis/querykit/internal/types"
)

// chain is self-referential so arbitrarily deep paths resolve.
type chain struct {
	Next  *chain
	Value int
}

type base struct {
	Created string
}

type embedding struct {
	base
	Label string
}

func TestResolvePath_Normal(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		wantPath   string
		wantType   reflect.Type
		wantGuards int
		nullable   bool
	}{
		{"top-level", "Name", "Name", reflect.TypeOf(""), 0, false},
		{"nullable top-level", "Nick", "Nick", reflect.TypeOf((*string)(nil)), 0, true},
		{"through pointer", "Address.City", "Address.City", reflect.TypeOf(""), 1, false},
		{"nullable leaf through pointer", "Address.Zip", "Address.Zip", reflect.TypeOf((*string)(nil)), 1, true},
		{"case-insensitive", "aDDress.ciTY", "Address.City", reflect.TypeOf(""), 1, false},
		{"json tag", "mail", "Email", reflect.TypeOf(""), 0, false},
		{"spaces around hops", " Address . City ", "Address.City", reflect.TypeOf(""), 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rp, err := ResolvePath(reflect.TypeFor[Person](), tt.path)
			if err != nil {
				t.Fatalf("ResolvePath() error = %v, want nil", err)
			}
			if rp.Path != tt.wantPath {
				t.Errorf("Path = %q, want %q", rp.Path, tt.wantPath)
			}
			if got := rp.Access.Type(); got != tt.wantType {
				t.Errorf("Access.Type() = %v, want %v", got, tt.wantType)
			}
			if len(rp.Guards) != tt.wantGuards {
				t.Errorf("len(Guards) = %d, want %d", len(rp.Guards), tt.wantGuards)
			}
			if rp.Nullable != tt.nullable {
				t.Errorf("Nullable = %v, want %v", rp.Nullable, tt.nullable)
			}
			if rp.Param.Type() != reflect.TypeFor[Person]() {
				t.Errorf("Param.Type() = %v, want Person", rp.Param.Type())
			}
		})
	}
}

func TestResolvePath_PromotedField(t *testing.T) {
	rp, err := ResolvePath(reflect.TypeFor[embedding](), "Created")
	if err != nil {
		t.Fatalf("ResolvePath() error = %v, want nil", err)
	}
	v, err := rp.Lambda(rp.Access).Invoke(reflect.ValueOf(embedding{base: base{Created: "today"}}))
	if err != nil {
		t.Fatalf("Invoke() error = %v, want nil", err)
	}
	if v.String() != "today" {
		t.Errorf("Invoke() = %q, want %q", v.String(), "today")
	}
}

func TestResolvePath_Errors(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr error
	}{
		{"empty", "", types.ErrUnresolvedMember},
		{"blank", "   ", types.ErrUnresolvedMember},
		{"unknown member", "Nope", types.ErrUnresolvedMember},
		{"unknown nested", "Address.Street", types.ErrUnresolvedMember},
		{"unexported", "hidden", types.ErrUnresolvedMember},
		{"through scalar", "Name.Length", types.ErrUnresolvedMember},
		{"trailing dot", "Address.", types.ErrUnresolvedMember},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ResolvePath(reflect.TypeFor[Person](), tt.path)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ResolvePath(%q) error = %v, want %v", tt.path, err, tt.wantErr)
			}
		})
	}
}

func TestResolvePath_Depth(t *testing.T) {
	path := func(n int) string {
		hops := make([]string, n)
		for i := range hops {
			hops[i] = "Next"
		}
		hops[n-1] = "Value"
		return strings.Join(hops, ".")
	}

	rp, err := ResolvePath(reflect.TypeFor[chain](), path(types.MaxPathDepth))
	if err != nil {
		t.Fatalf("ResolvePath() at max depth error = %v, want nil", err)
	}
	if len(rp.Guards) != types.MaxPathDepth-1 {
		t.Errorf("len(Guards) = %d, want %d", len(rp.Guards), types.MaxPathDepth-1)
	}

	if _, err := ResolvePath(reflect.TypeFor[chain](), path(types.MaxPathDepth+1)); !errors.Is(err, types.ErrPathTooDeep) {
		t.Errorf("ResolvePath() past max depth error = %v, want ErrPathTooDeep", err)
	}
}

func TestResolvedPath_GuardShortCircuits(t *testing.T) {
	rp, err := ResolvePath(reflect.TypeFor[chain](), "Next.Next.Value")
	if err != nil {
		t.Fatalf("ResolvePath() error = %v, want nil", err)
	}
	pred := rp.Lambda(rp.Guard(expr.NewBinary(expr.Equal, rp.Access, expr.Const(7))))

	match, err := expr.Compile[chain](pred)
	if err != nil {
		t.Fatalf("Compile() error = %v, want nil", err)
	}

	tests := []struct {
		name string
		rec  chain
		want bool
	}{
		{"nil first hop", chain{}, false},
		{"nil second hop", chain{Next: &chain{}}, false},
		{"match", chain{Next: &chain{Next: &chain{Value: 7}}}, true},
		{"no match", chain{Next: &chain{Next: &chain{Value: 8}}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := match(tt.rec)
			if err != nil {
				t.Fatalf("match() error = %v, want nil", err)
			}
			if got != tt.want {
				t.Errorf("match() = %v, want %v", got, tt.want)
			}
		})
	}

	// Without guards the nil hop surfaces as a null reference.
	bare, err := expr.Compile[chain](rp.Lambda(expr.NewBinary(expr.Equal, rp.Access, expr.Const(7))))
	if err != nil {
		t.Fatalf("Compile() error = %v, want nil", err)
	}
	if _, err := bare(chain{}); !errors.Is(err, types.ErrNullReference) {
		t.Errorf("unguarded error = %v, want ErrNullReference", err)
	}
}

func TestFieldOf_ConcurrentLookups(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, name := range []string{"Name", "name", "mail", "Nope"} {
				f, ok := FieldOf(reflect.TypeFor[*Person](), name)
				if name == "Nope" {
					if ok {
						t.Errorf("FieldOf(%q) ok = true, want false", name)
					}
					continue
				}
				if !ok || f.Name == "" {
					t.Errorf("FieldOf(%q) = %v, %v", name, f.Name, ok)
				}
			}
		}()
	}
	wg.Wait()
}

// Property-based test: resolution never panics
func TestResolvePath_PropertyNeverPanics(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	hops := []string{"Address", "City", "Zip", "name", "Nope", ""}
	check := func(path string) bool {
		defer func() {
			if r := recover(); r != nil {
				t.Errorf("ResolvePath(%q) panicked: %v", path, r)
			}
		}()
		rp, err := ResolvePath(reflect.TypeFor[Person](), path)
		if err != nil {
			return errors.Is(err, types.ErrUnresolvedMember) || errors.Is(err, types.ErrPathTooDeep)
		}
		return rp.Access != nil
	}

	properties.Property("arbitrary text resolves or fails cleanly", prop.ForAll(
		check,
		gen.AnyString(),
	))

	properties.Property("arbitrary hop sequences resolve or fail cleanly", prop.ForAll(
		func(picks []int) bool {
			parts := make([]string, len(picks))
			for i, p := range picks {
				parts[i] = hops[p]
			}
			return check(strings.Join(parts, "."))
		},
		gen.SliceOf(gen.IntRange(0, len(hops)-1)),
	))

	properties.TestingRun(t)
}
