// internal/transform/registry.go
package transform

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/solatis/querykit/internal/rules"
)

/*
 * Path mapping registry.
 *
 * Holds the ordered source-path to target-path redirections for each
 * (source type, target type) pair. Populated by the composition root before
 * any rewrite runs; read-only afterwards. Registering the same pair from two
 * goroutines at once is a caller error.
 *
 * Both sides are validated at registration: the source path must resolve on
 * the source type and the target path on the target type. Source paths are
 * stored in canonical Go field-name form so lookups match expr.Member.Path.
 */

// PathMapping redirects one source member path to a target member path.
type PathMapping struct {
	Source string `yaml:"source" json:"source" mapstructure:"source"`
	Target string `yaml:"target" json:"target" mapstructure:"target"`
}

type typePair struct {
	src, dst reflect.Type
}

// Registry stores path mappings per type pair.
type Registry struct {
	mu     sync.RWMutex
	tables map[typePair][]PathMapping
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tables: make(map[typePair][]PathMapping)}
}

// Register appends mappings for (src, dst). Later registrations for the same
// pair extend the table; a repeated source path replaces the earlier entry.
func (r *Registry) Register(src, dst reflect.Type, mappings ...PathMapping) error {
	if src == nil || dst == nil {
		return fmt.Errorf("register mapping: nil type")
	}

	canonical := make([]PathMapping, 0, len(mappings))
	for _, m := range mappings {
		from, err := rules.ResolvePath(src, m.Source)
		if err != nil {
			return fmt.Errorf("register mapping %s -> %s: source: %w", m.Source, m.Target, err)
		}
		to, err := rules.ResolvePath(dst, m.Target)
		if err != nil {
			return fmt.Errorf("register mapping %s -> %s: target: %w", m.Source, m.Target, err)
		}
		canonical = append(canonical, PathMapping{Source: from.Path, Target: to.Path})
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := typePair{src: src, dst: dst}
	table := r.tables[key]
	for _, m := range canonical {
		replaced := false
		for i := range table {
			if table[i].Source == m.Source {
				table[i] = m
				replaced = true
				break
			}
		}
		if !replaced {
			table = append(table, m)
		}
	}
	r.tables[key] = table
	return nil
}

// Register is the generic form of Registry.Register.
func Register[S, D any](r *Registry, mappings ...PathMapping) error {
	return r.Register(reflect.TypeFor[S](), reflect.TypeFor[D](), mappings...)
}

// Lookup returns a copy of the mappings declared for (src, dst) in
// registration order.
func (r *Registry) Lookup(src, dst reflect.Type) []PathMapping {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.tables[typePair{src: src, dst: dst}])
}

// resolve finds the target path for a source path: the exact mapping, else
// the longest mapped prefix with the remaining hops appended.
func resolve(table []PathMapping, path string) (string, bool) {
	best := -1
	for i, m := range table {
		if m.Source == path {
			return m.Target, true
		}
		if strings.HasPrefix(path, m.Source+".") && (best < 0 || len(m.Source) > len(table[best].Source)) {
			best = i
		}
	}
	if best < 0 {
		return "", false
	}
	return table[best].Target + strings.TrimPrefix(path, table[best].Source), true
}
