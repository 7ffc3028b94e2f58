package rules

import (
	"reflect"
	"sort"
	"strings"

	"github.com/solatis/querykit/internal/expr"
	"github.com/solatis/querykit/internal/types"
)

/*
 * Global search.
 *
 * Searchable members are the exported top-level string fields of the record
 * (tag `search:"-"` opts out) plus every mapped path that resolves to a
 * string member. Each token becomes an OR over Contains on every searchable
 * member; tokens are AND-combined. Without SplitSearchBySpace the whole
 * trimmed text is a single token.
 */

// SearchPaths lists the searchable member paths of recordType.
func SearchPaths(recordType reflect.Type, mappings types.Mappings) []string {
	t := recordType
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}

	seen := make(map[string]bool)
	var paths []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}

	for _, f := range reflect.VisibleFields(t) {
		if !f.IsExported() || f.Anonymous || f.Tag.Get("search") == "-" {
			continue
		}
		if info, ok := Classify(f.Type); ok && info.Family == FamilyString && !info.List {
			add(f.Name)
		}
	}

	names := make([]string, 0, len(mappings))
	for name := range mappings {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, path := range mappings[name] {
			rp, err := ResolvePath(recordType, path)
			if err != nil {
				continue
			}
			if info, ok := Classify(rp.Access.Type()); ok && info.Family == FamilyString && !info.List {
				add(rp.Path)
			}
		}
	}
	return paths
}

// search builds the global search predicate; nil when nothing is searchable.
func (b *builder) search(text string) *expr.Lambda {
	var tokens []string
	if b.engine.opts.SplitSearchBySpace {
		tokens = strings.Fields(text)
	} else if t := strings.TrimSpace(text); t != "" {
		tokens = []string{t}
	}
	if len(tokens) == 0 {
		return nil
	}

	paths := SearchPaths(b.root, b.mappings)
	if len(paths) == 0 {
		return nil
	}

	perToken := make([]*expr.Lambda, 0, len(tokens))
	for _, token := range tokens {
		alts := make([]*expr.Lambda, 0, len(paths))
		for _, path := range paths {
			p, err := b.conditionOn(path, types.OpContains, token)
			if err != nil {
				continue
			}
			alts = append(alts, p)
		}
		perToken = append(perToken, expr.OrAll(alts))
	}
	return expr.AndAll(perToken)
}
