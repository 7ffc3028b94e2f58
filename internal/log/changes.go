// internal/log/changes.go
package log

import (
	"reflect"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"
)

/*
 * Change tracking for audit records.
 *
 * Changes compares two versions of the same struct and reports every exported
 * property whose value differs. Nested structs are walked and reported with
 * dotted property names; time.Time, slices and maps are compared as values.
 * A nil before reports every property as created; a nil after reports every
 * property as removed.
 *
 * String changes carry a patch in diff-match-patch text form, so large text
 * edits stay small in the record.
 */

// Change is one changed property.
type Change struct {
	Property string `json:"property"`
	Old      any    `json:"old"`
	New      any    `json:"new"`
	Diff     string `json:"diff,omitempty"`
}

// Bag flattens the change into record properties keyed by property name.
func (c Change) Bag() map[string]any {
	bag := map[string]any{
		c.Property + ".old": c.Old,
		c.Property + ".new": c.New,
	}
	if c.Diff != "" {
		bag[c.Property+".diff"] = c.Diff
	}
	return bag
}

// ChangeBag merges the bags of all changes.
func ChangeBag(changes []Change) map[string]any {
	out := make(map[string]any, 3*len(changes))
	for _, c := range changes {
		for k, v := range c.Bag() {
			out[k] = v
		}
	}
	return out
}

var timeType = reflect.TypeOf(time.Time{})

// Changes returns the properties that differ between before and after, in
// field order. before and after must be the same struct type or pointers to
// it; mismatched types yield nil.
func Changes(before, after any) []Change {
	bv, av := structValue(before), structValue(after)
	switch {
	case !bv.IsValid() && !av.IsValid():
		return nil
	case bv.IsValid() && av.IsValid() && bv.Type() != av.Type():
		return nil
	}

	dmp := diffmatchpatch.New()
	var out []Change
	walk(dmp, "", bv, av, &out)
	return out
}

func structValue(v any) reflect.Value {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return reflect.Value{}
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return reflect.Value{}
	}
	return rv
}

func walk(dmp *diffmatchpatch.DiffMatchPatch, prefix string, bv, av reflect.Value, out *[]Change) {
	var t reflect.Type
	if bv.IsValid() {
		t = bv.Type()
	} else {
		t = av.Type()
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := prefix + f.Name

		var b, a reflect.Value
		if bv.IsValid() {
			b = bv.Field(i)
		}
		if av.IsValid() {
			a = av.Field(i)
		}

		if f.Type.Kind() == reflect.Struct && f.Type != timeType {
			walk(dmp, name+".", b, a, out)
			continue
		}

		old, nu := valueOf(b), valueOf(a)
		if b.IsValid() && a.IsValid() && reflect.DeepEqual(old, nu) {
			continue
		}
		c := Change{Property: name, Old: old, New: nu}
		if f.Type.Kind() == reflect.String {
			c.Diff = textDiff(dmp, b, a)
		}
		*out = append(*out, c)
	}
}

func valueOf(v reflect.Value) any {
	if !v.IsValid() {
		return nil
	}
	return v.Interface()
}

func textDiff(dmp *diffmatchpatch.DiffMatchPatch, b, a reflect.Value) string {
	var old, nu string
	if b.IsValid() {
		old = b.String()
	}
	if a.IsValid() {
		nu = a.String()
	}
	diffs := dmp.DiffMain(old, nu, false)
	diffs = dmp.DiffCleanupSemantic(diffs)
	return dmp.PatchToText(dmp.PatchMake(old, diffs))
}
