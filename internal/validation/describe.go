// internal/validation/describe.go
package validation

import (
	"reflect"
	"strings"

	"github.com/iancoleman/strcase"

	"github.com/solatis/querykit/internal/rules"
	"github.com/solatis/querykit/internal/types"
)

/*
 * Client-consumable rule descriptors.
 *
 * Describe reads the `validate` tags of a record type and reports the
 * constraints a client form can enforce before submitting: required, min,
 * max, len, email, url, oneof, gte, lte, gt, lt. Other validator tags are
 * server-side only and omitted. Rules after `dive` apply to list elements and
 * are reported under Elem.
 *
 * DescribeDynamic does the same for fields defined at runtime, whose rules
 * come as validate tag strings.
 */

// Rule is one client-side constraint.
type Rule struct {
	Name  string `json:"name" yaml:"name"`
	Param string `json:"param,omitempty" yaml:"param,omitempty"`
}

// FieldRules describes the constraints of one field.
type FieldRules struct {
	Field    string       `json:"field" yaml:"field"`
	Type     string       `json:"type" yaml:"type"`
	Optional bool         `json:"optional,omitempty" yaml:"optional,omitempty"`
	Rules    []Rule       `json:"rules,omitempty" yaml:"rules,omitempty"`
	Elem     []Rule       `json:"elem,omitempty" yaml:"elem,omitempty"`
	Fields   []FieldRules `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// DynamicField is a field defined at runtime.
type DynamicField struct {
	Name  string `json:"name" yaml:"name" mapstructure:"name"`
	Type  string `json:"type" yaml:"type" mapstructure:"type"`
	Rules string `json:"rules" yaml:"rules" mapstructure:"rules"`
}

var clientRules = map[string]bool{
	"required": true,
	"min":      true,
	"max":      true,
	"len":      true,
	"email":    true,
	"url":      true,
	"oneof":    true,
	"gte":      true,
	"lte":      true,
	"gt":       true,
	"lt":       true,
}

// Type names for members outside the filterable families.
const (
	TypeObject = "object"
	TypeList   = "list"
	TypeOther  = "other"
)

// Describe returns the rule descriptors of t's exported fields. t may be a
// struct or a pointer to one; anything else yields nil.
func Describe(t reflect.Type) []FieldRules {
	return describe(t, 0)
}

func describe(t reflect.Type, depth int) []FieldRules {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct || depth > types.MaxPathDepth {
		return nil
	}

	var out []FieldRules
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		if f.Anonymous && indirect(f.Type).Kind() == reflect.Struct && f.Tag.Get("json") == "" {
			out = append(out, describe(f.Type, depth+1)...)
			continue
		}
		name := clientName(f)
		if name == "" {
			continue
		}

		fr := FieldRules{Field: name, Type: typeName(f.Type)}
		fr.Rules, fr.Elem, fr.Optional = parseTag(f.Tag.Get("validate"))
		if fr.Type == TypeObject {
			fr.Fields = describe(f.Type, depth+1)
		}
		out = append(out, fr)
	}
	return out
}

// DescribeDynamic returns rule descriptors for runtime-defined fields.
func DescribeDynamic(fields []DynamicField) []FieldRules {
	out := make([]FieldRules, 0, len(fields))
	for _, f := range fields {
		fr := FieldRules{Field: strcase.ToLowerCamel(f.Name), Type: f.Type}
		fr.Rules, fr.Elem, fr.Optional = parseTag(f.Rules)
		out = append(out, fr)
	}
	return out
}

// parseTag splits a validate tag into field rules and element rules.
func parseTag(tag string) (field, elem []Rule, optional bool) {
	if tag == "" || tag == "-" {
		return nil, nil, true
	}
	optional = true
	dst := &field
	for _, part := range strings.Split(tag, ",") {
		name, param, _ := strings.Cut(strings.TrimSpace(part), "=")
		switch {
		case name == "dive":
			dst = &elem
			continue
		case name == "omitempty":
			continue
		case name == "required" && dst == &field:
			optional = false
		}
		if clientRules[name] {
			*dst = append(*dst, Rule{Name: name, Param: param})
		}
	}
	return field, elem, optional
}

// typeName is the family name of t as the rules engine classifies it.
func typeName(t reflect.Type) string {
	if info, ok := rules.Classify(t); ok {
		if info.List {
			return TypeList
		}
		return info.Family.String()
	}
	base := indirect(t)
	switch {
	case base.Kind() == reflect.Struct:
		return TypeObject
	case base.Kind() == reflect.Slice || base.Kind() == reflect.Array:
		return TypeList
	default:
		return TypeOther
	}
}

func indirect(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}
