// internal/validation/validator.go
package validation

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/iancoleman/strcase"
)

/*
 * Attribute-driven object validation.
 *
 * Validates arbitrary object graphs against their `validate` struct tags,
 * including nested structs and `dive` into slices and maps. Every violation
 * is reported, not just the first. Messages are English, produced by the
 * universal-translator registrations of the validator package.
 *
 * Field names in results are client-facing: the json tag name when present,
 * else the lowerCamel field name, dotted from the root object (e.g.
 * "address.city", "tags[1]").
 */

// FieldError describes one failed constraint.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message"`
}

// Result is the outcome of validating one object.
type Result struct {
	Valid  bool         `json:"valid"`
	Errors []FieldError `json:"errors,omitempty"`
}

// Validator validates objects against their declared constraints. Safe for
// concurrent use.
type Validator struct {
	validate *validator.Validate
	trans    ut.Translator
}

// New creates a validator with English messages.
func New() *Validator {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(clientName)

	uni := ut.New(en.New(), en.New())
	trans, _ := uni.GetTranslator("en")
	_ = enTranslations.RegisterDefaultTranslations(validate, trans)

	_ = validate.RegisterTranslation("required", trans, func(ut ut.Translator) error {
		return ut.Add("required", "{0} is a required field", true)
	}, func(ut ut.Translator, fe validator.FieldError) string {
		t, _ := ut.T("required", fe.Field())
		return t
	})

	return &Validator{validate: validate, trans: trans}
}

// Validate checks obj, which must be a struct or a pointer to one.
func (v *Validator) Validate(obj any) Result {
	err := v.validate.Struct(obj)
	if err == nil {
		return Result{Valid: true}
	}

	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return Result{Errors: []FieldError{{Tag: "struct", Message: "value must be a non-nil struct"}}}
	}

	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return Result{Errors: []FieldError{{Message: err.Error()}}}
	}
	return Result{Errors: v.fieldErrors(errs, "")}
}

// ValidateValue checks a single value against a validate tag string. name is
// reported as the field name.
func (v *Validator) ValidateValue(name string, value any, tag string) Result {
	err := v.validate.Var(value, tag)
	if err == nil {
		return Result{Valid: true}
	}
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return Result{Errors: []FieldError{{Field: name, Message: err.Error()}}}
	}
	return Result{Errors: v.fieldErrors(errs, name)}
}

func (v *Validator) fieldErrors(errs validator.ValidationErrors, name string) []FieldError {
	out := make([]FieldError, 0, len(errs))
	for _, fe := range errs {
		field := name
		if field == "" {
			field = trimRoot(fe.Namespace())
		}
		msg := fe.Translate(v.trans)
		if name != "" {
			msg = name + strings.TrimPrefix(msg, fe.Field())
		}
		out = append(out, FieldError{
			Field:   field,
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Message: msg,
		})
	}
	return out
}

// trimRoot drops the root struct name from a validator namespace.
func trimRoot(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// clientName is the client-facing name of a struct field; empty for fields
// hidden from JSON.
func clientName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return strcase.ToLowerCamel(f.Name)
	default:
		return name
	}
}
