// Package validation checks tagged input structs with go-playground/validator
// and reports the first failure under the field's json name.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Enum is implemented by closed string sets; the "enum" tag accepts only
// values for which Valid reports true.
type Enum interface {
	Valid() bool
}

// FieldError names the offending field by its path from the validated
// struct, for example "items[0].quantity".
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		d, ok := field.Interface().(decimal.Decimal)
		if !ok {
			return nil
		}
		return d.InexactFloat64()
	}, decimal.Decimal{})
	if err := v.RegisterValidation("enum", func(fl validator.FieldLevel) bool {
		e, ok := fl.Field().Interface().(Enum)
		return ok && e.Valid()
	}); err != nil {
		panic(err)
	}
	return v
}

// Struct validates s and returns a *FieldError for the first field that
// fails, in declaration order.
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return err
	}
	fe := errs[0]
	return &FieldError{Field: path(fe), Message: message(fe)}
}

// Var validates a single value reported as field.
func Var(field string, value any, tag string) error {
	err := validate.Var(value, tag)
	if err == nil {
		return nil
	}
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return err
	}
	return &FieldError{Field: field, Message: message(errs[0])}
}

// path drops the root struct name from the namespace.
func path(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	param := fe.Param()
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		if param == "0" {
			return "must be positive"
		}
		return "must be greater than " + param
	case "gte":
		if param == "0" {
			return "must not be negative"
		}
		return "must be at least " + param
	case "min":
		switch fe.Kind() {
		case reflect.String:
			return "must be at least " + param + " characters"
		case reflect.Slice, reflect.Map:
			return "must contain at least " + param + " entries"
		}
		return "must be at least " + param
	case "max":
		if fe.Kind() == reflect.String {
			return "must be at most " + param + " characters"
		}
		return "must be at most " + param
	case "email":
		return "must be a valid email address"
	case "enum":
		return "is not a known value"
	case "oneof":
		return "must be one of " + strings.Join(strings.Fields(param), ", ")
	}
	return "failed the " + fe.Tag() + " check"
}
