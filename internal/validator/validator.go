package validator

import (
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// Offer codes typed by customers are 4-20 characters once surrounding
// whitespace is removed. Any characters are allowed; matching ignores case.
const (
	MinCodeLength = 4
	MaxCodeLength = 20
)

// New creates a new validator instance with custom validations registered.
// This ensures consistent validation across the application and tests.
func New() *validator.Validate {
	v := validator.New()

	// Report fields by their JSON names so error messages match the request body
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	// Register custom "notblank" validator - rejects whitespace-only strings
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		str, ok := fl.Field().Interface().(string)
		if !ok {
			return true // Not a string, let other validators handle it
		}
		return strings.TrimSpace(str) != ""
	})

	_ = v.RegisterValidation("offercode", func(fl validator.FieldLevel) bool {
		str, ok := fl.Field().Interface().(string)
		if !ok {
			return true
		}
		return ValidCode(str)
	})

	return v
}

// ValidCode reports whether s has the length of an offer code.
func ValidCode(s string) bool {
	n := utf8.RuneCountInString(strings.TrimSpace(s))
	return n >= MinCodeLength && n <= MaxCodeLength
}
