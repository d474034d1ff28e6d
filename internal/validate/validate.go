// SPDX-License-Identifier: MIT

// Package validate provides typed field validation for settings values.
//
// Values arrive from a decoded YAML or TOML document, so a field may hold a
// string, an integer, a float or a boolean. Each check coerces the raw value
// to the expected type, applies the range rule and records an Error on
// failure.
package validate

import (
	"fmt"
	"strings"
)

// Error represents a validation error
type Error struct {
	Field   string // Field name that failed validation
	Value   any    // The invalid value
	Message string // Human-readable error message
}

// Error implements the error interface
func (e Error) Error() string {
	return fmt.Sprintf("invalid %s value: %s (%s)", e.Field, Display(e.Value), e.Message)
}

// Validator accumulates validation errors and can produce a ValidationError when invalid.
type Validator struct {
	errors []Error
}

// ValidationError bundles multiple validation errors into a single error value.
type ValidationError struct {
	errors []Error
}

// New creates a new validator
func New() *Validator {
	return &Validator{
		errors: make([]Error, 0),
	}
}

// AddError adds a validation error
func (v *Validator) AddError(field, message string, value any) {
	v.errors = append(v.errors, Error{
		Field:   field,
		Value:   value,
		Message: message,
	})
}

// IsValid returns true if no errors have been accumulated
func (v *Validator) IsValid() bool {
	return len(v.errors) == 0
}

// Errors returns all accumulated validation errors
func (v *Validator) Errors() []Error {
	return v.errors
}

// Err converts the accumulated validation errors into an error value.
func (v *Validator) Err() error {
	if len(v.errors) == 0 {
		return nil
	}

	copied := make([]Error, len(v.errors))
	copy(copied, v.errors)

	return ValidationError{errors: copied}
}

// Errors returns the individual validation errors making up the validation failure.
func (e ValidationError) Errors() []Error {
	return e.errors
}

// Error implements the error interface for ValidationError.
func (e ValidationError) Error() string {
	if len(e.errors) == 0 {
		return ""
	}

	if len(e.errors) == 1 {
		return e.errors[0].Error()
	}

	msgs := make([]string, len(e.errors))
	for i, err := range e.errors {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// IntMin coerces raw to an integer no smaller than minVal.
func (v *Validator) IntMin(field string, raw any, minVal int) (int, bool) {
	n, err := Int(raw)
	if err != nil {
		v.AddError(field, "must be an integer", raw)
		return 0, false
	}
	if n < minVal {
		v.AddError(field, fmt.Sprintf("must be an integer >= %d", minVal), raw)
		return 0, false
	}
	return n, true
}

// Positive validates that raw is an integer > 0.
func (v *Validator) Positive(field string, raw any) (int, bool) {
	n, err := Int(raw)
	if err != nil || n <= 0 {
		v.AddError(field, "must be an integer > 0", raw)
		return 0, false
	}
	return n, true
}

// NonNegative validates that raw is an integer >= 0.
func (v *Validator) NonNegative(field string, raw any) (int, bool) {
	n, err := Int(raw)
	if err != nil || n < 0 {
		v.AddError(field, "must be an integer >= 0", raw)
		return 0, false
	}
	return n, true
}

// PositiveFloat validates that raw is a number > 0.
func (v *Validator) PositiveFloat(field string, raw any) (float64, bool) {
	f, err := Float(raw)
	if err != nil || f <= 0 {
		v.AddError(field, "must be a number > 0", raw)
		return 0, false
	}
	return f, true
}

// OpenRange validates that raw is a number strictly between lo and hi.
func (v *Validator) OpenRange(field string, raw any, lo, hi float64) (float64, bool) {
	f, err := Float(raw)
	if err != nil || f <= lo || f >= hi {
		v.AddError(field, fmt.Sprintf("must be a number greater than %g and less than %g", lo, hi), raw)
		return 0, false
	}
	return f, true
}

// Number validates that raw is any number.
func (v *Validator) Number(field string, raw any) (float64, bool) {
	f, err := Float(raw)
	if err != nil {
		v.AddError(field, "must be a number", raw)
		return 0, false
	}
	return f, true
}

// Bool validates a boolean using the usual configuration spellings.
func (v *Validator) Bool(field string, raw any) (bool, bool) {
	b, err := Bool(raw)
	if err != nil {
		v.AddError(field, "must be a boolean", raw)
		return false, false
	}
	return b, true
}

// OneOf validates that a value is one of the allowed values. Matching is
// case-insensitive; the canonical spelling from allowed is returned.
func (v *Validator) OneOf(field string, raw any, allowed []string) (string, bool) {
	s, ok := raw.(string)
	if ok {
		s = strings.TrimSpace(s)
		for _, a := range allowed {
			if strings.EqualFold(s, a) {
				return a, true
			}
		}
	}
	v.AddError(field, fmt.Sprintf("must be one of %s", strings.Join(allowed, ", ")), raw)
	return "", false
}

// Custom allows custom validation logic
// The validator function should return an error if validation fails
func (v *Validator) Custom(field string, value any, validator func(any) error) {
	if err := validator(value); err != nil {
		v.AddError(field, err.Error(), value)
	}
}
