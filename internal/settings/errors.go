// SPDX-License-Identifier: MIT

package settings

import (
	"errors"
	"fmt"

	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/validate"
)

var (
	// ErrInvalidConfig classifies every configuration failure.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrUnknownConfigField classifies fields or section types that are not recognized.
	// Use errors.Is(err, ErrUnknownConfigField) instead of string matching.
	ErrUnknownConfigField = errors.New("unknown config field")
	// ErrUnsupportedFormat is returned for files that are neither YAML nor TOML.
	ErrUnsupportedFormat = errors.New("unsupported configuration file format")
)

// ConfigError identifies the offending section and field of a configuration
// file or command-line override.
type ConfigError struct {
	Section string
	Field   string
	Value   any
	Reason  string
	Err     error
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("configuration section %q", e.Section)
	switch {
	case e.Field != "" && e.Value != nil:
		msg = fmt.Sprintf("%s: invalid %s value: %s", msg, e.Field, validate.Display(e.Value))
	case e.Field != "":
		msg = fmt.Sprintf("%s: field %s", msg, e.Field)
	}
	if e.Reason != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Reason)
	}
	return msg
}

func (e *ConfigError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInvalidConfig}
	}
	return []error{ErrInvalidConfig, e.Err}
}

// fromValidation converts the first validation failure into a ConfigError.
func fromValidation(section string, err error) error {
	var verr validate.ValidationError
	if !errors.As(err, &verr) || len(verr.Errors()) == 0 {
		return &ConfigError{Section: section, Reason: err.Error(), Err: err}
	}
	first := verr.Errors()[0]
	return &ConfigError{Section: section, Field: first.Field, Value: first.Value, Reason: first.Message, Err: err}
}
