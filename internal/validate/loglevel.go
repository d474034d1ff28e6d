// SPDX-License-Identifier: MIT

package validate

// LogLevels are the verbosity names accepted for --log-level and LOG_LEVEL.
var LogLevels = []string{"debug", "info", "warn", "error"}

// LogLevel validates a verbosity name and returns its canonical spelling.
func (v *Validator) LogLevel(field, raw string) (string, bool) {
	return v.OneOf(field, raw, LogLevels)
}
