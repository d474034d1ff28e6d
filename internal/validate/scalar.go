// SPDX-License-Identifier: MIT

package validate

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrNotScalar is returned when a value cannot be coerced to the requested type.
var ErrNotScalar = errors.New("value has the wrong type")

// IsUnset reports whether raw represents an absent setting: nil or a string
// that is empty after trimming.
func IsUnset(raw any) bool {
	switch v := raw.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	default:
		return false
	}
}

// Int coerces raw to an int. Integral floats and decimal strings are accepted.
func Int(raw any) (int, error) {
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case int32:
		return int(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, ErrNotScalar
		}
		return int(v), nil
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) || math.IsNaN(v) {
			return 0, ErrNotScalar
		}
		return int(v), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrNotScalar, err)
		}
		return n, nil
	default:
		return 0, ErrNotScalar
	}
}

// Float coerces raw to a finite float64.
func Float(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, ErrNotScalar
		}
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, fmt.Errorf("%w: %q", ErrNotScalar, v)
		}
		return f, nil
	default:
		return 0, ErrNotScalar
	}
}

// Bool coerces raw to a bool. Strings accept 1/yes/true/on and 0/no/false/off
// in any case; integers accept 0 and 1.
func Bool(raw any) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case int, int64:
		n, _ := Int(v)
		switch n {
		case 0:
			return false, nil
		case 1:
			return true, nil
		}
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "yes", "true", "on":
			return true, nil
		case "0", "no", "false", "off":
			return false, nil
		}
	}
	return false, ErrNotScalar
}

// Display renders a raw value for error messages.
func Display(raw any) string {
	if s, ok := raw.(string); ok {
		return strconv.Quote(s)
	}
	return fmt.Sprint(raw)
}
