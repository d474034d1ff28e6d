// SPDX-License-Identifier: MIT

package validate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_Positive(t *testing.T) {
	tests := []struct {
		name    string
		raw     any
		want    int
		wantErr bool
	}{
		{"int", 600, 600, false},
		{"int64 from toml", int64(30), 30, false},
		{"integral float from yaml", 45.0, 45, false},
		{"string", " 120 ", 120, false},
		{"zero", 0, 0, true},
		{"negative", "-5", 0, true},
		{"fraction", 1.5, 0, true},
		{"word", "ten", 0, true},
		{"bool", true, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			got, ok := v.Positive("interval", tt.raw)
			assert.Equal(t, !tt.wantErr, ok)
			assert.Equal(t, !tt.wantErr, v.IsValid())
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidator_IntMinAndNonNegative(t *testing.T) {
	v := New()
	n, ok := v.IntMin("max_episodes", "1", 1)
	assert.True(t, ok)
	assert.Equal(t, 1, n)

	_, ok = v.IntMin("max_episodes", 0, 1)
	assert.False(t, ok)

	n, ok = v.NonNegative("count", 0)
	assert.True(t, ok)
	assert.Equal(t, 0, n)

	_, ok = v.NonNegative("count", -1)
	assert.False(t, ok)

	require.Len(t, v.Errors(), 2)
	assert.Equal(t, "max_episodes", v.Errors()[0].Field)
	assert.Equal(t, "count", v.Errors()[1].Field)
}

func TestValidator_Floats(t *testing.T) {
	v := New()

	f, ok := v.PositiveFloat("gigabytes_free", "12.5")
	assert.True(t, ok)
	assert.InDelta(t, 12.5, f, 1e-9)

	_, ok = v.PositiveFloat("gigabytes_free", 0)
	assert.False(t, ok)

	for _, bad := range []any{math.Inf(1), "+Inf", "infinity", math.NaN()} {
		_, ok = v.PositiveFloat("gigabytes_free", bad)
		assert.False(t, ok, "%v", bad)
	}

	f, ok = v.OpenRange("percent_free", 10, 0, 100)
	assert.True(t, ok)
	assert.InDelta(t, 10.0, f, 1e-9)

	for _, bad := range []any{0, 100, "100.0", -1, "abc"} {
		_, ok = v.OpenRange("percent_free", bad, 0, 100)
		assert.False(t, ok, "%v", bad)
	}

	f, ok = v.Number("delete_order", "-2.5")
	assert.True(t, ok)
	assert.InDelta(t, -2.5, f, 1e-9)
}

func TestValidator_Bool(t *testing.T) {
	for raw, want := range map[any]bool{
		true: true, false: false, "yes": true, "No": false, "ON": true, "off": false, "1": true, "0": false, 1: true, 0: false,
	} {
		v := New()
		got, ok := v.Bool("protected", raw)
		assert.True(t, ok, "%v", raw)
		assert.Equal(t, want, got, "%v", raw)
	}

	v := New()
	_, ok := v.Bool("protected", "maybe")
	assert.False(t, ok)
	_, ok = v.Bool("protected", 2)
	assert.False(t, ok)
}

func TestValidator_OneOf(t *testing.T) {
	v := New()
	got, ok := v.OneOf("delete_policy", "Category", []string{"age", "category"})
	assert.True(t, ok)
	assert.Equal(t, "category", got)

	_, ok = v.OneOf("delete_policy", "size", []string{"age", "category"})
	assert.False(t, ok)
	_, ok = v.OneOf("delete_policy", 3, []string{"age", "category"})
	assert.False(t, ok)

	assert.EqualError(t, v.Err(),
		`invalid delete_policy value: "size" (must be one of age, category); invalid delete_policy value: 3 (must be one of age, category)`)
}

func TestValidationError_Single(t *testing.T) {
	v := New()
	assert.NoError(t, v.Err())

	v.Positive("interval", "0")
	err := v.Err()
	require.Error(t, err)
	assert.EqualError(t, err, `invalid interval value: "0" (must be an integer > 0)`)

	var verr ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Errors(), 1)
}

func TestIsUnset(t *testing.T) {
	assert.True(t, IsUnset(nil))
	assert.True(t, IsUnset(""))
	assert.True(t, IsUnset("   "))
	assert.False(t, IsUnset("0"))
	assert.False(t, IsUnset(0))
	assert.False(t, IsUnset(false))
}

func TestValidator_LogLevel(t *testing.T) {
	v := New()
	lvl, ok := v.LogLevel("log-level", " WARN ")
	assert.True(t, ok)
	assert.Equal(t, "warn", lvl)

	_, ok = v.LogLevel("LOG_LEVEL", "trace")
	assert.False(t, ok)
	require.Len(t, v.Errors(), 1)
	assert.Equal(t, "LOG_LEVEL", v.Errors()[0].Field)
	assert.EqualError(t, v.Err(), `invalid LOG_LEVEL value: "trace" (must be one of debug, info, warn, error)`)
}

func TestValidator_Custom(t *testing.T) {
	v := New()
	v.Custom("device_id", "", func(any) error { return assert.AnError })
	assert.False(t, v.IsValid())
}
