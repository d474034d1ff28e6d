// SPDX-License-Identifier: MIT

package settings

import (
	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/validate"
)

// fieldSpec describes one configuration field: where it may appear and how
// a raw value is checked and converted. parse returns nil for an unset
// optional value.
type fieldSpec struct {
	kinds    []sectionKind
	optional bool
	parse    func(v *validate.Validator, field string, raw any) any
}

var (
	deviceKinds   = []sectionKind{kindDefault, kindDevice}
	globalKinds   = []sectionKind{kindDefault, kindGlobal}
	categoryKinds = []sectionKind{kindDefault, kindCategory, kindSeries}
)

var fieldSpecs = map[string]fieldSpec{
	FieldDeletePolicy: {kinds: globalKinds, parse: func(v *validate.Validator, f string, raw any) any {
		s, _ := v.OneOf(f, raw, DeletePolicies)
		return s
	}},
	FieldWatchedFirst: {kinds: globalKinds, parse: parseBool},
	FieldInterval: {kinds: deviceKinds, parse: func(v *validate.Validator, f string, raw any) any {
		n, _ := v.Positive(f, raw)
		return n
	}},
	FieldCount: {kinds: deviceKinds, optional: true, parse: func(v *validate.Validator, f string, raw any) any {
		n, _ := v.NonNegative(f, raw)
		return n
	}},
	FieldGigabytesFree: {kinds: deviceKinds, optional: true, parse: func(v *validate.Validator, f string, raw any) any {
		g, _ := v.PositiveFloat(f, raw)
		return g
	}},
	FieldPercentFree: {kinds: deviceKinds, optional: true, parse: func(v *validate.Validator, f string, raw any) any {
		p, _ := v.OpenRange(f, raw, 0, 100)
		return p
	}},
	FieldProtected: {kinds: categoryKinds, parse: parseBool},
	FieldMaxEpisodes: {kinds: categoryKinds, optional: true, parse: func(v *validate.Validator, f string, raw any) any {
		n, _ := v.IntMin(f, raw, 1)
		return n
	}},
	FieldWatchedOffset: {kinds: categoryKinds, parse: func(v *validate.Validator, f string, raw any) any {
		n, _ := v.NonNegative(f, raw)
		return n
	}},
	FieldMaxAgeDays: {kinds: categoryKinds, optional: true, parse: parseDays},
	FieldMinAgeDays: {kinds: categoryKinds, optional: true, parse: parseDays},
	FieldRerecordDeleted: {kinds: categoryKinds, parse: func(v *validate.Validator, f string, raw any) any {
		// Older files used a boolean here.
		if b, err := validate.Bool(raw); err == nil {
			if b {
				return RerecordAll
			}
			return RerecordNone
		}
		s, _ := v.OneOf(f, raw, RerecordOptions)
		return Rerecord(s)
	}},
	FieldDeleteOrder: {kinds: categoryKinds, parse: func(v *validate.Validator, f string, raw any) any {
		n, _ := v.Number(f, raw)
		return n
	}},
}

func parseBool(v *validate.Validator, f string, raw any) any {
	b, _ := v.Bool(f, raw)
	return b
}

func parseDays(v *validate.Validator, f string, raw any) any {
	n, _ := v.IntMin(f, raw, 1)
	return n
}

func (s fieldSpec) allowedIn(k sectionKind) bool {
	for _, kind := range s.kinds {
		if kind == k {
			return true
		}
	}
	return false
}

// parseSection validates every field of one section and returns the typed
// values. Unset optional fields are stored as nil so they shadow the default
// section; unset required fields are dropped.
func parseSection(name string, kind sectionKind, raw map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(raw))
	v := validate.New()
	for _, field := range sortedKeys(raw) {
		value := raw[field]
		spec, ok := fieldSpecs[field]
		if !ok {
			return nil, &ConfigError{Section: name, Field: field, Reason: "unknown field", Err: ErrUnknownConfigField}
		}
		if !spec.allowedIn(kind) {
			return nil, &ConfigError{Section: name, Field: field, Reason: "not allowed in a " + kind.String() + " section", Err: ErrUnknownConfigField}
		}
		if validate.IsUnset(value) {
			if spec.optional {
				out[field] = nil
			}
			continue
		}
		parsed := spec.parse(v, field, value)
		if !v.IsValid() {
			return nil, fromValidation(name, v.Err())
		}
		out[field] = parsed
	}
	return out, nil
}
