// SPDX-License-Identifier: MIT

package settings

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"
)

// Snapshot is the resolved view of one configuration file plus the command
// line. Every section is validated when the snapshot is built; later lookups
// cannot fail. Resolved sections are memoized. A Snapshot is owned by the
// scheduler goroutine and is not safe for concurrent use.
type Snapshot struct {
	path    string
	modTime time.Time

	sections  map[string]map[string]any
	kinds     map[string]sectionKind
	overrides Overrides

	global     Global
	devices    map[string]Device
	categories map[string]Category
	series     map[string]Category
	extraCats  []string
	warnings   []Warning
	eligible   bool
}

// NewSnapshot validates f and the overrides and returns the resolved view.
// The first invalid field aborts the whole snapshot.
func NewSnapshot(f *File, ov Overrides) (*Snapshot, error) {
	if f == nil {
		f = Empty()
	}
	s := &Snapshot{
		path:       f.Path,
		modTime:    f.ModTime,
		sections:   make(map[string]map[string]any, len(f.sections)),
		kinds:      make(map[string]sectionKind, len(f.sections)),
		overrides:  ov,
		devices:    make(map[string]Device),
		categories: make(map[string]Category),
		series:     make(map[string]Category),
	}

	for _, name := range f.SectionNames() {
		kind, _, err := classifySection(name)
		if err != nil {
			return nil, err
		}
		parsed, err := parseSection(name, kind, f.sections[name])
		if err != nil {
			return nil, err
		}
		s.sections[name] = parsed
		s.kinds[name] = kind
	}

	if err := validateOverrides(ov); err != nil {
		return nil, err
	}

	s.global = s.resolveGlobal()

	// Every device a lookup could land on is checked now so that Device
	// never fails later.
	if _, err := s.resolveDevice(SectionDefault); err != nil {
		return nil, err
	}
	for _, name := range sortedKeys(s.kinds) {
		if s.kinds[name] != kindDevice {
			continue
		}
		if _, err := s.resolveDevice(name); err != nil {
			return nil, err
		}
	}

	s.eligible = s.computeEligibility()
	s.warnings = s.computeWarnings()
	return s, nil
}

// Path is the configuration file the snapshot was built from; empty when
// no file is configured.
func (s *Snapshot) Path() string { return s.path }

// ModTime is the modification time of the file when it was read.
func (s *Snapshot) ModTime() time.Time { return s.modTime }

// Warnings returns non-fatal findings, such as protected sections that also
// configure pruning.
func (s *Snapshot) Warnings() []Warning { return s.warnings }

// MaintenanceEligible reports whether any default, category or series
// section configures max_episodes or max_age_days.
func (s *Snapshot) MaintenanceEligible() bool { return s.eligible }

// Global returns the process-wide settings.
func (s *Snapshot) Global() Global { return s.global }

// Device returns the settings for a device key. Lookup order is the
// "device:<key>" section, then a bare "<key>" section, then the default section.
func (s *Snapshot) Device(key string) Device {
	name := s.deviceSection(key)
	if d, ok := s.devices[name]; ok {
		return d
	}
	// Sections were checked in NewSnapshot.
	d, _ := s.resolveDevice(name)
	return d
}

// Category returns the settings of a recording category.
func (s *Snapshot) Category(name string) Category {
	name = strings.ToLower(strings.TrimSpace(name))
	if c, ok := s.categories[name]; ok {
		return c
	}

	c := Category{
		WatchedOffset: DefaultWatchedOffset,
		Rerecord:      DefaultRerecord,
		Protected:     DefaultProtected,
		DeleteOrder:   s.categoryRank(name),
	}
	section := prefixCategory + name
	if !s.has(section) {
		section = SectionDefault
	}
	s.applyCategoryFields(&c, func(field string) (any, bool) { return s.lookup(section, field) })
	if s.overrides.WatchedOffset != nil {
		c.WatchedOffset = *s.overrides.WatchedOffset
	}

	s.categories[name] = c
	return c
}

// Series returns the settings of a series: its category's settings with the
// fields set in "series:<id>" (or, failing that, "series:<title>") applied
// on top. Default-section values are not re-applied at series level.
func (s *Snapshot) Series(id, title, category string) Category {
	key := strings.ToLower(strings.TrimSpace(id))
	if key == "" {
		key = "\x00" + strings.ToLower(strings.TrimSpace(title))
	}
	key += "\x00" + strings.ToLower(strings.TrimSpace(category))
	if c, ok := s.series[key]; ok {
		return c
	}

	c := s.Category(category)
	if section, ok := s.seriesSection(id, title); ok {
		fields := s.sections[section]
		s.applyCategoryFields(&c, func(field string) (any, bool) {
			v, ok := fields[field]
			return v, ok
		})
	}
	if s.overrides.WatchedOffset != nil {
		c.WatchedOffset = *s.overrides.WatchedOffset
	}

	s.series[key] = c
	return c
}

// UnmatchedSeriesSections returns the "series:<x>" sections whose name
// matches none of the given series ids or titles.
func (s *Snapshot) UnmatchedSeriesSections(ids, titles []string) []string {
	known := make(map[string]struct{}, len(ids)+len(titles))
	for _, v := range ids {
		known[strings.ToLower(strings.TrimSpace(v))] = struct{}{}
	}
	for _, v := range titles {
		known[strings.ToLower(strings.TrimSpace(v))] = struct{}{}
	}
	var out []string
	for name, kind := range s.kinds {
		if kind != kindSeries {
			continue
		}
		if _, ok := known[strings.TrimPrefix(name, prefixSeries)]; !ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (s *Snapshot) has(section string) bool {
	_, ok := s.sections[section]
	return ok
}

// lookup reads a field from a section, falling back to the default section.
func (s *Snapshot) lookup(section, field string) (any, bool) {
	if fields, ok := s.sections[section]; ok {
		if v, ok := fields[field]; ok {
			return v, true
		}
	}
	if fields, ok := s.sections[SectionDefault]; ok {
		v, ok := fields[field]
		return v, ok
	}
	return nil, false
}

func (s *Snapshot) resolveGlobal() Global {
	g := Global{DeletePolicy: DefaultDeletePolicy, WatchedFirst: DefaultWatchedFirst}
	section := SectionGlobal
	if !s.has(section) {
		section = SectionDefault
	}
	if v, ok := s.lookup(section, FieldDeletePolicy); ok {
		g.DeletePolicy = v.(string)
	}
	if v, ok := s.lookup(section, FieldWatchedFirst); ok {
		g.WatchedFirst = v.(bool)
	}
	if s.overrides.DeletePolicy != nil {
		g.DeletePolicy = *s.overrides.DeletePolicy
	}
	if s.overrides.WatchedFirst != nil {
		g.WatchedFirst = *s.overrides.WatchedFirst
	}
	return g
}

func (s *Snapshot) deviceSection(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	if s.has(prefixDevice + key) {
		return prefixDevice + key
	}
	if kind, ok := s.kinds[key]; ok && kind == kindDevice {
		return key
	}
	return SectionDefault
}

func (s *Snapshot) resolveDevice(section string) (Device, error) {
	d := Device{Interval: DefaultInterval}
	if v, ok := s.lookup(section, FieldInterval); ok {
		d.Interval = v.(int)
	}
	if v, ok := s.lookup(section, FieldCount); ok {
		d.Count = optional[int](v)
	}
	if v, ok := s.lookup(section, FieldGigabytesFree); ok {
		d.GigabytesFree = optional[float64](v)
	}
	if v, ok := s.lookup(section, FieldPercentFree); ok {
		d.PercentFree = optional[float64](v)
	}

	ov := s.overrides
	if ov.Interval != nil {
		d.Interval = *ov.Interval
	}
	if ov.Count != nil {
		d.Count = ov.Count
	}
	if ov.GigabytesFree != nil {
		d.GigabytesFree = ov.GigabytesFree
	}
	if ov.PercentFree != nil {
		d.PercentFree = ov.PercentFree
	}

	if d.GigabytesFree != nil && d.PercentFree != nil {
		return Device{}, &ConfigError{
			Section: section,
			Field:   FieldGigabytesFree + "/" + FieldPercentFree,
			Reason:  "gigabytes_free and percent_free cannot both be specified",
		}
	}
	s.devices[section] = d
	return d, nil
}

func (s *Snapshot) applyCategoryFields(c *Category, get func(string) (any, bool)) {
	if v, ok := get(FieldProtected); ok {
		c.Protected = v.(bool)
	}
	if v, ok := get(FieldMaxEpisodes); ok {
		c.MaxEpisodes = optional[int](v)
	}
	if v, ok := get(FieldWatchedOffset); ok {
		c.WatchedOffset = v.(int)
	}
	if v, ok := get(FieldMaxAgeDays); ok {
		c.MaxAgeDays = optional[int](v)
	}
	if v, ok := get(FieldMinAgeDays); ok {
		c.MinAgeDays = optional[int](v)
	}
	if v, ok := get(FieldRerecordDeleted); ok {
		c.Rerecord = v.(Rerecord)
	}
	if v, ok := get(FieldDeleteOrder); ok {
		c.DeleteOrder = v.(float64)
	}
}

// categoryRank is the default delete_order of a category: its index in
// CategoryList, or the next free rank for unlisted categories.
func (s *Snapshot) categoryRank(name string) float64 {
	if i := slices.Index(CategoryList, name); i >= 0 {
		return float64(i)
	}
	i := slices.Index(s.extraCats, name)
	if i < 0 {
		s.extraCats = append(s.extraCats, name)
		i = len(s.extraCats) - 1
	}
	return float64(len(CategoryList) + i)
}

func (s *Snapshot) seriesSection(id, title string) (string, bool) {
	for _, candidate := range []string{id, title} {
		candidate = strings.ToLower(strings.TrimSpace(candidate))
		if candidate == "" {
			continue
		}
		if name := prefixSeries + candidate; s.has(name) {
			return name, true
		}
	}
	return "", false
}

func (s *Snapshot) computeEligibility() bool {
	for name, kind := range s.kinds {
		if kind != kindDefault && kind != kindCategory && kind != kindSeries {
			continue
		}
		fields := s.sections[name]
		if fields[FieldMaxEpisodes] != nil || fields[FieldMaxAgeDays] != nil {
			return true
		}
	}
	return false
}

func (s *Snapshot) computeWarnings() []Warning {
	var out []Warning
	for _, name := range sortedKeys(s.kinds) {
		kind := s.kinds[name]
		var protected, prunes bool
		switch kind {
		case kindDefault, kindCategory:
			p, _ := s.lookup(name, FieldProtected)
			protected, _ = p.(bool)
			me, _ := s.lookup(name, FieldMaxEpisodes)
			ma, _ := s.lookup(name, FieldMaxAgeDays)
			prunes = me != nil || ma != nil
		case kindSeries:
			fields := s.sections[name]
			protected, _ = fields[FieldProtected].(bool)
			prunes = fields[FieldMaxEpisodes] != nil || fields[FieldMaxAgeDays] != nil
		default:
			continue
		}
		if protected && prunes {
			out = append(out, Warning{
				Section: name,
				Message: fmt.Sprintf("%s is protected; %s and %s are ignored", name, FieldMaxEpisodes, FieldMaxAgeDays),
			})
		}
	}
	return out
}

func validateOverrides(ov Overrides) error {
	const section = "command line"
	if ov.DeletePolicy != nil && !slices.Contains(DeletePolicies, *ov.DeletePolicy) {
		return &ConfigError{Section: section, Field: FieldDeletePolicy, Value: *ov.DeletePolicy, Reason: "must be one of age, category"}
	}
	if ov.Interval != nil && *ov.Interval <= 0 {
		return &ConfigError{Section: section, Field: FieldInterval, Value: *ov.Interval, Reason: "must be an integer > 0"}
	}
	if ov.Count != nil && *ov.Count < 0 {
		return &ConfigError{Section: section, Field: FieldCount, Value: *ov.Count, Reason: "must be an integer >= 0"}
	}
	if ov.GigabytesFree != nil && *ov.GigabytesFree <= 0 {
		return &ConfigError{Section: section, Field: FieldGigabytesFree, Value: *ov.GigabytesFree, Reason: "must be a number > 0"}
	}
	if ov.PercentFree != nil && (*ov.PercentFree <= 0 || *ov.PercentFree >= 100) {
		return &ConfigError{Section: section, Field: FieldPercentFree, Value: *ov.PercentFree, Reason: "must be a number greater than 0 and less than 100"}
	}
	if ov.WatchedOffset != nil && *ov.WatchedOffset < 0 {
		return &ConfigError{Section: section, Field: FieldWatchedOffset, Value: *ov.WatchedOffset, Reason: "must be an integer >= 0"}
	}
	return nil
}

func optional[T any](v any) *T {
	if v == nil {
		return nil
	}
	t := v.(T)
	return &t
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
