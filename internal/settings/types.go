// SPDX-License-Identifier: MIT

package settings

import "math"

// Field names accepted in configuration sections.
const (
	FieldDeletePolicy    = "delete_policy"
	FieldWatchedFirst    = "watched_first"
	FieldInterval        = "interval"
	FieldCount           = "count"
	FieldGigabytesFree   = "gigabytes_free"
	FieldPercentFree     = "percent_free"
	FieldProtected       = "protected"
	FieldMaxEpisodes     = "max_episodes"
	FieldWatchedOffset   = "watched_offset"
	FieldMaxAgeDays      = "max_age_days"
	FieldMinAgeDays      = "min_age_days"
	FieldRerecordDeleted = "rerecord_deleted"
	FieldDeleteOrder     = "delete_order"
)

// Deletion policies.
const (
	DeleteByAge      = "age"
	DeleteByCategory = "category"
)

// DeletePolicies lists the accepted delete_policy values.
var DeletePolicies = []string{DeleteByAge, DeleteByCategory}

// Rerecord selects whether a deleted recording is scheduled again.
type Rerecord string

const (
	RerecordAll       Rerecord = "all"
	RerecordUnwatched Rerecord = "unwatched"
	RerecordNone      Rerecord = "none"
)

// RerecordOptions lists the accepted rerecord_deleted values.
var RerecordOptions = []string{string(RerecordAll), string(RerecordUnwatched), string(RerecordNone)}

// For reports whether a recording with the given watched state should be
// recorded again after deletion.
func (r Rerecord) For(watched bool) bool {
	switch r {
	case RerecordAll:
		return true
	case RerecordUnwatched:
		return !watched
	default:
		return false
	}
}

// CategoryList is the built-in category deletion order for the category
// policy. Categories not listed are ranked after these, in first-seen order.
var CategoryList = []string{"news", "series", "sport", "movie", "special"}

// Built-in defaults.
const (
	DefaultInterval      = 600
	DefaultWatchedOffset = 180
	DefaultDeletePolicy  = DeleteByAge
	DefaultWatchedFirst  = false
	DefaultRerecord      = RerecordAll
	DefaultProtected     = false
)

const (
	bytesPerGB = 1_000_000_000
)

// Global holds process-wide deletion settings.
type Global struct {
	DeletePolicy string
	WatchedFirst bool
}

// Device holds per-device report and free-space settings. Nil pointers are unset.
type Device struct {
	Interval      int
	Count         *int
	GigabytesFree *float64
	PercentFree   *float64
}

// MinFreeBytes converts the configured threshold to bytes for a device of
// the given capacity. Zero means no threshold; values beyond the int64 range
// saturate at math.MaxInt64.
func (d Device) MinFreeBytes(total int64) int64 {
	var v float64
	switch {
	case d.PercentFree != nil:
		v = math.Floor(*d.PercentFree * float64(total) / 100)
	case d.GigabytesFree != nil:
		v = math.Floor(*d.GigabytesFree * bytesPerGB)
	default:
		return 0
	}
	if v >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}

// Equal reports whether d and o resolve to the same settings.
func (d Device) Equal(o Device) bool {
	return d.Interval == o.Interval &&
		equalPtr(d.Count, o.Count) &&
		equalPtr(d.GigabytesFree, o.GigabytesFree) &&
		equalPtr(d.PercentFree, o.PercentFree)
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Category holds the recording policy of a category. Resolved series settings
// use the same shape. Nil pointers are unset.
type Category struct {
	Protected     bool
	MaxEpisodes   *int
	WatchedOffset int
	MaxAgeDays    *int
	MinAgeDays    *int
	Rerecord      Rerecord
	DeleteOrder   float64
}

// Prunes reports whether the policy asks for age or episode-count pruning.
func (c Category) Prunes() bool {
	return c.MaxEpisodes != nil || c.MaxAgeDays != nil
}

// Overrides are command-line values. Nil fields were not given and do not
// override anything.
type Overrides struct {
	DeletePolicy  *string
	WatchedFirst  *bool
	Interval      *int
	Count         *int
	GigabytesFree *float64
	PercentFree   *float64
	WatchedOffset *int
}

// Warning is a non-fatal configuration finding.
type Warning struct {
	Section string
	Message string
}
