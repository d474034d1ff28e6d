// SPDX-License-Identifier: MIT

// Package policy ranks recordings for deletion and performs guarded deletes.
package policy

import (
	"sort"
	"time"

	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/settings"
	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/storageapi"
)

const day = 24 * time.Hour

// Candidate is a recording with the flags that decide whether and when it
// may be deleted. Flags are derived each time recordings are listed.
type Candidate struct {
	Rec         storageapi.Recording
	SeriesID    string
	SeriesTitle string
	Category    string
	// Device is the tag of the appliance holding the recording.
	Device string
	Policy settings.Category

	Watched   bool
	Protected bool
	Playing   bool
	Recording bool
}

// StartTime is the scheduled start of the recording.
func (c Candidate) StartTime() time.Time {
	return time.Unix(c.Rec.StartTime, 0)
}

// EndTime is the scheduled end of the recording, or the record end time
// when the appliance reports no scheduled end.
func (c Candidate) EndTime() time.Time {
	if c.Rec.EndTime != 0 {
		return time.Unix(c.Rec.EndTime, 0)
	}
	return time.Unix(c.Rec.RecordEndTime, 0)
}

// Rerecord reports whether deletion should ask the appliance to record the
// episode again.
func (c Candidate) Rerecord() bool {
	return c.Policy.Rerecord.For(c.Watched)
}

// IsWatched reports whether a recording counts as watched: played to the
// end, or with no more than watchedOffset seconds left unwatched.
func IsWatched(r storageapi.Recording, watchedOffset int) bool {
	if r.Resume == storageapi.ResumeWatched {
		return true
	}
	unwatched := r.RecordEndTime - r.RecordStartTime - r.Resume
	return unwatched <= int64(watchedOffset)
}

// IsProtected reports whether a recording must not be deleted: its series is
// protected, or it is younger than min_age_days and not yet watched.
func IsProtected(p settings.Category, watched bool, age time.Duration) bool {
	if p.Protected {
		return true
	}
	return p.MinAgeDays != nil && !watched && age < time.Duration(*p.MinAgeDays)*day
}

// NewCandidate derives the flags of one recording.
func NewCandidate(rec storageapi.Recording, series storageapi.Series, device string, p settings.Category, active Activity, now time.Time) Candidate {
	c := Candidate{
		Rec:         rec,
		SeriesID:    series.SeriesID,
		SeriesTitle: series.Title,
		Category:    series.Category,
		Device:      device,
		Policy:      p,
	}
	if c.SeriesTitle == "" {
		c.SeriesTitle = rec.Title
	}
	c.Watched = IsWatched(rec, p.WatchedOffset)
	c.Protected = IsProtected(p, c.Watched, now.Sub(c.EndTime()))
	c.Playing = active.Playing.Has(rec)
	c.Recording = active.Recording.Has(rec)
	return c
}

// Activity holds what an appliance is playing back and recording right now.
type Activity struct {
	Playing   storageapi.ActiveSet
	Recording storageapi.ActiveSet
}

// Order selects the deletion ordering.
type Order struct {
	ByCategory   bool
	WatchedFirst bool
}

// OrderFor maps global settings to an Order.
func OrderFor(g settings.Global) Order {
	return Order{ByCategory: g.DeletePolicy == settings.DeleteByCategory, WatchedFirst: g.WatchedFirst}
}

// Less compares two candidates by (protected, watched if watched-first,
// category order if by category, start time). Protected sorts last.
func (o Order) Less(a, b Candidate) bool {
	if a.Protected != b.Protected {
		return !a.Protected
	}
	if o.WatchedFirst && a.Watched != b.Watched {
		return a.Watched
	}
	if o.ByCategory && a.Policy.DeleteOrder != b.Policy.DeleteOrder {
		return a.Policy.DeleteOrder < b.Policy.DeleteOrder
	}
	return a.Rec.StartTime < b.Rec.StartTime
}

// Sort orders candidates for deletion in place. The sort is stable.
func (o Order) Sort(cs []Candidate) {
	sort.SliceStable(cs, func(i, j int) bool { return o.Less(cs[i], cs[j]) })
}
