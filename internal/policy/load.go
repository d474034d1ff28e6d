// SPDX-License-Identifier: MIT

package policy

import (
	"context"
	"fmt"
	"time"

	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/settings"
	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/storageapi"
)

// Appliance is the part of the storage API needed to list and delete
// recordings.
type Appliance interface {
	Deleter
	Series(ctx context.Context, storageURL string) ([]storageapi.Series, error)
	Episodes(ctx context.Context, episodesURL string) ([]storageapi.Recording, error)
	Status(ctx context.Context, baseURL string) ([]storageapi.Resource, error)
}

// Source identifies the appliance whose recordings are listed.
type Source struct {
	Tag        string
	BaseURL    string
	StorageURL string
}

// Listing is every recording on one appliance with its flags derived.
type Listing struct {
	Series     []storageapi.Series
	Candidates []Candidate
}

// Load lists the series and recordings of an appliance, matches them
// against current playback and record activity and resolves the policy of
// each series. Any request failure abandons the listing.
func Load(ctx context.Context, api Appliance, src Source, snap *settings.Snapshot, now time.Time) (Listing, error) {
	series, err := api.Series(ctx, src.StorageURL)
	if err != nil {
		return Listing{}, fmt.Errorf("list series: %w", err)
	}

	type group struct {
		series storageapi.Series
		recs   []storageapi.Recording
	}
	groups := make([]group, 0, len(series))
	var all []storageapi.Recording
	for _, s := range series {
		recs, err := api.Episodes(ctx, s.EpisodesURL)
		if err != nil {
			return Listing{}, fmt.Errorf("list episodes of %q: %w", s.Title, err)
		}
		groups = append(groups, group{series: s, recs: recs})
		all = append(all, recs...)
	}

	resources, err := api.Status(ctx, src.BaseURL)
	if err != nil {
		return Listing{}, fmt.Errorf("read activity: %w", err)
	}
	active := Activity{
		Playing:   storageapi.MatchActivity(resources, storageapi.ActivityPlayback, all),
		Recording: storageapi.MatchActivity(resources, storageapi.ActivityRecord, all),
	}

	out := Listing{Series: series, Candidates: make([]Candidate, 0, len(all))}
	for _, g := range groups {
		p := snap.Series(g.series.SeriesID, g.series.Title, g.series.Category)
		for _, rec := range g.recs {
			out.Candidates = append(out.Candidates, NewCandidate(rec, g.series, src.Tag, p, active, now))
		}
	}
	return out, nil
}

// BySeries groups candidates by series, keeping first-seen series order.
// Candidates without a series id are grouped by series title.
func BySeries(cs []Candidate) [][]Candidate {
	var groups [][]Candidate
	index := make(map[string]int)
	for _, c := range cs {
		key := c.SeriesID
		if key == "" {
			key = "\x00" + c.SeriesTitle
		}
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], c)
	}
	return groups
}
