// SPDX-License-Identifier: MIT

package scheduler

import (
	"context"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/log"
	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/metrics"
	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/policy"
	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/report"
)

// NextCheck estimates how long the worst-case recording rate needs to use
// up the margin above the minimum. It is never less than MinCheckInterval.
func NextCheck(free, minFree int64, bps float64) time.Duration {
	if bps <= 0 {
		return MinCheckInterval
	}
	secs := math.Floor(float64(free-minFree) / bps)
	if secs < MinCheckInterval.Seconds() {
		return MinCheckInterval
	}
	return time.Duration(secs) * time.Second
}

// maintainDevice runs one free-space check and schedules the next.
func (s *Scheduler) maintainDevice(ctx context.Context, d *deviceState) {
	logger := log.WithContext(ctx, s.logger)
	logger.Debug().Msgf("%s Running maintenance cycle - checking free space", d.tag)

	if err := s.refresh(ctx, d); err != nil {
		d.maintDue = s.clock.Now().Add(RetryAfterFailure)
		logger.Error().Err(err).
			Str(log.FieldEvent, "maintenance.refresh_failed").
			Msgf("%s unable to read device data", d.tag)
		return
	}

	if d.minFree > d.total {
		d.maintDue = Never
		if !d.halted {
			d.halted = true
			logger.Error().
				Str(log.FieldEvent, "maintenance.threshold_exceeds_capacity").
				Int64(log.FieldMinFreeBytes, d.minFree).
				Int64(log.FieldTotalBytes, d.total).
				Msgf("%s Minimum free space (%s) cannot be greater than device total space (%s)",
					d.tag, report.Size(d.minFree), report.Size(d.total))
		}
		return
	}

	if d.free < d.minFree {
		logger.Info().
			Str(log.FieldEvent, "maintenance.below_minimum").
			Int64(log.FieldFreeBytes, d.free).
			Int64(log.FieldMinFreeBytes, d.minFree).
			Msgf("%s %s", d.tag, d.utilization().Line())
		s.freeSpace(ctx, d)
		if err := s.refresh(ctx, d); err != nil {
			logger.Warn().Err(err).
				Str(log.FieldEvent, "maintenance.refresh_failed").
				Msgf("%s unable to read device data after deleting", d.tag)
		}
	}

	next := NextCheck(d.free, d.minFree, d.bps)
	d.maintDue = s.clock.Now().Add(next)
	metrics.SetNextCheck(d.key, next)
	logger.Debug().
		Dur(log.FieldNextCheck, next).
		Msgf("%s Next maintenance cycle in %s", d.tag, report.Duration(next))
}

func (s *Scheduler) freeSpace(ctx context.Context, d *deviceState) {
	listing, err := policy.Load(ctx, s.api, d.source(), s.snap, s.clock.Now())
	if err != nil {
		logger := log.WithContext(ctx, s.logger)
		logger.Error().Err(err).
			Str(log.FieldEvent, "maintenance.list_failed").
			Msgf("%s unable to list recordings", d.tag)
		return
	}
	sorted := listing.Candidates
	policy.OrderFor(s.snap.Global()).Sort(sorted)
	s.engine.FreeSpace(ctx, d.tag, sorted)
}

// maintainRecordings applies age and episode-count limits to every
// unprotected series, grouping recordings of a series across devices.
func (s *Scheduler) maintainRecordings(ctx context.Context) {
	logger := log.WithContext(ctx, s.logger)
	now := s.clock.Now()

	var all []policy.Candidate
	var ids, titles []string
	complete := true
	for _, d := range s.devices {
		listing, err := policy.Load(log.ContextWithDeviceKey(ctx, d.key), s.api, d.source(), s.snap, now)
		if err != nil {
			complete = false
			logger.Error().Err(err).
				Str(log.FieldEvent, "maintenance.list_failed").
				Str(log.FieldDevice, d.key).
				Msgf("%s unable to list recordings", d.tag)
			continue
		}
		for _, ser := range listing.Series {
			ids = append(ids, ser.SeriesID)
			titles = append(titles, ser.Title)
		}
		all = append(all, listing.Candidates...)
	}
	if complete {
		s.checkSeriesSections(ids, titles)
	}

	watchedFirst := s.snap.Global().WatchedFirst
	for _, group := range policy.BySeries(all) {
		p := group[0].Policy
		if p.Protected || !p.Prunes() {
			continue
		}
		if p.MaxAgeDays != nil {
			group = s.engine.PruneAged(ctx, group)
		}
		if p.MaxEpisodes != nil {
			s.engine.PruneExcess(ctx, group, watchedFirst)
		}
	}
}

// checkSeriesSections warns, once per snapshot, about series sections that
// name no recorded series.
func (s *Scheduler) checkSeriesSections(ids, titles []string) {
	if s.seriesChecked == s.snap {
		return
	}
	s.seriesChecked = s.snap
	for _, section := range s.snap.UnmatchedSeriesSections(ids, titles) {
		s.logger.Warn().
			Str(log.FieldEvent, "settings.unmatched_series").
			Str(log.FieldSection, section).
			Msgf("configuration section %q matches no recorded series id or title", section)
	}
}

// ListRecordings writes every monitored device's recordings in deletion
// order.
func (s *Scheduler) ListRecordings(ctx context.Context, w io.Writer) error {
	order := policy.OrderFor(s.snap.Global())
	for _, d := range s.devices {
		listing, err := policy.Load(ctx, s.api, d.source(), s.snap, s.clock.Now())
		if err != nil {
			return fmt.Errorf("%s list recordings: %w", d.tag, err)
		}
		sorted := listing.Candidates
		order.Sort(sorted)
		if err := report.WriteRecordingList(w, d.tag, sorted); err != nil {
			return err
		}
	}
	return nil
}
