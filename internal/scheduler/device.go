// SPDX-License-Identifier: MIT

package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/hdhr"
	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/log"
	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/metrics"
	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/policy"
	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/report"
	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/settings"
	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/storageapi"
)

// deviceState is the scheduling state of one monitored storage server. It
// lives as long as the device keeps being selected.
type deviceState struct {
	key string
	dev *hdhr.Device
	tag string

	info      storageapi.DeviceInfo
	refreshed bool
	total     int64
	free      int64
	bps       float64

	cfg     settings.Device
	applied bool
	minFree int64

	reportDue  time.Time
	lastReport time.Time
	reports    int

	maintDue time.Time
	// halted is set once the minimum-exceeds-capacity error has been
	// logged; it clears when settings are applied again.
	halted bool
}

func newDeviceState(m hdhr.Monitored, now time.Time) *deviceState {
	return &deviceState{
		key:       m.Key,
		dev:       m.Device,
		tag:       hdhr.Tag("", m),
		reportDue: now,
		maintDue:  Never,
	}
}

func (d *deviceState) monitored() hdhr.Monitored {
	return hdhr.Monitored{Key: d.key, Device: d.dev}
}

func (d *deviceState) hasThreshold() bool {
	return d.cfg.GigabytesFree != nil || d.cfg.PercentFree != nil
}

// reportsDone reports whether the configured report count has been reached.
// An unset count never finishes.
func (d *deviceState) reportsDone() bool {
	return d.cfg.Count != nil && d.reports >= *d.cfg.Count
}

func (d *deviceState) interval() time.Duration {
	return time.Duration(d.cfg.Interval) * time.Second
}

func (d *deviceState) utilization() report.Utilization {
	return report.Utilization{Total: d.total, Free: d.free, MinFree: d.minFree}
}

func (d *deviceState) source() policy.Source {
	storageURL := d.info.StorageURL
	if storageURL == "" {
		storageURL = d.dev.StorageURL
	}
	baseURL := d.info.BaseURL
	if baseURL == "" {
		baseURL = d.dev.BaseURL
	}
	return policy.Source{Tag: d.tag, BaseURL: baseURL, StorageURL: storageURL}
}

// refresh reads discover.json and updates capacity, tag and bitrate.
func (s *Scheduler) refresh(ctx context.Context, d *deviceState) error {
	info, err := s.api.Discover(ctx, d.dev.BaseURL)
	if err != nil {
		return err
	}
	if !info.HasSpace() {
		return fmt.Errorf("%w: %s", ErrNoSpaceInfo, d.tag)
	}
	d.info = info
	d.total, d.free = *info.TotalSpace, *info.FreeSpace
	d.tag = hdhr.Tag(info.FriendlyName, d.monitored())

	tuners := info.TunerCount
	if tuners == 0 {
		tuners = d.dev.TunerCount
	}
	d.bps = hdhr.MaxRecordingBytesPerSec(hdhr.ModelFamily(info.ModelNumber, info.FriendlyName), tuners)
	d.minFree = d.cfg.MinFreeBytes(d.total)
	d.refreshed = true

	metrics.ObserveDeviceSpace(d.key, d.total, d.free, d.minFree)
	return nil
}

// applyDevice resolves a device's settings from the current snapshot. The
// report cadence follows a changed interval right away. The free-space check
// is rescheduled for the next tick only when the device's settings changed or
// the device was halted.
func (s *Scheduler) applyDevice(d *deviceState, now time.Time) {
	cfg := s.snap.Device(d.key)
	rearm := !d.applied || d.halted || !cfg.Equal(d.cfg)
	if d.applied && cfg.Interval != d.cfg.Interval && d.reports > 0 {
		d.reportDue = d.lastReport.Add(time.Duration(cfg.Interval) * time.Second)
	}
	d.cfg = cfg
	d.applied = true
	d.halted = false
	d.minFree = cfg.MinFreeBytes(d.total)

	logger := s.logger.With().Str(log.FieldDevice, d.key).Logger()
	switch {
	case cfg.Count != nil && *cfg.Count == 0:
		logger.Debug().Msgf("%s Disk space utilization will not be reported", d.tag)
	case cfg.Count != nil:
		logger.Debug().Msgf("%s Disk space utilization will be reported every %s, stopping after %s",
			d.tag, report.Duration(d.interval()), report.Plural(*cfg.Count, "report"))
	default:
		logger.Debug().Msgf("%s Disk space utilization will be reported every %s", d.tag, report.Duration(d.interval()))
	}

	if !d.hasThreshold() {
		d.maintDue = Never
		return
	}
	if rearm || d.maintDue.Equal(Never) {
		d.maintDue = now
	}
	threshold := report.Size(d.minFree)
	if cfg.PercentFree != nil {
		threshold = fmt.Sprintf("%.1f%%", *cfg.PercentFree)
	}
	g := s.snap.Global()
	msg := fmt.Sprintf("%s Recordings will be deleted according to %s to maintain minimum free space of %s.", d.tag, g.DeletePolicy, threshold)
	if g.WatchedFirst {
		msg += " Watched recordings will be deleted first."
	}
	logger.Debug().Msg(msg)
}
