// SPDX-License-Identifier: MIT

package scheduler

import (
	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/log"
	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/report"
)

// LastStatus returns the status recorded after the latest pass that did
// work, or nil before the first one. It is safe to call from any goroutine.
func (s *Scheduler) LastStatus() *report.Status {
	return s.status.Load()
}

func (s *Scheduler) buildStatus() report.Status {
	st := report.Status{
		UpdatedAt:    s.clock.Now(),
		DryRun:       s.opts.DryRun,
		SettingsFile: s.snap.Path(),
		Devices:      make([]report.DeviceStatus, 0, len(s.devices)),
	}
	if !s.recordingsDue.Equal(Never) {
		due := s.recordingsDue
		st.NextRecordingMaintenance = &due
	}
	for _, d := range s.devices {
		ds := report.DeviceStatus{
			Key:               d.key,
			Tag:               d.tag,
			BaseURL:           d.dev.BaseURL,
			TotalBytes:        d.total,
			FreeBytes:         d.free,
			MinFreeBytes:      d.minFree,
			Reports:           d.reports,
			MaintenanceHalted: d.halted,
		}
		if d.refreshed {
			ds.UsedPercent, ds.FreePercent = d.utilization().Percentages()
		}
		if !d.reportsDone() {
			due := d.reportDue
			ds.NextReport = &due
		}
		if !d.maintDue.Equal(Never) {
			due := d.maintDue
			ds.NextMaintenance = &due
		}
		st.Devices = append(st.Devices, ds)
	}
	return st
}

// publishStatus stores the current status and writes the status file when
// one is configured. A write failure is logged and otherwise ignored.
func (s *Scheduler) publishStatus() {
	st := s.buildStatus()
	s.status.Store(&st)
	if s.opts.StatusFile == "" {
		return
	}
	if err := report.WriteStatus(s.opts.StatusFile, st, s.logger); err != nil {
		s.logger.Warn().Err(err).
			Str(log.FieldEvent, "status.write_failed").
			Str(log.FieldPath, s.opts.StatusFile).
			Msg("unable to write status file")
	}
}
