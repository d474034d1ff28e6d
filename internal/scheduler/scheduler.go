// SPDX-License-Identifier: MIT

// Package scheduler runs the monitor loop: device discovery, settings
// reloads, space reports, free-space maintenance and recording
// maintenance, each on its own due time.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/hdhr"
	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/log"
	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/metrics"
	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/policy"
	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/report"
	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/settings"
	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/storageapi"
	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/telemetry"
)

// Loop cadences.
const (
	DiscoveryInterval            = 30 * time.Second
	ConfigCheckInterval          = 3 * time.Second
	MinCheckInterval             = 3 * time.Second
	RecordingMaintenanceInterval = 13 * time.Minute
	LoopSleep                    = 500 * time.Millisecond
	// RetryAfterFailure delays the next free-space check of a device that
	// could not be refreshed.
	RetryAfterFailure = DiscoveryInterval
)

// Never is the due time of an activity that is switched off.
var Never = time.Unix(999999999999, 0)

// Discoverer finds appliances on the local network.
type Discoverer interface {
	Discover(ctx context.Context) (hdhr.Result, error)
}

// API is the storage appliance client.
type API interface {
	policy.Appliance
	Discover(ctx context.Context, baseURL string) (storageapi.DeviceInfo, error)
}

// Settings supplies the resolved configuration and detects file changes.
type Settings interface {
	Current() *settings.Snapshot
	Changed() bool
	Reload() (*settings.Snapshot, error)
}

// Deps are the collaborators of a Scheduler.
type Deps struct {
	Discoverer Discoverer
	API        API
	Settings   Settings
	Selector   hdhr.Selector
	// Clock defaults to RealClock.
	Clock Clock
}

// Options tune the loop.
type Options struct {
	DryRun bool
	// StopAfterReports ends Run once every device has printed its
	// configured number of reports.
	StopAfterReports bool
	// StatusFile, when set, receives a JSON snapshot after each pass that
	// did work.
	StatusFile string
}

// Scheduler owns all device and settings state. Everything runs on the
// goroutine calling Init and Run.
type Scheduler struct {
	opts       Options
	clock      Clock
	discoverer Discoverer
	selector   hdhr.Selector
	registry   *hdhr.Registry
	api        API
	settings   Settings
	engine     *policy.Engine
	logger     zerolog.Logger

	snap    *settings.Snapshot
	devices []*deviceState
	stale   bool

	discoveryDue  time.Time
	configDue     time.Time
	recordingsDue time.Time
	// seriesChecked is the snapshot whose series sections were last
	// checked against the listed series.
	seriesChecked *settings.Snapshot

	status atomic.Pointer[report.Status]
}

// New wires a Scheduler. Call Init before Run.
func New(deps Deps, opts Options) *Scheduler {
	clock := deps.Clock
	if clock == nil {
		clock = RealClock{}
	}
	engine := policy.NewEngine(deps.API, opts.DryRun)
	engine.Now = clock.Now
	return &Scheduler{
		opts:          opts,
		clock:         clock,
		discoverer:    deps.Discoverer,
		selector:      deps.Selector,
		registry:      hdhr.NewRegistry(),
		api:           deps.API,
		settings:      deps.Settings,
		engine:        engine,
		logger:        log.WithComponent("scheduler"),
		recordingsDue: Never,
	}
}

// Init discovers appliances, selects the devices to monitor and applies the
// current settings to them. Device selection errors from the hdhr package
// are returned unwrapped.
func (s *Scheduler) Init(ctx context.Context) error {
	now := s.clock.Now()
	s.snap = s.settings.Current()

	res, err := s.discoverer.Discover(ctx)
	if err != nil {
		return fmt.Errorf("discover devices: %w", err)
	}
	s.registry.Merge(res)
	selected, err := s.selector.Select(ctx, s.registry.StorageServers())
	if err != nil {
		return err
	}
	s.reconcile(ctx, selected, now)
	s.applyGlobal(now)

	s.discoveryDue = now.Add(DiscoveryInterval)
	s.configDue = now.Add(ConfigCheckInterval)
	s.publishStatus()
	return nil
}

// Run loops until ctx is done, the report count is reached in
// stop-after-reports mode, or an unexpected failure occurs. A panic inside
// the loop is recovered and reported as ErrRestartRequired.
func (s *Scheduler) Run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			metrics.IncRestartRequested()
			s.logger.Error().
				Str(log.FieldEvent, "scheduler.panic").
				Str("stack", string(debug.Stack())).
				Msgf("unexpected failure: %v", r)
			err = fmt.Errorf("%w: %v", ErrRestartRequired, r)
		}
	}()

	s.logger.Info().Str(log.FieldEvent, "scheduler.started").Int("devices", len(s.devices)).Msg("monitor loop started")
	for {
		if err := s.Tick(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			metrics.IncRestartRequested()
			return fmt.Errorf("%w: %w", ErrRestartRequired, err)
		}
		if s.opts.StopAfterReports && s.reportsDone() {
			s.logger.Info().Str(log.FieldEvent, "scheduler.reports_done").Msg("all reports printed, stopping")
			return nil
		}

		timer := s.clock.NewTimer(LoopSleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info().Str(log.FieldEvent, "scheduler.stopped").Msg("monitor loop stopped")
			return nil
		case <-timer.C():
		}
	}
}

// Tick runs every activity that is due. Failures that concern a single
// device are logged and never returned; an error means the loop itself can
// no longer make progress.
func (s *Scheduler) Tick(ctx context.Context) error {
	now := s.clock.Now()
	ctx = log.ContextWithCycleID(ctx, uuid.NewString())
	worked := false

	if !now.Before(s.discoveryDue) {
		if err := s.phase(ctx, "discovery", s.rediscover); err != nil {
			return err
		}
		s.discoveryDue = now.Add(DiscoveryInterval)
	}

	if !now.Before(s.configDue) {
		if s.settings.Changed() {
			s.stale = true
		}
		s.configDue = now.Add(ConfigCheckInterval)
	}
	if s.stale {
		s.stale = false
		_ = s.phase(ctx, "settings", s.reloadSettings)
	}

	for _, d := range s.devices {
		if d.reportsDone() || now.Before(d.reportDue) {
			continue
		}
		worked = true
		_ = s.phase(log.ContextWithDeviceKey(ctx, d.key), "report", func(ctx context.Context) error {
			s.reportDevice(ctx, d)
			return nil
		})
	}

	for _, d := range s.devices {
		if now.Before(d.maintDue) {
			continue
		}
		worked = true
		_ = s.phase(log.ContextWithDeviceKey(ctx, d.key), "maintenance", func(ctx context.Context) error {
			s.maintainDevice(ctx, d)
			return nil
		})
	}

	if !now.Before(s.recordingsDue) {
		worked = true
		_ = s.phase(ctx, "recordings", func(ctx context.Context) error {
			s.maintainRecordings(ctx)
			return nil
		})
		s.recordingsDue = s.clock.Now().Add(RecordingMaintenanceInterval)
	}

	if worked {
		s.publishStatus()
	}
	return ctx.Err()
}

// phase runs one activity inside a span and records its duration.
func (s *Scheduler) phase(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := telemetry.Tracer("scheduler").Start(ctx, "scheduler."+name,
		trace.WithAttributes(telemetry.PhaseAttributes(name)...))
	defer span.End()
	start := s.clock.Now()
	err := fn(ctx)
	metrics.ObservePhase(name, s.clock.Now().Sub(start))
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// rediscover merges a fresh discovery result and re-runs device selection.
// Only a failure to enumerate interfaces is returned.
func (s *Scheduler) rediscover(ctx context.Context) error {
	res, err := s.discoverer.Discover(ctx)
	if err != nil {
		return fmt.Errorf("discover devices: %w", err)
	}
	s.registry.Merge(res)

	selected, err := s.selector.Select(ctx, s.registry.StorageServers())
	var dup *hdhr.DuplicateError
	switch {
	case errors.As(err, &dup):
		s.logger.Error().Err(err).Str(log.FieldEvent, "discovery.duplicate").Msg("device selection unchanged")
		return nil
	case errors.Is(err, hdhr.ErrNoDevices):
		s.logger.Warn().Str(log.FieldEvent, "discovery.no_devices").Msg("no storage devices responded to discovery")
	case err != nil:
		s.logger.Warn().Err(err).Str(log.FieldEvent, "discovery.device_missing").Msg("requested devices missing")
	}

	now := s.clock.Now()
	s.reconcile(ctx, selected, now)
	for _, d := range s.devices {
		if d.refreshed {
			d.minFree = d.cfg.MinFreeBytes(d.total)
		}
	}
	return nil
}

// reconcile replaces the monitored set. Devices that stay selected keep
// their state; new ones are refreshed and scheduled immediately.
func (s *Scheduler) reconcile(ctx context.Context, selected []hdhr.Monitored, now time.Time) {
	existing := make(map[string]*deviceState, len(s.devices))
	for _, d := range s.devices {
		existing[d.key] = d
	}

	next := make([]*deviceState, 0, len(selected))
	kept := make(map[*deviceState]struct{}, len(selected))
	for _, m := range selected {
		if d, ok := existing[m.Key]; ok && d.dev == m.Device {
			next = append(next, d)
			kept[d] = struct{}{}
			continue
		}
		d := newDeviceState(m, now)
		if err := s.refresh(ctx, d); err != nil {
			s.logger.Warn().Err(err).
				Str(log.FieldEvent, "device.refresh_failed").
				Str(log.FieldDevice, d.key).
				Msgf("%s unable to read device data", d.tag)
		}
		s.applyDevice(d, now)
		s.logger.Info().
			Str(log.FieldEvent, "device.monitored").
			Str(log.FieldDevice, d.key).
			Str(log.FieldBaseURL, d.dev.BaseURL).
			Msgf("%s monitoring device", d.tag)
		next = append(next, d)
	}

	for _, d := range s.devices {
		if _, ok := kept[d]; ok {
			continue
		}
		metrics.ForgetDevice(d.key)
		s.logger.Warn().
			Str(log.FieldEvent, "device.dropped").
			Str(log.FieldDevice, d.key).
			Msgf("%s no longer monitored", d.tag)
	}
	s.devices = next
	metrics.SetDevicesMonitored(len(next))
}

// reloadSettings swaps in a new snapshot. A snapshot that fails to resolve
// leaves everything as it was.
func (s *Scheduler) reloadSettings(context.Context) error {
	snap, err := s.settings.Reload()
	if err != nil {
		s.logger.Error().Err(err).Str(log.FieldEvent, "settings.rejected").Msg("keeping previous settings")
		return err
	}
	s.snap = snap
	now := s.clock.Now()
	for _, d := range s.devices {
		s.applyDevice(d, now)
	}
	s.applyGlobal(now)
	return nil
}

// applyGlobal toggles recording maintenance and logs snapshot warnings.
func (s *Scheduler) applyGlobal(now time.Time) {
	if s.snap.MaintenanceEligible() {
		if s.recordingsDue.Equal(Never) {
			s.recordingsDue = now
		}
	} else {
		s.recordingsDue = Never
	}

	for _, w := range s.snap.Warnings() {
		s.logger.Warn().
			Str(log.FieldEvent, "settings.warning").
			Str(log.FieldSection, w.Section).
			Msg(w.Message)
	}
}

// reportsDone reports whether every device has printed all its reports.
func (s *Scheduler) reportsDone() bool {
	for _, d := range s.devices {
		if !d.reportsDone() {
			return false
		}
	}
	return true
}

func (s *Scheduler) reportDevice(ctx context.Context, d *deviceState) {
	logger := log.WithContext(ctx, s.logger)
	now := s.clock.Now()
	d.reportDue = now.Add(d.interval())
	if err := s.refresh(ctx, d); err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, "report.refresh_failed").Msgf("%s unable to read device data", d.tag)
		return
	}
	d.reports++
	d.lastReport = now
	logger.Info().
		Str(log.FieldEvent, "report.utilization").
		Int64(log.FieldTotalBytes, d.total).
		Int64(log.FieldFreeBytes, d.free).
		Int64(log.FieldMinFreeBytes, d.minFree).
		Msgf("%s %s", d.tag, d.utilization().Line())
}
