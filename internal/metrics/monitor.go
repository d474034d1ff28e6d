// SPDX-License-Identifier: MIT

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	deviceTotalBytes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "hdhr_device_total_bytes",
		Help: "Advertised storage capacity per device",
	}, []string{"device"})

	deviceFreeBytes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "hdhr_device_free_bytes",
		Help: "Free storage per device (last refresh)",
	}, []string{"device"})

	deviceMinFreeBytes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "hdhr_device_min_free_bytes",
		Help: "Configured minimum free space per device (0 when unset)",
	}, []string{"device"})

	deviceNextCheckSeconds = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "hdhr_device_next_check_seconds",
		Help: "Seconds until the next free-space check per device",
	}, []string{"device"})

	deletionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hdhr_deletions_total",
		Help: "Deletion attempts by trigger and outcome",
	}, []string{"trigger", "outcome"}) // trigger=free_space|max_age|max_episodes

	settingsReloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hdhr_settings_reloads_total",
		Help: "Settings snapshot resolutions by result",
	}, []string{"result"}) // result=success|failure

	storageRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hdhr_storage_api_requests_total",
		Help: "Requests to the appliance HTTP API by operation and status",
	}, []string{"operation", "status"})

	storageRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hdhr_storage_api_request_duration_seconds",
		Help:    "Appliance HTTP API latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	tickDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hdhr_scheduler_phase_duration_seconds",
		Help:    "Duration of scheduler phases that did work",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"phase"})

	restartsRequested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hdhr_restarts_requested_total",
		Help: "Unexpected loop failures that requested a process restart",
	})
)

// ObserveDeviceSpace records capacity figures for one device.
func ObserveDeviceSpace(device string, total, free, minFree int64) {
	deviceTotalBytes.WithLabelValues(device).Set(float64(total))
	deviceFreeBytes.WithLabelValues(device).Set(float64(free))
	deviceMinFreeBytes.WithLabelValues(device).Set(float64(minFree))
}

// SetNextCheck records when the next free-space check will happen.
func SetNextCheck(device string, in time.Duration) {
	deviceNextCheckSeconds.WithLabelValues(device).Set(in.Seconds())
}

// ForgetDevice drops all per-device series once a device disappears.
func ForgetDevice(device string) {
	deviceTotalBytes.DeleteLabelValues(device)
	deviceFreeBytes.DeleteLabelValues(device)
	deviceMinFreeBytes.DeleteLabelValues(device)
	deviceNextCheckSeconds.DeleteLabelValues(device)
}

// IncDeletion records a guarded deletion attempt.
func IncDeletion(trigger, outcome string) {
	deletionsTotal.WithLabelValues(trigger, outcome).Inc()
}

// IncSettingsReload records a settings resolution attempt.
func IncSettingsReload(success bool) {
	if success {
		settingsReloadsTotal.WithLabelValues("success").Inc()
		return
	}
	settingsReloadsTotal.WithLabelValues("failure").Inc()
}

// ObserveStorageRequest records one appliance HTTP request.
func ObserveStorageRequest(operation, status string, d time.Duration) {
	storageRequestsTotal.WithLabelValues(operation, status).Inc()
	storageRequestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// ObservePhase records the duration of a scheduler phase.
func ObservePhase(phase string, d time.Duration) {
	tickDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// IncRestartRequested counts restart requests from the loop.
func IncRestartRequested() {
	restartsRequested.Inc()
}
