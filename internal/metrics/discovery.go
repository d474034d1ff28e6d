// SPDX-License-Identifier: MIT

// Package metrics provides Prometheus metrics for the disk space monitor.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	discoveryCyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hdhr_discovery_cycles_total",
		Help: "Total number of discovery cycles run",
	})

	discoveryRepliesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hdhr_discovery_replies_total",
		Help: "Discovery replies received, by classification",
	}, []string{"result"}) // result=storage|tuner|ignored|malformed

	discoveryInterfaceErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hdhr_discovery_interface_errors_total",
		Help: "Socket errors while probing an interface",
	}, []string{"stage"}) // stage=bind|send|recv

	devicesMonitored = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hdhr_devices_monitored",
		Help: "Number of storage servers currently monitored",
	})

	deviceChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hdhr_device_changes_total",
		Help: "Devices added to or removed from the registry",
	}, []string{"change"}) // change=added|removed
)

// IncDiscoveryCycle records one completed discovery cycle.
func IncDiscoveryCycle() {
	discoveryCyclesTotal.Inc()
}

// IncDiscoveryReply records a reply by classification.
func IncDiscoveryReply(result string) {
	discoveryRepliesTotal.WithLabelValues(result).Inc()
}

// IncDiscoveryInterfaceError records a bind, send or receive failure.
func IncDiscoveryInterfaceError(stage string) {
	discoveryInterfaceErrors.WithLabelValues(stage).Inc()
}

// SetDevicesMonitored updates the monitored device gauge.
func SetDevicesMonitored(n int) {
	devicesMonitored.Set(float64(n))
}

// RecordDeviceChanges counts registry additions and removals.
func RecordDeviceChanges(added, removed int) {
	if added > 0 {
		deviceChanges.WithLabelValues("added").Add(float64(added))
	}
	if removed > 0 {
		deviceChanges.WithLabelValues("removed").Add(float64(removed))
	}
}
