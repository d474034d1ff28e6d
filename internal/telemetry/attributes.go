// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by scheduler and client spans.
const (
	DeviceKey      = "hdhr.device"
	OperationKey   = "hdhr.operation"
	PhaseKey       = "hdhr.phase"
	RecordingsKey  = "hdhr.recordings"
	FreeBytesKey   = "hdhr.free_bytes"
	MinFreeKey     = "hdhr.min_free_bytes"
	OutcomeKey     = "hdhr.outcome"
	DevicesCounted = "hdhr.devices"
)

// DeviceAttributes describes the device a span operates on.
func DeviceAttributes(device string, free, minFree int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(DeviceKey, device),
		attribute.Int64(FreeBytesKey, free),
		attribute.Int64(MinFreeKey, minFree),
	}
}

// PhaseAttributes labels a scheduler phase span.
func PhaseAttributes(phase string) []attribute.KeyValue {
	return []attribute.KeyValue{attribute.String(PhaseKey, phase)}
}
