// SPDX-License-Identifier: MIT

package hdhr

import (
	"github.com/rs/zerolog"

	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/log"
	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/metrics"
)

// Registry holds the devices known from previous discovery cycles. It is
// owned by the scheduler loop and is not safe for concurrent use.
type Registry struct {
	storage []*Device
	tuners  []*Device
	logger  zerolog.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{logger: log.WithComponent("registry")}
}

// MergeResult lists the registry changes made by one Merge.
type MergeResult struct {
	Added   []*Device
	Removed []*Device
}

// Changed reports whether the merge added or removed anything.
func (m MergeResult) Changed() bool {
	return len(m.Added) > 0 || len(m.Removed) > 0
}

// Merge reconciles the registry with a fresh discovery result. Devices still
// present keep their existing pointer (their announced fields are refreshed),
// devices that did not answer are dropped, and new devices are appended.
func (r *Registry) Merge(res Result) MergeResult {
	var out MergeResult
	r.storage = r.mergeKind(r.storage, res.StorageServers, &out)
	r.tuners = r.mergeKind(r.tuners, res.Tuners, &out)
	metrics.RecordDeviceChanges(len(out.Added), len(out.Removed))
	return out
}

func (r *Registry) mergeKind(known, found []*Device, out *MergeResult) []*Device {
	byIdentity := make(map[string]*Device, len(found))
	for _, d := range found {
		byIdentity[d.Identity()] = d
	}

	merged := make([]*Device, 0, len(found))
	kept := make(map[string]struct{}, len(known))
	for _, d := range known {
		fresh, ok := byIdentity[d.Identity()]
		if !ok {
			out.Removed = append(out.Removed, d)
			r.logger.Warn().
				Str(log.FieldEvent, "discovery.device_removed").
				Str(log.FieldDevice, d.Key()).
				Str(log.FieldBaseURL, d.BaseURL).
				Msgf("%s device %s is no longer responding", d.Kind, d.Key())
			continue
		}
		d.refreshFrom(fresh)
		merged = append(merged, d)
		kept[d.Identity()] = struct{}{}
	}
	for _, d := range found {
		if _, ok := kept[d.Identity()]; ok {
			continue
		}
		merged = append(merged, d)
		out.Added = append(out.Added, d)
		r.logger.Info().
			Str(log.FieldEvent, "discovery.device_added").
			Str(log.FieldDevice, d.Key()).
			Str(log.FieldBaseURL, d.BaseURL).
			Msgf("found %s device %s", d.Kind, d.Key())
	}
	return merged
}

// StorageServers returns the known storage servers in discovery order.
func (r *Registry) StorageServers() []*Device {
	return append([]*Device(nil), r.storage...)
}
