// SPDX-License-Identifier: MIT

package report

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"
)

// DeviceStatus is the per-device part of the status file.
type DeviceStatus struct {
	Key          string  `json:"key"`
	Tag          string  `json:"tag"`
	BaseURL      string  `json:"base_url"`
	TotalBytes   int64   `json:"total_bytes"`
	FreeBytes    int64   `json:"free_bytes"`
	MinFreeBytes int64   `json:"min_free_bytes"`
	UsedPercent  float64 `json:"used_percent"`
	FreePercent  float64 `json:"free_percent"`
	Reports      int     `json:"reports"`

	NextReport      *time.Time `json:"next_report,omitempty"`
	NextMaintenance *time.Time `json:"next_maintenance,omitempty"`
	// MaintenanceHalted is set while the configured minimum exceeds capacity.
	MaintenanceHalted bool `json:"maintenance_halted,omitempty"`
}

// Status is the document written to the status file.
type Status struct {
	UpdatedAt                time.Time      `json:"updated_at"`
	DryRun                   bool           `json:"dry_run"`
	SettingsFile             string         `json:"settings_file,omitempty"`
	NextRecordingMaintenance *time.Time     `json:"next_recording_maintenance,omitempty"`
	Devices                  []DeviceStatus `json:"devices"`
}

// WriteStatus replaces the status file atomically: the document is written
// to a temporary file, synced and renamed over path.
func WriteStatus(path string, s Status, logger zerolog.Logger) error {
	pendingFile, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending status file: %w", err)
	}
	defer func() {
		if err := pendingFile.Cleanup(); err != nil {
			logger.Debug().Err(err).Msg("cleanup pending status file")
		}
	}()

	enc := json.NewEncoder(pendingFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encode status: %w", err)
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace status file: %w", err)
	}
	return nil
}
