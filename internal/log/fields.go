// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldCycleID   = "cycle_id"
	FieldDevice    = "device"
	FieldDeviceKey = "device_key"
	FieldStorageID = "storage_id"
	FieldSeriesID  = "series_id"
	FieldTitle     = "title"
	FieldCategory  = "category"
	FieldFilename  = "filename"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldOutcome   = "outcome"
	FieldReason    = "reason"

	// Settings fields
	FieldSection = "section"
	FieldField   = "field"

	// Space fields
	FieldFreeBytes    = "free_bytes"
	FieldTotalBytes   = "total_bytes"
	FieldMinFreeBytes = "min_free_bytes"
	FieldNextCheck    = "next_check"

	// Path / URL fields
	FieldPath    = "path"
	FieldBaseURL = "base_url"
	FieldURL     = "url"

	// Network fields
	FieldInterface = "interface"
	FieldAddr      = "addr"
)
