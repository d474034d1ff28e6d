// SPDX-License-Identifier: MIT

package hdhr

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind classifies a discovered appliance.
type Kind int

const (
	KindUnknown Kind = iota
	KindTuner
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindTuner:
		return "tuner"
	case KindStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// Device is an appliance found by discovery. The registry keeps the same
// pointer for as long as the appliance keeps answering, so callers may hang
// scheduling state off it.
type Device struct {
	Kind       Kind
	ID         string // %08X, empty when the reply carried no device id
	IP         string
	TunerCount int
	BaseURL    string
	LineupURL  string
	StorageURL string
	StorageID  string
	DeviceAuth string
}

// Identity is the deduplication key: base URL for storage servers, device id
// for tuners. A storage server without a base URL is identified by its IP
// address.
func (d *Device) Identity() string {
	if d.Kind == KindStorage {
		if d.BaseURL == "" {
			return "ip:" + d.IP
		}
		return d.BaseURL
	}
	return d.ID
}

// Key is the default settings key: the device id, or the IP address when
// the appliance advertises none.
func (d *Device) Key() string {
	if d.ID != "" {
		return d.ID
	}
	return d.IP
}

func (d *Device) String() string {
	return fmt.Sprintf("%s id=%s url=%s", d.Kind, d.ID, d.BaseURL)
}

// classify turns a decoded reply into a Device, or nil when the reply is
// neither a storage server nor a tuner.
func classify(r Reply, ip string) *Device {
	d := &Device{
		IP:         ip,
		TunerCount: r.TunerCount,
		BaseURL:    r.BaseURL,
		LineupURL:  r.LineupURL,
		StorageURL: r.StorageURL,
		StorageID:  r.StorageID,
		DeviceAuth: r.DeviceAuthString,
	}
	if d.DeviceAuth == "" {
		d.DeviceAuth = r.DeviceAuth
	}
	if r.HasDeviceID && r.DeviceID != 0 {
		d.ID = fmt.Sprintf("%08X", r.DeviceID)
	}
	switch {
	case r.StorageID != "":
		d.Kind = KindStorage
	case d.ID != "":
		d.Kind = KindTuner
	default:
		return nil
	}
	return d
}

func (d *Device) refreshFrom(o *Device) {
	d.IP = o.IP
	d.TunerCount = o.TunerCount
	d.LineupURL = o.LineupURL
	d.StorageURL = o.StorageURL
	d.StorageID = o.StorageID
	d.DeviceAuth = o.DeviceAuth
	if o.ID != "" {
		d.ID = o.ID
	}
}

// ATSC 1.0 caps a single stream at 19.4 Mbps.
const (
	atscMaxMbps          = 19.4
	bytesPerMiB          = 1 << 20
	defaultStreamCount   = 4
	maxStreamBytesPerSec = atscMaxMbps / 8 * bytesPerMiB
)

var (
	maxStreams = map[string]int{
		"HDVR":   4,
		"HHDD":   6,
		"RECORD": 16,
		"HDFX":   4,
	}

	modelNumberPattern  = regexp.MustCompile(`^([A-Z]{4})-`)
	friendlyNamePattern = regexp.MustCompile(`^HDHomeRun (.*)$`)
)

// ModelFamily extracts the product family from a model number such as
// "HDVR-4US-1TB", or from a friendly name such as "HDHomeRun RECORD" when
// the model number is empty.
func ModelFamily(modelNumber, friendlyName string) string {
	if modelNumber != "" {
		if m := modelNumberPattern.FindStringSubmatch(modelNumber); m != nil {
			return m[1]
		}
		return ""
	}
	if m := friendlyNamePattern.FindStringSubmatch(strings.TrimSpace(friendlyName)); m != nil {
		return strings.ToUpper(m[1])
	}
	return ""
}

// StreamCount is the number of simultaneous recordings a family can write.
// Unknown families fall back to the advertised tuner count, then to 4.
func StreamCount(family string, tunerCount int) int {
	if n, ok := maxStreams[family]; ok {
		return n
	}
	if tunerCount > 0 {
		return tunerCount
	}
	return defaultStreamCount
}

// MaxRecordingBytesPerSec is the worst-case write rate of a device when every
// stream records at the ATSC 1.0 maximum bitrate.
func MaxRecordingBytesPerSec(family string, tunerCount int) float64 {
	return maxStreamBytesPerSec * float64(StreamCount(family, tunerCount))
}
