// SPDX-License-Identifier: MIT

package storageapi

import (
	"bytes"
	"encoding/json"
	"path"
	"strconv"
	"strings"
)

// ResumeWatched is the Resume value of a recording played to the end.
const ResumeWatched int64 = 0xFFFFFFFF

// DeviceInfo is the discover.json document of a storage appliance. Space
// figures are nil when the appliance does not report them.
type DeviceInfo struct {
	FriendlyName    string `json:"FriendlyName"`
	ModelNumber     string `json:"ModelNumber"`
	FirmwareName    string `json:"FirmwareName"`
	FirmwareVersion string `json:"FirmwareVersion"`
	DeviceID        string `json:"DeviceID"`
	DeviceAuth      string `json:"DeviceAuth"`
	Version         string `json:"Version"`
	BaseURL         string `json:"BaseURL"`
	LineupURL       string `json:"LineupURL"`
	StorageID       string `json:"StorageID"`
	StorageURL      string `json:"StorageURL"`
	TunerCount      int    `json:"TunerCount"`
	TotalSpace      *int64 `json:"TotalSpace"`
	FreeSpace       *int64 `json:"FreeSpace"`
}

// HasSpace reports whether both capacity figures were present.
func (d DeviceInfo) HasSpace() bool {
	return d.TotalSpace != nil && d.FreeSpace != nil
}

// Series is one entry of recorded_files.json.
type Series struct {
	SeriesID    string `json:"SeriesID"`
	Title       string `json:"Title"`
	Category    string `json:"Category"`
	ImageURL    string `json:"ImageURL"`
	EpisodesURL string `json:"EpisodesURL"`
	StartTime   int64  `json:"StartTime"`
	UpdateID    int64  `json:"UpdateID"`
}

// Recording is one episode listed under a series' EpisodesURL.
type Recording struct {
	Category         string `json:"Category"`
	ChannelAffiliate string `json:"ChannelAffiliate"`
	ChannelName      string `json:"ChannelName"`
	ChannelNumber    string `json:"ChannelNumber"`
	ProgramID        string `json:"ProgramID"`
	SeriesID         string `json:"SeriesID"`
	Title            string `json:"Title"`
	EpisodeTitle     string `json:"EpisodeTitle"`
	EpisodeNumber    string `json:"EpisodeNumber"`
	Synopsis         string `json:"Synopsis"`
	Filename         string `json:"Filename"`
	PlayURL          string `json:"PlayURL"`
	CmdURL           string `json:"CmdURL"`
	ImageURL         string `json:"ImageURL"`

	OriginalAirdate int64 `json:"OriginalAirdate"`
	RecordStartTime int64 `json:"RecordStartTime"`
	RecordEndTime   int64 `json:"RecordEndTime"`
	Resume          int64 `json:"Resume"`
	StartTime       int64 `json:"StartTime"`
	EndTime         int64 `json:"EndTime"`

	FirstAiring   Flag `json:"FirstAiring"`
	RecordSuccess Flag `json:"RecordSuccess"`
}

// Stem is the recording filename without directory or extension.
func (r Recording) Stem() string {
	base := path.Base(strings.ReplaceAll(r.Filename, "\\", "/"))
	return strings.TrimSuffix(base, path.Ext(base))
}

// Resource is one entry of status.json.
type Resource struct {
	Resource string `json:"Resource"`
	Name     string `json:"Name"`
	Target   string `json:"TargetIP"`
}

// Activity kinds reported in status.json.
const (
	ActivityPlayback = "playback"
	ActivityRecord   = "record"
)

// Flag decodes the appliance's optional 0/1 markers, which also show up as
// JSON booleans or strings on some firmware.
type Flag bool

// UnmarshalJSON implements json.Unmarshaler.
func (f *Flag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*f = false
	case bytes.Equal(data, []byte("true")):
		*f = true
	case bytes.Equal(data, []byte("false")):
		*f = false
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		b, err := strconv.ParseBool(s)
		if err != nil {
			n, nerr := strconv.ParseFloat(s, 64)
			if nerr != nil {
				return err
			}
			b = n != 0
		}
		*f = Flag(b)
	default:
		n, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return err
		}
		*f = n != 0
	}
	return nil
}
