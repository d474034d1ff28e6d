// SPDX-License-Identifier: MIT

package report

import (
	"bufio"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/policy"
)

const headerWidth = 78

// Header centers a device tag in a line of '#' characters.
func Header(tag string) string {
	tagWidth := utf8.RuneCountInString(tag) + 2
	left := (headerWidth - tagWidth) / 2
	right := headerWidth - left - tagWidth
	return bumper(left) + " " + tag + " " + bumper(right)
}

func bumper(width int) string {
	if width <= 1 {
		return ""
	}
	return strings.Repeat("#", width-1)
}

// RecordingLine renders one recording of the list as
// "<start time>: <series title>" with watched/protected markers.
func RecordingLine(c policy.Candidate) string {
	line := policy.Ctime(c.StartTime()) + ": " + c.SeriesTitle
	if c.Watched {
		line += " (watched)"
	}
	if c.Protected {
		line += " (protected)"
	}
	return line
}

// WriteRecordingList writes a device header followed by its recordings in
// the order given, which callers keep in deletion order.
func WriteRecordingList(w io.Writer, tag string, sorted []policy.Candidate) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(Header(tag) + "\n"); err != nil {
		return err
	}
	for _, c := range sorted {
		if _, err := bw.WriteString(RecordingLine(c) + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}
