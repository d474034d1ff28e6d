// SPDX-License-Identifier: MIT

// Package report renders the monitor's human-facing output: sizes,
// durations, the utilization line, the recording list and the JSON status
// file.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Size formats a byte count with decimal (SI) units and two decimals,
// e.g. "1.50 GB". Terabytes is the largest unit.
func Size(n int64) string {
	v, prefix := humanize.ComputeSI(float64(n))
	switch prefix {
	case "", "M", "G", "T":
	case "k":
		prefix = "K"
	default:
		v, prefix = float64(n)/1e12, "T"
	}
	return fmt.Sprintf("%.2f %sB", v, prefix)
}

var durationUnits = []struct {
	singular, plural string
	size             int64
}{
	{"day", "days", 86400},
	{"hour", "hours", 3600},
	{"minute", "minutes", 60},
	{"second", "seconds", 1},
}

// Duration spells out a duration in whole seconds, e.g.
// "1 day, 2 hours, 5 seconds". Zero is "0 seconds".
func Duration(d time.Duration) string {
	remaining := int64(d / time.Second)
	if remaining <= 0 {
		return "0 seconds"
	}
	var parts []string
	for _, u := range durationUnits {
		if remaining < u.size {
			continue
		}
		n := remaining / u.size
		remaining -= n * u.size
		name := u.plural
		if n == 1 {
			name = u.singular
		}
		parts = append(parts, fmt.Sprintf("%d %s", n, name))
	}
	return strings.Join(parts, ", ")
}

// Plural returns "1 report", "3 reports" and so on.
func Plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
