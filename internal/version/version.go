// SPDX-License-Identifier: MIT

// Package version holds build metadata injected with -ldflags.
package version

import "fmt"

var (
	// Version is the release version.
	Version = "dev"

	// Commit is the git short hash of the build.
	Commit = "unknown"

	// Date is the build timestamp.
	Date = "unknown"
)

// Name is the program name printed by --version.
const Name = "hdhr-monitor"

// String renders the --version line.
func String() string {
	if Commit == "unknown" {
		return fmt.Sprintf("%s %s", Name, Version)
	}
	return fmt.Sprintf("%s %s (commit: %s, built: %s)", Name, Version, Commit, Date)
}
