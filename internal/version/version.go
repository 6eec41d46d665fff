// SPDX-License-Identifier: MIT

// Package version holds build metadata injected with -ldflags.
package version

import "fmt"

var (
	// Version is the release version, set at build time.
	Version = "dev"

	// Commit is the git short hash of the build.
	Commit = "unknown"

	// Date is the build timestamp.
	Date = "unknown"
)

// String renders the build metadata on one line.
func String() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date)
}
