// Package version provides build-time version information.
package version

import "fmt"

// Set at build time with -ldflags "-X vector-georef/internal/version.GitCommit=...".
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String formats the version for -version output and run reports.
func String() string {
	return fmt.Sprintf("georef %s (commit %s, built %s)", Version, GitCommit, BuildTime)
}
