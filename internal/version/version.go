// Package version holds build-time version information.
package version

// Version is the current Roamline version, overridden at build time via
// -ldflags "-X github.com/roamline/roamline/internal/version.Version=...".
var Version = "0.3.0"

// Commit is the git commit hash, set at build time.
var Commit = "unknown"

// BuildDate is the build timestamp, set at build time.
var BuildDate = "unknown"

// Info returns a human-readable version line.
func Info() string {
	return "roamline " + Version + " (" + Commit + ", built " + BuildDate + ")"
}
