// Package version exposes build metadata set via -ldflags.
package version

var (
	// Version is the release version, overridden at build time.
	Version = "dev"
	// Commit is the short VCS revision, overridden at build time.
	Commit = ""
)

// GetInfo returns a human-readable version string.
func GetInfo() string {
	if Commit == "" {
		return Version
	}
	return Version + " (" + Commit + ")"
}
