// Package version carries build metadata stamped in via ldflags.
package version

//nolint:revive // Overwritten by the release build.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)
