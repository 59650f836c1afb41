// Package version holds the build identity stamped in via -ldflags.
package version

var (
	// Version is the semantic version of this build.
	Version = "v0.0.0-dev"

	// GitCommit is the commit hash this build was produced from.
	GitCommit = "unknown"

	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)
