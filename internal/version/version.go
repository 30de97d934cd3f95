// Package version holds build identity, overridable at link time with
// -ldflags "-X github.com/mitosis-data/spindle.report/internal/version.Version=...".
package version

var (
	// Version is the current application version
	Version = "0.1.0"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)
