// Package version holds relfiles build information.
package version

import (
	"runtime"
	"runtime/debug"
)

// Overridable at build time:
// go build -ldflags "-X relfiles/internal/version.Version=0.2.0 -X relfiles/internal/version.Commit=abc123"
var (
	// Version is the semantic version of relfiles
	Version = "0.1.0"

	// Commit is the git commit hash (set at build time)
	Commit = "unknown"

	// BuildDate is the build timestamp (set at build time)
	BuildDate = "unknown"
)

// Info returns a formatted version string
func Info() string {
	commit := resolveCommit()
	if commit != "unknown" && len(commit) > 7 {
		return Version + " (" + commit[:7] + ")"
	}
	return Version
}

// Full returns complete version information
func Full() string {
	return "relfiles version " + Version + "\n" +
		"Commit: " + resolveCommit() + "\n" +
		"Built: " + BuildDate + "\n" +
		"Go: " + runtime.Version()
}

// resolveCommit prefers the ldflags value and falls back to the VCS
// revision the go toolchain stamps into module builds.
func resolveCommit() string {
	if Commit != "unknown" {
		return Commit
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && s.Value != "" {
				return s.Value
			}
		}
	}
	return Commit
}
