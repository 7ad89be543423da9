package version

import (
	_ "embed"
	"runtime"
	"strings"
)

//go:embed VERSION
var versionFile string

// Build-time variables set via ldflags
var (
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// planFormatVersion is bumped when the JSON plan layout changes
const planFormatVersion = "1.0.0"

// Version returns the current version of myschema
func Version() string {
	return strings.TrimSpace(versionFile)
}

// App returns the application version recorded in plan output
func App() string {
	return Version()
}

// PlanFormat returns the version of the JSON plan format
func PlanFormat() string {
	return planFormatVersion
}

// GetGitCommit returns the git commit hash
func GetGitCommit() string {
	return GitCommit
}

// GetBuildDate returns the git commit date
func GetBuildDate() string {
	return BuildDate
}

// Platform returns the OS/architecture combination
func Platform() string {
	return runtime.GOOS + "/" + runtime.GOARCH
}
