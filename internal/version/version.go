// Package version exposes build metadata injected with -ldflags and the
// semantic version plugins are checked against.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string    `json:"version"`
	GitCommit string    `json:"git_commit"`
	BuildTime time.Time `json:"build_time"`
	GoVersion string    `json:"go_version"`
	Platform  string    `json:"platform"`
}

// These variables are set at build time using -ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// fallbackVersion is what plugin constraints are matched against when the
// binary was not built with a release version.
const fallbackVersion = "0.0.0-dev"

// GetBuildInfo returns comprehensive build information
func GetBuildInfo() *BuildInfo {
	return &BuildInfo{
		Version:   GetVersion(),
		GitCommit: GetGitCommit(),
		BuildTime: parseISOTime(BuildTime),
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// GetVersion returns the application version
func GetVersion() string {
	if Version != "" && Version != "dev" {
		return Version
	}

	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			return info.Main.Version
		}
	}

	return "dev"
}

// GetGitCommit returns the git commit hash
func GetGitCommit() string {
	if GitCommit != "" && GitCommit != "unknown" {
		return GitCommit
	}

	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" {
				return setting.Value
			}
		}
	}

	return "unknown"
}

// Semver returns the running version as a semantic version. Development
// builds report 0.0.0-dev.
func Semver() *semver.Version {
	v, err := semver.NewVersion(strings.TrimPrefix(GetVersion(), "v"))
	if err != nil {
		return semver.MustParse(fallbackVersion)
	}
	return v
}

// Satisfies reports whether the running version matches constraint. An empty
// constraint always matches. Development builds match every constraint.
func Satisfies(constraint string) (bool, error) {
	if strings.TrimSpace(constraint) == "" {
		return true, nil
	}

	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return false, fmt.Errorf("invalid version constraint %q: %w", constraint, err)
	}

	if !IsRelease() {
		return true, nil
	}

	return c.Check(Semver()), nil
}

// GetShortVersion returns a short version string suitable for display
func GetShortVersion() string {
	version := GetVersion()
	commit := GetGitCommit()

	if commit != "unknown" && len(commit) >= 7 {
		if version != "dev" {
			return fmt.Sprintf("%s (%s)", version, commit[:7])
		}
		return fmt.Sprintf("dev-%s", commit[:7])
	}

	return version
}

// GetDetailedVersion returns a detailed version string with all build info
func GetDetailedVersion() string {
	info := GetBuildInfo()

	parts := []string{fmt.Sprintf("Version: %s", info.Version)}

	if info.GitCommit != "unknown" {
		parts = append(parts, fmt.Sprintf("Commit: %s", info.GitCommit))
	}

	if !info.BuildTime.IsZero() {
		parts = append(parts, fmt.Sprintf("Built: %s", info.BuildTime.Format(time.RFC3339)))
	}

	parts = append(parts,
		fmt.Sprintf("Go: %s", info.GoVersion),
		fmt.Sprintf("Platform: %s", info.Platform),
	)

	return strings.Join(parts, "\n")
}

// IsRelease returns true if this is a release build (not dev)
func IsRelease() bool {
	version := GetVersion()
	return version != "dev" && !strings.HasPrefix(version, "dev-")
}

func parseISOTime(timeStr string) time.Time {
	if timeStr == "" || timeStr == "unknown" {
		return time.Time{}
	}

	for _, format := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(format, timeStr); err == nil {
			return t
		}
	}

	return time.Time{}
}
