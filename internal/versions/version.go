// Package versions reports which loresync build is running and compares
// the versions recorded in persisted sync state.
package versions

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

const (
	unknownStr     = "unknown"
	devVersion     = "dev"
	releaseBuild   = "release"
	shortCommitLen = 8
)

// Set with -ldflags "-X github.com/stacklok/loresync/internal/versions.Version=..."
var (
	Version   = devVersion
	Commit    = unknownStr
	BuildDate = unknownStr
	// BuildType is "release" only in official release builds.
	BuildType = "development"
)

// VersionInfo describes the running binary.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	BuildType string `json:"build_type"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// IsRelease reports whether this is an official release build.
func IsRelease() bool {
	return BuildType == releaseBuild
}

// GetVersionInfo returns the linked build metadata, filled in from the
// module's VCS stamp for development builds.
func GetVersionInfo() VersionInfo {
	return buildVersionInfo(Version, Commit, BuildDate)
}

func buildVersionInfo(version, commit, buildDate string) VersionInfo {
	if strings.HasPrefix(version, devVersion) {
		rev, stamp := vcsStamp()
		if commit == unknownStr && rev != "" {
			commit = rev
		}
		if buildDate == unknownStr && stamp != "" {
			buildDate = stamp
		}
	}

	if t, err := time.Parse(time.RFC3339, buildDate); err == nil {
		buildDate = t.UTC().Format("2006-01-02 15:04:05 MST")
	}

	if version == devVersion {
		version = "build-" + shorten(commit)
	}

	return VersionInfo{
		Version:   version,
		Commit:    commit,
		BuildDate: buildDate,
		BuildType: BuildType,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

func vcsStamp() (revision, timestamp string) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "", ""
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.time":
			timestamp = s.Value
		}
	}
	return revision, timestamp
}

func shorten(commit string) string {
	if len(commit) > shortCommitLen {
		return commit[:shortCommitLen]
	}
	return commit
}
