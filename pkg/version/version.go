// Package version provides build information for edm.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Version is set at build time:
//
//	-ldflags "-X github.com/Aman-CERP/edm/pkg/version.Version=v1.2.0"
var Version = "dev"

// Commit and Date are set through ldflags the same way.
var (
	Commit = "unknown"
	Date   = "unknown"

	// GoVersion is the toolchain the binary was built with.
	GoVersion = runtime.Version()
)

// BuildInfo is version information for JSON output.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// String returns the one-line version banner.
func String() string {
	return fmt.Sprintf("edm %s (commit: %s, built: %s, go: %s)", Version, Commit, Date, GoVersion)
}

// Short returns the bare version.
func Short() string {
	return Version
}

// GetInfo returns structured build information. When ldflags were not
// applied, the commit falls back to the VCS revision embedded by the Go
// toolchain.
func GetInfo() BuildInfo {
	commit := Commit
	if commit == "unknown" {
		if rev := vcsRevision(); rev != "" {
			commit = rev
		}
	}
	return BuildInfo{
		Version:   Version,
		Commit:    commit,
		Date:      Date,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

func vcsRevision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			if len(s.Value) > 12 {
				return s.Value[:12]
			}
			return s.Value
		}
	}
	return ""
}
