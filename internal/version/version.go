package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

const (
	// unknownCommit is the default Commit value.
	unknownCommit = "none"
	// unknownBuildTime is the default BuildTime value.
	unknownBuildTime = "unknown"
)

var (
	// Version is the semantic version of the build. It can be overridden via ldflags.
	Version = "0.1.0"
	// Commit is the short git SHA embedded at build time.
	Commit = unknownCommit
	// BuildTime is the UTC build timestamp embedded at build time.
	BuildTime = unknownBuildTime
)

// Info is the resolved build metadata.
type Info struct {
	// Version is the semantic version.
	Version string
	// Commit is the short git SHA, with a "-dirty" suffix for modified trees.
	Commit string
	// BuildTime is the build or commit timestamp.
	BuildTime string
	// GoVersion is the toolchain the binary was built with.
	GoVersion string
}

// Get resolves the build metadata.
func Get() Info {
	info := Info{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}

	if build, ok := debug.ReadBuildInfo(); ok {
		fillFromVCS(&info, build.Settings)
	}

	return info
}

// fillFromVCS replaces unset fields with the toolchain's VCS stamp.
func fillFromVCS(info *Info, settings []debug.BuildSetting) {
	var (
		revision, modified string
		commitTime         string
	)

	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.time":
			commitTime = s.Value
		case "vcs.modified":
			modified = s.Value
		}
	}

	if info.Commit == unknownCommit && revision != "" {
		info.Commit = revision[:min(len(revision), 7)]
		if modified == "true" {
			info.Commit += "-dirty"
		}
	}

	if info.BuildTime == unknownBuildTime && commitTime != "" {
		info.BuildTime = commitTime
	}
}

// Short returns only the semantic version string.
func Short() string {
	return Version
}

// Full returns a human-readable version string with commit, build time and toolchain.
func Full() string {
	info := Get()

	return fmt.Sprintf("version: %s, commit: %s, built at: %s, go: %s",
		info.Version, info.Commit, info.BuildTime, info.GoVersion)
}
