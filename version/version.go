// Package version provides build version information embedding.
//
// Version and git commit are set at compile time via -ldflags:
//
//	go build -ldflags "-X github.com/dwasnwk/oktyv/version.Version=1.0.0"
package version

import "runtime/debug"

var (
	// These variables are set at build time using -ldflags.
	Version   = "dev"
	GitCommit = ""
)

// Info represents version information.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	GoVersion string `json:"go_version"`
}

// Get returns the build's version information.
func Get() Info {
	info := Info{Version: Version, GitCommit: GitCommit}
	if buildInfo, ok := debug.ReadBuildInfo(); ok {
		info.GoVersion = buildInfo.GoVersion
	}
	return info
}
