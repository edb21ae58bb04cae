// Package version exposes build version information set via -ldflags,
// falling back to module build info when unset.
package version

import (
	"fmt"
	"runtime/debug"
)

var (
	// Set at build time with -ldflags "-X .../version.Version=v1.2.3".
	Version   = "dev"
	GitCommit = ""
)

// Info is the version detail reported by the binary.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	GoVersion string `json:"go_version"`
}

// Get assembles version info from ldflags and embedded build metadata.
func Get() Info {
	info := Info{Version: Version, GitCommit: GitCommit}

	if bi, ok := debug.ReadBuildInfo(); ok {
		info.GoVersion = bi.GoVersion
		if info.GitCommit == "" {
			for _, s := range bi.Settings {
				if s.Key == "vcs.revision" && len(s.Value) >= 7 {
					info.GitCommit = s.Value[:7]
				}
			}
		}
	}
	return info
}

// Short returns "version" or "version-commit" when a commit is known.
func Short() string {
	info := Get()
	if info.GitCommit != "" {
		return fmt.Sprintf("%s-%s", info.Version, info.GitCommit)
	}
	return info.Version
}
