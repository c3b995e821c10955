// Package misc provides program identity helpers shared by logging and reporting.
package misc

import (
	"runtime/debug"
	"sync"
)

const appName = "mfx"

// GetAppName returns short program name used for logs, reports and temporary files.
func GetAppName() string {
	return appName
}

var buildInfo = sync.OnceValue(func() (info struct{ version, hash string }) {
	info.version = "unknown"
	info.hash = "unknown"

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	if len(bi.Main.Version) > 0 && bi.Main.Version != "(devel)" {
		info.version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 12 {
			info.hash = s.Value[:12]
		}
	}
	return
})

// GetVersion returns module version recorded during the build.
func GetVersion() string {
	return buildInfo().version
}

// GetGitHash returns short revision hash recorded during the build.
func GetGitHash() string {
	return buildInfo().hash
}
