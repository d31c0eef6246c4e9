package context

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// VersionInfo contains the application version and build metadata.
type VersionInfo struct {
	Semantic  string
	Commit    string
	GoVersion string
}

// String returns the full version string.
func (v *VersionInfo) String() string {
	s := v.Semantic
	if v.Commit != "" {
		s = fmt.Sprintf("%s (%s)", s, v.Commit)
	}
	return fmt.Sprintf("%s %s", s, v.GoVersion)
}

// GetVersion extracts the version information from the build metadata.
func GetVersion() (*VersionInfo, error) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return nil, fmt.Errorf("failed reading build info")
	}

	v := &VersionInfo{
		Semantic:  info.Main.Version,
		GoVersion: runtime.Version(),
	}
	if v.Semantic == "" || v.Semantic == "(devel)" {
		v.Semantic = "dev"
	}

	for _, kv := range info.Settings {
		if kv.Key == "vcs.revision" {
			commit := kv.Value
			if len(commit) > 8 {
				commit = commit[:8]
			}
			v.Commit = commit
		}
	}

	return v, nil
}
