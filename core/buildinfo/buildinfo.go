// Package buildinfo reports the version of the running binary. Release
// builds set the variables with -ldflags, for example
//
//	-X github.com/m3rciful/appealbot/core/buildinfo.Version=v1.4.0
//
// Otherwise the VCS stamp embedded by the Go toolchain is used.
package buildinfo

import "runtime/debug"

var (
	// Version is the release tag, "dev" for local builds.
	Version = "dev"
	// Commit is the source revision.
	Commit = ""
	// Date is the build or commit time in RFC 3339.
	Date = ""
)

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	fillFrom(info)
}

func fillFrom(info *debug.BuildInfo) {
	if Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}
	dirty := false
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if Commit == "" {
				Commit = s.Value[:min(len(s.Value), 12)]
			}
		case "vcs.time":
			if Date == "" {
				Date = s.Value
			}
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if Commit == "" {
		Commit = "local"
	} else if dirty {
		Commit += "-dirty"
	}
}
