package utils

import "runtime/debug"

// Set with -ldflags "-X sensor-dashboard/internal/utils.BuildVersion=..."
var BuildVersion = ""

func GetVersion() string {
	if BuildVersion != "" {
		return BuildVersion
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "devel"
	}

	version := info.Main.Version
	if version == "" {
		version = "devel"
	}

	// Check if dirty
	for _, setting := range info.Settings {
		if setting.Key == "vcs.modified" && setting.Value == "true" {
			return version + "-dirty"
		}
	}

	return version
}
