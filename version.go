// Package linescorer provides version information for the line-scorer module.
package linescorer

// Version represents the current semantic version of the line-scorer module.
const Version = "0.12.0"

// VersionInfo describes the module release
type VersionInfo struct {
	// Version contains the semantic version string following semver format
	Version string

	// Name contains the canonical module name
	Name string
}

// GetVersion returns structured version information for the module.
func GetVersion() VersionInfo {
	return VersionInfo{
		Version: Version,
		Name:    "line-scorer",
	}
}
