// Package settings provides build metadata, runtime configuration, and
// context helpers used across the facetview CLI and library packages.
package settings

// CliBinaryName is the canonical binary name for this tool.
const CliBinaryName = "facetview"

// VersionInformation is populated at build time via ldflags and holds the
// commit hash, semantic version, and build timestamp of the running binary.
var VersionInformation = VersionInfo{
	Commit:       "unknown",
	BuildVersion: "v0.0.0-nightly",
	BuildTime:    "unknown",
}

// VersionInfo holds metadata about the build, including the commit hash,
// build version, and build timestamp.
type VersionInfo struct {
	Commit       string
	BuildVersion string
	BuildTime    string
}

// Run holds configuration settings for a single execution of the application:
// log level and destination, color handling, and the config file in effect.
type Run struct {
	MinLogLevel int8
	LogFile     string
	ConfigFile  string
	NoColor     bool
	IsQuiet     bool
}

// NewCliParams returns the default Run settings for a CLI invocation.
func NewCliParams() *Run {
	return &Run{
		MinLogLevel: 0,
		NoColor:     false,
		IsQuiet:     false,
	}
}
