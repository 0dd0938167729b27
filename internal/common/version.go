package common

// Version is set at build time via -ldflags "-X .../internal/common.version=...".
var version = "0.9.0"

// GetVersion returns the application version string.
func GetVersion() string {
	return version
}
