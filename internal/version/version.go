package version

// Version is the current version of the halcyon engine.
// This value is set at build time using ldflags:
// -ldflags "-X github.com/halcyonlab/halcyon/internal/version.Version=1.2.3"
// The default value "main" indicates a development build.
var Version = "v1.0.0"

// GetVersion returns the current engine version.
func GetVersion() string {
	return Version
}
