// Package version exposes build metadata stamped at link time.
package version

// Set via -ldflags "-X github.com/bluetaphq/bluetap/internal/version.Version=..."
var (
	Version = "dev"
	Commit  = ""
)

// GetInfo renders the version with the commit hash when one was stamped.
func GetInfo() string {
	if Commit != "" {
		return Version + " (" + Commit + ")"
	}
	return Version
}
