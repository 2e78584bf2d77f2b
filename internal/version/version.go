// Package version holds build metadata injected at link time via
// -ldflags "-X github.com/quickhand-app/quickhand/internal/version.Version=...".
package version

var (
	Version = "dev"
	Commit  = "unknown"
)
