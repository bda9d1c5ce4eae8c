// Package version holds build-time identity: version, commit, and build
// date, all overridable via -ldflags at build time. All three are logged
// at startup; the admin dashboard and /health show the version only.
package version

var (
	// Version is overridden at build time via -ldflags, e.g.:
	//   -X github.com/krultra/smtp-agent/internal/version.Version=1.2.3
	Version = "dev"
	Commit  = "unknown"
	// BuildDate is an RFC3339 timestamp string, set at build time.
	BuildDate = "unknown"
	// Organisation names the owning organisation; no template renders it.
	Organisation = "KrUltra"
)
