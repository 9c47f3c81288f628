// Package version provides centralized build information for the miner.
// All packages reference this single source of truth for version strings.
package version

// These variables can be overridden at build time using ldflags:
// go build -ldflags "-X github.com/tranmanhhung/sn111/internal/version.Version=1.2.0 -X github.com/tranmanhhung/sn111/internal/version.Commit=abc123"
var (
	// Version is the semantic version of the miner.
	Version = "1.0.0"

	// Commit is the git commit hash (set at build time).
	Commit = "unknown"

	// BuildDate is the build timestamp (set at build time).
	BuildDate = "unknown"
)

// Info returns a formatted version string for logs and the version command.
func Info() string {
	if Commit != "unknown" && len(Commit) > 7 {
		return Version + " (" + Commit[:7] + ")"
	}
	if Commit != "unknown" {
		return Version + " (" + Commit + ")"
	}
	return Version
}
