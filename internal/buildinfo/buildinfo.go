// Package buildinfo holds build-time metadata injected via -ldflags:
//
//	-X github.com/kewalaka/muffinbot/internal/buildinfo.Version=v1.2.0
//	-X github.com/kewalaka/muffinbot/internal/buildinfo.Commit=$(git rev-parse --short HEAD)
//	-X github.com/kewalaka/muffinbot/internal/buildinfo.BuildDate=$(date -u +%Y-%m-%dT%H:%M:%SZ)
package buildinfo

var (
	Version   = "" // Semantic version or tag
	Commit    = "" // Git commit SHA
	BuildDate = "" // RFC3339 build timestamp
)

// Release is the release name reported to error tracking, "dev" for
// unstamped builds.
func Release() string {
	if Version == "" {
		return "dev"
	}
	if Commit == "" {
		return Version
	}
	return Version + "+" + Commit
}
