// Package version carries the build identity of the sotboard binaries.
package version

import "fmt"

// Version, GitCommit and BuildDate are set at build time:
//
//	go build -ldflags "-X github.com/newtron-network/sotboard/pkg/version.Version=v0.3.0 \
//	  -X github.com/newtron-network/sotboard/pkg/version.GitCommit=abc1234 \
//	  -X github.com/newtron-network/sotboard/pkg/version.BuildDate=2026-10-01T00:00:00Z"
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// IsDev reports whether the binary was built without version ldflags.
func IsDev() bool {
	return Version == "dev"
}

// Info returns the version line printed by the version command.
func Info() string {
	if IsDev() {
		return "dev build"
	}
	return fmt.Sprintf("%s (%s) built %s", Version, GitCommit, BuildDate)
}

// UserAgent identifies sotboard in HTTP requests to the source of truth.
func UserAgent() string {
	return "sotboard/" + Version
}
