// Package version carries build metadata stamped in through ldflags:
//
//	go build -ldflags "-X github.com/mender-qa/mgmtctl/pkg/version.Version=v1.0.0 \
//	  -X github.com/mender-qa/mgmtctl/pkg/version.GitCommit=abc1234 \
//	  -X github.com/mender-qa/mgmtctl/pkg/version.BuildDate=2026-01-01T00:00:00Z" ./cmd/mgmtctl
package version

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info returns a formatted version string for display.
func Info() string {
	return Version + " (" + GitCommit + ") built " + BuildDate
}

// UserAgent is the User-Agent header sent on every API call.
func UserAgent() string {
	return "mgmtctl/" + Version
}
