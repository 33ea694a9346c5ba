// Package version carries build metadata injected via -ldflags.
package version

// Set at build time:
//
//	go build -ldflags "-X github.com/inferedge/moss-go/internal/version.Version=v0.3.0"
var (
	Version = "dev"
	Commit  = "none"
)
