// Package buildinfo carries version details stamped in at link time:
//
//	go build -ldflags "-X github.com/ledgerline/ledgerline/internal/buildinfo.Version=v0.3.0"
package buildinfo

var (
	// Version is the release tag.
	Version = "dev"
	// Commit is the source revision.
	Commit = "none"
	// Date is the build time.
	Date = "unknown"
)
