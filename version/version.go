// Package version holds build-time version information.
// Values are injected at build time via -ldflags; defaults cover `go run`.
package version

import "runtime"

var (
	// GitRelease is the release tag, e.g. "v0.3.1".
	GitRelease = "dev"

	// GitCommit is the short commit hash the binary was built from.
	GitCommit = "unknown"

	// GitCommitDate is the commit date in RFC 3339.
	GitCommitDate = "unknown"

	// GoInfo is the Go toolchain the binary was built with.
	GoInfo = runtime.Version()
)
