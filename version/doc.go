// Package version exposes the build identity of the graphflow binary.
//
// Version, commit, branch and build time are stamped at link time:
//
//	go build -ldflags "-X github.com/kbukum/graphflow/version.Version=1.2.0 \
//	  -X github.com/kbukum/graphflow/version.GitCommit=$(git rev-parse --short HEAD)"
//
// Values that are not stamped fall back to the VCS settings recorded by the
// Go toolchain, so a plain `go build` inside a checkout still reports a commit.
package version
