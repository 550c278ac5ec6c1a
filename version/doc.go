// Package version exposes build information injected at link time:
//
//	go build -ldflags "-X github.com/kbukum/whisper-server/version.Version=1.2.0 \
//	  -X github.com/kbukum/whisper-server/version.GitCommit=$(git rev-parse --short HEAD)"
//
// Missing values fall back to the VCS stamps recorded by the Go toolchain.
package version
