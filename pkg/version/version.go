// Package version holds the build version of cback.
package version

// Version is set at build time with -ldflags "-X github.com/cedar-backup/cback/pkg/version.Version=...".
var Version = "0.0.0-dev"
