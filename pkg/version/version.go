// Package version holds the build version string. Release builds override
// it with -ldflags "-X tutorgo/pkg/version.Version=...".
package version

var Version = "dev"
