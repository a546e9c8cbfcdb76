// Package version holds the build version.
package version

// Version is set at build time with -ldflags "-X schemeaccess/pkg/version.Version=...".
var Version = "v0.3.0"
