// Package version holds the manager's own version, stamped at build time.
package version

// Version is overridden via -ldflags at release builds.
var Version = "0.1.0-dev"
