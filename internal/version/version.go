// Package version pins the release string shared by the CLI and the
// MCP implementation header.
package version

// Version is the current taintgate release.
const Version = "0.1.0"
