// Package shellrun runs shell commands with concurrent output capture,
// timeouts and cancellation, and exposes them over a CLI and MCP.
package shellrun

// Version is the release version, overridden at build time via -ldflags.
var Version = "dev"
