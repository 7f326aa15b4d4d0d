// Package logging provides file-based structured logging with rotation
// for knowmcp. Logs are written as JSON to ~/.knowmcp/logs/ so that the
// stdio MCP transport keeps stdout free for protocol frames.
package logging
