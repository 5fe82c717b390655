// Package server holds the shared runtime around the MCP server: the
// ServerContext passed to every operation handler, per-user session
// resolution for the HTTP transport, health endpoints and the dedicated
// Prometheus metrics server.
//
// The calling user travels in the request context (WithUserID). Over HTTP
// it comes from the X-User-ID header or a hash of the bearer token; over
// stdio the operation's user_id argument or "default" is used.
package server
