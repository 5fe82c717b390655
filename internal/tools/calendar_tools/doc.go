// Package calendar_tools exposes the calendar engine as operations: event
// CRUD with conflict detection, batch removal and free-slot search.
//
// The same registration functions feed the agent registries and the MCP
// server. The owning user comes from the request context, falling back to a
// "user_id" argument.
package calendar_tools
