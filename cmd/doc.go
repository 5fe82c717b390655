// Package cmd implements the command-line interface for calendaragent.
//
// This package provides the following commands:
//   - chat: Talk to the agents in an interactive session
//   - serve: Start the MCP server exposing the calendar and preference operations
//   - cleanup: Purge cancelled events older than the retention window
//   - export / import: Move events in and out as iCalendar (.ics)
//   - generate-docs: Generate markdown documentation for every agent's operations
//   - version: Display version information
//
// The chat command is the default command when no subcommand is specified.
package cmd
