// Package resources provides MCP resources for exposing the user's calendar.
// Resources are read-only data sources that MCP clients can fetch: the
// calendar as iCalendar, this week's summary and the stored preferences.
//
// Every resource is scoped to the user resolved from the request context, so
// each HTTP client sees only its own data.
package resources
