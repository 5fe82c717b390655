// Package batch provides helpers for operations that act on many items:
//   - Parsing parameters that accept a single value, an array or a JSON array
//   - Running a function per item and collecting tagged per-item results
//   - Committing the tasks of a confirmed plan as calendar events
package batch
