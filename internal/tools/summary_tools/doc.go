// Package summary_tools provides the analysis operations of the summary
// agent: aggregate statistics, event details, time usage by activity and
// the final recorded report.
package summary_tools
