// Package timeutil holds pure time helpers: relative phrase parsing
// ("明天下午3点", "tomorrow 3pm"), period ranges, working-hour windows and
// duration formatting. Nothing here reads the wall clock; callers pass the
// reference instant.
package timeutil
