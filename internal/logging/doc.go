// Package logging provides structured logging utilities for calendaragent.
//
// All components log through log/slog. This package keeps attribute names
// consistent (operation, agent, intent, user_hash, ...) and makes sure raw
// user identifiers never reach the output.
//
// # Usage Patterns
//
//	logger := logging.WithAgent(slog.Default(), "scheduler")
//	logger.Info("operation finished",
//	    logging.Operation("add_event"),
//	    logging.Status("conflict"),
//	    logging.UserHash(userID))
//
// The CronLogger adapter lets the cleanup scheduler share the same handler.
package logging
