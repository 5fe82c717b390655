package logging

import (
	"log/slog"
)

// CronLogger adapts an slog.Logger to the logger interface expected by
// robfig/cron (Info and Error with alternating key-value pairs).
type CronLogger struct {
	logger *slog.Logger
}

// NewCronLogger creates a CronLogger. If logger is nil, slog.Default() is used.
func NewCronLogger(logger *slog.Logger) *CronLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &CronLogger{logger: logger}
}

// Info logs routine scheduler messages at debug level; cron emits one per tick.
func (c *CronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.logger.Debug(msg, keysAndValues...)
}

// Error logs a scheduler failure.
func (c *CronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	args := append([]interface{}{Err(err)}, keysAndValues...)
	c.logger.Error(msg, args...)
}

// Logger returns the underlying slog.Logger.
func (c *CronLogger) Logger() *slog.Logger {
	return c.logger
}
