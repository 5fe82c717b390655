package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// OperationInvocation captures one operation call for the audit log.
//
// UserID is PII. LogAttrs uses UserHash only; LogAuditAttrs includes the
// raw id and should go to an access-controlled stream.
type OperationInvocation struct {
	Operation    string
	Agent        string
	UserID       string
	UserHash     string
	Conversation string

	StartTime time.Time
	Duration  time.Duration
	// Status is the tagged result status (success, conflict, warning, error).
	Status string
	Error  string

	TraceID string
	SpanID  string
}

// NewOperationInvocation creates an invocation with timing started.
func NewOperationInvocation(agent, operation string) *OperationInvocation {
	return &OperationInvocation{
		Agent:     agent,
		Operation: operation,
		StartTime: time.Now(),
	}
}

// WithUser sets the caller identity.
func (oi *OperationInvocation) WithUser(userID, userHash string) *OperationInvocation {
	oi.UserID = userID
	oi.UserHash = userHash
	return oi
}

// WithConversation sets the conversation id.
func (oi *OperationInvocation) WithConversation(id string) *OperationInvocation {
	oi.Conversation = id
	return oi
}

// WithSpanContext copies trace ids from the span in ctx.
func (oi *OperationInvocation) WithSpanContext(ctx context.Context) *OperationInvocation {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		oi.TraceID = span.SpanContext().TraceID().String()
		oi.SpanID = span.SpanContext().SpanID().String()
	}
	return oi
}

// Complete stamps the duration and final status.
func (oi *OperationInvocation) Complete(status string, err error) *OperationInvocation {
	oi.Duration = time.Since(oi.StartTime)
	oi.Status = status
	if err != nil {
		oi.Error = err.Error()
	}
	return oi
}

// Failed reports whether the invocation ended in error.
func (oi *OperationInvocation) Failed() bool {
	return oi.Status == StatusError || oi.Error != ""
}

// LogAttrs returns attributes safe for general logs.
func (oi *OperationInvocation) LogAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("operation", oi.Operation),
		slog.String("agent", oi.Agent),
		slog.String("status", oi.Status),
		slog.Duration("duration", oi.Duration),
	}
	if oi.UserHash != "" {
		attrs = append(attrs, slog.String("user_hash", oi.UserHash))
	}
	if oi.Conversation != "" {
		attrs = append(attrs, slog.String("conversation", oi.Conversation))
	}
	if oi.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", oi.TraceID))
	}
	if oi.Error != "" {
		attrs = append(attrs, slog.String("error", oi.Error))
	}
	return attrs
}

// LogAuditAttrs returns LogAttrs plus the raw user id and span id.
func (oi *OperationInvocation) LogAuditAttrs() []slog.Attr {
	attrs := oi.LogAttrs()
	attrs = append(attrs, slog.String("user", oi.UserID))
	if oi.SpanID != "" {
		attrs = append(attrs, slog.String("span_id", oi.SpanID))
	}
	return attrs
}

// AuditLogger writes operation invocations to a slog.Logger.
type AuditLogger struct {
	logger     *slog.Logger
	includePII bool
	enabled    bool
}

// NewAuditLogger creates an enabled AuditLogger that omits PII.
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return NewAuditLoggerWithConfig(logger, AuditLoggingConfig{Enabled: true})
}

// NewAuditLoggerWithConfig creates an AuditLogger from config.
func NewAuditLoggerWithConfig(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger,
		includePII: config.IncludePII,
		enabled:    config.Enabled,
	}
}

// LogOperation logs oi at info, or warn when it failed.
func (al *AuditLogger) LogOperation(oi *OperationInvocation) {
	if al == nil || !al.enabled {
		return
	}

	var attrs []slog.Attr
	if al.includePII {
		attrs = oi.LogAuditAttrs()
	} else {
		attrs = oi.LogAttrs()
	}

	level := slog.LevelInfo
	msg := "operation_executed"
	if oi.Failed() {
		level = slog.LevelWarn
		msg = "operation_failed"
	}
	al.logger.LogAttrs(context.Background(), level, msg, attrs...)
}
