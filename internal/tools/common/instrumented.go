package common

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/codes"

	"github.com/teemow/calendaragent/internal/agent"
	"github.com/teemow/calendaragent/internal/instrumentation"
	"github.com/teemow/calendaragent/internal/logging"
	"github.com/teemow/calendaragent/internal/server"
)

// InstrumentedToolHandler wraps a handler with a span, operation metrics
// and an audit record. The agent label comes from the context.
//
// Usage:
//
//	r.AddTool(tool, common.InstrumentedToolHandler("add_event", sc, handler))
func InstrumentedToolHandler(operation string, sc *server.ServerContext, handler mcpserver.ToolHandlerFunc) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		agentName := agent.NameFromContext(ctx)
		userID := UserFromArgs(ctx, request.GetArguments())
		userHash := logging.AnonymizeUser(userID)

		ctx, span := instrumentation.StartOperationSpan(ctx, operation,
			instrumentation.NewSpanAttributeBuilder().
				WithAgent(agentName).
				WithUserHash(userHash).
				Build()...)
		defer span.End()

		invocation := instrumentation.NewOperationInvocation(agentName, operation).
			WithUser(userID, userHash).
			WithSpanContext(ctx)

		result, err := handler(ctx, request)

		status := ResultStatus(result, err)
		invocation.Complete(status, err)
		switch {
		case err != nil:
			instrumentation.SetSpanError(span, err)
		case status == agent.StatusError:
			span.SetStatus(codes.Error, "operation returned an error result")
		default:
			instrumentation.SetSpanSuccess(span)
		}

		sc.Metrics().RecordOperation(ctx, agentName, operation, status, userHash, invocation.Duration)
		sc.AuditLogger().LogOperation(invocation)

		return result, err
	}
}

// ResultStatus reads the tagged status of a handler outcome.
func ResultStatus(result *mcp.CallToolResult, err error) string {
	if err != nil || result == nil {
		return agent.StatusError
	}
	for _, c := range result.Content {
		var text string
		switch tc := c.(type) {
		case mcp.TextContent:
			text = tc.Text
		case *mcp.TextContent:
			text = tc.Text
		default:
			continue
		}
		var probe struct {
			Status string `json:"status"`
		}
		if json.Unmarshal([]byte(text), &probe) == nil && probe.Status != "" {
			return probe.Status
		}
	}
	if result.IsError {
		return agent.StatusError
	}
	return agent.StatusSuccess
}
