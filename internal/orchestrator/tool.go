package orchestrator

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/calendaragent/internal/agent"
	"github.com/teemow/calendaragent/internal/server"
	"github.com/teemow/calendaragent/internal/tools/common"
)

// RegisterChatTools exposes the orchestrator as the assistant_chat and
// assistant_reset operations, so MCP clients can hold a conversation with
// the agents.
func RegisterChatTools(s agent.ToolAdder, sc *server.ServerContext, o *Orchestrator) error {
	chatTool := mcp.NewTool("assistant_chat",
		mcp.WithDescription("Send one message to the calendar assistant. The conversation, including a plan awaiting confirmation, is kept per user between calls."),
		mcp.WithString("message",
			mcp.Required(),
			mcp.Description("What the user says, e.g. 'plan three study sessions next week' or 'yes, confirm'"),
		),
		mcp.WithString("user_id",
			mcp.Description("Calendar owner (default: the authenticated user)"),
		),
	)
	s.AddTool(chatTool, common.InstrumentedToolHandler("assistant_chat", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args := request.GetArguments()
			message, err := common.RequiredString(args, "message")
			if err != nil {
				return common.Failure("%v", err), nil
			}

			resp, err := o.Submit(ctx, common.UserFromArgs(ctx, args), message)
			if err != nil {
				return common.Failure("%v", err), nil
			}
			body, err := json.Marshal(resp)
			if err != nil {
				return common.Failure("failed to encode response: %v", err), nil
			}
			if resp.Status == StatusError {
				return mcp.NewToolResultError(string(body)), nil
			}
			return mcp.NewToolResultText(string(body)), nil
		}))

	resetTool := mcp.NewTool("assistant_reset",
		mcp.WithDescription("Forget the conversation with the calendar assistant, including any plan awaiting confirmation"),
		mcp.WithString("user_id",
			mcp.Description("Calendar owner (default: the authenticated user)"),
		),
	)
	s.AddTool(resetTool, common.InstrumentedToolHandler("assistant_reset", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			existed := o.Reset(common.UserFromArgs(ctx, request.GetArguments()))
			return common.Success(common.Payload{"reset": existed}), nil
		}))
	return nil
}
