package calendar_tools

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/calendaragent/internal/agent"
	"github.com/teemow/calendaragent/internal/calendar"
	"github.com/teemow/calendaragent/internal/server"
	"github.com/teemow/calendaragent/internal/timeutil"
	"github.com/teemow/calendaragent/internal/tools/common"
)

// RegisterSchedulingTools registers availability operations.
func RegisterSchedulingTools(s agent.ToolAdder, sc *server.ServerContext) error {
	freeSlotsTool := mcp.NewTool("get_free_slots",
		mcp.WithDescription("Find free time windows inside working hours, skipping confirmed events"),
		mcp.WithString("start",
			mcp.Required(),
			mcp.Description("Search range start: "+timeHint),
		),
		mcp.WithString("end",
			mcp.Required(),
			mcp.Description("Search range end: "+timeHint),
		),
		mcp.WithNumber("min_duration",
			mcp.Description("Minimum slot length in minutes (default: 30)"),
		),
		mcp.WithNumber("work_start",
			mcp.Description("Working day start hour (default: server setting, usually 9)"),
		),
		mcp.WithNumber("work_end",
			mcp.Description("Working day end hour (default: server setting, usually 18)"),
		),
	)
	s.AddTool(freeSlotsTool, common.InstrumentedToolHandler("get_free_slots", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleGetFreeSlots(ctx, request, sc)
		}))

	return nil
}

func handleGetFreeSlots(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	userID := common.UserFromArgs(ctx, args)
	now := sc.Now()

	start, err := common.RequiredTime(args, "start", now)
	if err != nil {
		return common.Failure("%v", err), nil
	}
	end, err := common.RequiredTime(args, "end", now)
	if err != nil {
		return common.Failure("%v", err), nil
	}

	workStart, workEnd := sc.WorkHours()
	query := calendar.FreeSlotQuery{
		Range:         calendar.TimeRange{Start: start, End: end},
		MinDuration:   time.Duration(common.Int(args, "min_duration", 30)) * time.Minute,
		WorkStartHour: common.Int(args, "work_start", workStart),
		WorkEndHour:   common.Int(args, "work_end", workEnd),
	}

	slots, err := sc.Engine().FreeSlots(ctx, userID, query)
	if err != nil {
		return common.FromError(err), nil
	}
	if slots == nil {
		slots = []calendar.FreeSlot{}
	}

	total := calendar.TotalMinutes(slots)
	return common.Success(common.Payload{
		"free_slots":          slots,
		"total_duration":      total,
		"total_duration_text": timeutil.FormatDuration(total),
		"total_slots":         len(slots),
		"query_range": map[string]string{
			"start": start.Format(time.RFC3339),
			"end":   end.Format(time.RFC3339),
		},
	}), nil
}
