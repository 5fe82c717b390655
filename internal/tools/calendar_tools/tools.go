package calendar_tools

import (
	"context"
	"fmt"

	"github.com/teemow/calendaragent/internal/agent"
	"github.com/teemow/calendaragent/internal/calendar"
	"github.com/teemow/calendaragent/internal/server"
	"github.com/teemow/calendaragent/internal/tools/common"
)

// Mutation kinds reported to metrics.
const (
	mutationAdd    = "add"
	mutationUpdate = "update"
	mutationRemove = "remove"
)

// RegisterCalendarTools registers all calendar operations.
func RegisterCalendarTools(s agent.ToolAdder, sc *server.ServerContext) error {
	if err := RegisterEventTools(s, sc); err != nil {
		return fmt.Errorf("failed to register event tools: %w", err)
	}
	if err := RegisterSchedulingTools(s, sc); err != nil {
		return fmt.Errorf("failed to register scheduling tools: %w", err)
	}
	return nil
}

// parseRange reads optional start/end arguments relative to the server clock.
func parseRange(args map[string]any, sc *server.ServerContext) (calendar.TimeRange, error) {
	var r calendar.TimeRange
	now := sc.Now()

	start, ok, err := common.Time(args, "start", now)
	if err != nil {
		return r, err
	}
	if ok {
		r.Start = start
	}
	end, ok, err := common.Time(args, "end", now)
	if err != nil {
		return r, err
	}
	if ok {
		r.End = end
	}
	if !r.Start.IsZero() && !r.End.IsZero() && !r.End.After(r.Start) {
		return r, fmt.Errorf("end must be after start")
	}
	return r, nil
}

func recordMutation(ctx context.Context, sc *server.ServerContext, kind string, res *calendar.Result, err error) {
	status := "error"
	switch {
	case err != nil:
	case res.Status == calendar.ResultConflict:
		status = string(calendar.ResultConflict)
	case res.Forced:
		status = agent.StatusWarning
	default:
		status = agent.StatusSuccess
	}
	sc.Metrics().RecordCalendarMutation(ctx, kind, status)
}
