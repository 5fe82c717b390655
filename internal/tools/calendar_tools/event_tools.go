package calendar_tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/calendaragent/internal/agent"
	"github.com/teemow/calendaragent/internal/calendar"
	"github.com/teemow/calendaragent/internal/server"
	"github.com/teemow/calendaragent/internal/tools/batch"
	"github.com/teemow/calendaragent/internal/tools/common"
)

const timeHint = "RFC3339 (2025-01-15T14:00:00Z), a date, or a phrase like 'tomorrow 14:00' / '明天下午3点'"

// RegisterEventTools registers event CRUD operations.
func RegisterEventTools(s agent.ToolAdder, sc *server.ServerContext) error {
	addEventTool := mcp.NewTool("add_event",
		mcp.WithDescription("Create a calendar event. Confirmed events are checked for overlaps; a conflict is returned unless force=true."),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Event title"),
		),
		mcp.WithString("start",
			mcp.Required(),
			mcp.Description("Start time: "+timeHint),
		),
		mcp.WithString("end",
			mcp.Description("End time: "+timeHint+". Required unless duration_minutes is given."),
		),
		mcp.WithNumber("duration_minutes",
			mcp.Description("Length in minutes, used when end is omitted"),
		),
		mcp.WithString("description",
			mcp.Description("Event description"),
		),
		mcp.WithString("location",
			mcp.Description("Event location"),
		),
		mcp.WithString("tags",
			mcp.Description("Comma-separated tags (e.g., 'work,meeting')"),
		),
		mcp.WithString("status",
			mcp.Description("confirmed (default), tentative or cancelled"),
		),
		mcp.WithString("source",
			mcp.Description("Who created the event (default: 'agent')"),
		),
		mcp.WithString("recurrence",
			mcp.Description("RFC 5545 recurrence rule (e.g., 'FREQ=WEEKLY;BYDAY=MO;COUNT=4')"),
		),
		mcp.WithBoolean("force",
			mcp.Description("Save even when the event overlaps confirmed events"),
		),
	)
	s.AddTool(addEventTool, common.InstrumentedToolHandler("add_event", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleAddEvent(ctx, request, sc)
		}))

	updateEventTool := mcp.NewTool("update_event",
		mcp.WithDescription("Update fields of an existing event. Only provided fields change; time changes are conflict-checked."),
		mcp.WithString("event_id",
			mcp.Required(),
			mcp.Description("ID of the event to update"),
		),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("start", mcp.Description("New start time: "+timeHint)),
		mcp.WithString("end", mcp.Description("New end time: "+timeHint)),
		mcp.WithString("description", mcp.Description("New description")),
		mcp.WithString("location", mcp.Description("New location")),
		mcp.WithString("tags", mcp.Description("Comma-separated tags replacing the current set")),
		mcp.WithString("status", mcp.Description("confirmed, tentative or cancelled")),
		mcp.WithBoolean("force",
			mcp.Description("Save even when the new time overlaps confirmed events"),
		),
	)
	s.AddTool(updateEventTool, common.InstrumentedToolHandler("update_event", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleUpdateEvent(ctx, request, sc)
		}))

	removeEventTool := mcp.NewTool("remove_event",
		mcp.WithDescription("Delete a calendar event"),
		mcp.WithString("event_id",
			mcp.Required(),
			mcp.Description("ID of the event to delete"),
		),
	)
	s.AddTool(removeEventTool, common.InstrumentedToolHandler("remove_event", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleRemoveEvent(ctx, request, sc)
		}))

	removeEventsTool := mcp.NewTool("remove_events",
		mcp.WithDescription("Delete several calendar events at once"),
		mcp.WithString("event_ids",
			mcp.Required(),
			mcp.Description("Comma-separated event IDs"),
		),
	)
	s.AddTool(removeEventsTool, common.InstrumentedToolHandler("remove_events", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleRemoveEvents(ctx, request, sc)
		}))

	getEventTool := mcp.NewTool("get_event",
		mcp.WithDescription("Get one calendar event by ID"),
		mcp.WithString("event_id",
			mcp.Required(),
			mcp.Description("ID of the event"),
		),
	)
	s.AddTool(getEventTool, common.InstrumentedToolHandler("get_event", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleGetEvent(ctx, request, sc)
		}))

	listEventsTool := mcp.NewTool("list_events",
		mcp.WithDescription("List events contained in a time range, ordered by start"),
		mcp.WithString("start", mcp.Description("Range start: "+timeHint)),
		mcp.WithString("end", mcp.Description("Range end: "+timeHint)),
		mcp.WithString("tags", mcp.Description("Comma-separated tags; events must carry all of them")),
		mcp.WithString("status", mcp.Description("Filter by status: confirmed, tentative or cancelled")),
	)
	s.AddTool(listEventsTool, common.InstrumentedToolHandler("list_events", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListEvents(ctx, request, sc)
		}))

	return nil
}

func handleAddEvent(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	userID := common.UserFromArgs(ctx, args)
	now := sc.Now()

	title, err := common.RequiredString(args, "title")
	if err != nil {
		return common.Failure("%v", err), nil
	}
	start, err := common.RequiredTime(args, "start", now)
	if err != nil {
		return common.Failure("%v", err), nil
	}
	end, hasEnd, err := common.Time(args, "end", start)
	if err != nil {
		return common.Failure("%v", err), nil
	}
	if !hasEnd {
		minutes := common.Int(args, "duration_minutes", 0)
		if minutes <= 0 {
			return common.Failure("end or duration_minutes is required"), nil
		}
		end = start.Add(time.Duration(minutes) * time.Minute)
	}

	status, err := parseStatus(args, calendar.StatusConfirmed)
	if err != nil {
		return common.Failure("%v", err), nil
	}

	source := common.String(args, "source")
	if source == "" {
		source = "agent"
	}

	input := calendar.EventInput{
		Title:       title,
		Description: common.String(args, "description"),
		Location:    common.String(args, "location"),
		Start:       start,
		End:         end,
		Tags:        common.StringSlice(args, "tags"),
		Status:      status,
		Source:      source,
		Recurrence:  common.String(args, "recurrence"),
	}

	res, err := sc.Engine().Add(ctx, userID, input, common.Bool(args, "force", false))
	recordMutation(ctx, sc, mutationAdd, res, err)
	if err != nil {
		return common.FromError(err), nil
	}
	return common.MutationResult(res), nil
}

func handleUpdateEvent(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	userID := common.UserFromArgs(ctx, args)
	now := sc.Now()

	eventID, err := common.RequiredString(args, "event_id")
	if err != nil {
		return common.Failure("%v", err), nil
	}

	var patch calendar.EventPatch
	patch.Title = common.OptionalString(args, "title")
	patch.Description = common.OptionalString(args, "description")
	patch.Location = common.OptionalString(args, "location")

	if start, ok, err := common.Time(args, "start", now); err != nil {
		return common.Failure("%v", err), nil
	} else if ok {
		patch.Start = &start
	}
	if end, ok, err := common.Time(args, "end", now); err != nil {
		return common.Failure("%v", err), nil
	} else if ok {
		patch.End = &end
	}
	if common.HasKey(args, "tags") {
		tags := common.StringSlice(args, "tags")
		patch.Tags = &tags
	}
	if common.String(args, "status") != "" {
		status, err := parseStatus(args, "")
		if err != nil {
			return common.Failure("%v", err), nil
		}
		patch.Status = &status
	}

	if patch.Empty() {
		return common.Failure("no fields to update"), nil
	}

	res, err := sc.Engine().Update(ctx, userID, eventID, patch, common.Bool(args, "force", false))
	recordMutation(ctx, sc, mutationUpdate, res, err)
	if err != nil {
		return common.FromError(err), nil
	}
	return common.MutationResult(res), nil
}

func handleRemoveEvent(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	userID := common.UserFromArgs(ctx, args)

	eventID, err := common.RequiredString(args, "event_id")
	if err != nil {
		return common.Failure("%v", err), nil
	}

	if err := sc.Engine().Remove(ctx, userID, eventID); err != nil {
		sc.Metrics().RecordCalendarMutation(ctx, mutationRemove, agent.StatusError)
		return common.FromError(err), nil
	}
	sc.Metrics().RecordCalendarMutation(ctx, mutationRemove, agent.StatusSuccess)

	return common.Success(common.Payload{
		"event_id": eventID,
		"message":  fmt.Sprintf("event %s removed", eventID),
	}), nil
}

func handleRemoveEvents(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	userID := common.UserFromArgs(ctx, args)

	ids, err := batch.ParseStringOrArray(args["event_ids"], "event_ids")
	if err != nil {
		return common.Failure("%v", err), nil
	}

	results := batch.ProcessBatch(ids, func(id string) (batch.Result, error) {
		err := sc.Engine().Remove(ctx, userID, id)
		switch {
		case err == nil:
			sc.Metrics().RecordCalendarMutation(ctx, mutationRemove, agent.StatusSuccess)
			return batch.NewSuccessResult(id, "removed"), nil
		case errors.Is(err, calendar.ErrNotFound):
			return batch.Result{ID: id, Status: agent.StatusNotFound, Error: err.Error()}, nil
		default:
			sc.Metrics().RecordCalendarMutation(ctx, mutationRemove, agent.StatusError)
			return batch.Result{}, err
		}
	})
	br := batch.Summarize(results)

	status := br.Status()
	if br.Successful == 0 && allNotFound(results) {
		status = agent.StatusNotFound
	}
	return common.Tagged(status, common.Payload{
		"total":      br.Total,
		"successful": br.Successful,
		"failed":     br.Failed,
		"results":    br.Results,
		"message":    fmt.Sprintf("removed %d of %d event(s)", br.Successful, br.Total),
	}), nil
}

func allNotFound(results []batch.Result) bool {
	for _, r := range results {
		if r.Status != agent.StatusNotFound {
			return false
		}
	}
	return len(results) > 0
}

func handleGetEvent(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	userID := common.UserFromArgs(ctx, args)

	eventID, err := common.RequiredString(args, "event_id")
	if err != nil {
		return common.Failure("%v", err), nil
	}

	event, err := sc.Engine().Get(ctx, userID, eventID)
	if err != nil {
		return common.FromError(err), nil
	}
	return common.Success(common.Payload{"event": event}), nil
}

func handleListEvents(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	userID := common.UserFromArgs(ctx, args)

	r, err := parseRange(args, sc)
	if err != nil {
		return common.Failure("%v", err), nil
	}

	query := calendar.ListQuery{
		Range: r,
		Tags:  common.StringSlice(args, "tags"),
	}
	if common.String(args, "status") != "" {
		status, err := parseStatus(args, "")
		if err != nil {
			return common.Failure("%v", err), nil
		}
		query.Status = status
	}

	events, err := sc.Engine().List(ctx, userID, query)
	if err != nil {
		return common.FromError(err), nil
	}
	if events == nil {
		events = []calendar.Event{}
	}

	return common.Success(common.Payload{
		"events": events,
		"count":  len(events),
	}), nil
}

func parseStatus(args map[string]any, def calendar.EventStatus) (calendar.EventStatus, error) {
	raw := common.String(args, "status")
	if raw == "" {
		return def, nil
	}
	status := calendar.EventStatus(raw)
	if !status.Valid() {
		return "", fmt.Errorf("invalid status %q: use confirmed, tentative or cancelled", raw)
	}
	return status, nil
}
