package planning_tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/calendaragent/internal/agent"
	"github.com/teemow/calendaragent/internal/calendar"
	"github.com/teemow/calendaragent/internal/conversation"
	"github.com/teemow/calendaragent/internal/server"
	"github.com/teemow/calendaragent/internal/tools/batch"
	"github.com/teemow/calendaragent/internal/tools/common"
)

// Runner answers a single natural-language request. *agent.Loop satisfies it.
type Runner interface {
	Ask(ctx context.Context, request string) (string, error)
}

var _ Runner = (*agent.Loop)(nil)

// RegisterDelegationTools registers call_scheduler_agent and
// call_summary_agent. A nil runner skips its operation.
func RegisterDelegationTools(s agent.ToolAdder, sc *server.ServerContext, scheduler, summary Runner) error {
	if scheduler != nil {
		tool := mcp.NewTool("call_scheduler_agent",
			mcp.WithDescription("Ask the scheduler agent to add, change, remove or look up calendar events, or to find free time"),
			mcp.WithString("request",
				mcp.Required(),
				mcp.Description("The scheduling request in natural language, with concrete dates and times"),
			),
		)
		s.AddTool(tool, common.InstrumentedToolHandler("call_scheduler_agent", sc, delegate("scheduler", scheduler)))
	}
	if summary != nil {
		tool := mcp.NewTool("call_summary_agent",
			mcp.WithDescription("Ask the summary agent for statistics, analysis or recommendations about the calendar"),
			mcp.WithString("request",
				mcp.Required(),
				mcp.Description("The analysis request in natural language"),
			),
		)
		s.AddTool(tool, common.InstrumentedToolHandler("call_summary_agent", sc, delegate("summary", summary)))
	}
	return nil
}

func delegate(name string, runner Runner) func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := common.RequiredString(request.GetArguments(), "request")
		if err != nil {
			return common.Failure("%v", err), nil
		}

		answer, err := runner.Ask(ctx, text)
		if err != nil {
			payload := common.Payload{
				"agent":   name,
				"message": fmt.Sprintf("%s agent failed: %v", name, err),
			}
			if errors.Is(err, agent.ErrIterationLimitExceeded) {
				payload["reason"] = "iteration_limit"
			}
			return common.Tagged(agent.StatusError, payload), nil
		}
		return common.Success(common.Payload{
			"agent":    name,
			"response": answer,
		}), nil
	}
}

// RegisterPlanTools registers propose_plan.
func RegisterPlanTools(s agent.ToolAdder, sc *server.ServerContext) error {
	proposeTool := mcp.NewTool("propose_plan",
		mcp.WithDescription("Propose a plan of tasks for the user to confirm. Nothing is written to the calendar until the user confirms. Call once with the complete plan, then present it."),
		mcp.WithString("tasks",
			mcp.Required(),
			mcp.Description(`JSON array of tasks: [{"title": "...", "description": "...", "start": "2025-01-15T09:00:00Z", "end": "2025-01-15T10:00:00Z", "tags": ["work"], "priority": 1-5}]`),
		),
		mcp.WithString("notes",
			mcp.Description("Planning notes for the user"),
		),
		mcp.WithString("free_slots",
			mcp.Description("Optional JSON array of free slots considered, as returned by get_free_slots"),
		),
	)
	s.AddTool(proposeTool, common.InstrumentedToolHandler("propose_plan", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleProposePlan(ctx, request, sc)
		}))
	return nil
}

// RegisterCommitTools registers commit_plan, used by the scheduler to write
// a confirmed plan.
func RegisterCommitTools(s agent.ToolAdder, sc *server.ServerContext) error {
	commitTool := mcp.NewTool("commit_plan",
		mcp.WithDescription("Add the tasks of a confirmed plan as calendar events. Returns one result per task; conflicting tasks are not written unless force=true."),
		mcp.WithString("tasks",
			mcp.Required(),
			mcp.Description("JSON array of tasks with title, start and end"),
		),
		mcp.WithBoolean("force",
			mcp.Description("Write tasks even when they overlap confirmed events"),
		),
	)
	s.AddTool(commitTool, common.InstrumentedToolHandler("commit_plan", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleCommitPlan(ctx, request, sc)
		}))
	return nil
}

// taskArg mirrors TaskItem with string times so relative phrases work.
type taskArg struct {
	TaskID      string   `json:"task_id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Start       string   `json:"start"`
	End         string   `json:"end"`
	StartTime   string   `json:"start_time"`
	EndTime     string   `json:"end_time"`
	Tags        []string `json:"tags"`
	Priority    int      `json:"priority"`
}

func decodeTasks(args map[string]any, now time.Time) ([]conversation.TaskItem, error) {
	var raw []taskArg
	ok, err := common.Decode(args, "tasks", &raw)
	if err != nil {
		return nil, err
	}
	if !ok || len(raw) == 0 {
		return nil, fmt.Errorf("tasks is required")
	}

	tasks := make([]conversation.TaskItem, 0, len(raw))
	for i, r := range raw {
		task := conversation.TaskItem{
			TaskID:      r.TaskID,
			Title:       r.Title,
			Description: r.Description,
			Tags:        r.Tags,
			Priority:    r.Priority,
		}
		start, end := r.Start, r.End
		if start == "" {
			start = r.StartTime
		}
		if end == "" {
			end = r.EndTime
		}
		if start != "" {
			t, err := parseTaskTime(start, now)
			if err != nil {
				return nil, fmt.Errorf("task %d start: %w", i+1, err)
			}
			task.Start = &t
		}
		if end != "" {
			ref := now
			if task.Start != nil {
				ref = *task.Start
			}
			t, err := parseTaskTime(end, ref)
			if err != nil {
				return nil, fmt.Errorf("task %d end: %w", i+1, err)
			}
			task.End = &t
		}
		if err := task.Normalize(); err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	conversation.DedupeTaskIDs(tasks)
	return tasks, nil
}

func parseTaskTime(text string, ref time.Time) (time.Time, error) {
	t, ok, err := common.Time(map[string]any{"t": text}, "t", ref)
	if err != nil || !ok {
		return time.Time{}, fmt.Errorf("invalid time %q", text)
	}
	return t, nil
}

// planConflicts describes overlaps of scheduled tasks with confirmed events
// and with each other.
func planConflicts(ctx context.Context, sc *server.ServerContext, userID string, tasks []conversation.TaskItem) ([]string, error) {
	scheduled := false
	for _, t := range tasks {
		scheduled = scheduled || t.Scheduled()
	}
	if !scheduled {
		return []string{}, nil
	}

	events, err := sc.Engine().List(ctx, userID, calendar.ListQuery{Status: calendar.StatusConfirmed})
	if err != nil {
		return nil, err
	}

	conflicts := []string{}
	layout := "2006-01-02 15:04"
	loc := sc.Location()
	for i, t := range tasks {
		if !t.Scheduled() {
			continue
		}
		for _, ev := range calendar.FindConflicts(events, *t.Start, *t.End, "") {
			conflicts = append(conflicts, fmt.Sprintf("%q (%s-%s) overlaps existing event %q (%s-%s)",
				t.Title, t.Start.In(loc).Format(layout), t.End.In(loc).Format("15:04"),
				ev.Title, ev.Start.In(loc).Format(layout), ev.End.In(loc).Format("15:04")))
		}
		for _, other := range tasks[i+1:] {
			if other.Scheduled() && calendar.Overlaps(*t.Start, *t.End, *other.Start, *other.End) {
				conflicts = append(conflicts, fmt.Sprintf("%q overlaps planned task %q", t.Title, other.Title))
			}
		}
	}
	return conflicts, nil
}

func handleProposePlan(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	userID := common.UserFromArgs(ctx, args)

	tasks, err := decodeTasks(args, sc.Now())
	if err != nil {
		return common.Failure("%v", err), nil
	}

	plan := conversation.PlannerOutput{
		Tasks: tasks,
		Notes: common.String(args, "notes"),
	}
	if _, err := common.Decode(args, "free_slots", &plan.FreeSlots); err != nil {
		return common.Failure("%v", err), nil
	}
	if err := plan.Normalize(); err != nil {
		return common.Failure("%v", err), nil
	}

	conflicts, err := planConflicts(ctx, sc, userID, plan.Tasks)
	if err != nil {
		return common.FromError(err), nil
	}
	plan.Conflicts = conflicts

	msg := fmt.Sprintf("plan with %d task(s) proposed; ask the user to confirm, revise or cancel", len(plan.Tasks))
	if plan.HasConflicts() {
		msg = fmt.Sprintf("plan with %d task(s) proposed with %d conflict(s); mention them to the user", len(plan.Tasks), len(plan.Conflicts))
	}
	return common.Success(common.Payload{
		"plan":    plan,
		"message": msg,
	}), nil
}

func handleCommitPlan(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	userID := common.UserFromArgs(ctx, args)

	tasks, err := decodeTasks(args, sc.Now())
	if err != nil {
		return common.Failure("%v", err), nil
	}

	br := batch.CommitTasks(ctx, sc.Engine(), userID, tasks, common.Bool(args, "force", false))
	for _, r := range br.Results {
		status := r.Status
		if status == agent.StatusNotFound {
			status = agent.StatusError
		}
		sc.Metrics().RecordCalendarMutation(ctx, "add", status)
	}

	return common.Tagged(br.Status(), common.Payload{
		"total":      br.Total,
		"successful": br.Successful,
		"conflicts":  br.Conflicts,
		"failed":     br.Failed,
		"results":    br.Results,
		"message":    fmt.Sprintf("committed %d of %d task(s)", br.Successful, br.Total),
	}), nil
}
