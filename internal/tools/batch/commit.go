package batch

import (
	"context"
	"errors"
	"fmt"

	"github.com/teemow/calendaragent/internal/agent"
	"github.com/teemow/calendaragent/internal/calendar"
	"github.com/teemow/calendaragent/internal/conversation"
)

// PlanSource marks events created from a confirmed plan.
const PlanSource = "planner"

// CommitTasks adds every scheduled task as a confirmed event, in order.
// Each task is conflict-checked against the calendar as it stands after the
// previous tasks, so two overlapping tasks cannot both be committed unless
// force is set. Tasks without times are reported as errors.
func CommitTasks(ctx context.Context, engine *calendar.Engine, userID string, tasks []conversation.TaskItem, force bool) BatchResult {
	results := make([]Result, 0, len(tasks))
	for _, task := range tasks {
		res, err := commitTask(ctx, engine, userID, task, force)
		if err != nil {
			res = NewErrorResult(task.TaskID, err)
			res.Title = task.Title
		}
		results = append(results, res)
	}
	return Summarize(results)
}

func commitTask(ctx context.Context, engine *calendar.Engine, userID string, task conversation.TaskItem, force bool) (Result, error) {
	id := task.TaskID
	if !task.Scheduled() {
		return Result{ID: id, Title: task.Title, Status: agent.StatusError, Error: "task has no start and end time"}, nil
	}

	res, err := engine.Add(ctx, userID, task.EventInput(PlanSource), force)
	if err != nil {
		var verr *calendar.ValidationError
		if errors.As(err, &verr) {
			return Result{ID: id, Title: task.Title, Status: agent.StatusError, Error: verr.Error()}, nil
		}
		return Result{}, fmt.Errorf("failed to add %q: %w", task.Title, err)
	}

	out := Result{ID: id, Title: task.Title, Result: res.Event}
	switch {
	case res.Status == calendar.ResultConflict:
		out.Status = agent.StatusConflict
		out.Conflicts = res.Conflicts
		out.Error = fmt.Sprintf("overlaps %d existing event(s)", len(res.Conflicts))
	case res.Forced:
		out.Status = agent.StatusWarning
		out.Conflicts = res.Conflicts
	default:
		out.Status = agent.StatusSuccess
	}
	return out, nil
}
