package conversation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/teemow/calendaragent/internal/calendar"
)

// Priority bounds for a TaskItem.
const (
	MinPriority = 1
	MaxPriority = 5
)

// ErrInvalidPlan is wrapped by plan validation failures.
var ErrInvalidPlan = errors.New("invalid plan")

// TaskItem is one step of a proposed plan.
type TaskItem struct {
	TaskID      string     `json:"task_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Start       *time.Time `json:"start,omitempty"`
	End         *time.Time `json:"end,omitempty"`
	Tags        []string   `json:"tags"`
	Priority    int        `json:"priority"`
}

// Scheduled reports whether the task carries both times.
func (t TaskItem) Scheduled() bool {
	return t.Start != nil && t.End != nil
}

// Normalize assigns an id, defaults the priority and tidies tags, then
// validates the task.
func (t *TaskItem) Normalize() error {
	t.Title = strings.TrimSpace(t.Title)
	if t.Title == "" {
		return fmt.Errorf("%w: task title is required", ErrInvalidPlan)
	}
	if t.TaskID == "" {
		t.TaskID = uuid.NewString()
	}
	if t.Priority == 0 {
		t.Priority = MinPriority
	}
	if t.Priority < MinPriority || t.Priority > MaxPriority {
		return fmt.Errorf("%w: task %q priority %d outside %d-%d", ErrInvalidPlan, t.Title, t.Priority, MinPriority, MaxPriority)
	}
	if (t.Start == nil) != (t.End == nil) {
		return fmt.Errorf("%w: task %q needs both start and end, or neither", ErrInvalidPlan, t.Title)
	}
	if t.Scheduled() && !t.End.After(*t.Start) {
		return fmt.Errorf("%w: task %q ends before it starts", ErrInvalidPlan, t.Title)
	}
	t.Tags = calendar.NormalizeTags(t.Tags)
	return nil
}

// EventInput converts a scheduled task into a calendar draft.
func (t TaskItem) EventInput(source string) calendar.EventInput {
	in := calendar.EventInput{
		Title:       t.Title,
		Description: t.Description,
		Tags:        append([]string(nil), t.Tags...),
		Status:      calendar.StatusConfirmed,
		Source:      source,
	}
	if t.Start != nil {
		in.Start = *t.Start
	}
	if t.End != nil {
		in.End = *t.End
	}
	return in
}

// DedupeTaskIDs gives every task after the first that repeats an id a fresh
// one, so each task stays addressable.
func DedupeTaskIDs(tasks []TaskItem) {
	seen := make(map[string]struct{}, len(tasks))
	for i := range tasks {
		if _, dup := seen[tasks[i].TaskID]; dup || tasks[i].TaskID == "" {
			tasks[i].TaskID = uuid.NewString()
		}
		seen[tasks[i].TaskID] = struct{}{}
	}
}

// PlannerOutput is the plan held for confirmation.
type PlannerOutput struct {
	Tasks     []TaskItem          `json:"tasks"`
	Conflicts []string            `json:"conflicts"`
	Notes     string              `json:"notes,omitempty"`
	FreeSlots []calendar.FreeSlot `json:"free_slots,omitempty"`
}

// HasConflicts reports whether the planner flagged conflicts.
func (p PlannerOutput) HasConflicts() bool {
	return len(p.Conflicts) > 0
}

// Normalize validates every task.
func (p *PlannerOutput) Normalize() error {
	if len(p.Tasks) == 0 {
		return fmt.Errorf("%w: at least one task is required", ErrInvalidPlan)
	}
	for i := range p.Tasks {
		if err := p.Tasks[i].Normalize(); err != nil {
			return err
		}
	}
	DedupeTaskIDs(p.Tasks)
	if p.Conflicts == nil {
		p.Conflicts = []string{}
	}
	return nil
}

// SummaryOutput is the report produced by the summary agent.
type SummaryOutput struct {
	Period          string         `json:"period"`
	SummaryText     string         `json:"summary_text"`
	Recommendations []string       `json:"recommendations"`
	Stats           map[string]any `json:"stats"`
}

// RecommendationCount returns the number of recommendations.
func (s SummaryOutput) RecommendationCount() int {
	return len(s.Recommendations)
}

// DecodePlan reads the "plan" field of a propose_plan result payload.
func DecodePlan(content string) (*PlannerOutput, error) {
	var body struct {
		Status string         `json:"status"`
		Plan   *PlannerOutput `json:"plan"`
	}
	if err := json.Unmarshal([]byte(content), &body); err != nil {
		return nil, fmt.Errorf("failed to decode plan: %w", err)
	}
	if body.Plan == nil {
		return nil, fmt.Errorf("%w: result carries no plan (status %q)", ErrInvalidPlan, body.Status)
	}
	return body.Plan, nil
}

// DecodeSummary reads the "summary" field of a record_summary result payload.
func DecodeSummary(content string) (*SummaryOutput, error) {
	var body struct {
		Summary *SummaryOutput `json:"summary"`
	}
	if err := json.Unmarshal([]byte(content), &body); err != nil {
		return nil, fmt.Errorf("failed to decode summary: %w", err)
	}
	if body.Summary == nil {
		return nil, errors.New("result carries no summary")
	}
	return body.Summary, nil
}
