package conversation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(t time.Time) *time.Time { return &t }

func TestTaskItemNormalize(t *testing.T) {
	start := time.Date(2025, 1, 16, 9, 0, 0, 0, time.UTC)

	task := TaskItem{Title: "  Write ", Tags: []string{"B", "a", "b"}}
	require.NoError(t, task.Normalize())
	assert.Equal(t, "Write", task.Title)
	assert.NotEmpty(t, task.TaskID)
	assert.Equal(t, MinPriority, task.Priority)
	assert.Equal(t, []string{"a", "b"}, task.Tags)

	tests := []struct {
		name string
		task TaskItem
	}{
		{"empty title", TaskItem{}},
		{"priority too high", TaskItem{Title: "x", Priority: 6}},
		{"negative priority", TaskItem{Title: "x", Priority: -1}},
		{"only end", TaskItem{Title: "x", End: ptr(start)}},
		{"zero length", TaskItem{Title: "x", Start: ptr(start), End: ptr(start)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.task.Normalize()
			assert.ErrorIs(t, err, ErrInvalidPlan)
		})
	}
}

func TestTaskItemEventInput(t *testing.T) {
	start := time.Date(2025, 1, 16, 9, 0, 0, 0, time.UTC)
	task := TaskItem{Title: "x", Start: ptr(start), End: ptr(start.Add(time.Hour)), Tags: []string{"work"}}

	in := task.EventInput("planner")
	assert.Equal(t, "x", in.Title)
	assert.Equal(t, "planner", in.Source)
	assert.True(t, in.End.Equal(start.Add(time.Hour)))
	assert.Equal(t, []string{"work"}, in.Tags)
}

func TestPlannerOutputNormalize(t *testing.T) {
	var empty PlannerOutput
	assert.ErrorIs(t, empty.Normalize(), ErrInvalidPlan)

	plan := PlannerOutput{Tasks: []TaskItem{{Title: "a"}}}
	require.NoError(t, plan.Normalize())
	assert.NotNil(t, plan.Conflicts)
	assert.False(t, plan.HasConflicts())
}

func TestDecode(t *testing.T) {
	plan, err := DecodePlan(`{"status":"success","plan":{"tasks":[{"task_id":"1","title":"a","tags":[],"priority":2}],"conflicts":[]}}`)
	require.NoError(t, err)
	assert.Equal(t, "a", plan.Tasks[0].Title)

	_, err = DecodePlan(`{"status":"error","message":"bad"}`)
	assert.ErrorIs(t, err, ErrInvalidPlan)

	_, err = DecodePlan(`not json`)
	assert.Error(t, err)

	summary, err := DecodeSummary(`{"summary":{"period":"weekly","summary_text":"ok","recommendations":["a"],"stats":{}}}`)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.RecommendationCount())

	_, err = DecodeSummary(`{}`)
	assert.Error(t, err)
}

func TestPlannerOutputNormalizeRepeatedIDs(t *testing.T) {
	plan := PlannerOutput{Tasks: []TaskItem{
		{TaskID: "1", Title: "Read chapter 1"},
		{TaskID: "1", Title: "Read chapter 2"},
		{TaskID: "2", Title: "Read chapter 3"},
	}}
	require.NoError(t, plan.Normalize())

	assert.Equal(t, "1", plan.Tasks[0].TaskID)
	assert.NotEqual(t, "1", plan.Tasks[1].TaskID)
	assert.NotEmpty(t, plan.Tasks[1].TaskID)
	assert.Equal(t, "2", plan.Tasks[2].TaskID)
}
