package summary_tools

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/calendaragent/internal/agent"
	"github.com/teemow/calendaragent/internal/calendar"
	"github.com/teemow/calendaragent/internal/conversation"
	"github.com/teemow/calendaragent/internal/llm"
	"github.com/teemow/calendaragent/internal/server"
	"github.com/teemow/calendaragent/internal/server/servertest"
)

func setup(t *testing.T) (*agent.Registry, context.Context) {
	t.Helper()
	sc := servertest.New(t)
	r := agent.NewRegistry()
	require.NoError(t, RegisterSummaryTools(r, sc))

	ctx := server.WithUserID(context.Background(), "alice")
	day := time.Date(2025, 1, 14, 0, 0, 0, 0, time.UTC)
	for _, ev := range []struct {
		title      string
		start, end int
		tags       []string
		dayOffset  int
		status     calendar.EventStatus
	}{
		{"Standup", 9, 10, []string{"work"}, 0, calendar.StatusConfirmed},
		{"Gym", 19, 20, []string{"health"}, 0, calendar.StatusConfirmed},
		{"Standup", 9, 10, []string{"work"}, 1, calendar.StatusConfirmed},
		{"Deep work", 13, 16, []string{"work", "focus"}, 1, calendar.StatusConfirmed},
		{"Maybe lunch", 12, 13, nil, 2, calendar.StatusTentative},
	} {
		d := day.AddDate(0, 0, ev.dayOffset)
		_, err := sc.Engine().Add(ctx, "alice", calendar.EventInput{
			Title:  ev.title,
			Start:  d.Add(time.Duration(ev.start) * time.Hour),
			End:    d.Add(time.Duration(ev.end) * time.Hour),
			Tags:   ev.tags,
			Status: ev.status,
		}, false)
		require.NoError(t, err)
	}
	return r, ctx
}

func call(t *testing.T, r *agent.Registry, ctx context.Context, name string, args map[string]any) (string, map[string]any) {
	t.Helper()
	res := r.Execute(ctx, llm.OperationRequest{Name: name, Arguments: args})
	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.Content), &body), res.Content)
	return res.Status, body
}

func TestEventsSummary(t *testing.T) {
	r, ctx := setup(t)

	status, body := call(t, r, ctx, "get_events_summary", map[string]any{
		"start": "2025-01-13",
		"end":   "2025-01-19",
	})
	require.Equal(t, agent.StatusSuccess, status)
	assert.EqualValues(t, 4, body["total_events"])
	assert.EqualValues(t, 7, body["period_days"])
	assert.EqualValues(t, 3, body["events_by_tag"].(map[string]any)["work"])
	dist := body["time_distribution"].(map[string]any)
	assert.EqualValues(t, 2, dist["morning"])
	assert.EqualValues(t, 1, dist["afternoon"])
	assert.EqualValues(t, 1, dist["evening"])
	assert.EqualValues(t, 90, body["avg_duration"])
	assert.EqualValues(t, 6, body["total_hours"])
}

func TestEventsSummary_DefaultsToCurrentWeek(t *testing.T) {
	r, ctx := setup(t)

	status, body := call(t, r, ctx, "get_events_summary", map[string]any{})
	require.Equal(t, agent.StatusSuccess, status)
	assert.EqualValues(t, 4, body["total_events"])
	rng := body["range"].(map[string]any)
	assert.Equal(t, "2025-01-13T00:00:00Z", rng["start"])
	assert.Equal(t, "2025-01-20T00:00:00Z", rng["end"])
}

func TestEventsDetail(t *testing.T) {
	r, ctx := setup(t)

	_, body := call(t, r, ctx, "get_events_detail", map[string]any{"period": "weekly"})
	assert.EqualValues(t, 4, body["count"])
	first := body["events"].([]any)[0].(map[string]any)
	assert.Equal(t, "Standup", first["title"])
	assert.Equal(t, "yesterday 09:00", first["when"])
	assert.Equal(t, "1h", first["duration"])

	_, body = call(t, r, ctx, "get_events_detail", map[string]any{"period": "weekly", "status": "all"})
	assert.EqualValues(t, 5, body["count"])

	status, _ := call(t, r, ctx, "get_events_detail", map[string]any{"status": "bogus"})
	assert.Equal(t, agent.StatusError, status)
}

func TestAnalyzeTimeUsage(t *testing.T) {
	r, ctx := setup(t)

	_, body := call(t, r, ctx, "analyze_time_usage", map[string]any{"period": "weekly"})
	assert.EqualValues(t, 6, body["total_hours"])
	top := body["top_activities"].([]any)
	require.Len(t, top, 3)
	assert.Equal(t, "Deep work", top[0].(map[string]any)["title"])
	assert.EqualValues(t, 50, top[0].(map[string]any)["percentage"])
}

func TestRecordSummary(t *testing.T) {
	r, ctx := setup(t)

	status, body := call(t, r, ctx, "record_summary", map[string]any{
		"period":          "weekly",
		"summary_text":    "A balanced week.",
		"recommendations": "Block focus time\nMove gym earlier",
	})
	require.Equal(t, agent.StatusSuccess, status)

	raw, err := json.Marshal(body)
	require.NoError(t, err)
	out, err := conversation.DecodeSummary(string(raw))
	require.NoError(t, err)
	assert.Equal(t, "weekly", out.Period)
	assert.Equal(t, 2, out.RecommendationCount())
	assert.EqualValues(t, 4, out.Stats["total_events"])

	status, _ = call(t, r, ctx, "record_summary", map[string]any{"period": "weekly"})
	assert.Equal(t, agent.StatusError, status)
}
