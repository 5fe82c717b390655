package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/calendaragent/internal/agent"
	"github.com/teemow/calendaragent/internal/calendar"
	"github.com/teemow/calendaragent/internal/conversation"
	"github.com/teemow/calendaragent/internal/llm"
	"github.com/teemow/calendaragent/internal/llm/llmtest"
	"github.com/teemow/calendaragent/internal/router"
	"github.com/teemow/calendaragent/internal/server"
	"github.com/teemow/calendaragent/internal/server/servertest"
)

const (
	user      = "alice"
	planTasks = `[{"title":"Write report","start":"2025-01-16T09:00:00Z","end":"2025-01-16T11:00:00Z","tags":["work"],"priority":2}]`
)

type harness struct {
	o      *Orchestrator
	sc     *server.ServerContext
	script *llmtest.Script
}

func newHarness(t *testing.T, script *llmtest.Script, opts ...agent.Option) *harness {
	t.Helper()
	sc := servertest.New(t)

	agents, err := NewAgents(sc, script, opts...)
	require.NoError(t, err)

	sessions := conversation.NewManager(time.Minute, time.Minute)
	t.Cleanup(sessions.Close)

	o := New(router.New(script), agents, sessions, sc, WithLogger(sc.Logger()))
	return &harness{o: o, sc: sc, script: script}
}

func (h *harness) submit(t *testing.T, text string) *Response {
	t.Helper()
	resp, err := h.o.Submit(context.Background(), user, text)
	require.NoError(t, err)
	return resp
}

func (h *harness) events(t *testing.T) []calendar.Event {
	t.Helper()
	events, err := h.sc.Engine().List(context.Background(), user, calendar.ListQuery{})
	require.NoError(t, err)
	return events
}

func intentJSON(intent string) string {
	return `{"intent": "` + intent + `", "confidence": 0.9, "reasoning": "test"}`
}

func hasTrace(trace []string, substr string) bool {
	for _, line := range trace {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

func TestSubmit_Scheduling(t *testing.T) {
	script := llmtest.NewScript(
		llmtest.Request("add_event", map[string]any{
			"title": "Standup",
			"start": "2025-01-16T09:00:00Z",
			"end":   "2025-01-16T09:30:00Z",
		}),
		llmtest.Answer("Added Standup tomorrow at 09:00."),
	).WithCompletions(intentJSON("scheduling"))
	h := newHarness(t, script)

	resp := h.submit(t, "add standup tomorrow at 9")

	assert.Equal(t, StatusSuccess, resp.Status)
	assert.Equal(t, router.IntentScheduling, resp.Intent)
	assert.Equal(t, "Added Standup tomorrow at 09:00.", resp.ResponseText)
	assert.True(t, hasTrace(resp.Trace, "ROUTER -> scheduling (confidence 0.90, llm)"), resp.Trace)
	assert.True(t, hasTrace(resp.Trace, "SCHEDULER -> act add_event=success"), resp.Trace)
	assert.True(t, hasTrace(resp.Trace, "SCHEDULER -> done"), resp.Trace)

	events := h.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, "Standup", events[0].Title)

	// The agent sees the context note and the user's utterance.
	calls := script.Calls()
	require.NotEmpty(t, calls)
	first := calls[0].History
	require.Len(t, first, 2)
	assert.Contains(t, first[0].Content, "Current time: 2025-01-15T10:00:00Z")
	assert.Equal(t, "add standup tomorrow at 9", first[1].Content)

	state, ok := h.o.State(user)
	require.True(t, ok)
	assert.Equal(t, router.IntentScheduling, state.Intent)
	// user, assistant request, operation result, final answer
	assert.Len(t, state.Messages, 4)
}

func TestSubmit_PlanConfirmed(t *testing.T) {
	script := llmtest.NewScript(
		llmtest.Request("propose_plan", map[string]any{"tasks": planTasks, "notes": "morning focus"}),
		llmtest.Answer("Here is your plan. Confirm?"),
		llmtest.Request("commit_plan", map[string]any{"tasks": planTasks}),
		llmtest.Answer("Your plan is in the calendar."),
	).WithCompletions(intentJSON("planning"))
	h := newHarness(t, script)

	resp := h.submit(t, "plan my report writing tomorrow")
	assert.Equal(t, StatusAwaitingConfirmation, resp.Status)
	require.NotNil(t, resp.Plan)
	require.Len(t, resp.Plan.Tasks, 1)
	assert.Equal(t, "Write report", resp.Plan.Tasks[0].Title)
	assert.Equal(t, "morning focus", resp.Plan.Notes)
	assert.Empty(t, h.events(t), "proposing must not write")

	state, _ := h.o.State(user)
	assert.True(t, state.AwaitingFeedback())

	resp = h.submit(t, "yes, go ahead")
	assert.Equal(t, StatusSuccess, resp.Status)
	assert.Equal(t, "Your plan is in the calendar.", resp.ResponseText)
	assert.True(t, hasTrace(resp.Trace, "FEEDBACK -> confirmed"), resp.Trace)
	assert.True(t, hasTrace(resp.Trace, "SCHEDULER -> act commit_plan=success"), resp.Trace)

	events := h.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, "Write report", events[0].Title)
	assert.Equal(t, "planner", events[0].Source)

	state, _ = h.o.State(user)
	assert.False(t, state.AwaitingFeedback())
	// Feedback is not classified by the router.
	assert.Len(t, script.Prompts(), 1)
}

func TestSubmit_PlanConfirmedDirectCommit(t *testing.T) {
	script := llmtest.NewScript(
		llmtest.Request("propose_plan", map[string]any{"tasks": planTasks}),
		llmtest.Answer("Plan ready."),
		llmtest.Fail(errors.New("model unavailable")),
	).WithCompletions(intentJSON("planning"))
	h := newHarness(t, script)

	h.submit(t, "plan my report")
	resp := h.submit(t, "确认")

	assert.Equal(t, StatusSuccess, resp.Status)
	assert.Contains(t, resp.ResponseText, "Committed 1 of 1 task(s).")
	assert.True(t, hasTrace(resp.Trace, "COMMIT -> 1 of 1 task(s) committed"), resp.Trace)
	assert.Len(t, h.events(t), 1)
}

func TestSubmit_PlanConfirmedWithConflict(t *testing.T) {
	script := llmtest.NewScript(
		llmtest.Request("propose_plan", map[string]any{"tasks": planTasks}),
		llmtest.Answer("Plan ready."),
		llmtest.Answer("I will not commit."),
	).WithCompletions(intentJSON("planning"))
	h := newHarness(t, script)

	h.submit(t, "plan my report")

	start := time.Date(2025, 1, 16, 10, 0, 0, 0, time.UTC)
	_, err := h.sc.Engine().Add(context.Background(), user, calendar.EventInput{
		Title: "Dentist", Start: start, End: start.Add(time.Hour),
	}, false)
	require.NoError(t, err)

	resp := h.submit(t, "ok")
	assert.Equal(t, StatusError, resp.Status)
	assert.Contains(t, resp.ResponseText, "Write report: conflicts with an existing event")
	assert.Len(t, h.events(t), 1)
}

func TestSubmit_PlanEnded(t *testing.T) {
	script := llmtest.NewScript(
		llmtest.Request("propose_plan", map[string]any{"tasks": planTasks}),
		llmtest.Answer("Plan ready."),
	).WithCompletions(intentJSON("planning"))
	h := newHarness(t, script)

	h.submit(t, "plan my report")
	resp := h.submit(t, "no thanks, cancel")

	assert.Equal(t, StatusSuccess, resp.Status)
	assert.Contains(t, resp.ResponseText, "discarded")
	assert.Empty(t, h.events(t))

	state, _ := h.o.State(user)
	assert.False(t, state.AwaitingFeedback())
}

func TestSubmit_PlanRevised(t *testing.T) {
	revised := strings.ReplaceAll(strings.ReplaceAll(planTasks, "T09:00", "T14:00"), "T11:00", "T16:00")
	script := llmtest.NewScript(
		llmtest.Request("propose_plan", map[string]any{"tasks": planTasks}),
		llmtest.Answer("Plan ready."),
		llmtest.Request("propose_plan", map[string]any{"tasks": revised}),
		llmtest.Answer("Moved to the afternoon."),
	).WithCompletions(intentJSON("planning"))
	h := newHarness(t, script)

	h.submit(t, "plan my report")
	resp := h.submit(t, "please change it to the afternoon")

	assert.Equal(t, StatusAwaitingConfirmation, resp.Status)
	assert.True(t, hasTrace(resp.Trace, "FEEDBACK -> revise"), resp.Trace)
	assert.True(t, hasTrace(resp.Trace, "PLANNER -> act propose_plan=success"), resp.Trace)
	require.NotNil(t, resp.Plan)
	require.Len(t, resp.Plan.Tasks, 1)
	assert.Equal(t, 14, resp.Plan.Tasks[0].Start.Hour())
	assert.Empty(t, h.events(t))
}

func TestSubmit_UnrelatedUtteranceDropsPlan(t *testing.T) {
	script := llmtest.NewScript(
		llmtest.Request("propose_plan", map[string]any{"tasks": planTasks}),
		llmtest.Answer("Plan ready."),
		llmtest.Answer("Your week is quiet."),
	).WithCompletions(intentJSON("planning"), intentJSON("summary"))
	h := newHarness(t, script)

	h.submit(t, "plan my report")
	resp := h.submit(t, "how did my week look")

	assert.Equal(t, StatusSuccess, resp.Status)
	assert.Equal(t, router.IntentSummary, resp.Intent)
	assert.Equal(t, "Your week is quiet.", resp.ResponseText)
	assert.Nil(t, resp.Plan)
	assert.True(t, hasTrace(resp.Trace, "FEEDBACK -> end"), resp.Trace)
}

func TestSubmit_Summary(t *testing.T) {
	script := llmtest.NewScript(
		llmtest.Request("record_summary", map[string]any{
			"period":          "weekly",
			"summary_text":    "A light week.",
			"recommendations": "Block focus time\nTake breaks",
		}),
		llmtest.Answer("A light week. Block focus time and take breaks."),
	).WithCompletions(intentJSON("summary"))
	h := newHarness(t, script)

	resp := h.submit(t, "summarize my week")

	assert.Equal(t, StatusSuccess, resp.Status)
	require.NotNil(t, resp.Summary)
	assert.Equal(t, "weekly", resp.Summary.Period)
	assert.Equal(t, 2, resp.Summary.RecommendationCount())

	state, _ := h.o.State(user)
	require.NotNil(t, state.LastSummary)
	assert.Equal(t, "A light week.", state.LastSummary.SummaryText)
}

func TestSubmit_IterationLimit(t *testing.T) {
	script := llmtest.NewScript(
		llmtest.Request("list_events", map[string]any{}),
	).WithCompletions(intentJSON("scheduling"))
	script.Repeat = true
	h := newHarness(t, script, agent.WithMaxIterations(3))

	resp := h.submit(t, "show my events")

	assert.Equal(t, StatusError, resp.Status)
	assert.Contains(t, resp.ResponseText, "too many steps")
	assert.True(t, hasTrace(resp.Trace, "SCHEDULER -> act list_events=success"), resp.Trace)
	assert.True(t, hasTrace(resp.Trace, "ERROR ->"), resp.Trace)
	assert.Len(t, script.Calls(), 3)
}

func TestSubmit_RouterFailureFallsBackToScheduler(t *testing.T) {
	script := llmtest.NewScript(llmtest.Answer("Hello.")).
		WithCompletionError(llm.ErrUpstream)
	h := newHarness(t, script)

	resp := h.submit(t, "hello")

	assert.Equal(t, StatusSuccess, resp.Status)
	assert.Equal(t, router.IntentError, resp.Intent)
	assert.True(t, hasTrace(resp.Trace, "ROUTER -> error (confidence 0.00, failed)"), resp.Trace)
}

func TestSubmit_EmptyUtterance(t *testing.T) {
	h := newHarness(t, llmtest.NewScript())

	_, err := h.o.Submit(context.Background(), user, "   ")
	assert.ErrorIs(t, err, ErrEmptyUtterance)
}

func TestResetAndState(t *testing.T) {
	script := llmtest.NewScript(llmtest.Answer("Hi.")).WithCompletions(intentJSON("unknown"))
	h := newHarness(t, script)

	_, ok := h.o.State(user)
	assert.False(t, ok)

	h.submit(t, "hi")
	state, ok := h.o.State(user)
	require.True(t, ok)
	assert.Equal(t, user, state.UserID)
	assert.Equal(t, 1, state.Turns)

	assert.True(t, h.o.Reset(user))
	assert.False(t, h.o.Reset(user))
	_, ok = h.o.State(user)
	assert.False(t, ok)
}

func TestWindow(t *testing.T) {
	msgs := []llm.Message{
		llm.UserMessage("one"),
		{Role: llm.RoleAssistant, Requests: []llm.OperationRequest{{Name: "list_events"}}},
		{Role: llm.RoleOperation, Result: &llm.OperationResult{Name: "list_events"}},
		llm.AssistantMessage("done"),
		llm.UserMessage("two"),
	}

	assert.Len(t, window(msgs, 0), 5)
	assert.Len(t, window(msgs, 10), 5)

	got := window(msgs, 3)
	require.Len(t, got, 1)
	assert.Equal(t, "two", got[0].Content)
}

func TestNewAgentsOperationSets(t *testing.T) {
	sc := servertest.New(t)
	agents, err := NewAgents(sc, llmtest.NewScript())
	require.NoError(t, err)

	assert.Equal(t, schedulerOperations, agents.Scheduler.Registry().Names())
	assert.Equal(t, plannerOperations, agents.Planner.Registry().Names())
	assert.Equal(t, summaryOperations, agents.Summary.Registry().Names())

	assert.Same(t, agents.Planner, agents.ByName(router.AgentPlanner))
	assert.Same(t, agents.Scheduler, agents.ByName("anything"))
	assert.Len(t, agents.All(), 3)
}

func TestSubmit_PlanConfirmedBadCommitFallsBack(t *testing.T) {
	script := llmtest.NewScript(
		llmtest.Request("propose_plan", map[string]any{"tasks": planTasks}),
		llmtest.Answer("Plan ready."),
		// Rejected before any task is tried.
		llmtest.Request("commit_plan", map[string]any{"tasks": "[]"}),
		llmtest.Answer("Something went wrong."),
	).WithCompletions(intentJSON("planning"))
	h := newHarness(t, script)

	h.submit(t, "plan my report")
	resp := h.submit(t, "yes")

	assert.Equal(t, StatusSuccess, resp.Status)
	assert.Contains(t, resp.ResponseText, "Committed 1 of 1 task(s).")
	assert.True(t, hasTrace(resp.Trace, "SCHEDULER -> act commit_plan=error"), resp.Trace)
	assert.Len(t, h.events(t), 1)
}

func TestSubmit_PlanConfirmedSchedulerConflict(t *testing.T) {
	script := llmtest.NewScript(
		llmtest.Request("propose_plan", map[string]any{"tasks": planTasks}),
		llmtest.Answer("Plan ready."),
		llmtest.Request("commit_plan", map[string]any{"tasks": planTasks}),
		llmtest.Answer("Write report clashes with your dentist appointment."),
	).WithCompletions(intentJSON("planning"))
	h := newHarness(t, script)

	h.submit(t, "plan my report")

	start := time.Date(2025, 1, 16, 10, 0, 0, 0, time.UTC)
	_, err := h.sc.Engine().Add(context.Background(), user, calendar.EventInput{
		Title: "Dentist", Start: start, End: start.Add(time.Hour),
	}, false)
	require.NoError(t, err)

	resp := h.submit(t, "confirm")
	assert.Equal(t, StatusError, resp.Status)
	assert.Equal(t, "Write report clashes with your dentist appointment.", resp.ResponseText)
	assert.True(t, hasTrace(resp.Trace, "COMMIT -> 0 of 1 task(s) committed, 1 conflict(s)"), resp.Trace)
	assert.Len(t, h.events(t), 1, "only the dentist")
}

func TestSubmit_PlanConfirmedSchedulerFailsAfterCommit(t *testing.T) {
	script := llmtest.NewScript(
		llmtest.Request("propose_plan", map[string]any{"tasks": planTasks}),
		llmtest.Answer("Plan ready."),
		llmtest.Request("commit_plan", map[string]any{"tasks": planTasks}),
		llmtest.Fail(errors.New("model unavailable")),
	).WithCompletions(intentJSON("planning"))
	h := newHarness(t, script)

	h.submit(t, "plan my report")
	resp := h.submit(t, "yes")

	assert.Equal(t, StatusSuccess, resp.Status)
	assert.Contains(t, resp.ResponseText, "The plan was committed, but the scheduler did not finish")
	assert.True(t, hasTrace(resp.Trace, "SCHEDULER -> act commit_plan=success"), resp.Trace)
	assert.True(t, hasTrace(resp.Trace, "SCHEDULER -> error:"), resp.Trace)
	assert.Len(t, h.events(t), 1, "the plan is committed once")
}
