package calendar_tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/calendaragent/internal/agent"
	"github.com/teemow/calendaragent/internal/llm"
	"github.com/teemow/calendaragent/internal/server"
	"github.com/teemow/calendaragent/internal/server/servertest"
)

type harness struct {
	t        *testing.T
	ctx      context.Context
	registry *agent.Registry
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	sc := servertest.New(t)
	r := agent.NewRegistry()
	require.NoError(t, RegisterCalendarTools(r, sc))
	return &harness{
		t:        t,
		ctx:      server.WithUserID(context.Background(), "alice"),
		registry: r,
	}
}

func (h *harness) call(name string, args map[string]any) (string, map[string]any) {
	h.t.Helper()
	res := h.registry.Execute(h.ctx, llm.OperationRequest{ID: "1", Name: name, Arguments: args})
	var body map[string]any
	require.NoError(h.t, json.Unmarshal([]byte(res.Content), &body), res.Content)
	return res.Status, body
}

func (h *harness) addEvent(title, start, end string, force bool) (string, map[string]any) {
	return h.call("add_event", map[string]any{
		"title": title,
		"start": start,
		"end":   end,
		"force": force,
	})
}

func eventID(t *testing.T, body map[string]any) string {
	t.Helper()
	ev, ok := body["event"].(map[string]any)
	require.True(t, ok, "missing event in %v", body)
	id, _ := ev["id"].(string)
	require.NotEmpty(t, id)
	return id
}

func TestRegisterCalendarTools(t *testing.T) {
	h := newHarness(t)
	assert.ElementsMatch(t, []string{
		"add_event", "update_event", "remove_event", "remove_events",
		"get_event", "list_events", "get_free_slots",
	}, h.registry.Names())
}

func TestAddEvent_ConflictScenario(t *testing.T) {
	h := newHarness(t)

	status, body := h.addEvent("A", "2025-01-16T09:00:00Z", "2025-01-16T10:00:00Z", false)
	require.Equal(t, agent.StatusSuccess, status)
	idA := eventID(t, body)

	status, body = h.addEvent("B", "2025-01-16T09:30:00Z", "2025-01-16T10:30:00Z", false)
	require.Equal(t, agent.StatusConflict, status)
	conflicts, ok := body["conflicts"].([]any)
	require.True(t, ok)
	require.Len(t, conflicts, 1)
	assert.Equal(t, idA, conflicts[0].(map[string]any)["id"])

	status, body = h.addEvent("B", "2025-01-16T09:30:00Z", "2025-01-16T10:30:00Z", true)
	require.Equal(t, agent.StatusWarning, status)
	assert.Equal(t, true, body["forced"])
	assert.Len(t, body["conflicts"], 1)
}

func TestAddEvent_Validation(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name string
		args map[string]any
	}{
		{"missing title", map[string]any{"start": "2025-01-16T09:00:00Z", "end": "2025-01-16T10:00:00Z"}},
		{"missing end", map[string]any{"title": "x", "start": "2025-01-16T09:00:00Z"}},
		{"end before start", map[string]any{"title": "x", "start": "2025-01-16T10:00:00Z", "end": "2025-01-16T09:00:00Z"}},
		{"bad status", map[string]any{"title": "x", "start": "2025-01-16T09:00:00Z", "end": "2025-01-16T10:00:00Z", "status": "maybe"}},
		{"bad time", map[string]any{"title": "x", "start": "whenever", "end": "2025-01-16T10:00:00Z"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := h.call("add_event", tt.args)
			assert.Equal(t, agent.StatusError, status)
			assert.NotEmpty(t, body["message"])
		})
	}
}

func TestAddEvent_DurationAndRecurrence(t *testing.T) {
	h := newHarness(t)

	status, body := h.call("add_event", map[string]any{
		"title":            "Focus",
		"start":            "2025-01-16T14:00:00Z",
		"duration_minutes": float64(90),
		"tags":             "deep-work, Focus",
	})
	require.Equal(t, agent.StatusSuccess, status)
	ev := body["event"].(map[string]any)
	assert.Equal(t, "2025-01-16T15:30:00Z", ev["end"])
	assert.Equal(t, []any{"deep-work", "focus"}, ev["tags"])

	status, body = h.call("add_event", map[string]any{
		"title":      "Weekly sync",
		"start":      "2025-01-20T10:00:00Z",
		"end":        "2025-01-20T10:30:00Z",
		"recurrence": "FREQ=WEEKLY;COUNT=3",
	})
	require.Equal(t, agent.StatusSuccess, status)
	assert.Len(t, body["events"], 3)
}

func TestUpdateEvent(t *testing.T) {
	h := newHarness(t)

	_, body := h.addEvent("A", "2025-01-16T09:00:00Z", "2025-01-16T10:00:00Z", false)
	idA := eventID(t, body)
	_, body = h.addEvent("B", "2025-01-16T11:00:00Z", "2025-01-16T12:00:00Z", false)
	idB := eventID(t, body)

	status, _ := h.call("update_event", map[string]any{
		"event_id": idB,
		"start":    "2025-01-16T09:30:00Z",
		"end":      "2025-01-16T10:30:00Z",
	})
	require.Equal(t, agent.StatusConflict, status)

	status, body = h.call("get_event", map[string]any{"event_id": idB})
	require.Equal(t, agent.StatusSuccess, status)
	assert.Equal(t, "2025-01-16T11:00:00Z", body["event"].(map[string]any)["start"])

	status, body = h.call("update_event", map[string]any{"event_id": idA, "title": "A2"})
	require.Equal(t, agent.StatusSuccess, status)
	assert.Equal(t, "A2", body["event"].(map[string]any)["title"])

	status, _ = h.call("update_event", map[string]any{"event_id": idA})
	assert.Equal(t, agent.StatusError, status)

	status, _ = h.call("update_event", map[string]any{"event_id": "missing", "title": "x"})
	assert.Equal(t, agent.StatusNotFound, status)
}

func TestRemoveEvents(t *testing.T) {
	h := newHarness(t)

	_, body := h.addEvent("A", "2025-01-16T09:00:00Z", "2025-01-16T10:00:00Z", false)
	idA := eventID(t, body)
	_, body = h.addEvent("B", "2025-01-16T11:00:00Z", "2025-01-16T12:00:00Z", false)
	idB := eventID(t, body)

	status, _ := h.call("remove_event", map[string]any{"event_id": idA})
	require.Equal(t, agent.StatusSuccess, status)

	status, _ = h.call("get_event", map[string]any{"event_id": idA})
	assert.Equal(t, agent.StatusNotFound, status)

	status, body = h.call("remove_events", map[string]any{"event_ids": idA + "," + idB})
	assert.Equal(t, agent.StatusWarning, status)
	assert.EqualValues(t, 1, body["successful"])
	results := body["results"].([]any)
	require.Len(t, results, 2)
	assert.Equal(t, agent.StatusNotFound, results[0].(map[string]any)["status"])
	assert.Equal(t, agent.StatusSuccess, results[1].(map[string]any)["status"])

	status, _ = h.call("remove_events", map[string]any{"event_ids": []any{idA, idB}})
	assert.Equal(t, agent.StatusNotFound, status)
}

func TestListEvents(t *testing.T) {
	h := newHarness(t)

	h.call("add_event", map[string]any{"title": "late", "start": "2025-01-16T15:00:00Z", "end": "2025-01-16T16:00:00Z", "tags": "work"})
	h.call("add_event", map[string]any{"title": "early", "start": "2025-01-16T09:00:00Z", "end": "2025-01-16T10:00:00Z", "tags": "personal"})
	h.call("add_event", map[string]any{"title": "next day", "start": "2025-01-17T09:00:00Z", "end": "2025-01-17T10:00:00Z", "tags": "work"})

	status, body := h.call("list_events", map[string]any{
		"start": "2025-01-16T00:00:00Z",
		"end":   "2025-01-17T00:00:00Z",
	})
	require.Equal(t, agent.StatusSuccess, status)
	events := body["events"].([]any)
	require.Len(t, events, 2)
	assert.Equal(t, "early", events[0].(map[string]any)["title"])
	assert.Equal(t, "late", events[1].(map[string]any)["title"])

	_, body = h.call("list_events", map[string]any{"tags": "work"})
	assert.EqualValues(t, 2, body["count"])
}

func TestGetFreeSlots(t *testing.T) {
	h := newHarness(t)

	status, body := h.call("get_free_slots", map[string]any{
		"start": "2025-01-16T00:00:00Z",
		"end":   "2025-01-17T00:00:00Z",
	})
	require.Equal(t, agent.StatusSuccess, status)
	slots := body["free_slots"].([]any)
	require.Len(t, slots, 1)
	slot := slots[0].(map[string]any)
	assert.Equal(t, "2025-01-16T09:00:00Z", slot["start"])
	assert.Equal(t, "2025-01-16T18:00:00Z", slot["end"])
	assert.EqualValues(t, 540, body["total_duration"])
	assert.EqualValues(t, 1, body["total_slots"])
	assert.NotNil(t, body["query_range"])

	h.addEvent("A", "2025-01-16T12:00:00Z", "2025-01-16T13:00:00Z", false)
	_, body = h.call("get_free_slots", map[string]any{
		"start":        "2025-01-16T00:00:00Z",
		"end":          "2025-01-17T00:00:00Z",
		"min_duration": float64(60),
	})
	assert.Len(t, body["free_slots"], 2)
	assert.EqualValues(t, 480, body["total_duration"])

	status, _ = h.call("get_free_slots", map[string]any{"start": "2025-01-16T00:00:00Z"})
	assert.Equal(t, agent.StatusError, status)
}

func TestUserIsolation(t *testing.T) {
	h := newHarness(t)
	_, body := h.addEvent("A", "2025-01-16T09:00:00Z", "2025-01-16T10:00:00Z", false)
	id := eventID(t, body)

	other := server.WithUserID(context.Background(), "bob")
	res := h.registry.Execute(other, llm.OperationRequest{Name: "get_event", Arguments: map[string]any{"event_id": id}})
	assert.Equal(t, agent.StatusNotFound, res.Status)
}
