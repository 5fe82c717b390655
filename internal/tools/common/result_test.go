package common

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/calendaragent/internal/agent"
	"github.com/teemow/calendaragent/internal/calendar"
	"github.com/teemow/calendaragent/internal/preferences"
)

func decode(t *testing.T, res *mcp.CallToolResult) map[string]any {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(tc.Text), &out))
	return out
}

func TestTagged(t *testing.T) {
	res := Tagged(agent.StatusNotFound, Payload{"message": "gone"})
	body := decode(t, res)

	assert.Equal(t, agent.StatusNotFound, body["status"])
	assert.Equal(t, "gone", body["message"])
	assert.True(t, res.IsError)

	ok := Success(Payload{"status": "ignored"})
	assert.Equal(t, agent.StatusSuccess, decode(t, ok)["status"])
	assert.False(t, ok.IsError)
}

func TestFromError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"event not found", fmt.Errorf("get: %w", calendar.ErrNotFound), agent.StatusNotFound},
		{"preference not found", preferences.ErrNotFound, agent.StatusNotFound},
		{"validation", &calendar.ValidationError{Field: "title", Message: "required"}, agent.StatusError},
		{"other", fmt.Errorf("disk full"), agent.StatusError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := decode(t, FromError(tt.err))
			assert.Equal(t, tt.want, body["status"])
			assert.NotEmpty(t, body["message"])
		})
	}
}

func TestMutationResult(t *testing.T) {
	conflict := calendar.Event{ID: "e1", Title: "Standup"}

	t.Run("conflict", func(t *testing.T) {
		body := decode(t, MutationResult(&calendar.Result{
			Status:    calendar.ResultConflict,
			Conflicts: []calendar.Event{conflict},
		}))
		assert.Equal(t, agent.StatusConflict, body["status"])
		assert.Len(t, body["conflicts"], 1)
	})

	t.Run("forced", func(t *testing.T) {
		body := decode(t, MutationResult(&calendar.Result{
			Status:    calendar.ResultSuccess,
			Event:     &calendar.Event{ID: "e2"},
			Conflicts: []calendar.Event{conflict},
			Forced:    true,
		}))
		assert.Equal(t, agent.StatusWarning, body["status"])
		assert.Equal(t, true, body["forced"])
	})

	t.Run("success", func(t *testing.T) {
		body := decode(t, MutationResult(&calendar.Result{
			Status: calendar.ResultSuccess,
			Event:  &calendar.Event{ID: "e3"},
		}))
		assert.Equal(t, agent.StatusSuccess, body["status"])
		assert.NotNil(t, body["event"])
	})
}
