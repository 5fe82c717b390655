package orchestrator

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/calendaragent/internal/agent"
	"github.com/teemow/calendaragent/internal/llm"
	"github.com/teemow/calendaragent/internal/llm/llmtest"
)

func TestRegisterChatTools(t *testing.T) {
	script := llmtest.NewScript(
		llmtest.Request("propose_plan", map[string]any{"tasks": planTasks}),
		llmtest.Answer("Plan ready."),
	).WithCompletions(intentJSON("planning"))
	h := newHarness(t, script)

	reg := agent.NewRegistry()
	require.NoError(t, RegisterChatTools(reg, h.sc, h.o))
	assert.Equal(t, []string{"assistant_chat", "assistant_reset"}, reg.Names())

	ctx := context.Background()

	res := reg.Execute(ctx, llm.OperationRequest{Name: "assistant_chat", Arguments: map[string]any{}})
	assert.Equal(t, agent.StatusError, res.Status)

	res = reg.Execute(ctx, llm.OperationRequest{
		Name:      "assistant_chat",
		Arguments: map[string]any{"message": "plan my report", "user_id": user},
	})
	assert.Equal(t, StatusAwaitingConfirmation, res.Status)
	var resp Response
	require.NoError(t, json.Unmarshal([]byte(res.Content), &resp))
	assert.Equal(t, "Plan ready.", resp.ResponseText)
	require.NotNil(t, resp.Plan)
	assert.Len(t, resp.Plan.Tasks, 1)

	res = reg.Execute(ctx, llm.OperationRequest{Name: "assistant_reset", Arguments: map[string]any{"user_id": user}})
	assert.Contains(t, res.Content, `"reset":true`)
	_, ok := h.o.State(user)
	assert.False(t, ok)
}
