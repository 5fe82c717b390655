package llm

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyClient struct {
	failures int32
	err      error
	calls    atomic.Int32
}

func (f *flakyClient) Invoke(ctx context.Context, instruction string, history []Message, ops []Operation) (ReasonOutput, error) {
	n := f.calls.Add(1)
	if n <= f.failures {
		return nil, f.err
	}
	return FinalAnswer{Text: "ok"}, nil
}

func (f *flakyClient) Complete(ctx context.Context, instruction, prompt string) (string, error) {
	n := f.calls.Add(1)
	if n <= f.failures {
		return "", f.err
	}
	return "done", nil
}

func fastPolicy() RetryPolicy {
	return RetryPolicy{MaxTries: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func TestRetrying_RetriesRateLimit(t *testing.T) {
	inner := &flakyClient{failures: 2, err: classify(errors.New("Error 429, Status: RESOURCE_EXHAUSTED"))}
	c := WithRetry(inner, fastPolicy(), nil, nil)

	out, err := c.Invoke(context.Background(), "", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, FinalAnswer{Text: "ok"}, out)
	assert.Equal(t, int32(3), inner.calls.Load())
}

func TestRetrying_Exhausted(t *testing.T) {
	inner := &flakyClient{failures: 10, err: classify(errors.New("rate limit exceeded"))}
	c := WithRetry(inner, fastPolicy(), nil, nil)

	_, err := c.Complete(context.Background(), "", "hi")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.ErrorIs(t, err, ErrUpstream)
	assert.Equal(t, int32(3), inner.calls.Load())
}

func TestRetrying_OtherErrorsAreTerminal(t *testing.T) {
	inner := &flakyClient{failures: 10, err: classify(errors.New("invalid argument"))}
	c := WithRetry(inner, fastPolicy(), nil, nil)

	_, err := c.Invoke(context.Background(), "", nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstream)
	assert.NotErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestIsRateLimit(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("Error 429"), true},
		{errors.New("RESOURCE_EXHAUSTED: quota"), true},
		{errors.New("Rate limit hit"), true},
		{fmt.Errorf("wrapped: %w", ErrRateLimited), true},
		{errors.New("500 internal"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsRateLimit(tt.err), "%v", tt.err)
	}
}

func TestPacing(t *testing.T) {
	inner := &flakyClient{}
	c := WithPacing(inner, 20*time.Millisecond)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := c.Complete(context.Background(), "", "x")
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 35*time.Millisecond)

	assert.Same(t, Client(inner), WithPacing(inner, 0))
}

func TestPacing_ContextCancelled(t *testing.T) {
	c := WithPacing(&flakyClient{}, time.Hour)
	_, err := c.Complete(context.Background(), "", "first")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = c.Complete(ctx, "", "second")
	assert.Error(t, err)
}

func TestInstrumented_PassesThrough(t *testing.T) {
	c := WithInstrumentation(&flakyClient{failures: 1, err: ErrEmptyResponse}, "test-model", nil)

	_, err := c.Invoke(context.Background(), "", nil, nil)
	assert.ErrorIs(t, err, ErrEmptyResponse)

	text, err := c.Complete(context.Background(), "", "again")
	require.NoError(t, err)
	assert.Equal(t, "done", text)
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"bare", `{"intent":"planning"}`, `{"intent":"planning"}`, true},
		{"fenced", "```json\n{\"intent\": \"summary\"}\n```", `{"intent": "summary"}`, true},
		{"embedded", `Sure! {"intent":"scheduling","params":{"t":"{x}"}} hope it helps`, `{"intent":"scheduling","params":{"t":"{x}"}}`, true},
		{"skips invalid", `{oops} then {"a":1}`, `{"a":1}`, true},
		{"none", "no json here", "", false},
		{"empty", "  ", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractJSON(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOperationResult_Response(t *testing.T) {
	r := OperationResult{Name: "add_event", Status: "conflict", Content: `{"status":"success","conflicts":[1]}`}
	resp := r.Response()
	assert.Equal(t, "conflict", resp["status"])
	assert.Contains(t, resp, "conflicts")

	plain := OperationResult{Name: "x", Status: "error", Content: "boom"}.Response()
	assert.Equal(t, "boom", plain["output"])
}

func TestToContents_GroupsResults(t *testing.T) {
	history := []Message{
		UserMessage("book lunch"),
		{Role: RoleAssistant, Requests: []OperationRequest{{Name: "a"}, {Name: "b"}}},
		{Role: RoleOperation, Result: &OperationResult{Name: "a", Status: "success", Content: `{}`}},
		{Role: RoleOperation, Result: &OperationResult{Name: "b", Status: "success", Content: `{}`}},
		AssistantMessage("done"),
	}
	contents := toContents(history)
	require.Len(t, contents, 4)
	assert.Len(t, contents[1].Parts, 2)
	assert.Len(t, contents[2].Parts, 2)
	assert.Equal(t, "user", string(contents[2].Role))
}
