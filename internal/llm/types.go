package llm

import (
	"context"
	"encoding/json"
)

// Role identifies the author of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleOperation carries the result of an operation the assistant requested.
	RoleOperation Role = "operation"
)

// Message is one entry in a conversation history. Assistant messages may
// carry operation requests; operation messages carry exactly one result.
type Message struct {
	Role     Role               `json:"role"`
	Content  string             `json:"content,omitempty"`
	Requests []OperationRequest `json:"requests,omitempty"`
	Result   *OperationResult   `json:"result,omitempty"`
}

// UserMessage returns a user message with text.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// AssistantMessage returns an assistant message with text.
func AssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Content: text}
}

// OperationRequest asks for one named operation to be executed.
type OperationRequest struct {
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// OperationResult is the tagged outcome of an OperationRequest. Content is
// the JSON payload returned by the operation handler.
type OperationResult struct {
	RequestID string `json:"request_id,omitempty"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	Content   string `json:"content"`
}

// Response decodes Content into a map suitable for a function response.
// Non-object payloads are wrapped under "output".
func (r OperationResult) Response() map[string]any {
	out := map[string]any{"status": r.Status}
	var v any
	if err := json.Unmarshal([]byte(r.Content), &v); err != nil {
		out["output"] = r.Content
		return out
	}
	if m, ok := v.(map[string]any); ok {
		for k, val := range m {
			out[k] = val
		}
		out["status"] = r.Status
		return out
	}
	out["output"] = v
	return out
}

// Operation describes an operation the reasoner may request. Parameters is
// a JSON schema object.
type Operation struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  any    `json:"parameters,omitempty"`
}

// ReasonOutput is the result of one reasoning step: either a FinalAnswer or
// a non-empty OperationRequests.
type ReasonOutput interface {
	isReasonOutput()
}

// FinalAnswer ends the loop with a response for the user.
type FinalAnswer struct {
	Text string
}

// OperationRequests asks the loop to execute operations and reason again.
type OperationRequests struct {
	// Thought is optional text emitted alongside the requests.
	Thought  string
	Requests []OperationRequest
}

func (FinalAnswer) isReasonOutput()       {}
func (OperationRequests) isReasonOutput() {}

// Reasoner runs one reasoning step over a history.
type Reasoner interface {
	Invoke(ctx context.Context, instruction string, history []Message, ops []Operation) (ReasonOutput, error)
}

// Completer produces plain text for a single prompt.
type Completer interface {
	Complete(ctx context.Context, instruction, prompt string) (string, error)
}

// Client is a model that can both reason with operations and complete text.
type Client interface {
	Reasoner
	Completer
}
