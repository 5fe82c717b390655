package common

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/calendaragent/internal/agent"
	"github.com/teemow/calendaragent/internal/calendar"
	"github.com/teemow/calendaragent/internal/preferences"
)

// Payload is the JSON body of a tagged result.
type Payload map[string]any

// Tagged returns a result whose JSON body carries status. Error statuses
// also set IsError so MCP clients see the failure.
func Tagged(status string, payload Payload) *mcp.CallToolResult {
	body := make(Payload, len(payload)+1)
	for k, v := range payload {
		body[k] = v
	}
	body["status"] = status

	data, err := json.Marshal(body)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err))
	}
	res := mcp.NewToolResultText(string(data))
	res.IsError = status == agent.StatusError || status == agent.StatusNotFound
	return res
}

// Success returns a success result.
func Success(payload Payload) *mcp.CallToolResult {
	return Tagged(agent.StatusSuccess, payload)
}

// Failure returns an error result with message.
func Failure(format string, args ...any) *mcp.CallToolResult {
	return Tagged(agent.StatusError, Payload{"message": fmt.Sprintf(format, args...)})
}

// FromError maps a domain error onto a tagged result. Validation errors and
// missing records are results, not handler errors.
func FromError(err error) *mcp.CallToolResult {
	var verr *calendar.ValidationError
	switch {
	case errors.Is(err, calendar.ErrNotFound), errors.Is(err, preferences.ErrNotFound):
		return Tagged(agent.StatusNotFound, Payload{"message": err.Error()})
	case errors.As(err, &verr):
		return Tagged(agent.StatusError, Payload{"message": err.Error(), "field": verr.Field})
	default:
		return Tagged(agent.StatusError, Payload{"message": err.Error()})
	}
}

// MutationResult converts a calendar.Result. Forced writes that accepted
// overlaps are tagged as warnings.
func MutationResult(res *calendar.Result) *mcp.CallToolResult {
	payload := Payload{}
	if res.Event != nil {
		payload["event"] = res.Event
	}
	if len(res.Events) > 0 {
		payload["events"] = res.Events
	}
	if len(res.Conflicts) > 0 {
		payload["conflicts"] = res.Conflicts
	}

	switch {
	case res.Status == calendar.ResultConflict:
		payload["message"] = fmt.Sprintf("time conflicts with %d existing event(s); retry with force=true to override", len(res.Conflicts))
		return Tagged(agent.StatusConflict, payload)
	case res.Forced:
		payload["forced"] = true
		payload["message"] = fmt.Sprintf("saved despite %d overlapping event(s)", len(res.Conflicts))
		return Tagged(agent.StatusWarning, payload)
	default:
		return Success(payload)
	}
}
