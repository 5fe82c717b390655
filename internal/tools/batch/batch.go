package batch

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/teemow/calendaragent/internal/agent"
)

// Result is the outcome of one item in a batch.
type Result struct {
	ID        string `json:"id"`
	Title     string `json:"title,omitempty"`
	Status    string `json:"status"` // success, warning, conflict, not_found or error
	Result    any    `json:"result,omitempty"`
	Conflicts any    `json:"conflicts,omitempty"`
	Error     string `json:"error,omitempty"`
}

// BatchResult aggregates the results of a batch.
type BatchResult struct {
	Total      int      `json:"total"`
	Successful int      `json:"successful"`
	Conflicts  int      `json:"conflicts"`
	Failed     int      `json:"failed"`
	Results    []Result `json:"results"`
}

// Status is the overall status of the batch: success when every item
// succeeded, warning on partial success, otherwise conflict or error.
func (b BatchResult) Status() string {
	switch {
	case b.Total > 0 && b.Successful == b.Total:
		return agent.StatusSuccess
	case b.Successful > 0:
		return agent.StatusWarning
	case b.Conflicts > 0 && b.Failed == 0:
		return agent.StatusConflict
	default:
		return agent.StatusError
	}
}

// ParseStringOrArray parses a parameter that can be a single string, a
// comma-separated string, a JSON array string or an array of strings.
func ParseStringOrArray(param any, paramName string) ([]string, error) {
	if param == nil {
		return nil, fmt.Errorf("%s is required", paramName)
	}

	var result []string

	switch v := param.(type) {
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			return nil, fmt.Errorf("%s cannot be empty", paramName)
		}
		if strings.HasPrefix(v, "[") {
			var items []any
			if err := json.Unmarshal([]byte(v), &items); err != nil {
				return nil, fmt.Errorf("%s is not a valid JSON array: %w", paramName, err)
			}
			return ParseStringOrArray(items, paramName)
		}
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				result = append(result, part)
			}
		}
	case []any:
		if len(v) == 0 {
			return nil, fmt.Errorf("%s cannot be empty", paramName)
		}
		for i, item := range v {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s[%d] must be a string", paramName, i)
			}
			if strings.TrimSpace(str) == "" {
				return nil, fmt.Errorf("%s[%d] cannot be empty", paramName, i)
			}
			result = append(result, strings.TrimSpace(str))
		}
	case []string:
		return ParseStringOrArray(toAny(v), paramName)
	default:
		return nil, fmt.Errorf("%s must be a string or array of strings", paramName)
	}

	if len(result) == 0 {
		return nil, fmt.Errorf("%s cannot be empty", paramName)
	}
	return result, nil
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

// Summarize counts results by status.
func Summarize(results []Result) BatchResult {
	br := BatchResult{
		Total:   len(results),
		Results: results,
	}
	if br.Results == nil {
		br.Results = []Result{}
	}

	for _, r := range results {
		switch r.Status {
		case agent.StatusSuccess, agent.StatusWarning:
			br.Successful++
		case agent.StatusConflict:
			br.Conflicts++
		default:
			br.Failed++
		}
	}
	return br
}

// ProcessBatch runs fn on each id in order and collects the results. An
// error from fn becomes an error result; processing continues.
func ProcessBatch(ids []string, fn func(id string) (Result, error)) []Result {
	results := make([]Result, 0, len(ids))

	for _, id := range ids {
		res, err := fn(id)
		if err != nil {
			res = NewErrorResult(id, err)
		}
		if res.ID == "" {
			res.ID = id
		}
		if res.Status == "" {
			res.Status = agent.StatusSuccess
		}
		results = append(results, res)
	}

	return results
}

// NewSuccessResult creates a success result.
func NewSuccessResult(id string, result any) Result {
	return Result{
		ID:     id,
		Status: agent.StatusSuccess,
		Result: result,
	}
}

// NewErrorResult creates an error result.
func NewErrorResult(id string, err error) Result {
	return Result{
		ID:     id,
		Status: agent.StatusError,
		Error:  err.Error(),
	}
}
