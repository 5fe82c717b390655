package batch

import (
	"errors"
	"testing"

	"github.com/teemow/calendaragent/internal/agent"
)

func TestParseStringOrArray(t *testing.T) {
	tests := []struct {
		name      string
		input     interface{}
		paramName string
		want      []string
		wantErr   bool
	}{
		{
			name:      "single string",
			input:     "test123",
			paramName: "testParam",
			want:      []string{"test123"},
		},
		{
			name:      "comma separated",
			input:     "id1, id2,,id3",
			paramName: "testParam",
			want:      []string{"id1", "id2", "id3"},
		},
		{
			name:      "array of strings",
			input:     []interface{}{"id1", "id2", "id3"},
			paramName: "testParam",
			want:      []string{"id1", "id2", "id3"},
		},
		{
			name:      "string slice",
			input:     []string{"id1", "id2"},
			paramName: "testParam",
			want:      []string{"id1", "id2"},
		},
		{
			name:      "JSON string array",
			input:     `["id1", "id2", "id3"]`,
			paramName: "testParam",
			want:      []string{"id1", "id2", "id3"},
		},
		{
			name:      "nil input",
			input:     nil,
			paramName: "testParam",
			wantErr:   true,
		},
		{
			name:      "empty string",
			input:     "",
			paramName: "testParam",
			wantErr:   true,
		},
		{
			name:      "only commas",
			input:     " , ,",
			paramName: "testParam",
			wantErr:   true,
		},
		{
			name:      "empty array",
			input:     []interface{}{},
			paramName: "testParam",
			wantErr:   true,
		},
		{
			name:      "array with non-string",
			input:     []interface{}{"id1", 123, "id3"},
			paramName: "testParam",
			wantErr:   true,
		},
		{
			name:      "array with empty string",
			input:     []interface{}{"id1", "", "id3"},
			paramName: "testParam",
			wantErr:   true,
		},
		{
			name:      "invalid JSON array",
			input:     `["id1",`,
			paramName: "testParam",
			wantErr:   true,
		},
		{
			name:      "invalid type",
			input:     123,
			paramName: "testParam",
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStringOrArray(tt.input, tt.paramName)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseStringOrArray() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !stringSliceEqual(got, tt.want) {
				t.Errorf("ParseStringOrArray() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProcessBatch(t *testing.T) {
	ids := []string{"a", "b", "c", "d"}
	results := ProcessBatch(ids, func(id string) (Result, error) {
		switch id {
		case "b":
			return Result{}, errors.New("boom")
		case "c":
			return Result{Status: agent.StatusConflict}, nil
		case "d":
			return Result{Status: agent.StatusWarning}, nil
		}
		return NewSuccessResult(id, "ok"), nil
	})

	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	for i, id := range ids {
		if results[i].ID != id {
			t.Errorf("results[%d].ID = %s, want %s", i, results[i].ID, id)
		}
	}
	if results[1].Status != agent.StatusError || results[1].Error != "boom" {
		t.Errorf("unexpected error result: %+v", results[1])
	}

	br := Summarize(results)
	if br.Total != 4 || br.Successful != 2 || br.Conflicts != 1 || br.Failed != 1 {
		t.Errorf("unexpected summary: %+v", br)
	}
	if br.Status() != agent.StatusWarning {
		t.Errorf("Status() = %s, want warning", br.Status())
	}
}

func TestBatchResultStatus(t *testing.T) {
	tests := []struct {
		name    string
		results []Result
		want    string
	}{
		{"all success", []Result{{Status: agent.StatusSuccess}}, agent.StatusSuccess},
		{"only conflicts", []Result{{Status: agent.StatusConflict}}, agent.StatusConflict},
		{"conflict and error", []Result{{Status: agent.StatusConflict}, {Status: agent.StatusError}}, agent.StatusError},
		{"empty", nil, agent.StatusError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Summarize(tt.results).Status(); got != tt.want {
				t.Errorf("Status() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNewSuccessResult(t *testing.T) {
	result := NewSuccessResult("test-id", "test message")

	if result.ID != "test-id" {
		t.Errorf("ID = %s, want test-id", result.ID)
	}
	if result.Status != agent.StatusSuccess {
		t.Errorf("Status = %s, want success", result.Status)
	}
	if result.Result != "test message" {
		t.Errorf("Result = %v, want 'test message'", result.Result)
	}
	if result.Error != "" {
		t.Errorf("Error should be empty, got %s", result.Error)
	}
}

func TestNewErrorResult(t *testing.T) {
	result := NewErrorResult("test-id", errors.New("test error"))

	if result.ID != "test-id" {
		t.Errorf("ID = %s, want test-id", result.ID)
	}
	if result.Status != agent.StatusError {
		t.Errorf("Status = %s, want error", result.Status)
	}
	if result.Error != "test error" {
		t.Errorf("Error = %s, want 'test error'", result.Error)
	}
	if result.Result != nil {
		t.Errorf("Result should be empty, got %v", result.Result)
	}
}

// Helper function to compare string slices
func stringSliceEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
