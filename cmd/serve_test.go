package cmd

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/teemow/calendaragent/internal/server"
)

func TestParseCommaSeparatedList(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: nil,
		},
		{
			name:     "single value",
			input:    "work",
			expected: []string{"work"},
		},
		{
			name:     "multiple values",
			input:    "work,meeting",
			expected: []string{"work", "meeting"},
		},
		{
			name:     "values with spaces around comma",
			input:    "work, meeting",
			expected: []string{"work", "meeting"},
		},
		{
			name:     "values with leading/trailing spaces",
			input:    "  work  ,  meeting  ",
			expected: []string{"work", "meeting"},
		},
		{
			name:     "trailing comma",
			input:    "work,meeting,",
			expected: []string{"work", "meeting"},
		},
		{
			name:     "leading comma",
			input:    ",work,meeting",
			expected: []string{"work", "meeting"},
		},
		{
			name:     "multiple consecutive commas",
			input:    "work,,meeting",
			expected: []string{"work", "meeting"},
		},
		{
			name:     "only commas and spaces",
			input:    ",  , , ",
			expected: nil,
		},
		{
			name:     "single value with surrounding whitespace",
			input:    "  study  ",
			expected: []string{"study"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseCommaSeparatedList(tt.input)

			// Handle nil vs empty slice comparison
			if tt.expected == nil {
				if result != nil {
					t.Errorf("parseCommaSeparatedList(%q) = %v, want nil", tt.input, result)
				}
				return
			}

			if len(result) != len(tt.expected) {
				t.Errorf("parseCommaSeparatedList(%q) = %v (len %d), want %v (len %d)",
					tt.input, result, len(result), tt.expected, len(tt.expected))
				return
			}

			for i, v := range result {
				if v != tt.expected[i] {
					t.Errorf("parseCommaSeparatedList(%q)[%d] = %q, want %q",
						tt.input, i, v, tt.expected[i])
				}
			}
		})
	}
}

func TestRequireUser(t *testing.T) {
	sessions := server.NewSessionIDManagerWithLogger(time.Hour, nil)
	defer sessions.Stop()

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := requireUser(sessions, next)

	tests := []struct {
		name   string
		header map[string]string
		want   int
	}{
		{name: "no identity", want: http.StatusUnauthorized},
		{name: "user header", header: map[string]string{server.UserIDHeader: "alice"}, want: http.StatusNoContent},
		{name: "bearer token", header: map[string]string{"Authorization": "Bearer secret"}, want: http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
