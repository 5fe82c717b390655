package timeutil

import (
	"testing"
	"time"
)

// Wednesday.
var ref = time.Date(2025, time.March, 12, 10, 0, 0, 0, time.UTC)

func TestParseRelative(t *testing.T) {
	tests := []struct {
		text   string
		want   time.Time
		wantOK bool
	}{
		{"明天下午3点", time.Date(2025, 3, 13, 15, 0, 0, 0, time.UTC), true},
		{"tomorrow 3pm", time.Date(2025, 3, 13, 15, 0, 0, 0, time.UTC), true},
		{"Tomorrow at 3 PM", time.Date(2025, 3, 13, 15, 0, 0, 0, time.UTC), true},
		{"day after tomorrow 9:30", time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC), true},
		{"后天", time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC), true},
		{"今天上午12点", time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC), true},
		{"yesterday", time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC), true},
		{"next week 10:30", time.Date(2025, 3, 19, 10, 30, 0, 0, time.UTC), true},
		{"上周", time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC), true},
		{"下个月", time.Date(2025, 4, 12, 0, 0, 0, 0, time.UTC), true},
		{"last month", time.Date(2025, 2, 12, 0, 0, 0, 0, time.UTC), true},
		{"team sync tomorrow 12", time.Date(2025, 3, 13, 12, 0, 0, 0, time.UTC), true},
		{"tonight 8", time.Date(2025, 3, 12, 20, 0, 0, 0, time.UTC), true},
		{"tomorrow 25:00", time.Time{}, false},
		{"meeting with bob", time.Time{}, false},
		{"", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := ParseRelative(ref, tt.text)
			if ok != tt.wantOK {
				t.Fatalf("ParseRelative(%q) ok = %v, want %v", tt.text, ok, tt.wantOK)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("ParseRelative(%q) = %s, want %s", tt.text, got, tt.want)
			}
		})
	}
}

func TestParseRelative_IsPure(t *testing.T) {
	a, _ := ParseRelative(ref, "明天")
	b, _ := ParseRelative(ref, "明天")
	if !a.Equal(b) {
		t.Errorf("same inputs gave different results: %s vs %s", a, b)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		text   string
		want   time.Time
		wantOK bool
	}{
		{"2025-03-20T14:00:00Z", time.Date(2025, 3, 20, 14, 0, 0, 0, time.UTC), true},
		{"2025-03-20T14:00:00+02:00", time.Date(2025, 3, 20, 12, 0, 0, 0, time.UTC), true},
		{"2025-03-20 14:00", time.Date(2025, 3, 20, 14, 0, 0, 0, time.UTC), true},
		{"tomorrow 9am", time.Date(2025, 3, 13, 9, 0, 0, 0, time.UTC), true},
		{"whenever works", time.Time{}, false},
		{"  ", time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := Parse(ref, tt.text)
			if ok != tt.wantOK {
				t.Fatalf("Parse(%q) ok = %v, want %v", tt.text, ok, tt.wantOK)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("Parse(%q) = %s, want %s", tt.text, got, tt.want)
			}
		})
	}
}
