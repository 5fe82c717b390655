package timeutil

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

type relativeWord struct {
	words []string
	shift func(time.Time) time.Time
}

// Order matters: longer phrases that contain shorter ones come first.
var relativeWords = []relativeWord{
	{[]string{"day after tomorrow", "后天"}, func(t time.Time) time.Time { return t.AddDate(0, 0, 2) }},
	{[]string{"明天", "tomorrow"}, func(t time.Time) time.Time { return t.AddDate(0, 0, 1) }},
	{[]string{"今天", "today", "tonight", "今晚"}, func(t time.Time) time.Time { return t }},
	{[]string{"昨天", "yesterday"}, func(t time.Time) time.Time { return t.AddDate(0, 0, -1) }},
	{[]string{"下周", "next week"}, func(t time.Time) time.Time { return t.AddDate(0, 0, 7) }},
	{[]string{"上周", "last week"}, func(t time.Time) time.Time { return t.AddDate(0, 0, -7) }},
	{[]string{"下个月", "next month"}, func(t time.Time) time.Time { return t.AddDate(0, 1, 0) }},
	{[]string{"上个月", "last month"}, func(t time.Time) time.Time { return t.AddDate(0, -1, 0) }},
}

var (
	clockPattern = regexp.MustCompile(`(\d{1,2})(?::(\d{2}))?`)
	pmSuffix     = regexp.MustCompile(`\d\s*(pm|p\.m\.)`)
	amSuffix     = regexp.MustCompile(`\d\s*(am|a\.m\.)`)
	pmMarkers    = []string{"下午", "晚上", "今晚", "tonight"}
	amMarkers    = []string{"上午", "早上"}
)

func isPM(lower string) bool {
	return containsAny(lower, pmMarkers) || pmSuffix.MatchString(lower)
}

func isAM(lower string) bool {
	return containsAny(lower, amMarkers) || amSuffix.MatchString(lower)
}

// ParseRelative resolves day-relative phrases ("tomorrow 3pm", "明天下午3点",
// "next week 10:30") against ref. Without a clock time the result is
// midnight of the shifted day. It reports false when no relative phrase is
// present or the clock time is out of range.
func ParseRelative(ref time.Time, text string) (time.Time, bool) {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return time.Time{}, false
	}

	for _, rw := range relativeWords {
		if !containsAny(lower, rw.words) {
			continue
		}
		day := rw.shift(ref)
		hour, minute := 0, 0
		if m := clockPattern.FindStringSubmatch(lower); m != nil {
			hour, _ = strconv.Atoi(m[1])
			if m[2] != "" {
				minute, _ = strconv.Atoi(m[2])
			}
			switch {
			case isPM(lower):
				if hour < 12 {
					hour += 12
				}
			case isAM(lower):
				if hour == 12 {
					hour = 0
				}
			}
		}
		if hour > 23 || minute > 59 {
			return time.Time{}, false
		}
		return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, ref.Location()), true
	}
	return time.Time{}, false
}

// Parse accepts RFC 3339, common absolute layouts and relative phrases.
// Absolute values without an offset are read in ref's location.
func Parse(ref time.Time, text string) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, text); err == nil {
		return t.In(ref.Location()), true
	}
	if t, ok := ParseRelative(ref, text); ok {
		return t, true
	}
	t, err := dateparse.ParseIn(text, ref.Location())
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
