package router

import (
	"regexp"
	"strings"
)

var timeMentionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\d{1,2}:\d{2}`),
	regexp.MustCompile(`\d{1,2}点(半)?`),
	regexp.MustCompile(`(?i)\b\d{1,2}(:\d{2})?\s*(am|pm)\b`),
	regexp.MustCompile(`上午|下午|晚上|中午|早上`),
	regexp.MustCompile(`今天|明天|后天|下周|本周|下个月`),
	regexp.MustCompile(`(?i)\b(today|tonight|tomorrow|day after tomorrow|next week|next month|morning|afternoon|evening)\b`),
}

// ExtractParameters pulls intent-specific hints out of text:
//   - scheduling: "time_mentions", every time expression found
//   - planning: "task_description" and "time_range"
//   - summary: "period", daily, weekly or monthly (default weekly)
//   - preference: "preference_description"
func ExtractParameters(text, intent string) map[string]any {
	params := map[string]any{}

	switch intent {
	case IntentScheduling:
		var mentions []string
		seen := map[string]bool{}
		for _, re := range timeMentionPatterns {
			for _, m := range re.FindAllString(text, -1) {
				if !seen[m] {
					seen[m] = true
					mentions = append(mentions, m)
				}
			}
		}
		if len(mentions) > 0 {
			params["time_mentions"] = mentions
		}

	case IntentPlanning:
		params["task_description"] = text
		params["time_range"] = "unspecified"

	case IntentSummary:
		params["period"] = summaryPeriod(text)

	case IntentPreference:
		params["preference_description"] = text
	}

	return params
}

func summaryPeriod(text string) string {
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, "本周", "这周", "this week", "weekly", "week"):
		return "weekly"
	case containsAny(lower, "本月", "这月", "this month", "monthly", "month"):
		return "monthly"
	case containsAny(lower, "今天", "today", "daily"):
		return "daily"
	default:
		return "weekly"
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
