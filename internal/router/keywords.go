package router

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// keywordSet matches CJK keywords as substrings and ASCII keywords on word
// boundaries, so "ok" does not fire inside "book".
type keywordSet struct {
	substrings []string
	words      []*regexp.Regexp
}

func newKeywordSet(keywords ...string) keywordSet {
	var ks keywordSet
	for _, kw := range keywords {
		kw = strings.ToLower(kw)
		if isASCII(kw) {
			ks.words = append(ks.words, regexp.MustCompile(`\b`+regexp.QuoteMeta(kw)+`\b`))
		} else {
			ks.substrings = append(ks.substrings, kw)
		}
	}
	return ks
}

// score counts the keywords found in lower-cased text.
func (ks keywordSet) score(text string) int {
	n := 0
	for _, s := range ks.substrings {
		if strings.Contains(text, s) {
			n++
		}
	}
	for _, re := range ks.words {
		if re.MatchString(text) {
			n++
		}
	}
	return n
}

// matches reports whether any keyword is present.
func (ks keywordSet) matches(text string) bool {
	return ks.score(text) > 0
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return true
}

var (
	schedulingKeywords = newKeywordSet(
		"添加", "删除", "修改", "更新", "会议", "约会", "事件",
		"明天", "后天", "下周", "时间", "几点", "安排",
		"add", "schedule", "book", "delete", "remove", "cancel", "move", "reschedule",
		"meeting", "appointment", "event", "tomorrow", "free slot", "free time", "calendar",
	)

	planningKeywords = newKeywordSet(
		"规划", "计划", "安排", "学习计划", "项目", "任务",
		"帮我", "制定", "设计", "分解",
		"plan", "planning", "project", "task", "tasks", "break down", "study plan", "roadmap", "organize",
	)

	summaryKeywords = newKeywordSet(
		"总结", "分析", "回顾", "表现", "统计", "报告",
		"本周", "本月", "这周", "这月", "总结一下",
		"summary", "summarize", "review", "analyze", "analysis", "statistics", "report",
		"this week", "this month", "how did",
	)

	preferenceKeywords = newKeywordSet(
		"偏好", "喜欢", "习惯", "设置", "配置",
		"我喜欢", "我习惯", "工作时间", "学习时间",
		"prefer", "preference", "preferences", "i like", "habit", "usually", "working hours", "remember that",
	)
)

// fallbackOrder is the tie-break order for keyword scores.
var fallbackOrder = []struct {
	intent string
	set    keywordSet
}{
	{IntentScheduling, schedulingKeywords},
	{IntentPlanning, planningKeywords},
	{IntentSummary, summaryKeywords},
	{IntentPreference, preferenceKeywords},
}

// ClassifyByKeywords scores text against the keyword sets. The highest
// score wins, ties go to the earlier intent in scheduling, planning,
// summary, preference order, and confidence is min(0.8, score*0.2). Text
// matching no keyword is unknown with zero confidence.
func ClassifyByKeywords(text string) Classification {
	lower := strings.ToLower(text)

	best, bestScore := "", 0
	scores := make(map[string]int, len(fallbackOrder))
	for _, c := range fallbackOrder {
		s := c.set.score(lower)
		scores[c.intent] = s
		if s > bestScore {
			best, bestScore = c.intent, s
		}
	}

	if bestScore == 0 {
		return Classification{
			Intent:    IntentUnknown,
			Params:    map[string]any{},
			Reasoning: "no intent keywords matched",
			Method:    MethodKeyword,
		}
	}

	confidence := float64(bestScore) * 0.2
	if confidence > 0.8 {
		confidence = 0.8
	}
	return Classification{
		Intent:     best,
		Confidence: confidence,
		Params:     map[string]any{},
		Reasoning:  keywordReasoning(best, scores),
		Method:     MethodKeyword,
	}
}

func keywordReasoning(best string, scores map[string]int) string {
	parts := make([]string, 0, len(fallbackOrder))
	for _, c := range fallbackOrder {
		parts = append(parts, fmt.Sprintf("%s=%d", c.intent, scores[c.intent]))
	}
	return fmt.Sprintf("keyword match, %s scored highest (%s)", best, strings.Join(parts, ", "))
}
