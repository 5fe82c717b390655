package orchestrator

import (
	"regexp"
	"strings"
)

// Decision is the user's answer to a pending plan.
type Decision string

const (
	DecisionConfirmed Decision = "confirmed"
	DecisionRevise    Decision = "revise"
	DecisionEnd       Decision = "end"
)

var (
	cancelWords  = []string{"no", "cancel", "stop", "discard", "forget it", "取消", "不要", "算了", "不用"}
	confirmWords = []string{"yes", "ok", "okay", "confirm", "sure", "go ahead", "确认", "同意", "好的", "可以"}
	reviseWords  = []string{"revise", "change", "modify", "adjust", "instead", "修改", "调整", "重新"}

	cancelMatcher  = feedbackMatcher(cancelWords)
	confirmMatcher = feedbackMatcher(confirmWords)
	reviseMatcher  = feedbackMatcher(reviseWords)
)

// feedbackMatcher matches ASCII words on word boundaries and CJK words as
// substrings.
func feedbackMatcher(words []string) func(string) bool {
	var ascii []string
	var cjk []string
	for _, w := range words {
		if isASCII(w) {
			ascii = append(ascii, regexp.QuoteMeta(w))
		} else {
			cjk = append(cjk, w)
		}
	}
	re := regexp.MustCompile(`\b(?:` + strings.Join(ascii, "|") + `)\b`)
	return func(text string) bool {
		if re.MatchString(text) {
			return true
		}
		for _, w := range cjk {
			if strings.Contains(text, w) {
				return true
			}
		}
		return false
	}
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

// ClassifyFeedback decides what to do with a pending plan. Revise words
// win over cancel words and cancel words win over confirm words: "no,
// change the time" is a revision and "ok, cancel it" is not a
// confirmation. The bool is false when nothing matched; the plan then ends
// and the utterance is handled as a new request.
func ClassifyFeedback(text string) (Decision, bool) {
	t := strings.ToLower(strings.TrimSpace(text))
	switch {
	case reviseMatcher(t):
		return DecisionRevise, true
	case cancelMatcher(t):
		return DecisionEnd, true
	case confirmMatcher(t):
		return DecisionConfirmed, true
	default:
		return DecisionEnd, false
	}
}
