package instrumentation

import "strings"

// Label values come from model output and user input. Bound them before
// they reach a metric.

// LabelOther replaces label values outside an allowed set.
const LabelOther = "other"

// maxLabelLength caps free-form label values.
const maxLabelLength = 48

// BoundLabel returns value when it is in allowed, LabelOther otherwise.
// An empty value maps to "unknown".
//
//	BoundLabel("add_event", known)        // "add_event"
//	BoundLabel("drop_table_users", known) // "other"
func BoundLabel(value string, allowed map[string]bool) string {
	if value == "" {
		return "unknown"
	}
	if allowed[value] {
		return value
	}
	return LabelOther
}

// SanitizeLabel lowercases value, replaces anything outside [a-z0-9_] with
// an underscore and truncates the result.
func SanitizeLabel(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return "unknown"
	}
	var b strings.Builder
	for _, r := range value {
		if b.Len() >= maxLabelLength {
			break
		}
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}
