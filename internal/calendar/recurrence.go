package calendar

import (
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// MaxOccurrences caps how many events one recurring draft may expand to.
const MaxOccurrences = 366

// ExpandRecurrence returns the occurrences of rule anchored at start, each
// lasting end-start. Rules that yield more than limit occurrences are
// rejected rather than truncated.
func ExpandRecurrence(rule string, start, end time.Time, limit int) ([]TimeRange, error) {
	rule = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(rule), "RRULE:"))
	if rule == "" {
		return []TimeRange{{Start: start, End: end}}, nil
	}
	if limit <= 0 {
		limit = MaxOccurrences
	}

	r, err := rrule.StrToRRule(rule)
	if err != nil {
		return nil, invalid("recurrence", "%v", err)
	}
	r.DTStart(start)

	dur := end.Sub(start)
	next := r.Iterator()
	var out []TimeRange
	for {
		occ, ok := next()
		if !ok {
			break
		}
		if len(out) == limit {
			return nil, invalid("recurrence", "rule yields more than %d occurrences; add COUNT or UNTIL", limit)
		}
		out = append(out, TimeRange{Start: occ, End: occ.Add(dur)})
	}
	if len(out) == 0 {
		return nil, invalid("recurrence", "rule yields no occurrences")
	}
	return out, nil
}
