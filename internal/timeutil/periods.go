package timeutil

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Period names accepted by PeriodRange.
const (
	PeriodDaily   = "daily"
	PeriodWeekly  = "weekly"
	PeriodMonthly = "monthly"
)

// StartOfDay returns midnight of t's day in t's location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// PeriodRange returns the half-open range of the day, week (Monday first) or
// month containing ref. Unknown periods fall back to the day.
func PeriodRange(ref time.Time, period string) (time.Time, time.Time) {
	day := StartOfDay(ref)
	switch period {
	case PeriodWeekly:
		offset := (int(day.Weekday()) + 6) % 7
		start := day.AddDate(0, 0, -offset)
		return start, start.AddDate(0, 0, 7)
	case PeriodMonthly:
		start := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, day.Location())
		return start, start.AddDate(0, 1, 0)
	default:
		return day, day.AddDate(0, 0, 1)
	}
}

// WorkWindow is one weekday's working hours.
type WorkWindow struct {
	Date  string    `json:"date"`
	Day   string    `json:"day_of_week"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// WorkingHours lists the weekday working windows between from and to
// (inclusive of to's day). Weekends are skipped.
func WorkingHours(from, to time.Time, startHour, endHour int) []WorkWindow {
	var out []WorkWindow
	for day := StartOfDay(from); !day.After(to); day = day.AddDate(0, 0, 1) {
		if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			continue
		}
		out = append(out, WorkWindow{
			Date:  day.Format("2006-01-02"),
			Day:   day.Weekday().String(),
			Start: time.Date(day.Year(), day.Month(), day.Day(), startHour, 0, 0, 0, day.Location()),
			End:   time.Date(day.Year(), day.Month(), day.Day(), endHour, 0, 0, 0, day.Location()),
		})
	}
	return out
}

// IsBusinessHours reports whether t's hour is in [startHour, endHour).
func IsBusinessHours(t time.Time, startHour, endHour int) bool {
	return t.Hour() >= startHour && t.Hour() < endHour
}

// NextBusinessTime returns t if it falls within working hours, otherwise the
// next start of working hours.
func NextBusinessTime(t time.Time, startHour, endHour int) time.Time {
	if IsBusinessHours(t, startHour, endHour) {
		return t
	}
	day := StartOfDay(t)
	if t.Hour() >= endHour {
		day = day.AddDate(0, 0, 1)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), startHour, 0, 0, 0, t.Location())
}

var rangePattern = regexp.MustCompile(`(\d{1,2})(?::(\d{2}))?\s*点?\s*(?:-|~|到|至|to)\s*(\d{1,2})(?::(\d{2}))?`)

// ParseTimeRange extracts "9:00-11:00" style ranges (also "9到11",
// "2 to 4pm") on the day text refers to, defaulting to ref's day.
func ParseTimeRange(ref time.Time, text string) (time.Time, time.Time, bool) {
	lower := strings.ToLower(text)
	m := rangePattern.FindStringSubmatch(lower)
	if m == nil {
		return time.Time{}, time.Time{}, false
	}
	sh, _ := strconv.Atoi(m[1])
	sm := atoiOrZero(m[2])
	eh, _ := strconv.Atoi(m[3])
	em := atoiOrZero(m[4])
	if isPM(lower) {
		if sh < 12 {
			sh += 12
		}
		if eh < 12 {
			eh += 12
		}
	}
	if sh > 23 || eh > 24 || sm > 59 || em > 59 {
		return time.Time{}, time.Time{}, false
	}

	day := StartOfDay(ref)
	prefix := lower[:strings.Index(lower, m[0])]
	if d, ok := ParseRelative(ref, prefix); ok {
		day = StartOfDay(d)
	}
	start := day.Add(time.Duration(sh)*time.Hour + time.Duration(sm)*time.Minute)
	end := day.Add(time.Duration(eh)*time.Hour + time.Duration(em)*time.Minute)
	if !end.After(start) {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

// FormatDuration renders minutes as "45m", "2h" or "1h30m".
func FormatDuration(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	h, m := minutes/60, minutes%60
	if m == 0 {
		return fmt.Sprintf("%dh", h)
	}
	return fmt.Sprintf("%dh%dm", h, m)
}

// Humanize describes t relative to ref: "today 15:04", "tomorrow 09:00",
// "yesterday 18:30" or an absolute date.
func Humanize(ref, t time.Time) string {
	day := StartOfDay(t.In(ref.Location()))
	today := StartOfDay(ref)
	clock := t.In(ref.Location()).Format("15:04")
	switch {
	case day.Equal(today):
		return "today " + clock
	case day.Equal(today.AddDate(0, 0, 1)):
		return "tomorrow " + clock
	case day.Equal(today.AddDate(0, 0, -1)):
		return "yesterday " + clock
	default:
		return t.In(ref.Location()).Format("2006-01-02 15:04")
	}
}

func atoiOrZero(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
