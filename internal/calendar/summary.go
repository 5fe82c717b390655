package calendar

import (
	"math"
	"sort"
	"time"
)

// Time-of-day buckets keyed by event start hour.
const (
	BandMorning   = "morning"   // 06-12
	BandAfternoon = "afternoon" // 12-18
	BandEvening   = "evening"   // 18-22
	BandNight     = "night"
)

// Summary aggregates confirmed events in a range.
type Summary struct {
	Range              TimeRange      `json:"range"`
	PeriodDays         int            `json:"period_days"`
	TotalEvents        int            `json:"total_events"`
	EventsByTag        map[string]int `json:"events_by_tag"`
	TimeDistribution   map[string]int `json:"time_distribution"`
	AvgDurationMinutes float64        `json:"avg_duration"`
}

// TitleUsage is the time spent on events sharing a title.
type TitleUsage struct {
	Title      string  `json:"title"`
	Hours      float64 `json:"hours"`
	Percentage float64 `json:"percentage"`
	Count      int     `json:"count"`
}

// TimeUsage breaks down scheduled hours by event title.
type TimeUsage struct {
	TotalHours float64      `json:"total_hours"`
	ByTitle    []TitleUsage `json:"by_title"`
	Top        []TitleUsage `json:"top"`
}

// BandFor maps an hour of day to its time-of-day band.
func BandFor(hour int) string {
	switch {
	case hour >= 6 && hour < 12:
		return BandMorning
	case hour >= 12 && hour < 18:
		return BandAfternoon
	case hour >= 18 && hour < 22:
		return BandEvening
	default:
		return BandNight
	}
}

// Summarize aggregates the confirmed events contained in r.
func Summarize(events []Event, r TimeRange) Summary {
	s := Summary{
		Range:       r,
		EventsByTag: map[string]int{},
		TimeDistribution: map[string]int{
			BandMorning:   0,
			BandAfternoon: 0,
			BandEvening:   0,
			BandNight:     0,
		},
	}
	if !r.Start.IsZero() && !r.End.IsZero() {
		s.PeriodDays = int(math.Ceil(r.End.Sub(r.Start).Hours() / 24))
	}

	var total time.Duration
	for _, ev := range events {
		if ev.Status != StatusConfirmed || !r.Contains(ev) {
			continue
		}
		s.TotalEvents++
		total += ev.Duration()
		for _, tag := range ev.Tags {
			s.EventsByTag[tag]++
		}
		s.TimeDistribution[BandFor(ev.Start.Hour())]++
	}
	if s.TotalEvents > 0 {
		s.AvgDurationMinutes = round2(total.Minutes() / float64(s.TotalEvents))
	}
	return s
}

// AnalyzeTimeUsage groups event durations by title, most time first, and
// keeps the three largest in Top.
func AnalyzeTimeUsage(events []Event) TimeUsage {
	byTitle := map[string]*TitleUsage{}
	var order []string
	var total float64
	for _, ev := range events {
		hours := ev.Duration().Hours()
		total += hours
		u, ok := byTitle[ev.Title]
		if !ok {
			u = &TitleUsage{Title: ev.Title}
			byTitle[ev.Title] = u
			order = append(order, ev.Title)
		}
		u.Hours += hours
		u.Count++
	}

	usage := TimeUsage{TotalHours: round2(total)}
	for _, title := range order {
		u := *byTitle[title]
		if total > 0 {
			u.Percentage = round2(u.Hours / total * 100)
		}
		u.Hours = round2(u.Hours)
		usage.ByTitle = append(usage.ByTitle, u)
	}
	sort.SliceStable(usage.ByTitle, func(i, j int) bool {
		return usage.ByTitle[i].Hours > usage.ByTitle[j].Hours
	})
	usage.Top = usage.ByTitle
	if len(usage.Top) > 3 {
		usage.Top = usage.Top[:3]
	}
	return usage
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
