package calendar

import (
	"sort"
	"strings"
	"time"
)

// EventStatus is the lifecycle state of an event.
type EventStatus string

const (
	StatusConfirmed EventStatus = "confirmed"
	StatusTentative EventStatus = "tentative"
	StatusCancelled EventStatus = "cancelled"
)

// Valid reports whether s is one of the known statuses.
func (s EventStatus) Valid() bool {
	switch s {
	case StatusConfirmed, StatusTentative, StatusCancelled:
		return true
	}
	return false
}

// Event is a calendar entry owned by one user.
type Event struct {
	ID          string      `json:"id"`
	UserID      string      `json:"user_id"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Start       time.Time   `json:"start"`
	End         time.Time   `json:"end"`
	Location    string      `json:"location,omitempty"`
	Tags        []string    `json:"tags"`
	Status      EventStatus `json:"status"`
	Source      string      `json:"source"`
	SeriesID    string      `json:"series_id,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Duration returns End - Start.
func (e Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// HasTags reports whether the event carries every tag in want.
func (e Event) HasTags(want []string) bool {
	for _, w := range want {
		found := false
		for _, t := range e.Tags {
			if t == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// EventInput is the draft for a new event.
type EventInput struct {
	Title       string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	Tags        []string
	Status      EventStatus
	Source      string

	// Recurrence is an optional RFC 5545 RRULE ("FREQ=WEEKLY;COUNT=4").
	Recurrence string
}

// EventPatch carries the fields to change on update. Nil fields are left alone.
type EventPatch struct {
	Title       *string
	Description *string
	Location    *string
	Start       *time.Time
	End         *time.Time
	Tags        *[]string
	Status      *EventStatus
}

// Empty reports whether the patch changes nothing.
func (p EventPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Location == nil &&
		p.Start == nil && p.End == nil && p.Tags == nil && p.Status == nil
}

// TimeRange is a half-open interval [Start, End). Zero bounds are open.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether e lies entirely inside the range.
func (r TimeRange) Contains(e Event) bool {
	if !r.Start.IsZero() && e.Start.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && e.End.After(r.End) {
		return false
	}
	return true
}

// Overlaps reports whether e intersects the range.
func (r TimeRange) Overlaps(e Event) bool {
	if !r.End.IsZero() && !e.Start.Before(r.End) {
		return false
	}
	if !r.Start.IsZero() && !e.End.After(r.Start) {
		return false
	}
	return true
}

// ListQuery filters List results.
type ListQuery struct {
	Range  TimeRange
	Tags   []string
	Status EventStatus
}

// FreeSlot is an unscheduled window inside working hours.
type FreeSlot struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Duration int       `json:"duration"` // minutes
}

// FreeSlotQuery parameterizes free-time search.
type FreeSlotQuery struct {
	Range         TimeRange
	MinDuration   time.Duration
	WorkStartHour int
	WorkEndHour   int
}

// Defaults for free-slot search.
const (
	DefaultMinDuration   = 30 * time.Minute
	DefaultWorkStartHour = 9
	DefaultWorkEndHour   = 18
)

// ResultStatus tags the outcome of a mutation.
type ResultStatus string

const (
	ResultSuccess  ResultStatus = "success"
	ResultConflict ResultStatus = "conflict"
)

// Result is returned by Add and Update. On conflict nothing was written and
// Conflicts lists the colliding confirmed events. A forced write returns
// success with the overlaps it accepted in Conflicts.
type Result struct {
	Status    ResultStatus `json:"status"`
	Event     *Event       `json:"event,omitempty"`
	Events    []Event      `json:"events,omitempty"`
	Conflicts []Event      `json:"conflicts,omitempty"`
	Forced    bool         `json:"forced,omitempty"`
}

// NormalizeTags trims, lowercases and deduplicates tags, returning them sorted.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func sortByStart(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Start.Equal(events[j].Start) {
			return events[i].End.Before(events[j].End)
		}
		return events[i].Start.Before(events[j].Start)
	})
}
