package calendar

import (
	"time"
)

// Validate fills defaults and checks the query bounds.
func (q *FreeSlotQuery) Validate() error {
	if q.Range.Start.IsZero() || q.Range.End.IsZero() {
		return invalid("range", "start and end are required")
	}
	if !q.Range.End.After(q.Range.Start) {
		return invalid("range", "end must be after start")
	}
	if q.MinDuration <= 0 {
		q.MinDuration = DefaultMinDuration
	}
	if q.WorkStartHour == 0 && q.WorkEndHour == 0 {
		q.WorkStartHour = DefaultWorkStartHour
		q.WorkEndHour = DefaultWorkEndHour
	}
	if q.WorkStartHour < 0 || q.WorkEndHour > 24 || q.WorkStartHour >= q.WorkEndHour {
		return invalid("work_hours", "need 0 <= start < end <= 24, got %d-%d", q.WorkStartHour, q.WorkEndHour)
	}
	return nil
}

// ComputeFreeSlots walks the confirmed events overlapping the query range and
// returns the gaps between them, clipped to the working window of every day
// each gap crosses. Pieces shorter than MinDuration are dropped.
// The query is expected to be validated.
func ComputeFreeSlots(events []Event, q FreeSlotQuery) []FreeSlot {
	busy := make([]Event, 0, len(events))
	for _, ev := range events {
		if ev.Status == StatusConfirmed && q.Range.Overlaps(ev) {
			busy = append(busy, ev)
		}
	}
	sortByStart(busy)

	var slots []FreeSlot
	cursor := q.Range.Start
	for _, ev := range busy {
		if cursor.Before(ev.Start) {
			slots = append(slots, clipToWorkingHours(cursor, ev.Start, q)...)
		}
		if ev.End.After(cursor) {
			cursor = ev.End
		}
	}
	if cursor.Before(q.Range.End) {
		slots = append(slots, clipToWorkingHours(cursor, q.Range.End, q)...)
	}
	return slots
}

// TotalMinutes sums slot durations.
func TotalMinutes(slots []FreeSlot) int {
	total := 0
	for _, s := range slots {
		total += s.Duration
	}
	return total
}

func clipToWorkingHours(gapStart, gapEnd time.Time, q FreeSlotQuery) []FreeSlot {
	var out []FreeSlot
	loc := gapStart.Location()
	day := time.Date(gapStart.Year(), gapStart.Month(), gapStart.Day(), 0, 0, 0, 0, loc)
	for day.Before(gapEnd) {
		workStart := time.Date(day.Year(), day.Month(), day.Day(), q.WorkStartHour, 0, 0, 0, loc)
		workEnd := time.Date(day.Year(), day.Month(), day.Day(), q.WorkEndHour, 0, 0, 0, loc)

		start := maxTime(gapStart, workStart)
		end := minTime(gapEnd, workEnd)
		if end.Sub(start) >= q.MinDuration {
			out = append(out, FreeSlot{
				Start:    start,
				End:      end,
				Duration: int(end.Sub(start) / time.Minute),
			})
		}
		day = day.AddDate(0, 0, 1)
	}
	return out
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
