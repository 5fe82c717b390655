package calendar

import "time"

// Overlaps reports whether [aStart,aEnd) and [bStart,bEnd) intersect.
// Touching intervals do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	latestStart := aStart
	if bStart.After(latestStart) {
		latestStart = bStart
	}
	earliestEnd := aEnd
	if bEnd.Before(earliestEnd) {
		earliestEnd = bEnd
	}
	return latestStart.Before(earliestEnd)
}

// FindConflicts returns the confirmed events that overlap [start,end),
// skipping excludeID. The result is ordered by start.
func FindConflicts(events []Event, start, end time.Time, excludeID string) []Event {
	var conflicts []Event
	for _, ev := range events {
		if ev.Status != StatusConfirmed || ev.ID == excludeID {
			continue
		}
		if Overlaps(start, end, ev.Start, ev.End) {
			conflicts = append(conflicts, ev)
		}
	}
	sortByStart(conflicts)
	return conflicts
}
