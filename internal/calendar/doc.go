// Package calendar implements the event store behind the assistant.
//
// The Engine validates drafts, rejects confirmed events that overlap other
// confirmed events (unless forced), computes free time inside working hours
// and aggregates events into summaries. Persistence is delegated to a Store;
// MemoryStore and SQLiteStore are provided.
//
// Intervals are half-open: [09:00,10:00) and [10:00,11:00) do not conflict.
//
// Example usage:
//
//	engine := calendar.NewEngine(calendar.NewMemoryStore())
//	res, err := engine.Add(ctx, "alice", calendar.EventInput{
//	    Title: "Standup",
//	    Start: start,
//	    End:   start.Add(15 * time.Minute),
//	}, false)
//	if err != nil {
//	    return err
//	}
//	if res.Status == calendar.ResultConflict {
//	    // res.Conflicts holds the colliding events
//	}
package calendar
