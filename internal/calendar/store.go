package calendar

import (
	"context"
	"time"
)

// Store persists events. Implementations must be safe for concurrent use;
// Insert must be all-or-nothing across its arguments.
type Store interface {
	Insert(ctx context.Context, events ...Event) error
	Update(ctx context.Context, event Event) error
	Delete(ctx context.Context, userID, id string) error
	Get(ctx context.Context, userID, id string) (Event, error)

	// List returns the user's events overlapping window, ordered by start.
	// A zero window returns everything.
	List(ctx context.Context, userID string, window TimeRange) ([]Event, error)

	// PurgeCancelled deletes cancelled events last updated before cutoff.
	PurgeCancelled(ctx context.Context, cutoff time.Time) (int, error)

	Close() error
}
