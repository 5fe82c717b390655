package calendar

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// 2025-03-10 is a Monday.
func at(day, hour, minute int) time.Time {
	return time.Date(2025, time.March, 10+day, hour, minute, 0, 0, time.UTC)
}

var fixedNow = time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

type storeFactory struct {
	name string
	open func(t *testing.T) Store
}

func storeFactories() []storeFactory {
	return []storeFactory{
		{
			name: "memory",
			open: func(t *testing.T) Store { return NewMemoryStore() },
		},
		{
			name: "sqlite",
			open: func(t *testing.T) Store {
				s, err := OpenSQLite(filepath.Join(t.TempDir(), "calendar.db"), time.UTC)
				require.NoError(t, err)
				t.Cleanup(func() { s.Close() })
				return s
			},
		},
	}
}

func newTestEngine(t *testing.T, store Store) *Engine {
	t.Helper()
	return NewEngine(store, WithClock(func() time.Time { return fixedNow }))
}

func mustAdd(t *testing.T, e *Engine, user string, in EventInput) Event {
	t.Helper()
	res, err := e.Add(context.Background(), user, in, false)
	require.NoError(t, err)
	require.Equal(t, ResultSuccess, res.Status)
	return *res.Event
}
