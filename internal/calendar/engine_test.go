package calendar

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_ConflictScenario(t *testing.T) {
	for _, f := range storeFactories() {
		t.Run(f.name, func(t *testing.T) {
			ctx := context.Background()
			e := newTestEngine(t, f.open(t))

			a := mustAdd(t, e, "alice", EventInput{Title: "A", Start: at(0, 9, 0), End: at(0, 10, 0)})

			res, err := e.Add(ctx, "alice", EventInput{Title: "B", Start: at(0, 9, 30), End: at(0, 10, 30)}, false)
			require.NoError(t, err)
			assert.Equal(t, ResultConflict, res.Status)
			require.Len(t, res.Conflicts, 1)
			assert.Equal(t, a.ID, res.Conflicts[0].ID)
			assert.Nil(t, res.Event)

			events, err := e.List(ctx, "alice", ListQuery{})
			require.NoError(t, err)
			assert.Len(t, events, 1, "conflicting event must not be persisted")

			res, err = e.Add(ctx, "alice", EventInput{Title: "B", Start: at(0, 9, 30), End: at(0, 10, 30)}, true)
			require.NoError(t, err)
			assert.Equal(t, ResultSuccess, res.Status)
			assert.True(t, res.Forced)
			require.Len(t, res.Conflicts, 1)
			assert.Equal(t, a.ID, res.Conflicts[0].ID)

			events, err = e.List(ctx, "alice", ListQuery{})
			require.NoError(t, err)
			assert.Len(t, events, 2)
		})
	}
}

func TestEngine_AddGetRoundTrip(t *testing.T) {
	for _, f := range storeFactories() {
		t.Run(f.name, func(t *testing.T) {
			ctx := context.Background()
			e := newTestEngine(t, f.open(t))

			added := mustAdd(t, e, "alice", EventInput{
				Title:       "Design review",
				Description: "Q2 roadmap",
				Location:    "Room 4",
				Start:       at(0, 14, 0),
				End:         at(0, 15, 30),
				Tags:        []string{"Work", "meeting", "work "},
				Source:      "planner",
			})
			assert.NotEmpty(t, added.ID)

			got, err := e.Get(ctx, "alice", added.ID)
			require.NoError(t, err)
			assert.Equal(t, added.ID, got.ID)
			assert.Equal(t, "alice", got.UserID)
			assert.Equal(t, "Design review", got.Title)
			assert.Equal(t, "Q2 roadmap", got.Description)
			assert.Equal(t, "Room 4", got.Location)
			assert.True(t, got.Start.Equal(at(0, 14, 0)))
			assert.True(t, got.End.Equal(at(0, 15, 30)))
			assert.Equal(t, []string{"meeting", "work"}, got.Tags)
			assert.Equal(t, StatusConfirmed, got.Status)
			assert.Equal(t, "planner", got.Source)
			assert.True(t, got.CreatedAt.Equal(fixedNow))
			assert.True(t, got.UpdatedAt.Equal(fixedNow))
		})
	}
}

func TestEngine_UsersAreIsolated(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, NewMemoryStore())

	a := mustAdd(t, e, "alice", EventInput{Title: "A", Start: at(0, 9, 0), End: at(0, 10, 0)})
	mustAdd(t, e, "bob", EventInput{Title: "B", Start: at(0, 9, 0), End: at(0, 10, 0)})

	_, err := e.Get(ctx, "bob", a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEngine_AddValidation(t *testing.T) {
	tests := []struct {
		name string
		in   EventInput
	}{
		{"end before start", EventInput{Title: "x", Start: at(0, 10, 0), End: at(0, 9, 0)}},
		{"zero length", EventInput{Title: "x", Start: at(0, 10, 0), End: at(0, 10, 0)}},
		{"missing title", EventInput{Title: "  ", Start: at(0, 9, 0), End: at(0, 10, 0)}},
		{"missing times", EventInput{Title: "x"}},
		{"bad status", EventInput{Title: "x", Start: at(0, 9, 0), End: at(0, 10, 0), Status: "maybe"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, NewMemoryStore())
			_, err := e.Add(context.Background(), "alice", tt.in, false)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))
			var verr *ValidationError
			assert.True(t, errors.As(err, &verr))
		})
	}
}

func TestEngine_TouchingAndNonConfirmed(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, NewMemoryStore())
	mustAdd(t, e, "alice", EventInput{Title: "A", Start: at(0, 9, 0), End: at(0, 10, 0)})

	res, err := e.Add(ctx, "alice", EventInput{Title: "touching", Start: at(0, 10, 0), End: at(0, 11, 0)}, false)
	require.NoError(t, err)
	assert.Equal(t, ResultSuccess, res.Status)
	assert.Empty(t, res.Conflicts)

	res, err = e.Add(ctx, "alice", EventInput{Title: "maybe", Start: at(0, 9, 15), End: at(0, 9, 45), Status: StatusTentative}, false)
	require.NoError(t, err)
	assert.Equal(t, ResultSuccess, res.Status, "tentative drafts are not conflict checked")

	res, err = e.Add(ctx, "alice", EventInput{Title: "C", Start: at(0, 9, 20), End: at(0, 9, 40)}, false)
	require.NoError(t, err)
	require.Equal(t, ResultConflict, res.Status)
	require.Len(t, res.Conflicts, 1, "only confirmed events block")
	assert.Equal(t, "A", res.Conflicts[0].Title)
}

func TestEngine_UpdateConflictKeepsOldTimes(t *testing.T) {
	for _, f := range storeFactories() {
		t.Run(f.name, func(t *testing.T) {
			ctx := context.Background()
			e := newTestEngine(t, f.open(t))
			mustAdd(t, e, "alice", EventInput{Title: "A", Start: at(0, 9, 0), End: at(0, 10, 0)})
			b := mustAdd(t, e, "alice", EventInput{Title: "B", Start: at(0, 11, 0), End: at(0, 12, 0)})

			start, end := at(0, 9, 30), at(0, 10, 30)
			res, err := e.Update(ctx, "alice", b.ID, EventPatch{Start: &start, End: &end}, false)
			require.NoError(t, err)
			assert.Equal(t, ResultConflict, res.Status)
			require.Len(t, res.Conflicts, 1)
			assert.Equal(t, "A", res.Conflicts[0].Title)

			got, err := e.Get(ctx, "alice", b.ID)
			require.NoError(t, err)
			assert.True(t, got.Start.Equal(at(0, 11, 0)))
			assert.True(t, got.End.Equal(at(0, 12, 0)))
		})
	}
}

func TestEngine_UpdateExcludesSelf(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, NewMemoryStore())
	a := mustAdd(t, e, "alice", EventInput{Title: "A", Start: at(0, 9, 0), End: at(0, 10, 0)})

	end := at(0, 10, 30)
	title := "A (extended)"
	res, err := e.Update(ctx, "alice", a.ID, EventPatch{End: &end, Title: &title}, false)
	require.NoError(t, err)
	assert.Equal(t, ResultSuccess, res.Status)
	assert.Equal(t, "A (extended)", res.Event.Title)
	assert.True(t, res.Event.Start.Equal(at(0, 9, 0)), "unpatched fields stay")
	assert.True(t, res.Event.End.Equal(end))
}

func TestEngine_UpdateForceAndValidation(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, NewMemoryStore())
	mustAdd(t, e, "alice", EventInput{Title: "A", Start: at(0, 9, 0), End: at(0, 10, 0)})
	b := mustAdd(t, e, "alice", EventInput{Title: "B", Start: at(0, 11, 0), End: at(0, 12, 0)})

	start := at(0, 9, 30)
	res, err := e.Update(ctx, "alice", b.ID, EventPatch{Start: &start}, true)
	require.NoError(t, err)
	assert.Equal(t, ResultSuccess, res.Status)
	assert.True(t, res.Forced)

	badEnd := at(0, 8, 0)
	_, err = e.Update(ctx, "alice", b.ID, EventPatch{End: &badEnd}, false)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = e.Update(ctx, "alice", "missing", EventPatch{Start: &start}, false)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEngine_CancelFreesTheSlot(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, NewMemoryStore())
	a := mustAdd(t, e, "alice", EventInput{Title: "A", Start: at(0, 9, 0), End: at(0, 10, 0)})

	cancelled := StatusCancelled
	_, err := e.Update(ctx, "alice", a.ID, EventPatch{Status: &cancelled}, false)
	require.NoError(t, err)

	res, err := e.Add(ctx, "alice", EventInput{Title: "B", Start: at(0, 9, 0), End: at(0, 10, 0)}, false)
	require.NoError(t, err)
	assert.Equal(t, ResultSuccess, res.Status)
}

func TestEngine_Remove(t *testing.T) {
	for _, f := range storeFactories() {
		t.Run(f.name, func(t *testing.T) {
			ctx := context.Background()
			e := newTestEngine(t, f.open(t))
			a := mustAdd(t, e, "alice", EventInput{Title: "A", Start: at(0, 9, 0), End: at(0, 10, 0)})

			require.NoError(t, e.Remove(ctx, "alice", a.ID))
			_, err := e.Get(ctx, "alice", a.ID)
			assert.ErrorIs(t, err, ErrNotFound)
			assert.ErrorIs(t, e.Remove(ctx, "alice", a.ID), ErrNotFound)
		})
	}
}

func TestEngine_List(t *testing.T) {
	for _, f := range storeFactories() {
		t.Run(f.name, func(t *testing.T) {
			ctx := context.Background()
			e := newTestEngine(t, f.open(t))
			mustAdd(t, e, "alice", EventInput{Title: "late", Start: at(0, 15, 0), End: at(0, 16, 0), Tags: []string{"work"}})
			mustAdd(t, e, "alice", EventInput{Title: "early", Start: at(0, 8, 0), End: at(0, 9, 0), Tags: []string{"work", "deep"}})
			mustAdd(t, e, "alice", EventInput{Title: "gym", Start: at(0, 18, 0), End: at(0, 19, 0), Tags: []string{"health"}, Status: StatusTentative})
			mustAdd(t, e, "alice", EventInput{Title: "straddle", Start: at(0, 23, 0), End: at(1, 1, 0)})

			tests := []struct {
				name  string
				query ListQuery
				want  []string
			}{
				{"all ordered", ListQuery{}, []string{"early", "late", "gym", "straddle"}},
				{"range containment", ListQuery{Range: TimeRange{Start: at(0, 0, 0), End: at(1, 0, 0)}}, []string{"early", "late", "gym"}},
				{"tag subset", ListQuery{Tags: []string{"work", "deep"}}, []string{"early"}},
				{"single tag", ListQuery{Tags: []string{"WORK"}}, []string{"early", "late"}},
				{"status", ListQuery{Status: StatusTentative}, []string{"gym"}},
			}
			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					events, err := e.List(ctx, "alice", tt.query)
					require.NoError(t, err)
					var titles []string
					for _, ev := range events {
						titles = append(titles, ev.Title)
					}
					assert.Equal(t, tt.want, titles)
				})
			}
		})
	}
}

func TestEngine_Recurrence(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, NewMemoryStore())

	res, err := e.Add(ctx, "alice", EventInput{
		Title:      "Standup",
		Start:      at(0, 9, 0),
		End:        at(0, 9, 15),
		Recurrence: "RRULE:FREQ=DAILY;COUNT=3",
	}, false)
	require.NoError(t, err)
	require.Len(t, res.Events, 3)
	assert.NotEmpty(t, res.Events[0].SeriesID)
	assert.Equal(t, res.Events[0].SeriesID, res.Events[2].SeriesID)
	assert.True(t, res.Events[2].Start.Equal(at(2, 9, 0)))

	// The third occurrence of this series collides; nothing is written.
	res, err = e.Add(ctx, "alice", EventInput{
		Title:      "Review",
		Start:      at(-2, 9, 0),
		End:        at(-2, 9, 30),
		Recurrence: "FREQ=DAILY;COUNT=3",
	}, false)
	require.NoError(t, err)
	assert.Equal(t, ResultConflict, res.Status)
	require.Len(t, res.Conflicts, 1)

	events, err := e.List(ctx, "alice", ListQuery{})
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestEngine_RecurrenceOverlappingItself(t *testing.T) {
	draft := EventInput{
		Title:      "Workshop",
		Start:      at(0, 9, 0),
		End:        at(0, 11, 0),
		Recurrence: "FREQ=HOURLY;COUNT=3",
	}

	for _, f := range storeFactories() {
		t.Run(f.name, func(t *testing.T) {
			ctx := context.Background()
			e := newTestEngine(t, f.open(t))

			_, err := e.Add(ctx, "alice", draft, false)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "recurrence", verr.Field)

			events, err := e.List(ctx, "alice", ListQuery{})
			require.NoError(t, err)
			assert.Empty(t, events)

			res, err := e.Add(ctx, "alice", draft, true)
			require.NoError(t, err)
			assert.Equal(t, ResultSuccess, res.Status)
			assert.True(t, res.Forced)
			require.Len(t, res.Events, 3)
			require.Len(t, res.Conflicts, 2)
			assert.True(t, res.Conflicts[0].Start.Equal(at(0, 10, 0)))
			assert.True(t, res.Conflicts[1].Start.Equal(at(0, 11, 0)))

			// Tentative series are not conflict-checked.
			tentative := draft
			tentative.Status = StatusTentative
			tentative.Start, tentative.End = at(1, 9, 0), at(1, 11, 0)
			res, err = e.Add(ctx, "alice", tentative, false)
			require.NoError(t, err)
			assert.False(t, res.Forced)
			assert.Len(t, res.Events, 3)
		})
	}
}

func TestEngine_ConcurrentAddsKeepInvariant(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, NewMemoryStore())

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := e.Add(ctx, "alice", EventInput{Title: "race", Start: at(0, 9, 0), End: at(0, 10, 0)}, false)
			if err == nil && res.Status == ResultSuccess {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, successes)
}

func TestEngine_PurgeCancelled(t *testing.T) {
	for _, f := range storeFactories() {
		t.Run(f.name, func(t *testing.T) {
			ctx := context.Background()
			e := newTestEngine(t, f.open(t))
			mustAdd(t, e, "alice", EventInput{Title: "keep", Start: at(0, 9, 0), End: at(0, 10, 0)})
			mustAdd(t, e, "alice", EventInput{Title: "drop", Start: at(0, 11, 0), End: at(0, 12, 0), Status: StatusCancelled})

			n, err := e.PurgeCancelled(ctx, fixedNow.Add(1))
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			events, err := e.List(ctx, "alice", ListQuery{})
			require.NoError(t, err)
			require.Len(t, events, 1)
			assert.Equal(t, "keep", events[0].Title)
		})
	}
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name       string
		a1, a2     int
		b1, b2     int
		wantResult bool
	}{
		{"identical", 9, 10, 9, 10, true},
		{"partial", 9, 11, 10, 12, true},
		{"contained", 9, 12, 10, 11, true},
		{"touching", 9, 10, 10, 11, false},
		{"disjoint", 9, 10, 11, 12, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Overlaps(at(0, tt.a1, 0), at(0, tt.a2, 0), at(0, tt.b1, 0), at(0, tt.b2, 0))
			assert.Equal(t, tt.wantResult, got)
			got = Overlaps(at(0, tt.b1, 0), at(0, tt.b2, 0), at(0, tt.a1, 0), at(0, tt.a2, 0))
			assert.Equal(t, tt.wantResult, got, "overlap must be symmetric")
		})
	}
}
