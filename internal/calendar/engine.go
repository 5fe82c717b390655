package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teemow/calendaragent/internal/logging"
)

// Engine enforces the calendar rules on top of a Store: validation, conflict
// detection with an explicit force override, free-time search and summaries.
// Mutations for one user are serialized so the conflict check and the write
// see the same state.
type Engine struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock overrides the time source used for created_at/updated_at.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates an Engine over store.
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
		locks:  make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.WithOperation(e.logger, "calendar")
	return e
}

// Store returns the underlying store.
func (e *Engine) Store() Store {
	return e.store
}

func (e *Engine) lockUser(userID string) func() {
	e.mu.Lock()
	l, ok := e.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[userID] = l
	}
	e.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Add validates and stores a new event. When the event is confirmed and
// overlaps existing confirmed events, nothing is written and a conflict result
// is returned, unless force is set. A recurring draft is expanded and checked
// occurrence by occurrence; either all occurrences are stored or none.
func (e *Engine) Add(ctx context.Context, userID string, in EventInput, force bool) (*Result, error) {
	if err := validateInput(&in); err != nil {
		return nil, err
	}

	occurrences, err := ExpandRecurrence(in.Recurrence, in.Start, in.End, MaxOccurrences)
	if err != nil {
		return nil, err
	}

	unlock := e.lockUser(userID)
	defer unlock()

	now := e.now()
	seriesID := ""
	if len(occurrences) > 1 {
		seriesID = uuid.NewString()
	}

	events := make([]Event, 0, len(occurrences))
	for _, occ := range occurrences {
		events = append(events, Event{
			ID:          uuid.NewString(),
			UserID:      userID,
			Title:       in.Title,
			Description: in.Description,
			Location:    in.Location,
			Start:       occ.Start,
			End:         occ.End,
			Tags:        in.Tags,
			Status:      in.Status,
			Source:      in.Source,
			SeriesID:    seriesID,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}

	var conflicts []Event
	if in.Status == StatusConfirmed {
		overlapping := seriesOverlaps(events)
		if len(overlapping) > 0 && !force {
			return nil, invalid("recurrence", "occurrences overlap each other; the event lasts longer than the repeat interval")
		}
		window := TimeRange{Start: events[0].Start, End: events[len(events)-1].End}
		existing, err := e.store.List(ctx, userID, window)
		if err != nil {
			return nil, fmt.Errorf("failed to load events: %w", err)
		}
		conflicts = collectConflicts(existing, events, "")
		if len(overlapping) > 0 {
			conflicts = append(conflicts, overlapping...)
			sortByStart(conflicts)
		}
	}

	if len(conflicts) > 0 && !force {
		e.logger.Info("event rejected",
			logging.UserHash(userID),
			logging.Status(string(ResultConflict)),
			slog.Int("conflicts", len(conflicts)))
		return &Result{Status: ResultConflict, Conflicts: conflicts}, nil
	}

	if err := e.store.Insert(ctx, events...); err != nil {
		return nil, fmt.Errorf("failed to store event: %w", err)
	}

	e.logger.Info("event added",
		logging.UserHash(userID),
		logging.EventID(events[0].ID),
		slog.Int("occurrences", len(events)),
		slog.Bool("forced", len(conflicts) > 0))

	res := &Result{Status: ResultSuccess, Event: &events[0], Conflicts: conflicts, Forced: len(conflicts) > 0}
	if len(events) > 1 {
		res.Events = events
	}
	return res, nil
}

// Update applies patch to an existing event, re-running the conflict check
// against every other confirmed event. On conflict the stored event is left
// unchanged.
func (e *Engine) Update(ctx context.Context, userID, id string, patch EventPatch, force bool) (*Result, error) {
	unlock := e.lockUser(userID)
	defer unlock()

	current, err := e.store.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	updated := applyPatch(current, patch)
	if err := validateEvent(&updated); err != nil {
		return nil, err
	}

	var conflicts []Event
	if updated.Status == StatusConfirmed {
		existing, err := e.store.List(ctx, userID, TimeRange{Start: updated.Start, End: updated.End})
		if err != nil {
			return nil, fmt.Errorf("failed to load events: %w", err)
		}
		conflicts = FindConflicts(existing, updated.Start, updated.End, id)
	}
	if len(conflicts) > 0 && !force {
		return &Result{Status: ResultConflict, Event: &current, Conflicts: conflicts}, nil
	}

	updated.UpdatedAt = e.now()
	if err := e.store.Update(ctx, updated); err != nil {
		return nil, fmt.Errorf("failed to update event: %w", err)
	}

	e.logger.Info("event updated", logging.UserHash(userID), logging.EventID(id), slog.Bool("forced", len(conflicts) > 0))
	return &Result{Status: ResultSuccess, Event: &updated, Conflicts: conflicts, Forced: len(conflicts) > 0}, nil
}

// Remove deletes an event.
func (e *Engine) Remove(ctx context.Context, userID, id string) error {
	unlock := e.lockUser(userID)
	defer unlock()

	if err := e.store.Delete(ctx, userID, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to remove event: %w", err)
	}
	e.logger.Info("event removed", logging.UserHash(userID), logging.EventID(id))
	return nil
}

// Get returns one event.
func (e *Engine) Get(ctx context.Context, userID, id string) (*Event, error) {
	ev, err := e.store.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// List returns the events matching q, ordered by start. When a range is
// given, only events lying entirely inside it are returned.
func (e *Engine) List(ctx context.Context, userID string, q ListQuery) ([]Event, error) {
	if !q.Range.Start.IsZero() && !q.Range.End.IsZero() && !q.Range.End.After(q.Range.Start) {
		return nil, invalid("range", "end must be after start")
	}
	if q.Status != "" && !q.Status.Valid() {
		return nil, invalid("status", "unknown status %q", q.Status)
	}

	events, err := e.store.List(ctx, userID, q.Range)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	tags := NormalizeTags(q.Tags)
	out := make([]Event, 0, len(events))
	for _, ev := range events {
		if !q.Range.Contains(ev) {
			continue
		}
		if q.Status != "" && ev.Status != q.Status {
			continue
		}
		if !ev.HasTags(tags) {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

// FreeSlots returns the free windows in q.Range.
func (e *Engine) FreeSlots(ctx context.Context, userID string, q FreeSlotQuery) ([]FreeSlot, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	events, err := e.store.List(ctx, userID, q.Range)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return ComputeFreeSlots(events, q), nil
}

// Summary aggregates the confirmed events contained in r.
func (e *Engine) Summary(ctx context.Context, userID string, r TimeRange) (*Summary, error) {
	if r.Start.IsZero() || r.End.IsZero() || !r.End.After(r.Start) {
		return nil, invalid("range", "start and end are required and end must be after start")
	}
	events, err := e.store.List(ctx, userID, r)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	s := Summarize(events, r)
	return &s, nil
}

// PurgeCancelled removes cancelled events not touched since cutoff.
func (e *Engine) PurgeCancelled(ctx context.Context, cutoff time.Time) (int, error) {
	n, err := e.store.PurgeCancelled(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		e.logger.Info("purged cancelled events", slog.Int("count", n), slog.Time("cutoff", cutoff))
	}
	return n, nil
}

// seriesOverlaps returns the occurrences of a series that start before an
// earlier occurrence ends. events must be ordered by start.
func seriesOverlaps(events []Event) []Event {
	var out []Event
	end := time.Time{}
	for i, ev := range events {
		if i > 0 && ev.Start.Before(end) {
			out = append(out, ev)
		}
		if ev.End.After(end) {
			end = ev.End
		}
	}
	return out
}

func collectConflicts(existing, candidates []Event, excludeID string) []Event {
	seen := make(map[string]struct{})
	var out []Event
	for _, c := range candidates {
		for _, ev := range FindConflicts(existing, c.Start, c.End, excludeID) {
			if _, ok := seen[ev.ID]; ok {
				continue
			}
			seen[ev.ID] = struct{}{}
			out = append(out, ev)
		}
	}
	sortByStart(out)
	return out
}

func validateInput(in *EventInput) error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return invalid("title", "must not be empty")
	}
	if in.Start.IsZero() || in.End.IsZero() {
		return invalid("time", "start and end are required")
	}
	if !in.End.After(in.Start) {
		return invalid("time", "end must be after start")
	}
	if in.Status == "" {
		in.Status = StatusConfirmed
	}
	if !in.Status.Valid() {
		return invalid("status", "unknown status %q", in.Status)
	}
	if in.Source == "" {
		in.Source = "user"
	}
	in.Tags = NormalizeTags(in.Tags)
	return nil
}

func validateEvent(ev *Event) error {
	ev.Title = strings.TrimSpace(ev.Title)
	if ev.Title == "" {
		return invalid("title", "must not be empty")
	}
	if !ev.End.After(ev.Start) {
		return invalid("time", "end must be after start")
	}
	if !ev.Status.Valid() {
		return invalid("status", "unknown status %q", ev.Status)
	}
	ev.Tags = NormalizeTags(ev.Tags)
	return nil
}

func applyPatch(ev Event, p EventPatch) Event {
	if p.Title != nil {
		ev.Title = *p.Title
	}
	if p.Description != nil {
		ev.Description = *p.Description
	}
	if p.Location != nil {
		ev.Location = *p.Location
	}
	if p.Start != nil {
		ev.Start = *p.Start
	}
	if p.End != nil {
		ev.End = *p.End
	}
	if p.Tags != nil {
		ev.Tags = append([]string(nil), (*p.Tags)...)
	}
	if p.Status != nil {
		ev.Status = *p.Status
	}
	return ev
}
