package calendar

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore keeps events in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	events map[string]map[string]Event // user -> id -> event
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{events: make(map[string]map[string]Event)}
}

func (s *MemoryStore) Insert(_ context.Context, events ...Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ev := range events {
		if _, exists := s.events[ev.UserID][ev.ID]; exists {
			return fmt.Errorf("event %s already exists", ev.ID)
		}
	}
	for _, ev := range events {
		byID, ok := s.events[ev.UserID]
		if !ok {
			byID = make(map[string]Event)
			s.events[ev.UserID] = byID
		}
		byID[ev.ID] = cloneEvent(ev)
	}
	return nil
}

func (s *MemoryStore) Update(_ context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[ev.UserID][ev.ID]; !ok {
		return ErrNotFound
	}
	s.events[ev.UserID][ev.ID] = cloneEvent(ev)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[userID][id]; !ok {
		return ErrNotFound
	}
	delete(s.events[userID], id)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, userID, id string) (Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ev, ok := s.events[userID][id]
	if !ok {
		return Event{}, ErrNotFound
	}
	return cloneEvent(ev), nil
}

func (s *MemoryStore) List(_ context.Context, userID string, window TimeRange) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Event, 0, len(s.events[userID]))
	for _, ev := range s.events[userID] {
		if window.Overlaps(ev) {
			out = append(out, cloneEvent(ev))
		}
	}
	sortByStart(out)
	return out, nil
}

func (s *MemoryStore) PurgeCancelled(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, byID := range s.events {
		for id, ev := range byID {
			if ev.Status == StatusCancelled && ev.UpdatedAt.Before(cutoff) {
				delete(byID, id)
				n++
			}
		}
	}
	return n, nil
}

func (s *MemoryStore) Close() error { return nil }

func cloneEvent(ev Event) Event {
	tags := make([]string, len(ev.Tags))
	copy(tags, ev.Tags)
	ev.Tags = tags
	return ev
}
