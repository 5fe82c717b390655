package preferences

import (
	"context"
	"sort"
	"sync"
)

// Repository persists preferences.
type Repository interface {
	// Upsert inserts p, or updates the row matching (UserID, Key) keeping its
	// id and created_at. It returns the stored row and whether it was new.
	Upsert(ctx context.Context, p Preference) (Preference, bool, error)
	Get(ctx context.Context, id string) (Preference, error)
	List(ctx context.Context, userID, key string) ([]Preference, error)
	UpdateWeight(ctx context.Context, id string, weight float64) error
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context, userID string) (int, error)
}

// MemoryRepository keeps preferences in process memory.
type MemoryRepository struct {
	mu    sync.RWMutex
	byID  map[string]Preference
	order []string
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[string]Preference)}
}

func (r *MemoryRepository) Upsert(_ context.Context, p Preference) (Preference, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range r.order {
		existing := r.byID[id]
		if existing.UserID == p.UserID && existing.Key == p.Key {
			p.ID = existing.ID
			p.CreatedAt = existing.CreatedAt
			r.byID[id] = p
			return p, false, nil
		}
	}
	r.byID[p.ID] = p
	r.order = append(r.order, p.ID)
	return p, true, nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (Preference, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[id]
	if !ok {
		return Preference{}, ErrNotFound
	}
	return p, nil
}

func (r *MemoryRepository) List(_ context.Context, userID, key string) ([]Preference, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Preference
	for _, id := range r.order {
		p := r.byID[id]
		if p.UserID != userID || (key != "" && p.Key != key) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *MemoryRepository) UpdateWeight(_ context.Context, id string, weight float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	p.Weight = weight
	r.byID[id] = p
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return ErrNotFound
	}
	delete(r.byID, id)
	r.compact()
	return nil
}

func (r *MemoryRepository) Clear(_ context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, p := range r.byID {
		if p.UserID == userID {
			delete(r.byID, id)
			n++
		}
	}
	r.compact()
	return n, nil
}

// compact drops ids whose rows were deleted. Caller holds the lock.
func (r *MemoryRepository) compact() {
	kept := r.order[:0]
	for _, id := range r.order {
		if _, ok := r.byID[id]; ok {
			kept = append(kept, id)
		}
	}
	r.order = kept
}

func sortBySimilarity(prefs []Preference) {
	sort.SliceStable(prefs, func(i, j int) bool {
		if prefs[i].Similarity == prefs[j].Similarity {
			return prefs[i].Weight > prefs[j].Weight
		}
		return prefs[i].Similarity > prefs[j].Similarity
	})
}
