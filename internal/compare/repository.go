package compare

import (
	"context"
	"sync"
	"time"
)

// Repository persists baskets. Implementations own the capacity check so it
// is evaluated against the stored count at the instant of the insert.
type Repository interface {
	// Append stores e at the end of the basket, or returns
	// ErrCapacityExceeded when the basket already holds limit entries.
	Append(ctx context.Context, basketID string, e Entry, limit int) error
	// Merge applies p to the entry and returns the stored result.
	Merge(ctx context.Context, basketID, id string, p Patch, now time.Time) (Entry, error)
	// Delete removes the entry; deleting an unknown id is not an error.
	Delete(ctx context.Context, basketID, id string) error
	// List returns the basket in insertion order. Unknown baskets are empty.
	List(ctx context.Context, basketID string) ([]Entry, error)
	// Counts returns the number of entries for each of the given baskets.
	Counts(ctx context.Context, basketIDs []string) (map[string]int, error)
	Stats(ctx context.Context, limit int) (Stats, error)
}

// InMemoryRepository is used for tests and single-process deployments.
type InMemoryRepository struct {
	mu      sync.RWMutex
	baskets map[string][]Entry
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{baskets: make(map[string][]Entry)}
}

func (r *InMemoryRepository) Append(_ context.Context, basketID string, e Entry, limit int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.baskets[basketID]) >= limit {
		return ErrCapacityExceeded
	}
	r.baskets[basketID] = append(r.baskets[basketID], copyEntry(e))
	return nil
}

func (r *InMemoryRepository) Merge(_ context.Context, basketID, id string, p Patch, now time.Time) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := r.baskets[basketID]
	for i := range entries {
		if entries[i].ID == id {
			entries[i].Apply(p, now)
			return copyEntry(entries[i]), nil
		}
	}
	return Entry{}, ErrNotFound
}

func (r *InMemoryRepository) Delete(_ context.Context, basketID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := r.baskets[basketID]
	for i := range entries {
		if entries[i].ID == id {
			r.baskets[basketID] = append(entries[:i:i], entries[i+1:]...)
			return nil
		}
	}
	return nil
}

func (r *InMemoryRepository) List(_ context.Context, basketID string) ([]Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := r.baskets[basketID]
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		out = append(out, copyEntry(e))
	}
	return out, nil
}

func (r *InMemoryRepository) Counts(_ context.Context, basketIDs []string) (map[string]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]int, len(basketIDs))
	for _, id := range basketIDs {
		if n := len(r.baskets[id]); n > 0 {
			out[id] = n
		}
	}
	return out, nil
}

func (r *InMemoryRepository) Stats(_ context.Context, limit int) (Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var s Stats
	for _, entries := range r.baskets {
		if len(entries) == 0 {
			continue
		}
		s.Baskets++
		s.Entries += len(entries)
		if len(entries) >= limit {
			s.FullBaskets++
		}
	}
	return s, nil
}

// copyEntry detaches the pointer fields so callers cannot mutate stored state.
func copyEntry(e Entry) Entry {
	e.ListedPrice = cloneFloat(e.ListedPrice)
	e.Price = cloneFloat(e.Price)
	e.ProteinPercent = cloneFloat(e.ProteinPercent)
	e.FatPercent = cloneFloat(e.FatPercent)
	e.KcalPer100g = cloneFloat(e.KcalPer100g)
	e.WeightKg = cloneFloat(e.WeightKg)
	return e
}
