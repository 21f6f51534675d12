package compare

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func fp(v float64) *float64 { return &v }

func testEntry(id string) Entry {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return Entry{
		ID:          id,
		ProductLink: "https://shop.example/" + id,
		ProductName: "Food " + id,
		Revision:    1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestInMemoryRepository_ConcurrentAppendNeverExceedsLimit(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		rejected int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := repo.Append(ctx, "b1", testEntry(fmt.Sprintf("e%d", i)), MaxItems)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case errors.Is(err, ErrCapacityExceeded):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if accepted != MaxItems || rejected != 20-MaxItems {
		t.Fatalf("expected %d accepted and %d rejected, got %d/%d", MaxItems, 20-MaxItems, accepted, rejected)
	}
	list, _ := repo.List(ctx, "b1")
	if len(list) != MaxItems {
		t.Fatalf("expected %d stored entries, got %d", MaxItems, len(list))
	}
}

func TestInMemoryRepository_MergeAndDelete(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		if err := repo.Append(ctx, "b1", testEntry(id), MaxItems); err != nil {
			t.Fatalf("append %s: %v", id, err)
		}
	}

	later := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	got, err := repo.Merge(ctx, "b1", "b", Patch{KcalPer100g: fp(380)}, later)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if got.Revision != 2 || *got.KcalPer100g != 380 || !got.UpdatedAt.Equal(later) {
		t.Fatalf("unexpected merged entry: %+v", got)
	}

	// an empty patch is a no-op
	got, _ = repo.Merge(ctx, "b1", "b", Patch{}, later.Add(time.Hour))
	if got.Revision != 2 {
		t.Fatalf("empty patch bumped revision to %d", got.Revision)
	}

	if _, err := repo.Merge(ctx, "b1", "zzz", Patch{Price: fp(1)}, later); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := repo.Merge(ctx, "other", "b", Patch{Price: fp(1)}, later); !errors.Is(err, ErrNotFound) {
		t.Fatalf("entries must not be reachable from another basket, got %v", err)
	}

	if err := repo.Delete(ctx, "b1", "b"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.Delete(ctx, "b1", "b"); err != nil {
		t.Fatalf("second delete should be a no-op, got %v", err)
	}
	list, _ := repo.List(ctx, "b1")
	if len(list) != 2 || list[0].ID != "a" || list[1].ID != "c" {
		t.Fatalf("unexpected order after delete: %+v", list)
	}
}

func TestInMemoryRepository_ListReturnsCopies(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()
	e := testEntry("a")
	e.ListedPrice = fp(500)
	_ = repo.Append(ctx, "b1", e, MaxItems)

	list, _ := repo.List(ctx, "b1")
	*list[0].ListedPrice = 1

	again, _ := repo.List(ctx, "b1")
	if *again[0].ListedPrice != 500 {
		t.Fatalf("stored entry was mutated through a listed copy")
	}
}

func TestInMemoryRepository_CountsAndStats(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()
	for i := 0; i < MaxItems; i++ {
		_ = repo.Append(ctx, "full", testEntry(fmt.Sprintf("f%d", i)), MaxItems)
	}
	_ = repo.Append(ctx, "small", testEntry("s1"), MaxItems)

	counts, _ := repo.Counts(ctx, []string{"full", "small", "missing"})
	if counts["full"] != MaxItems || counts["small"] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}
	if _, ok := counts["missing"]; ok {
		t.Fatalf("empty baskets should be omitted: %v", counts)
	}

	s, _ := repo.Stats(ctx, MaxItems)
	if s != (Stats{Baskets: 2, Entries: MaxItems + 1, FullBaskets: 1}) {
		t.Fatalf("unexpected stats: %+v", s)
	}
}
