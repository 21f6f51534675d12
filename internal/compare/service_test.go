package compare

import (
	"context"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wichananm65/catfood-compare/internal/feeding"
	"github.com/wichananm65/catfood-compare/internal/testutil"
)

func newTestService(t *testing.T, metrics *Metrics) *Service {
	t.Helper()
	s := NewService(NewInMemoryRepository(), testutil.Logger(t), metrics)
	clock := testutil.NewClock()
	s.now = clock.Now
	n := 0
	s.newID = func() string {
		n++
		return fmt.Sprintf("entry-%d", n)
	}
	return s
}

func facts(name string, lprice float64) Facts {
	return Facts{
		ProductLink: "https://shop.example/" + name,
		ProductName: name,
		Brand:       "Acme",
		ListedPrice: &lprice,
	}
}

func TestService_AddRejectsSixthItem(t *testing.T) {
	s := newTestService(t, nil)
	ctx := context.Background()
	for i := 0; i < MaxItems; i++ {
		_, err := s.Add(ctx, "b1", facts(fmt.Sprintf("food-%d", i), 100))
		require.NoError(t, err)
	}

	_, err := s.Add(ctx, "b1", facts("one-too-many", 100))
	require.ErrorIs(t, err, ErrCapacityExceeded)

	items, err := s.List(ctx, "b1", feeding.Fallback())
	require.NoError(t, err)
	assert.Len(t, items, MaxItems)
	assert.Equal(t, "food-0", items[0].ProductName)
}

func TestService_AddKeepsDuplicates(t *testing.T) {
	s := newTestService(t, nil)
	ctx := context.Background()
	_, err := s.Add(ctx, "b1", facts("same", 100))
	require.NoError(t, err)
	entries, err := s.Add(ctx, "b1", facts("same", 100))
	require.NoError(t, err)

	require.Len(t, entries, 2)
	assert.NotEqual(t, entries[0].ID, entries[1].ID)
	assert.Equal(t, 1, entries[1].Revision)
	assert.Nil(t, entries[1].KcalPer100g)
}

func TestService_AddValidates(t *testing.T) {
	s := newTestService(t, nil)
	ctx := context.Background()

	_, err := s.Add(ctx, "", facts("x", 1))
	require.ErrorIs(t, err, ErrMissingBasketID)

	_, err = s.Add(ctx, "b1", Facts{ProductName: "no link"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "productLink", verr.Field)

	_, err = s.Add(ctx, "b1", facts("negative", -1))
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "lprice", verr.Field)
}

func TestService_UpdateBlankLeavesValueUnchanged(t *testing.T) {
	s := newTestService(t, nil)
	ctx := context.Background()
	entries, err := s.Add(ctx, "b1", facts("food", 500))
	require.NoError(t, err)
	id := entries[0].ID

	_, err = s.Update(ctx, "b1", id, Patch{Price: fp(450)})
	require.NoError(t, err)

	blank, err := ParseFields(map[string]string{FieldPrice: ""})
	require.NoError(t, err)
	entries, err = s.Update(ctx, "b1", id, blank)
	require.NoError(t, err)

	require.NotNil(t, entries[0].Price)
	assert.Equal(t, 450.0, *entries[0].Price)
	assert.Equal(t, 2, entries[0].Revision)
}

func TestService_UpdateSameValueBumpsRevision(t *testing.T) {
	s := newTestService(t, nil)
	ctx := context.Background()
	entries, err := s.Add(ctx, "b1", facts("food", 500))
	require.NoError(t, err)
	id := entries[0].ID

	_, err = s.Update(ctx, "b1", id, Patch{Price: fp(450)})
	require.NoError(t, err)
	entries, err = s.Update(ctx, "b1", id, Patch{Price: fp(450)})
	require.NoError(t, err)

	assert.Equal(t, 450.0, *entries[0].Price)
	assert.Equal(t, 3, entries[0].Revision)
}

func TestService_UpdateUnknownID(t *testing.T) {
	s := newTestService(t, nil)
	_, err := s.Update(context.Background(), "b1", "nope", Patch{Price: fp(1)})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestService_RemoveIsIdempotent(t *testing.T) {
	s := newTestService(t, nil)
	ctx := context.Background()
	_, err := s.Add(ctx, "b1", facts("a", 1))
	require.NoError(t, err)

	entries, err := s.Remove(ctx, "b1", "does-not-exist")
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	entries, err = s.Remove(ctx, "b1", entries[0].ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestService_ListDerivesMetrics(t *testing.T) {
	s := newTestService(t, nil)
	ctx := context.Background()
	entries, err := s.Add(ctx, "b1", facts("complete", 800))
	require.NoError(t, err)
	_, err = s.Add(ctx, "b1", facts("incomplete", 800))
	require.NoError(t, err)
	_, err = s.Update(ctx, "b1", entries[0].ID, Patch{KcalPer100g: fp(400), WeightKg: fp(2)})
	require.NoError(t, err)

	items, err := s.List(ctx, "b1", feeding.Computed(250))
	require.NoError(t, err)
	require.Len(t, items, 2)

	complete := items[0]
	require.NotNil(t, complete.DailyAmountGrams)
	assert.InDelta(t, 62.5, *complete.DailyAmountGrams, 1e-9)
	assert.InDelta(t, 25.0, *complete.DailyCost, 1e-9)
	assert.InDelta(t, 750.0, *complete.MonthlyCost, 1e-9)

	incomplete := items[1]
	assert.Nil(t, incomplete.DailyAmountGrams)
	assert.Nil(t, incomplete.DailyCost)
	assert.Nil(t, incomplete.MonthlyCost)
}

func TestService_UserPriceOverridesListedPrice(t *testing.T) {
	s := newTestService(t, nil)
	ctx := context.Background()
	entries, err := s.Add(ctx, "b1", facts("food", 800))
	require.NoError(t, err)
	_, err = s.Update(ctx, "b1", entries[0].ID, Patch{KcalPer100g: fp(400), WeightKg: fp(2), Price: fp(400)})
	require.NoError(t, err)

	items, err := s.List(ctx, "b1", feeding.Computed(250))
	require.NoError(t, err)
	assert.InDelta(t, 375.0, *items[0].MonthlyCost, 1e-9)
}

func TestService_RecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	s := newTestService(t, m)
	ctx := context.Background()

	for i := 0; i <= MaxItems; i++ {
		_, _ = s.Add(ctx, "b1", facts(fmt.Sprintf("f%d", i), 1))
	}
	_, _ = s.Update(ctx, "b1", "missing", Patch{Price: fp(1)})

	assert.Equal(t, float64(MaxItems), promtest.ToFloat64(m.operations.WithLabelValues("add", "ok")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.operations.WithLabelValues("add", "capacity_exceeded")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.operations.WithLabelValues("update", "not_found")))
}
