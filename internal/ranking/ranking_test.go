package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wichananm65/catfood-compare/internal/recommend"
	"github.com/wichananm65/catfood-compare/internal/testutil"
)

func item(name, link string) recommend.Item {
	return recommend.Item{FoodName: name, Brand: "Acme", Type: recommend.FoodDry, ProductLink: link}
}

func names(items []recommend.Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.FoodName)
	}
	return out
}

func threeWay() recommend.Response {
	a, b, c := item("A", "https://shop.example/a"), item("B", "https://shop.example/b"), item("C", "")
	return recommend.Response{
		DailyCalories:  240,
		ByRank:         []recommend.Item{a, b, c},
		ByPrice:        []recommend.Item{c, a, b},
		ByReview:       []recommend.Item{b, c, a},
		ReviewSortNote: "review counts are partial",
	}
}

func TestKeyOf(t *testing.T) {
	assert.Equal(t, Key("https://shop.example/a"), KeyOf(item("A", " https://shop.example/a ")))
	assert.Equal(t, KeyOf(recommend.Item{FoodName: "Tuna Mix", Brand: "Acme"}),
		KeyOf(recommend.Item{FoodName: " tuna mix", Brand: "ACME "}))
	assert.NotEqual(t, KeyOf(recommend.Item{FoodName: "Tuna", Brand: "A"}),
		KeyOf(recommend.Item{FoodName: "Tuna", Brand: "B"}))
}

func TestParseView(t *testing.T) {
	v, err := ParseView("price")
	require.NoError(t, err)
	assert.Equal(t, ViewPrice, v)

	_, err = ParseView("popularity")
	require.ErrorIs(t, err, ErrUnknownView)
}

func TestNewSet_PermutationsShareItems(t *testing.T) {
	s := NewSet(threeWay(), testutil.Logger(t))
	require.Equal(t, 3, s.Len())
	assert.Equal(t, []string{"A", "B", "C"}, names(s.Ordered(ViewRank)))
	assert.Equal(t, []string{"C", "A", "B"}, names(s.Ordered(ViewPrice)))
	assert.Equal(t, []string{"B", "C", "A"}, names(s.Ordered(ViewReview)))

	for pos, it := range s.Ordered(ViewPrice) {
		assert.Equal(t, pos+1, it.Rank)
	}
	assert.Zero(t, s.Dropped())
}

func TestNewSet_MismatchedOrderings(t *testing.T) {
	a, b, x := item("A", "https://shop.example/a"), item("B", "https://shop.example/b"), item("X", "https://shop.example/x")
	s := NewSet(recommend.Response{
		ByRank:   []recommend.Item{a, b},
		ByPrice:  []recommend.Item{x, b},
		ByReview: []recommend.Item{a, a},
	}, testutil.Logger(t))

	assert.Equal(t, []string{"B", "A"}, names(s.Ordered(ViewPrice)), "unknown items dropped, missing ones appended")
	assert.Equal(t, []string{"A", "B"}, names(s.Ordered(ViewReview)), "duplicates collapse")
	assert.Equal(t, 1, s.Dropped())

	_, ok := s.Lookup(KeyOf(x))
	assert.False(t, ok)
}

func TestNewSet_CanonicalFromFirstNonEmpty(t *testing.T) {
	a, b := item("A", "https://shop.example/a"), item("B", "https://shop.example/b")
	s := NewSet(recommend.Response{ByPrice: []recommend.Item{b, a}}, nil)
	assert.Equal(t, []string{"B", "A"}, names(s.Ordered(ViewRank)))
	assert.Equal(t, []string{"B", "A"}, names(s.Ordered(ViewReview)))
}

func TestSelector_StateMachine(t *testing.T) {
	sel := NewSelector(testutil.Logger(t))
	assert.Equal(t, StateEmpty, sel.State())
	assert.Equal(t, ViewRank, sel.Active())
	assert.Empty(t, sel.Items())
	assert.Empty(t, sel.EmptyMessage(), "no message before the first search")
	require.ErrorIs(t, sel.Select(ViewPrice), ErrNoResults)

	sel.Load(threeWay())
	assert.Equal(t, StateLoaded, sel.State())
	assert.Equal(t, []string{"A", "B", "C"}, names(sel.Items()))
	assert.Empty(t, sel.Note(), "note hidden outside the review view")

	require.NoError(t, sel.Select(ViewPrice))
	assert.Equal(t, []string{"C", "A", "B"}, names(sel.Items()))

	require.NoError(t, sel.Select(ViewReview))
	assert.Equal(t, "review counts are partial", sel.Note())

	require.NoError(t, sel.Select(ViewRank))
	assert.Empty(t, sel.Note())

	require.ErrorIs(t, sel.Select(View("POPULAR")), ErrUnknownView)
	assert.Equal(t, ViewRank, sel.Active())
}

func TestSelector_EmptyResponse(t *testing.T) {
	sel := NewSelector(nil)
	sel.Load(threeWay())
	require.NoError(t, sel.Select(ViewReview))

	sel.Load(recommend.Response{ReviewSortNote: "nothing matched that search"})
	assert.Equal(t, StateEmpty, sel.State())
	assert.Equal(t, "nothing matched that search", sel.EmptyMessage())
	assert.Empty(t, sel.Note())
	assert.Empty(t, sel.Items())

	sel.Load(recommend.Response{})
	assert.Equal(t, DefaultEmptyMessage, sel.EmptyMessage())
}

func TestSelector_NewResultsResetToRank(t *testing.T) {
	sel := NewSelector(nil)
	sel.Load(threeWay())
	require.NoError(t, sel.Select(ViewPrice))

	sel.Load(threeWay())
	assert.Equal(t, ViewRank, sel.Active())
}
