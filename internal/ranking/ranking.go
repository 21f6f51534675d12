// Package ranking holds one canonical set of recommended foods and the three
// orderings (rank, price, review) the user can switch between.
package ranking

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/wichananm65/catfood-compare/internal/recommend"
)

// View selects an ordering.
type View string

const (
	ViewRank   View = "RANK"
	ViewPrice  View = "PRICE"
	ViewReview View = "REVIEW"
)

// Views lists every ordering in display order.
var Views = []View{ViewRank, ViewPrice, ViewReview}

var ErrUnknownView = errors.New("unknown ranking view")

// ParseView accepts a view name in any case.
func ParseView(s string) (View, error) {
	v := View(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Views {
		if v == known {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownView, s)
}

// Key identifies a product across orderings.
type Key string

// KeyOf is the product link, or the case-folded name and brand when the
// link is missing.
func KeyOf(it recommend.Item) Key {
	if link := strings.TrimSpace(it.ProductLink); link != "" {
		return Key(link)
	}
	return Key("name:" + strings.ToLower(strings.TrimSpace(it.FoodName)) + "|" + strings.ToLower(strings.TrimSpace(it.Brand)))
}

// Set is a canonical list of items plus one index permutation per view.
// Every view orders exactly the same items.
type Set struct {
	items   []recommend.Item
	index   map[Key]int
	orders  map[View][]int
	dropped int
}

// NewSet builds the canonical set from the first non-empty ordering of resp.
// Items another ordering names that are not in the canonical set are dropped;
// canonical items an ordering omits are appended to it in canonical order.
func NewSet(resp recommend.Response, logger *zap.Logger) *Set {
	if logger == nil {
		logger = zap.NewNop()
	}
	raw := map[View][]recommend.Item{
		ViewRank:   resp.ByRank,
		ViewPrice:  resp.ByPrice,
		ViewReview: resp.ByReview,
	}

	s := &Set{index: map[Key]int{}, orders: map[View][]int{}}
	for _, v := range Views {
		if len(raw[v]) == 0 {
			continue
		}
		for _, it := range raw[v] {
			k := KeyOf(it)
			if _, dup := s.index[k]; dup {
				continue
			}
			s.index[k] = len(s.items)
			s.items = append(s.items, it)
		}
		break
	}

	for _, v := range Views {
		seen := make([]bool, len(s.items))
		order := make([]int, 0, len(s.items))
		for _, it := range raw[v] {
			i, ok := s.index[KeyOf(it)]
			if !ok {
				s.dropped++
				continue
			}
			if seen[i] {
				continue
			}
			seen[i] = true
			order = append(order, i)
		}
		for i := range s.items {
			if !seen[i] {
				order = append(order, i)
			}
		}
		s.orders[v] = order
	}

	if s.dropped > 0 {
		logger.Warn("recommendation orderings disagree; extra items dropped",
			zap.Int("canonical", len(s.items)),
			zap.Int("dropped", s.dropped),
		)
	}
	return s
}

// Len is the number of distinct items.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

// Dropped counts items that appeared only in a non-canonical ordering.
func (s *Set) Dropped() int {
	if s == nil {
		return 0
	}
	return s.dropped
}

// Ordered returns the items in v's order with Rank set to the 1-based
// position in that order.
func (s *Set) Ordered(v View) []recommend.Item {
	if s == nil {
		return []recommend.Item{}
	}
	order := s.orders[v]
	out := make([]recommend.Item, 0, len(order))
	for pos, i := range order {
		it := s.items[i]
		it.Rank = pos + 1
		out = append(out, it)
	}
	return out
}

// Lookup finds an item by key.
func (s *Set) Lookup(k Key) (recommend.Item, bool) {
	if s == nil {
		return recommend.Item{}, false
	}
	i, ok := s.index[k]
	if !ok {
		return recommend.Item{}, false
	}
	return s.items[i], true
}
