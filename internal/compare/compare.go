package compare

import (
	"time"

	"github.com/wichananm65/catfood-compare/internal/feeding"
)

// MaxItems is the basket capacity.
const MaxItems = 5

// Facts are the base product facts captured when a product is added to the
// basket. They come straight from a recommendation row.
type Facts struct {
	ProductLink string   `json:"productLink"`
	ProductName string   `json:"productName"`
	Brand       string   `json:"brand"`
	ImageURL    string   `json:"imageUrl"`
	ListedPrice *float64 `json:"lprice,omitempty"`
}

// Entry is one product's comparison record. The nutrition fields and Price are
// user supplied and stay nil until entered.
type Entry struct {
	ID          string   `json:"id"`
	ProductLink string   `json:"productLink"`
	ProductName string   `json:"productName"`
	Brand       string   `json:"brand"`
	ImageURL    string   `json:"imageUrl"`
	ListedPrice *float64 `json:"lprice,omitempty"`

	Price          *float64 `json:"price,omitempty"`
	ProteinPercent *float64 `json:"proteinPercent,omitempty"`
	FatPercent     *float64 `json:"fatPercent,omitempty"`
	KcalPer100g    *float64 `json:"kcalPer100g,omitempty"`
	WeightKg       *float64 `json:"weightKg,omitempty"`

	// Revision increases on every non-empty merge, even one that rewrites
	// a field with its current value.
	Revision  int       `json:"revision"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// EffectivePrice is the user-corrected price, or the listed price when the
// user never entered one.
func (e Entry) EffectivePrice() *float64 {
	if e.Price != nil {
		return e.Price
	}
	return e.ListedPrice
}

// Comparable reports whether the entry has every input cost derivation needs.
func (e Entry) Comparable() bool {
	return e.KcalPer100g != nil && e.WeightKg != nil && e.EffectivePrice() != nil
}

// Apply merges the fields present in p and reports whether p was non-empty.
func (e *Entry) Apply(p Patch, now time.Time) bool {
	if p.Empty() {
		return false
	}
	if p.ProteinPercent != nil {
		e.ProteinPercent = cloneFloat(p.ProteinPercent)
	}
	if p.FatPercent != nil {
		e.FatPercent = cloneFloat(p.FatPercent)
	}
	if p.KcalPer100g != nil {
		e.KcalPer100g = cloneFloat(p.KcalPer100g)
	}
	if p.Price != nil {
		e.Price = cloneFloat(p.Price)
	}
	if p.WeightKg != nil {
		e.WeightKg = cloneFloat(p.WeightKg)
	}
	e.Revision++
	e.UpdatedAt = now
	return true
}

// Item is an Entry annotated with metrics derived against a calorie target.
// The derived fields are nil when the entry lacks an input.
type Item struct {
	Entry
	DailyAmountGrams *float64 `json:"dailyAmountGrams,omitempty"`
	DailyCost        *float64 `json:"dailyCost,omitempty"`
	MonthlyCost      *float64 `json:"monthlyCost,omitempty"`
}

// Annotate derives metrics for each entry, keeping order.
func Annotate(entries []Entry, target feeding.CalorieTarget) []Item {
	out := make([]Item, 0, len(entries))
	for _, e := range entries {
		item := Item{Entry: e}
		if m, ok := feeding.Derive(target.Calories, e.KcalPer100g, e.WeightKg, e.EffectivePrice()); ok {
			item.DailyAmountGrams = &m.DailyAmountGrams
			item.DailyCost = &m.DailyCost
			item.MonthlyCost = &m.MonthlyCost
		}
		out = append(out, item)
	}
	return out
}

// Entries strips the derived metrics.
func Entries(items []Item) []Entry {
	out := make([]Entry, 0, len(items))
	for _, it := range items {
		out = append(out, it.Entry)
	}
	return out
}

// Stats summarises the store for operators.
type Stats struct {
	Baskets     int `json:"baskets"`
	Entries     int `json:"entries"`
	FullBaskets int `json:"fullBaskets"`
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
