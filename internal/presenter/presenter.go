// Package presenter turns basket and recommendation state into what a
// comparison page shows: editable slots, the side-by-side table and the
// recommendation rows with their "add to compare" affordance.
package presenter

import (
	"context"
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/wichananm65/catfood-compare/internal/compare"
	"github.com/wichananm65/catfood-compare/internal/feeding"
)

// Placeholder stands in for a value that is not available.
const Placeholder = "-"

// Basket is the store the presenter drives. Both *compare.Service and
// *compare.Client satisfy it.
type Basket interface {
	Add(ctx context.Context, basketID string, f compare.Facts) ([]compare.Entry, error)
	Update(ctx context.Context, basketID, id string, p compare.Patch) ([]compare.Entry, error)
	Remove(ctx context.Context, basketID, id string) ([]compare.Entry, error)
	List(ctx context.Context, basketID string, target feeding.CalorieTarget) ([]compare.Item, error)
}

var (
	_ Basket = (*compare.Service)(nil)
	_ Basket = (*compare.Client)(nil)
)

// Formatter renders numbers for display: one decimal place with the
// locale's digit grouping. Raw values are never rounded in storage.
type Formatter struct {
	p *message.Printer
}

func NewFormatter(tag language.Tag) Formatter {
	return Formatter{p: message.NewPrinter(tag)}
}

// Number formats v, or returns Placeholder when v is nil.
func (f Formatter) Number(v *float64) string {
	if v == nil {
		return Placeholder
	}
	return f.p.Sprintf("%.1f", *v)
}

// rawInput renders a stored value the way a user would type it back.
func rawInput(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
