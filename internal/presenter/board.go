package presenter

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/wichananm65/catfood-compare/internal/compare"
	"github.com/wichananm65/catfood-compare/internal/feeding"
)

// Input is one editable field of a slot. Value is the unsaved draft when
// Draft is set, otherwise the saved value.
type Input struct {
	Field string `json:"field"`
	Value string `json:"value"`
	Draft bool   `json:"draft"`
}

// Slot is the rendered state of one basket entry.
type Slot struct {
	ID               string  `json:"id"`
	ProductName      string  `json:"productName"`
	Brand            string  `json:"brand"`
	ProductLink      string  `json:"productLink"`
	ImageURL         string  `json:"imageUrl,omitempty"`
	Revision         int     `json:"revision"`
	Inputs           []Input `json:"inputs"`
	DailyAmountGrams string  `json:"dailyAmountGrams"`
	DailyCost        string  `json:"dailyCost"`
	MonthlyCost      string  `json:"monthlyCost"`
	Complete         bool    `json:"complete"`
	Dirty            bool    `json:"dirty"`
	Error            string  `json:"error,omitempty"`
}

// Board renders one basket and keeps the user's unsaved edits per slot.
// Derived metrics shown on the board always come from the latest List
// result, never from drafts. A Board is not safe for concurrent use.
type Board struct {
	basket   Basket
	basketID string
	limit    int
	format   Formatter
	logger   *zap.Logger

	items  []compare.Item
	drafts map[string]map[string]string
	errs   map[string]string
}

func NewBoard(basket Basket, basketID string, limit int, format Formatter, logger *zap.Logger) *Board {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Board{
		basket:   basket,
		basketID: basketID,
		limit:    limit,
		format:   format,
		logger:   logger,
		items:    []compare.Item{},
		drafts:   map[string]map[string]string{},
		errs:     map[string]string{},
	}
}

// Refresh reloads the basket. Drafts survive for entries that still exist.
func (b *Board) Refresh(ctx context.Context, target feeding.CalorieTarget) error {
	items, err := b.basket.List(ctx, b.basketID, target)
	if err != nil {
		return fmt.Errorf("refresh basket: %w", err)
	}
	b.items = items

	present := make(map[string]bool, len(items))
	for _, it := range items {
		present[it.ID] = true
	}
	for id := range b.drafts {
		if !present[id] {
			delete(b.drafts, id)
		}
	}
	for id := range b.errs {
		if !present[id] {
			delete(b.errs, id)
		}
	}
	return nil
}

// Add appends a product. A full basket yields compare.ErrCapacityExceeded
// after the board has been refreshed, so the page shows the real count.
func (b *Board) Add(ctx context.Context, f compare.Facts, target feeding.CalorieTarget) error {
	_, err := b.basket.Add(ctx, b.basketID, f)
	if err != nil && !errors.Is(err, compare.ErrCapacityExceeded) {
		return err
	}
	if rerr := b.Refresh(ctx, target); rerr != nil {
		return rerr
	}
	return err
}

// Edit records an unsaved value for one field of a slot.
func (b *Board) Edit(id, field, raw string) error {
	if !b.has(id) {
		return compare.ErrNotFound
	}
	if !compare.IsEditable(field) {
		return &compare.ValidationError{Field: field, Reason: "unknown field"}
	}
	if b.drafts[id] == nil {
		b.drafts[id] = map[string]string{}
	}
	b.drafts[id][field] = raw
	return nil
}

// Save sends the slot's edited fields to the store. A malformed field keeps
// the drafts, records an inline error and leaves the entry untouched. An
// entry that vanished meanwhile is not an error: the board just refreshes.
func (b *Board) Save(ctx context.Context, id string, target feeding.CalorieTarget) error {
	patch, err := compare.ParseFields(b.drafts[id])
	if err != nil {
		return b.reject(id, err)
	}

	if !patch.Empty() {
		_, err = b.basket.Update(ctx, b.basketID, id, patch)
		switch {
		case errors.Is(err, compare.ErrNotFound):
			b.logger.Debug("save raced a removal", zap.String("basketId", b.basketID), zap.String("entryId", id))
		case err != nil:
			return b.reject(id, err)
		}
	}

	delete(b.drafts, id)
	delete(b.errs, id)
	return b.Refresh(ctx, target)
}

// Remove deletes a slot. Removing an entry that is already gone is fine.
func (b *Board) Remove(ctx context.Context, id string, target feeding.CalorieTarget) error {
	if _, err := b.basket.Remove(ctx, b.basketID, id); err != nil && !errors.Is(err, compare.ErrNotFound) {
		return err
	}
	delete(b.drafts, id)
	delete(b.errs, id)
	return b.Refresh(ctx, target)
}

func (b *Board) reject(id string, err error) error {
	var verr *compare.ValidationError
	if errors.As(err, &verr) {
		b.errs[id] = verr.Error()
	}
	return err
}

// Items is the latest basket as listed by the store.
func (b *Board) Items() []compare.Item {
	return b.items
}

func (b *Board) Count() int {
	return len(b.items)
}

func (b *Board) Limit() int {
	return b.limit
}

// CanAdd reports whether the basket has room.
func (b *Board) CanAdd() bool {
	return len(b.items) < b.limit
}

// Table is the comparison table for the current basket.
func (b *Board) Table() ([]TableRow, bool) {
	return BuildTable(b.items, b.format)
}

// Slots renders every entry in basket order.
func (b *Board) Slots() []Slot {
	out := make([]Slot, 0, len(b.items))
	for _, it := range b.items {
		drafts := b.drafts[it.ID]
		s := Slot{
			ID:               it.ID,
			ProductName:      it.ProductName,
			Brand:            it.Brand,
			ProductLink:      it.ProductLink,
			ImageURL:         it.ImageURL,
			Revision:         it.Revision,
			DailyAmountGrams: b.format.Number(it.DailyAmountGrams),
			DailyCost:        b.format.Number(it.DailyCost),
			MonthlyCost:      b.format.Number(it.MonthlyCost),
			Complete:         it.MonthlyCost != nil,
			Dirty:            len(drafts) > 0,
			Error:            b.errs[it.ID],
		}
		for _, field := range compare.EditableFields {
			if raw, ok := drafts[field]; ok {
				s.Inputs = append(s.Inputs, Input{Field: field, Value: raw, Draft: true})
				continue
			}
			s.Inputs = append(s.Inputs, Input{Field: field, Value: rawInput(savedValue(it.Entry, field))})
		}
		out = append(out, s)
	}
	return out
}

func (b *Board) has(id string) bool {
	for _, it := range b.items {
		if it.ID == id {
			return true
		}
	}
	return false
}

// savedValue is what an input shows without a draft. The price input falls
// back to the listed price.
func savedValue(e compare.Entry, field string) *float64 {
	switch field {
	case compare.FieldProteinPercent:
		return e.ProteinPercent
	case compare.FieldFatPercent:
		return e.FatPercent
	case compare.FieldKcalPer100g:
		return e.KcalPer100g
	case compare.FieldPrice:
		return e.EffectivePrice()
	case compare.FieldWeightKg:
		return e.WeightKg
	}
	return nil
}
