package presenter

import (
	"strings"

	"github.com/wichananm65/catfood-compare/internal/compare"
)

// MinTableRows is how many eligible entries the comparison table needs.
const MinTableRows = 2

// Eligible reports whether an entry can appear in the comparison table: it
// needs kcal per 100 g, package weight and a price (entered or listed).
func Eligible(it compare.Item) bool {
	return it.Comparable()
}

// ShortLabel is the first whitespace-delimited word of name.
func ShortLabel(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return Placeholder
	}
	return fields[0]
}

// TableRow is one product in the comparison table. Title carries the full
// product name behind the short Label.
type TableRow struct {
	ID               string `json:"id"`
	Label            string `json:"label"`
	Title            string `json:"title"`
	ProteinPercent   string `json:"proteinPercent"`
	FatPercent       string `json:"fatPercent"`
	Price            string `json:"price"`
	DailyAmountGrams string `json:"dailyAmountGrams"`
	DailyCost        string `json:"dailyCost"`
	MonthlyCost      string `json:"monthlyCost"`
	Cheapest         bool   `json:"cheapest"`
}

// BuildTable renders the eligible entries in basket order. ok is false when
// fewer than MinTableRows entries are eligible, in which case no table is
// shown.
func BuildTable(items []compare.Item, f Formatter) (rows []TableRow, ok bool) {
	eligible := make([]compare.Item, 0, len(items))
	for _, it := range items {
		if Eligible(it) {
			eligible = append(eligible, it)
		}
	}
	if len(eligible) < MinTableRows {
		return nil, false
	}

	cheapest := -1
	for i, it := range eligible {
		if it.MonthlyCost == nil {
			continue
		}
		if cheapest < 0 || *it.MonthlyCost < *eligible[cheapest].MonthlyCost {
			cheapest = i
		}
	}

	rows = make([]TableRow, 0, len(eligible))
	for i, it := range eligible {
		rows = append(rows, TableRow{
			ID:               it.ID,
			Label:            ShortLabel(it.ProductName),
			Title:            it.ProductName,
			ProteinPercent:   f.Number(it.ProteinPercent),
			FatPercent:       f.Number(it.FatPercent),
			Price:            f.Number(it.EffectivePrice()),
			DailyAmountGrams: f.Number(it.DailyAmountGrams),
			DailyCost:        f.Number(it.DailyCost),
			MonthlyCost:      f.Number(it.MonthlyCost),
			Cheapest:         i == cheapest,
		})
	}
	return rows, true
}
