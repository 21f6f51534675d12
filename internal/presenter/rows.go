package presenter

import (
	"strings"

	"github.com/wichananm65/catfood-compare/internal/compare"
	"github.com/wichananm65/catfood-compare/internal/ranking"
	"github.com/wichananm65/catfood-compare/internal/recommend"
)

// RecommendationRow is one recommended food with its "add to compare"
// affordance.
type RecommendationRow struct {
	Key         ranking.Key        `json:"key"`
	Rank        int                `json:"rank"`
	FoodName    string             `json:"foodName"`
	Brand       string             `json:"brand"`
	Type        recommend.FoodType `json:"type"`
	Price       string             `json:"price"`
	ProductLink string             `json:"productLink,omitempty"`
	ImageURL    string             `json:"imageUrl,omitempty"`
	CanAdd      bool               `json:"canAdd"`
}

// RecommendationRows renders items for a basket currently holding count of
// limit entries. Adding is possible while the basket has room and the item
// has a product link to store.
func RecommendationRows(items []recommend.Item, count, limit int, f Formatter) []RecommendationRow {
	room := count < limit
	rows := make([]RecommendationRow, 0, len(items))
	for _, it := range items {
		brand := it.Brand
		if strings.TrimSpace(brand) == "" {
			brand = Placeholder
		}
		rows = append(rows, RecommendationRow{
			Key:         ranking.KeyOf(it),
			Rank:        it.Rank,
			FoodName:    it.FoodName,
			Brand:       brand,
			Type:        it.Type,
			Price:       f.Number(it.ProductPrice),
			ProductLink: it.ProductLink,
			ImageURL:    it.ImageURL,
			CanAdd:      room && strings.TrimSpace(it.ProductLink) != "",
		})
	}
	return rows
}

// FactsFor captures the base facts a recommendation contributes to a new
// basket entry.
func FactsFor(it recommend.Item) compare.Facts {
	var lprice *float64
	if it.ProductPrice != nil {
		v := *it.ProductPrice
		lprice = &v
	}
	return compare.Facts{
		ProductLink: it.ProductLink,
		ProductName: it.FoodName,
		Brand:       it.Brand,
		ImageURL:    it.ImageURL,
		ListedPrice: lprice,
	}
}
