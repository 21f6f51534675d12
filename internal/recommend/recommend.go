// Package recommend is the boundary to the upstream ranking service that
// computes a cat's calorie requirement and ranks candidate foods.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wichananm65/catfood-compare/internal/feeding"
)

// ErrUpstreamUnavailable is returned when the ranking service cannot be
// reached or fails on its side.
var ErrUpstreamUnavailable = errors.New("recommendation service unavailable")

// Recommender produces ranked recommendations for a cat profile.
type Recommender interface {
	Recommend(ctx context.Context, req Request) (Response, error)
	// Available reports whether live product search is enabled upstream.
	Available(ctx context.Context) (bool, error)
}

const (
	GenderMale   = "MALE"
	GenderFemale = "FEMALE"
)

// FoodType is DRY or WET.
type FoodType string

const (
	FoodDry FoodType = "DRY"
	FoodWet FoodType = "WET"
)

// Request is the calorie-relevant cat profile.
type Request struct {
	WeightKg      *float64 `json:"weightKg"`
	AgeMonths     *int     `json:"ageMonths"`
	Gender        string   `json:"gender"`
	Neutered      *bool    `json:"neutered"`
	MonthlyBudget *int     `json:"monthlyBudget"`
	SearchQuery   string   `json:"searchQuery,omitempty"`
}

// Validate returns every problem with the request keyed by field; an empty
// map means the request is valid.
func (r Request) Validate() map[string]string {
	errs := map[string]string{}
	switch {
	case r.WeightKg == nil:
		errs["weightKg"] = "weightKg is required"
	case *r.WeightKg < 0.1 || *r.WeightKg > 20:
		errs["weightKg"] = "weightKg must be between 0.1 and 20"
	}
	switch {
	case r.AgeMonths == nil:
		errs["ageMonths"] = "ageMonths is required"
	case *r.AgeMonths < 1 || *r.AgeMonths > 300:
		errs["ageMonths"] = "ageMonths must be between 1 and 300"
	}
	switch strings.TrimSpace(r.Gender) {
	case "":
		errs["gender"] = "gender is required"
	case GenderMale, GenderFemale:
	default:
		errs["gender"] = "gender must be MALE or FEMALE"
	}
	if r.Neutered == nil {
		errs["neutered"] = "neutered is required"
	}
	switch {
	case r.MonthlyBudget == nil:
		errs["monthlyBudget"] = "monthlyBudget is required"
	case *r.MonthlyBudget < 1000 || *r.MonthlyBudget > 1000000:
		errs["monthlyBudget"] = "monthlyBudget must be between 1,000 and 1,000,000"
	}
	return errs
}

// Item is one ranked food. Nutrition and price may be missing when the
// product came from live search.
type Item struct {
	Rank           int      `json:"rank"`
	FoodName       string   `json:"foodName"`
	Brand          string   `json:"brand"`
	Type           FoodType `json:"type"`
	ProteinPercent *float64 `json:"proteinPercent,omitempty"`
	FatPercent     *float64 `json:"fatPercent,omitempty"`
	ProductPrice   *float64 `json:"productPrice,omitempty"`
	ProductLink    string   `json:"productLink,omitempty"`
	ImageURL       string   `json:"imageUrl,omitempty"`
	Reason         string   `json:"reason,omitempty"`
	Score          float64  `json:"score,omitempty"`
	ReviewCount    int      `json:"reviewCount"`
	MonthlyCost    *float64 `json:"monthlyCost,omitempty"`
	FromRealSearch bool     `json:"fromRealSearch"`
}

// Response carries the calorie computation and three orderings of the same
// recommended foods.
type Response struct {
	DailyCalories                float64 `json:"dailyCalories"`
	RerCalories                  float64 `json:"rerCalories"`
	LifeFactor                   float64 `json:"lifeFactor"`
	LifeStageDescription         string  `json:"lifeStageDescription"`
	FormulaDescription           string  `json:"formulaDescription"`
	CalculationSourceDescription string  `json:"calculationSourceDescription,omitempty"`

	ByRank   []Item `json:"recommendationsByRank"`
	ByPrice  []Item `json:"recommendationsByPrice"`
	ByReview []Item `json:"recommendationsByReview"`

	// ReviewSortNote explains gaps in review data, or why nothing matched.
	ReviewSortNote string `json:"reviewSortNote,omitempty"`

	// Legacy is the single list older upstream versions return.
	Legacy []Item `json:"recommendations,omitempty"`
}

// Normalize replaces nil orderings with empty ones and promotes a legacy
// single list to the rank ordering.
func (r *Response) Normalize() {
	if len(r.ByRank) == 0 && len(r.ByPrice) == 0 && len(r.ByReview) == 0 && len(r.Legacy) > 0 {
		r.ByRank = r.Legacy
	}
	r.Legacy = nil
	if r.ByRank == nil {
		r.ByRank = []Item{}
	}
	if r.ByPrice == nil {
		r.ByPrice = []Item{}
	}
	if r.ByReview == nil {
		r.ByReview = []Item{}
	}
}

// Empty reports whether no ordering holds an item.
func (r Response) Empty() bool {
	return len(r.ByRank) == 0 && len(r.ByPrice) == 0 && len(r.ByReview) == 0
}

// Target is the calorie target this response establishes.
func (r Response) Target() feeding.CalorieTarget {
	return feeding.Computed(r.DailyCalories)
}

// RequestError is an upstream rejection of the request itself.
type RequestError struct {
	Status  int
	Message string
	Errors  map[string]string
}

func (e *RequestError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("recommendation request rejected (%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("recommendation request rejected (%d)", e.Status)
}
