// Package feeding turns a product's nutrition and price facts plus a daily
// calorie target into feeding amounts and costs.
package feeding

import "math"

const (
	// FallbackDailyCalories is used before any recommendation call has produced
	// a real calorie target. It is a placeholder, not a computed requirement.
	FallbackDailyCalories = 300.0

	// DaysPerMonth is the month length used for monthly cost.
	DaysPerMonth = 30
)

// CalorieSource tells where a CalorieTarget came from.
type CalorieSource string

const (
	SourceComputed CalorieSource = "computed"
	SourceFallback CalorieSource = "fallback"
)

// CalorieTarget is the most recent daily calorie requirement for a session.
type CalorieTarget struct {
	Calories float64       `json:"dailyCalories"`
	Source   CalorieSource `json:"calorieSource"`
}

// Fallback returns the placeholder target.
func Fallback() CalorieTarget {
	return CalorieTarget{Calories: FallbackDailyCalories, Source: SourceFallback}
}

// Computed wraps an upstream-computed value. Non-positive or non-finite
// values fall back.
func Computed(kcal float64) CalorieTarget {
	if !positive(kcal) {
		return Fallback()
	}
	return CalorieTarget{Calories: kcal, Source: SourceComputed}
}

// ResolveTarget builds a target from an optional caller-supplied value.
func ResolveTarget(kcal *float64) CalorieTarget {
	if kcal == nil {
		return Fallback()
	}
	return Computed(*kcal)
}

// IsFallback reports whether t is the placeholder target.
func (t CalorieTarget) IsFallback() bool {
	return t.Source != SourceComputed
}

// Metrics are the derived feeding figures for one product.
type Metrics struct {
	DailyAmountGrams float64
	PricePerGram     float64
	DailyCost        float64
	MonthlyCost      float64
}

// Derive computes Metrics. Every input is required: if any is missing,
// non-finite or non-positive (price may be zero) ok is false and the
// returned Metrics must not be used.
func Derive(dailyCalories float64, kcalPer100g, weightKg, price *float64) (m Metrics, ok bool) {
	if !positive(dailyCalories) || kcalPer100g == nil || weightKg == nil || price == nil {
		return Metrics{}, false
	}
	if !positive(*kcalPer100g) || !positive(*weightKg) || !finite(*price) || *price < 0 {
		return Metrics{}, false
	}

	m.DailyAmountGrams = dailyCalories / *kcalPer100g * 100
	m.PricePerGram = *price / (*weightKg * 1000)
	m.DailyCost = m.DailyAmountGrams * m.PricePerGram
	m.MonthlyCost = m.DailyCost * DaysPerMonth
	return m, true
}

func positive(v float64) bool {
	return finite(v) && v > 0
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
