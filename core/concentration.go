package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// HerfindahlIndex returns the sum of squared market shares on a 0–1 scale.
// Non-positive amounts are ignored; an empty market yields 0.
func HerfindahlIndex(amounts map[string]float64) float64 {
	total := decimal.Zero
	for _, amount := range amounts {
		if a := finite(amount); a > 0 {
			total = total.Add(decimal.NewFromFloat(a))
		}
	}
	if !total.IsPositive() {
		return 0
	}

	// Iterate in key order so the decimal sum is independent of map order.
	keys := make([]string, 0, len(amounts))
	for key := range amounts {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	hhi := decimal.Zero
	for _, key := range keys {
		a := finite(amounts[key])
		if a <= 0 {
			continue
		}
		share := decimal.NewFromFloat(a).DivRound(total, 16)
		hhi = hhi.Add(share.Mul(share))
	}
	result, _ := hhi.Round(monetaryPrecision).Float64()
	return result
}

// Median returns the median of samples, or false for an empty sample.
func Median(samples []float64) (float64, bool) {
	if len(samples) == 0 {
		return 0, false
	}
	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid], true
	}
	return (sorted[mid-1] + sorted[mid]) / 2, true
}

// Percentage returns part/whole*100, or 0 when whole is zero.
func Percentage(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	result, _ := decimal.NewFromInt(int64(part)).
		Mul(decimal.NewFromInt(100)).
		DivRound(decimal.NewFromInt(int64(whole)), 4).
		Float64()
	return result
}
