package core

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// RankBy selects the measure providers are ranked on.
type RankBy int

const (
	RankByAmount RankBy = iota
	RankByCount
)

// RankProviders merges totals per provider id (first occurrence order), ranks them
// descending by the chosen measure and returns at most limit entries (limit <= 0
// means all). Ties are broken by provider id ascending so rankings are reproducible.
func RankProviders(totals []ProviderTotal, by RankBy, limit int) *ProviderRanking {
	if len(totals) == 0 {
		return &ProviderRanking{
			Ranks:  make(map[string]int),
			Sorted: make([]ProviderTotal, 0),
		}
	}

	merged := make(map[string]*ProviderTotal, len(totals))
	order := make([]string, 0, len(totals))
	amounts := make(map[string]decimal.Decimal, len(totals))

	for _, total := range totals {
		existing, exists := merged[total.ProviderID]
		if !exists {
			entry := total
			merged[total.ProviderID] = &entry
			order = append(order, total.ProviderID)
			amounts[total.ProviderID] = decimal.NewFromFloat(finite(total.Amount))
			continue
		}
		existing.Count += total.Count
		amounts[total.ProviderID] = amounts[total.ProviderID].Add(decimal.NewFromFloat(finite(total.Amount)))
		if existing.Name == "" {
			existing.Name = total.Name
		}
	}

	entries := make([]ProviderTotal, 0, len(order))
	for _, id := range order {
		entry := *merged[id]
		entry.Amount, _ = amounts[id].Round(monetaryPrecision).Float64()
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if by == RankByCount {
			if a.Count != b.Count {
				return a.Count > b.Count
			}
			if a.Amount != b.Amount {
				return a.Amount > b.Amount
			}
		} else {
			if a.Amount != b.Amount {
				return a.Amount > b.Amount
			}
			if a.Count != b.Count {
				return a.Count > b.Count
			}
		}
		return strings.Compare(a.ProviderID, b.ProviderID) < 0
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	result := &ProviderRanking{
		Ranks:  make(map[string]int, len(entries)),
		Sorted: entries,
	}
	for rank, entry := range entries {
		result.Ranks[entry.ProviderID] = rank + 1
	}
	return result
}
