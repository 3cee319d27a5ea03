package core

import "strings"

// MatchStrategy names the strategy family reported to callers.
type MatchStrategy string

const (
	MatchExact  MatchStrategy = "exact"
	MatchDigits MatchStrategy = "digits"
)

// Strategy variants, finer-grained than MatchStrategy.
const (
	VariantExact             = "exact"
	VariantDigits            = "digits"
	VariantDigitsNoLeadZeros = "digits_no_leading_zeros"
)

// Strategy derives a lookup key from an identifier. An empty key never matches.
type Strategy struct {
	Name    MatchStrategy
	Variant string
	Key     func(id string) string
}

// DefaultStrategies is the resolution order. Exact comes first so lossy digit
// normalisation cannot merge distinct legacy ids sharing a digit suffix.
var DefaultStrategies = []Strategy{
	{Name: MatchExact, Variant: VariantExact, Key: strings.TrimSpace},
	{Name: MatchDigits, Variant: VariantDigits, Key: DigitsOnly},
	{Name: MatchDigits, Variant: VariantDigitsNoLeadZeros, Key: func(id string) string { return StripLeadingZeros(DigitsOnly(id)) }},
}

// Match is the result of resolving a raw identifier.
type Match struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Strategy MatchStrategy `json:"match_strategy"`
	Variant  string        `json:"match_variant"`
}

// Resolver resolves identifiers that different tables encode inconsistently.
// It is immutable once built.
type Resolver struct {
	strategies []Strategy
	indices    []map[string]int
	ids        []string
	names      []string
}

// NewResolver builds a resolver over (id, name) pairs. When several ids collapse
// to the same key under a strategy, the first one registered keeps the key.
func NewResolver(strategies []Strategy, ids, names []string) *Resolver {
	if strategies == nil {
		strategies = DefaultStrategies
	}
	r := &Resolver{
		strategies: strategies,
		indices:    make([]map[string]int, len(strategies)),
		ids:        make([]string, 0, len(ids)),
		names:      make([]string, 0, len(ids)),
	}
	for i := range strategies {
		r.indices[i] = make(map[string]int, len(ids))
	}

	for i, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		name := ""
		if i < len(names) {
			name = strings.TrimSpace(names[i])
		}
		pos := len(r.ids)
		r.ids = append(r.ids, id)
		r.names = append(r.names, name)

		for s, strategy := range strategies {
			key := strategy.Key(id)
			if key == "" {
				continue
			}
			if _, exists := r.indices[s][key]; !exists {
				r.indices[s][key] = pos
			}
		}
	}
	return r
}

// Resolve tries each strategy in order and returns the first hit.
func (r *Resolver) Resolve(raw string) (Match, bool) {
	if r == nil {
		return Match{}, false
	}
	for s, strategy := range r.strategies {
		key := strategy.Key(raw)
		if key == "" {
			continue
		}
		if pos, ok := r.indices[s][key]; ok {
			return Match{ID: r.ids[pos], Name: r.names[pos], Strategy: strategy.Name, Variant: strategy.Variant}, true
		}
	}
	return Match{}, false
}

// CanonicalID returns the resolved id for raw, or raw trimmed when unresolved.
func (r *Resolver) CanonicalID(raw string) (string, bool) {
	if m, ok := r.Resolve(raw); ok {
		return m.ID, true
	}
	return strings.TrimSpace(raw), false
}

// Len returns the number of registered identifiers.
func (r *Resolver) Len() int {
	if r == nil {
		return 0
	}
	return len(r.ids)
}
