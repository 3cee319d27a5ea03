package analytics

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/cloudx-io/opentender/core"
	"github.com/cloudx-io/opentender/schema"
)

const defaultSuggestLimit = 10

// Suggestion is one tender matching a free-text query.
type Suggestion struct {
	TenderNumber    string  `json:"tender_number"`
	Name            string  `json:"name"`
	InstitutionCode string  `json:"institution_code"`
	Score           float64 `json:"score"`
}

// SuggestTenders matches query against normalized tender numbers and names.
// Number matches score 100 (exact), 80 (prefix) or 60 (substring); names score
// 40 plus a coverage bonus when every query token occurs, or 20 times the
// fraction of tokens found. Results are sorted by score, then tender number.
func (a *Analyzer) SuggestTenders(query string, limit int) []Suggestion {
	q := core.NormalizeText(query)
	out := make([]Suggestion, 0)
	if q == "" {
		return out
	}
	if limit <= 0 {
		limit = defaultSuggestLimit
	}
	tokens := strings.Fields(q)

	seen := make(map[string]bool)
	for _, rec := range a.snap.Records(schema.Tender) {
		number := rec.String("tenderNumber")
		if number == "" || seen[number] {
			continue
		}
		seen[number] = true

		score := math.Max(numberScore(core.NormalizeText(number), q), nameScore(core.NormalizeText(rec.String("name")), q, tokens))
		if score <= 0 {
			continue
		}
		out = append(out, Suggestion{
			TenderNumber:    number,
			Name:            rec.String("name"),
			InstitutionCode: rec.String("institutionCode"),
			Score:           score,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].TenderNumber < out[j].TenderNumber
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func numberScore(number, q string) float64 {
	switch {
	case number == q:
		return 100
	case strings.HasPrefix(number, q):
		return 80
	case strings.Contains(number, q):
		return 60
	}
	return 0
}

func nameScore(name, q string, tokens []string) float64 {
	if name == "" || len(tokens) == 0 {
		return 0
	}
	found := 0
	for _, tok := range tokens {
		if strings.Contains(name, tok) {
			found++
		}
	}
	if found == len(tokens) {
		coverage := float64(utf8.RuneCountInString(q)) / float64(utf8.RuneCountInString(name))
		return 40 + math.Round(math.Min(coverage, 1)*10000)/1000
	}
	return 20 * float64(found) / float64(len(tokens))
}
