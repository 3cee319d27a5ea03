package analytics

import (
	"github.com/cloudx-io/opentender/core"
	"github.com/cloudx-io/opentender/schema"
)

// GeneralKPIs are the scoped headline metrics. Rates are percentages; HHI is on
// a 0–1 scale. MedianTimeToAward is nil when no tender has both an opening date
// and a firm award date.
type GeneralKPIs struct {
	TotalTenders       int      `json:"total_tenders"`
	AwardedTenders     int      `json:"awarded_tenders"`
	DesertedTenders    int      `json:"deserted_tenders"`
	ConversionRate     float64  `json:"conversion_rate"`
	DesertRate         float64  `json:"desert_rate"`
	MedianTimeToAward  *float64 `json:"median_time_to_award"`
	TimeToAwardSamples int      `json:"time_to_award_samples"`
	HHI                float64  `json:"hhi"`
	TotalAwardedAmount float64  `json:"total_awarded_amount"`
}

// GeneralKPIs computes the headline metrics over the tenders in scope.
func (a *Analyzer) GeneralKPIs(f Filters) *GeneralKPIs {
	return a.generalKPIs(a.tenders(f))
}

func (a *Analyzer) generalKPIs(scope []tenderFacts) *GeneralKPIs {
	kpis := &GeneralKPIs{TotalTenders: len(scope)}
	samples := make([]float64, 0, len(scope))

	for _, t := range scope {
		if t.awarded {
			kpis.AwardedTenders++
		}
		if t.deserted {
			kpis.DesertedTenders++
		}
		if t.hasTTA {
			samples = append(samples, t.tta)
		}
		kpis.TotalAwardedAmount = core.SumAmounts(kpis.TotalAwardedAmount, t.awardAmt)
	}

	kpis.ConversionRate = core.Percentage(kpis.AwardedTenders, kpis.TotalTenders)
	kpis.DesertRate = core.Percentage(kpis.DesertedTenders, kpis.TotalTenders)
	if median, ok := core.Median(samples); ok {
		kpis.MedianTimeToAward = &median
	}
	kpis.TimeToAwardSamples = len(samples)

	shares := make(map[string]float64)
	for _, total := range a.awardTotals(scope) {
		shares[total.ProviderID] = core.SumAmounts(shares[total.ProviderID], total.Amount)
	}
	kpis.HHI = core.HerfindahlIndex(shares)
	return kpis
}

// awardTotals returns one entry per awarded line in scope, keyed by the resolved
// provider. Count is 1 on the first line of each (provider, tender) pair so the
// merged count is the number of tenders won.
func (a *Analyzer) awardTotals(scope []tenderFacts) []core.ProviderTotal {
	awarded := a.snap.Table(schema.AwardedLine)
	var totals []core.ProviderTotal
	for _, t := range scope {
		if !t.awarded {
			continue
		}
		counted := make(map[string]bool)
		for _, rec := range awarded.ByFK("tenderNumber", t.number) {
			total := a.provider(rec.String("providerId"))
			total.Amount = core.ComputeLineAmount(LineFromRecord(rec))
			if !counted[total.ProviderID] {
				counted[total.ProviderID] = true
				total.Count = 1
			}
			totals = append(totals, total)
		}
	}
	return totals
}

// contractTotals counts contracts per provider for tenders in scope. Without a
// Contract table the count falls back to tenders won.
func (a *Analyzer) contractTotals(scope []tenderFacts) []core.ProviderTotal {
	contracts := a.snap.Table(schema.Contract)
	if contracts == nil {
		return a.awardTotals(scope)
	}
	var totals []core.ProviderTotal
	for _, t := range scope {
		for _, rec := range contracts.ByFK("tenderNumber", t.number) {
			total := a.provider(rec.String("providerId"))
			total.Count = 1
			total.Amount = core.ComputeLineAmount(LineFromRecord(rec))
			totals = append(totals, total)
		}
	}
	return totals
}

// TopProvidersByAmount ranks providers by awarded amount in scope. Providers
// with no positive amount are left out.
func (a *Analyzer) TopProvidersByAmount(f Filters, n int) []core.ProviderTotal {
	return a.topByAmount(a.tenders(f), n)
}

// TopProvidersByContractCount ranks providers by number of contracts in scope.
func (a *Analyzer) TopProvidersByContractCount(f Filters, n int) []core.ProviderTotal {
	return a.topByContracts(a.tenders(f), n)
}

func (a *Analyzer) topByAmount(scope []tenderFacts, n int) []core.ProviderTotal {
	ranked := core.RankProviders(a.awardTotals(scope), core.RankByAmount, 0).Sorted
	out := make([]core.ProviderTotal, 0, len(ranked))
	for _, entry := range ranked {
		if entry.Amount > 0 {
			out = append(out, entry)
		}
	}
	return truncate(out, a.limit(n))
}

func (a *Analyzer) topByContracts(scope []tenderFacts, n int) []core.ProviderTotal {
	return core.RankProviders(a.contractTotals(scope), core.RankByCount, a.limit(n)).Sorted
}

func (a *Analyzer) limit(n int) int {
	if n <= 0 {
		return a.opts.TopN
	}
	return n
}

func truncate(totals []core.ProviderTotal, n int) []core.ProviderTotal {
	if n > 0 && len(totals) > n {
		return totals[:n]
	}
	return totals
}
