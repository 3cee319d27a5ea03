package analytics

import (
	"sort"
	"strings"

	"github.com/cloudx-io/opentender/core"
	"github.com/cloudx-io/opentender/schema"
)

// InstitutionInfo identifies an institution. Unresolved is set when the code
// has no row in the Institution table; the raw code is still shown.
type InstitutionInfo struct {
	Code          string `json:"code"`
	Name          string `json:"name"`
	GeoZone       string `json:"geo_zone,omitempty"`
	Type          string `json:"type,omitempty"`
	MatchStrategy string `json:"match_strategy,omitempty"`
	Unresolved    bool   `json:"unresolved,omitempty"`
}

// Bucket is one group of a breakdown.
type Bucket struct {
	Key            string  `json:"key"`
	Tenders        int     `json:"tenders"`
	AwardedAmount  float64 `json:"awarded_amount"`
	EstimatedTotal float64 `json:"estimated_amount"`
}

// InstitutionDashboard is the scoped view of one institution, or of every
// institution when the filter names none.
type InstitutionDashboard struct {
	Institution             *InstitutionInfo     `json:"institution,omitempty"`
	Filters                 Filters              `json:"filters"`
	KPIs                    *GeneralKPIs         `json:"kpis"`
	EstimatedAmount         float64              `json:"estimated_amount"`
	AwardedAmount           float64              `json:"awarded_amount"`
	ByStatus                []Bucket             `json:"by_status"`
	ByProcedure             []Bucket             `json:"by_procedure"`
	BySector                []Bucket             `json:"by_sector"`
	ByMonth                 []Bucket             `json:"by_month"`
	TopProvidersByAmount    []core.ProviderTotal `json:"top_providers_by_amount"`
	TopProvidersByContracts []core.ProviderTotal `json:"top_providers_by_contracts"`
}

// ComplementaryDashboard is the provider-centred view of a scope.
type ComplementaryDashboard struct {
	TopProvidersByAmount    []core.ProviderTotal `json:"top_providers_by_amount"`
	TopProvidersByContracts []core.ProviderTotal `json:"top_providers_by_contracts"`
	SectorBreakdown         []Bucket             `json:"sector_breakdown"`
}

// InstitutionSummary is one entry of the institutions list.
type InstitutionSummary struct {
	InstitutionInfo
	TenderCount int `json:"tender_count"`
}

// FilterOptions lists the values available for filtering, sorted and distinct.
type FilterOptions struct {
	Years          []int    `json:"years"`
	ProcedureTypes []string `json:"procedure_types"`
	Categories     []string `json:"categories"`
	Statuses       []string `json:"statuses"`
}

// InstitutionDashboard builds the dashboard for f.InstitutionCode.
func (a *Analyzer) InstitutionDashboard(f Filters) *InstitutionDashboard {
	scope := a.tenders(f)
	d := &InstitutionDashboard{
		Filters:                 f,
		KPIs:                    a.generalKPIs(scope),
		TopProvidersByAmount:    a.topByAmount(scope, 0),
		TopProvidersByContracts: a.topByContracts(scope, 0),
	}
	if code := strings.TrimSpace(f.InstitutionCode); code != "" {
		info := a.institution(code)
		d.Institution = &info
	}

	for _, t := range scope {
		d.EstimatedAmount = core.SumAmounts(d.EstimatedAmount, t.estimated)
	}
	d.AwardedAmount = d.KPIs.TotalAwardedAmount
	d.ByStatus = breakdown(scope, func(t tenderFacts) string { return t.record.String("status") })
	d.ByProcedure = breakdown(scope, func(t tenderFacts) string { return t.record.String("procedureCode") })
	d.BySector = breakdown(scope, func(t tenderFacts) string { return t.sector })
	d.ByMonth = breakdown(scope, func(t tenderFacts) string {
		if !t.hasDate {
			return ""
		}
		return t.date.Format("2006-01")
	})
	return d
}

// ComplementaryDashboard builds the provider rankings and sector breakdown.
func (a *Analyzer) ComplementaryDashboard(f Filters) *ComplementaryDashboard {
	scope := a.tenders(f)
	return &ComplementaryDashboard{
		TopProvidersByAmount:    a.topByAmount(scope, 0),
		TopProvidersByContracts: a.topByContracts(scope, 0),
		SectorBreakdown:         breakdown(scope, func(t tenderFacts) string { return t.sector }),
	}
}

// breakdown groups the scope by key; blank keys are grouped under "".
// Buckets are sorted by key.
func breakdown(scope []tenderFacts, key func(tenderFacts) string) []Bucket {
	index := make(map[string]int)
	buckets := make([]Bucket, 0)
	for _, t := range scope {
		k := key(t)
		i, ok := index[k]
		if !ok {
			i = len(buckets)
			index[k] = i
			buckets = append(buckets, Bucket{Key: k})
		}
		buckets[i].Tenders++
		buckets[i].AwardedAmount = core.SumAmounts(buckets[i].AwardedAmount, t.awardAmt)
		buckets[i].EstimatedTotal = core.SumAmounts(buckets[i].EstimatedTotal, t.estimated)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Key < buckets[j].Key })
	return buckets
}

func (a *Analyzer) institution(code string) InstitutionInfo {
	code = strings.TrimSpace(code)
	m, ok := a.snap.Institutions().Resolve(code)
	if !ok {
		return InstitutionInfo{Code: code, Name: code, Unresolved: true}
	}
	info := InstitutionInfo{Code: m.ID, Name: m.Name, MatchStrategy: string(m.Strategy)}
	if rec, found := a.snap.Table(schema.Institution).ByPK(m.ID); found {
		info.GeoZone = rec.String("geoZone")
		info.Type = rec.String("institutionType")
	}
	return info
}

// InstitutionsList returns every known institution with its tender count,
// including codes that only appear on tenders (flagged unresolved). Sorted by
// name, then code.
func (a *Analyzer) InstitutionsList() []InstitutionSummary {
	entries := make(map[string]*InstitutionSummary)
	for _, rec := range a.snap.Records(schema.Institution) {
		code := rec.String("institutionCode")
		if code == "" || entries[code] != nil {
			continue
		}
		entries[code] = &InstitutionSummary{InstitutionInfo: InstitutionInfo{
			Code:    code,
			Name:    rec.String("name"),
			GeoZone: rec.String("geoZone"),
			Type:    rec.String("institutionType"),
		}}
	}

	for _, t := range a.tenders(Filters{}) {
		raw := t.record.String("institutionCode")
		if raw == "" {
			continue
		}
		info := a.institution(raw)
		entry, ok := entries[info.Code]
		if !ok {
			entry = &InstitutionSummary{InstitutionInfo: info}
			entries[info.Code] = entry
		}
		entry.TenderCount++
	}

	out := make([]InstitutionSummary, 0, len(entries))
	for _, e := range entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		ni, nj := core.NormalizeText(out[i].Name), core.NormalizeText(out[j].Name)
		if ni != nj {
			return ni < nj
		}
		return out[i].Code < out[j].Code
	})
	return out
}

// InstitutionFilters lists the filter values present among the tenders of one
// institution, or of all tenders when code is blank.
func (a *Analyzer) InstitutionFilters(code string) *FilterOptions {
	years := make(map[int]bool)
	procedures := make(map[string]bool)
	categories := make(map[string]bool)
	statuses := make(map[string]bool)

	for _, t := range a.tenders(Filters{InstitutionCode: code}) {
		if t.hasDate {
			years[t.date.Year()] = true
		}
		if p := t.record.String("procedureCode"); p != "" {
			procedures[p] = true
		}
		if t.sector != "" {
			categories[t.sector] = true
		}
		if s := t.record.String("status"); s != "" {
			statuses[s] = true
		}
	}

	opts := &FilterOptions{
		Years:          make([]int, 0, len(years)),
		ProcedureTypes: sortedKeys(procedures),
		Categories:     sortedKeys(categories),
		Statuses:       sortedKeys(statuses),
	}
	for y := range years {
		opts.Years = append(opts.Years, y)
	}
	sort.Ints(opts.Years)
	return opts
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
