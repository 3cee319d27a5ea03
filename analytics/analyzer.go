// Package analytics answers the read-only procurement queries: scoped KPIs,
// institution dashboards, provider rankings, tender dossiers and tender
// suggestions. Every query works on one immutable store snapshot.
package analytics

import (
	"strings"
	"time"

	"github.com/cloudx-io/opentender/config"
	"github.com/cloudx-io/opentender/core"
	"github.com/cloudx-io/opentender/schema"
	"github.com/cloudx-io/opentender/store"
)

// Options carries the policy knobs queries depend on.
type Options struct {
	Desert     config.DesertPolicy
	TopN       int
	Classifier *core.SectorClassifier
}

// DefaultOptions mirrors config.Default.
func DefaultOptions() Options {
	cfg := config.Default()
	return OptionsFromConfig(cfg)
}

// OptionsFromConfig derives query options from a loaded configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Desert:     cfg.Desert,
		TopN:       cfg.KPI.TopN,
		Classifier: core.NewSectorClassifier(cfg.Sectors, cfg.FallbackSector),
	}
}

// Analyzer runs queries against a single snapshot. It never mutates it.
type Analyzer struct {
	snap *store.Snapshot
	opts Options
}

func New(snap *store.Snapshot, opts Options) *Analyzer {
	if opts.TopN <= 0 {
		opts.TopN = 10
	}
	if opts.Classifier == nil {
		opts.Classifier = core.NewSectorClassifier(config.DefaultSectors(), "Otros")
	}
	return &Analyzer{snap: snap, opts: opts}
}

// tenderFacts is the per-tender summary every aggregate is built from.
type tenderFacts struct {
	record    store.Record
	number    string
	date      time.Time
	hasDate   bool
	sector    string
	awarded   bool
	deserted  bool
	estimated float64
	awardAmt  float64
	tta       float64
	hasTTA    bool
}

// tenders returns one facts entry per distinct tender number, in load order.
// Duplicate rows behind the first are skipped to match the primary-key index.
func (a *Analyzer) tenders(f Filters) []tenderFacts {
	records := a.snap.Records(schema.Tender)
	seen := make(map[string]bool, len(records))
	out := make([]tenderFacts, 0, len(records))

	for _, rec := range records {
		number := rec.String("tenderNumber")
		if number == "" || seen[number] {
			continue
		}
		seen[number] = true

		if !a.matchesInstitution(f.InstitutionCode, rec.String("institutionCode")) {
			continue
		}
		if len(f.ProcedureTypes) > 0 && !containsNormalized(f.ProcedureTypes, rec.String("procedureCode")) {
			continue
		}
		if len(f.Statuses) > 0 && !containsNormalized(f.Statuses, rec.String("status")) {
			continue
		}

		facts := tenderFacts{record: rec, number: number}
		facts.date, facts.hasDate = scopeDate(rec)
		if (f.DateFrom != nil || f.DateTo != nil) && !facts.hasDate {
			continue
		}
		if f.DateFrom != nil && day(facts.date).Before(day(*f.DateFrom)) {
			continue
		}
		if f.DateTo != nil && day(facts.date).After(day(*f.DateTo)) {
			continue
		}

		facts.sector = a.sector(rec)
		if len(f.Categories) > 0 && !containsNormalized(f.Categories, facts.sector) {
			continue
		}

		a.fill(&facts)
		out = append(out, facts)
	}
	return out
}

func (a *Analyzer) fill(facts *tenderFacts) {
	awarded := a.snap.Table(schema.AwardedLine).ByFK("tenderNumber", facts.number)
	facts.awarded = len(awarded) > 0
	for _, rec := range awarded {
		facts.awardAmt = core.SumAmounts(facts.awardAmt, core.ComputeLineAmount(LineFromRecord(rec)))
	}
	facts.deserted = a.isDeserted(facts.number, facts.awarded)
	facts.estimated = a.estimatedAmount(facts.record)
	facts.tta, facts.hasTTA = a.timeToAward(facts.record)
}

// scopeDate is the publication date, falling back to the opening date.
func scopeDate(tender store.Record) (time.Time, bool) {
	if d, ok := tender.Date("publicationDate"); ok {
		return d, true
	}
	return tender.Date("openingDate")
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (a *Analyzer) sector(tender store.Record) string {
	texts := []string{tender.String("name"), tender.String("classification")}
	for _, line := range a.snap.Table(schema.TenderLine).ByFK("tenderNumber", tender.String("tenderNumber")) {
		texts = append(texts, line.String("description"), line.String("classification"))
	}
	return a.opts.Classifier.Classify(texts...)
}

// isDeserted applies the desert policy. An explicit firm-award flag always
// counts; inferred cases only apply to tenders without awarded lines.
func (a *Analyzer) isDeserted(number string, awarded bool) bool {
	for _, fa := range a.snap.Table(schema.FirmAward).ByFK("tenderNumber", number) {
		if v, ok := fa.Bool("isDeserted"); ok && v {
			return true
		}
	}
	if awarded {
		return false
	}

	received := a.snap.Table(schema.ReceivedLine).ByFK("tenderNumber", number)
	if a.opts.Desert.AllLinesDesert && len(received) > 0 {
		all := true
		for _, rl := range received {
			if v, ok := rl.Bool("isDeserted"); !ok || !v {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}

	if a.opts.Desert.ZeroOffersIsDesert && a.offerDataLoaded() {
		return a.offersReceived(number, received) == 0
	}
	return false
}

func (a *Analyzer) offerDataLoaded() bool {
	return a.snap.Table(schema.Offer) != nil ||
		a.snap.Table(schema.OfferedLine) != nil ||
		a.snap.Table(schema.ReceivedLine) != nil
}

// offersReceived counts offers from the Offer table, then distinct offer numbers
// in offered lines, then the largest per-line offer count.
func (a *Analyzer) offersReceived(number string, received []store.Record) int {
	if offers := a.snap.Table(schema.Offer).ByFK("tenderNumber", number); len(offers) > 0 {
		return len(offers)
	}
	distinct := make(map[string]bool)
	for _, ol := range a.snap.Table(schema.OfferedLine).ByFK("tenderNumber", number) {
		key := ol.String("offerNumber")
		if key == "" {
			key = ol.String("providerId")
		}
		distinct[key] = true
	}
	if len(distinct) > 0 {
		return len(distinct)
	}
	most := 0
	for _, rl := range received {
		if n := int(rl.Number("offerCount")); n > most {
			most = n
		}
	}
	return most
}

// estimatedAmount uses the tender's own estimate, else the sum of its lines.
func (a *Analyzer) estimatedAmount(tender store.Record) float64 {
	if est := core.ComputeLineAmount(LineFromRecord(tender)); est > 0 {
		return est
	}
	total := 0.0
	for _, line := range a.snap.Table(schema.TenderLine).ByFK("tenderNumber", tender.String("tenderNumber")) {
		total = core.SumAmounts(total, core.ComputeLineAmount(LineFromRecord(line)))
	}
	return total
}

// timeToAward is the days from opening to the earliest firm award date.
func (a *Analyzer) timeToAward(tender store.Record) (float64, bool) {
	opening, ok := tender.Date("openingDate")
	if !ok {
		return 0, false
	}
	firm, ok := a.earliestDate(a.snap.Table(schema.FirmAward).ByFK("tenderNumber", tender.String("tenderNumber")), "firmAwardDate")
	if !ok {
		return 0, false
	}
	return firm.Sub(opening).Hours() / 24, true
}

func (a *Analyzer) earliestDate(records []store.Record, field string) (time.Time, bool) {
	var earliest time.Time
	found := false
	for _, rec := range records {
		if d, ok := rec.Date(field); ok && (!found || d.Before(earliest)) {
			earliest, found = d, true
		}
	}
	return earliest, found
}

// provider resolves a raw provider id for display. Unresolved ids keep their raw
// form and are flagged, never hidden.
func (a *Analyzer) provider(raw string) core.ProviderTotal {
	raw = strings.TrimSpace(raw)
	if m, ok := a.snap.Providers().Resolve(raw); ok {
		return core.ProviderTotal{ProviderID: m.ID, Name: m.Name, MatchStrategy: string(m.Strategy)}
	}
	return core.ProviderTotal{ProviderID: raw, Name: raw, Unresolved: true}
}

func (a *Analyzer) matchesInstitution(filter, code string) bool {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return true
	}
	return a.institutionKey(filter) == a.institutionKey(code)
}

// institutionKey is the canonical institution id when it resolves, else the
// digits-only form without leading zeros, else the trimmed text.
func (a *Analyzer) institutionKey(code string) string {
	code = strings.TrimSpace(code)
	if id, ok := a.snap.Institutions().CanonicalID(code); ok {
		return id
	}
	if digits := core.StripLeadingZeros(core.DigitsOnly(code)); digits != "" {
		return digits
	}
	return code
}

func containsNormalized(set []string, value string) bool {
	value = core.NormalizeText(value)
	for _, s := range set {
		if core.NormalizeText(s) == value {
			return true
		}
	}
	return false
}
