package engine

import (
	"strings"

	"github.com/cloudx-io/opentender/analytics"
	"github.com/cloudx-io/opentender/cache"
	"github.com/cloudx-io/opentender/integrity"
	"github.com/cloudx-io/opentender/schema"
	"github.com/cloudx-io/opentender/store"
)

// Cache function ids.
const (
	fnIntegrity          = "integrity"
	fnGeneralKPIs        = "generalKPIs"
	fnInstitutionDash    = "institutionDashboard"
	fnComplementaryDash  = "complementaryDashboard"
	fnTenderDossier      = "tenderDossier"
	fnSuggestTenders     = "suggestTenders"
	fnInstitutionsList   = "institutionsList"
	fnInstitutionFilters = "institutionFilters"
)

// Diagnostics is the load-side reporting view. It never fails.
type Diagnostics struct {
	SnapshotVersion uint64                                  `json:"snapshot_version"`
	RowCounts       map[schema.TableType]int                `json:"row_counts"`
	HeaderStats     map[schema.TableType]schema.HeaderStats `json:"header_stats"`
	Malformed       map[schema.TableType]map[string]int     `json:"malformed"`
	DuplicateKeys   map[schema.TableType]int                `json:"duplicate_keys"`
	Batches         []Batch                                 `json:"batches"`
	Cache           cache.Stats                             `json:"cache"`
}

// GetDiagnostics reports row counts, header mapping, malformed value counts and
// load history for every loaded table.
func (e *Engine) GetDiagnostics() *Diagnostics {
	snap := e.store.Snapshot()
	d := &Diagnostics{
		SnapshotVersion: snap.Version,
		RowCounts:       make(map[schema.TableType]int),
		HeaderStats:     make(map[schema.TableType]schema.HeaderStats),
		Malformed:       make(map[schema.TableType]map[string]int),
		DuplicateKeys:   make(map[schema.TableType]int),
		Cache:           e.cache.Stats(),
	}
	for _, t := range snap.Tables() {
		tbl := snap.Table(t)
		d.RowCounts[t] = tbl.Len()
		d.HeaderStats[t] = e.mapper.HeaderStats(t)
		if len(tbl.Malformed) > 0 {
			d.Malformed[t] = tbl.Malformed
		}
		if tbl.DuplicateKeys > 0 {
			d.DuplicateKeys[t] = tbl.DuplicateKeys
		}
	}

	e.loadMu.Lock()
	d.Batches = append([]Batch{}, e.batches...)
	e.loadMu.Unlock()
	return d
}

// memoize runs compute on the current snapshot through the cache. The snapshot
// is read inside the computation so a result is never stored against a newer
// generation than the data it was built from.
func memoize[T any](e *Engine, fn string, params map[string]any, compute func(*store.Snapshot) T) (T, error) {
	var zero T
	if !e.store.Snapshot().Loaded() {
		return zero, ErrNotLoaded
	}
	key, err := cache.Key(fn, params)
	if err != nil {
		return zero, err
	}
	return cache.Get(e.cache, key, func() (T, error) {
		return compute(e.store.Snapshot()), nil
	})
}

func (e *Engine) analyzer(snap *store.Snapshot) *analytics.Analyzer {
	return analytics.New(snap, e.opts)
}

// GetIntegritySummary runs the referential-integrity scan.
func (e *Engine) GetIntegritySummary() (*integrity.Report, error) {
	return memoize(e, fnIntegrity, nil, func(snap *store.Snapshot) *integrity.Report {
		return integrity.Check(snap)
	})
}

// GetGeneralKPIs returns the headline metrics for the scope f.
func (e *Engine) GetGeneralKPIs(f analytics.Filters) (*analytics.GeneralKPIs, error) {
	return memoize(e, fnGeneralKPIs, f.Canonical(), func(snap *store.Snapshot) *analytics.GeneralKPIs {
		return e.analyzer(snap).GeneralKPIs(f)
	})
}

// GetInstitutionDashboard returns the dashboard for f.InstitutionCode.
func (e *Engine) GetInstitutionDashboard(f analytics.Filters) (*analytics.InstitutionDashboard, error) {
	return memoize(e, fnInstitutionDash, f.Canonical(), func(snap *store.Snapshot) *analytics.InstitutionDashboard {
		return e.analyzer(snap).InstitutionDashboard(f)
	})
}

// GetComplementaryDashboard returns provider rankings and the sector breakdown.
func (e *Engine) GetComplementaryDashboard(f analytics.Filters) (*analytics.ComplementaryDashboard, error) {
	return memoize(e, fnComplementaryDash, f.Canonical(), func(snap *store.Snapshot) *analytics.ComplementaryDashboard {
		return e.analyzer(snap).ComplementaryDashboard(f)
	})
}

// GetTenderDossier returns the dossier for number, or nil when the tender is
// unknown.
func (e *Engine) GetTenderDossier(number string) (*analytics.Dossier, error) {
	params := map[string]any{"tenderNumber": strings.TrimSpace(number)}
	return memoize(e, fnTenderDossier, params, func(snap *store.Snapshot) *analytics.Dossier {
		return e.analyzer(snap).TenderDossier(number)
	})
}

// SuggestTenders returns up to limit tenders matching query.
func (e *Engine) SuggestTenders(query string, limit int) ([]analytics.Suggestion, error) {
	params := map[string]any{"query": strings.TrimSpace(query), "limit": limit}
	return memoize(e, fnSuggestTenders, params, func(snap *store.Snapshot) []analytics.Suggestion {
		return e.analyzer(snap).SuggestTenders(query, limit)
	})
}

// GetInstitutionsList returns institutions with their tender counts.
func (e *Engine) GetInstitutionsList() ([]analytics.InstitutionSummary, error) {
	return memoize(e, fnInstitutionsList, nil, func(snap *store.Snapshot) []analytics.InstitutionSummary {
		return e.analyzer(snap).InstitutionsList()
	})
}

// GetInstitutionFilters returns the filter values available for one
// institution, or for every tender when code is blank.
func (e *Engine) GetInstitutionFilters(code string) (*analytics.FilterOptions, error) {
	params := map[string]any{"institutionCode": strings.TrimSpace(code)}
	return memoize(e, fnInstitutionFilters, params, func(snap *store.Snapshot) *analytics.FilterOptions {
		return e.analyzer(snap).InstitutionFilters(code)
	})
}
