package analytics

import (
	"sort"
	"strings"
	"time"

	"github.com/cloudx-io/opentender/core"
)

const dateLayout = "2006-01-02"

// Filters scopes tender-level queries. Zero values mean "no restriction".
// Date bounds are inclusive whole days.
type Filters struct {
	InstitutionCode string     `json:"institution_code,omitempty"`
	DateFrom        *time.Time `json:"date_from,omitempty"`
	DateTo          *time.Time `json:"date_to,omitempty"`
	ProcedureTypes  []string   `json:"procedure_types,omitempty"`
	Categories      []string   `json:"categories,omitempty"`
	Statuses        []string   `json:"statuses,omitempty"`
}

// Canonical returns the filter as a map suitable for fingerprinting: empty
// values dropped, dates as YYYY-MM-DD, set-valued fields normalized, sorted and
// de-duplicated. Equivalent filters yield equal maps.
func (f Filters) Canonical() map[string]any {
	out := make(map[string]any)
	if code := strings.TrimSpace(f.InstitutionCode); code != "" {
		out["institutionCode"] = code
	}
	if f.DateFrom != nil {
		out["dateFrom"] = f.DateFrom.Format(dateLayout)
	}
	if f.DateTo != nil {
		out["dateTo"] = f.DateTo.Format(dateLayout)
	}
	if set := canonicalSet(f.ProcedureTypes); len(set) > 0 {
		out["procedureTypes"] = set
	}
	if set := canonicalSet(f.Categories); len(set) > 0 {
		out["categories"] = set
	}
	if set := canonicalSet(f.Statuses); len(set) > 0 {
		out["statuses"] = set
	}
	return out
}

func canonicalSet(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		n := core.NormalizeText(v)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// ParseDate reads a filter date bound; blank input means no bound.
func ParseDate(s string) (*time.Time, bool) {
	if strings.TrimSpace(s) == "" {
		return nil, true
	}
	t, ok := core.ParseFlexibleDate(s)
	if !ok {
		return nil, false
	}
	return &t, true
}
