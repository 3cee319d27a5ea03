// Package integrity reports foreign-key references that do not resolve to an
// existing target row. It only reads the snapshot it is given.
package integrity

import (
	"sort"

	"github.com/cloudx-io/opentender/schema"
	"github.com/cloudx-io/opentender/store"
)

const maxSampleValues = 10

// Detail is the orphan count for one (table, field) relationship.
type Detail struct {
	Table        schema.TableType `json:"table"`
	Field        string           `json:"field"`
	TargetTable  schema.TableType `json:"target_table"`
	OrphanCount  int              `json:"orphan_count"`
	Checked      int              `json:"checked"`
	Missing      int              `json:"missing"`
	SampleValues []string         `json:"sample_values,omitempty"`
}

// Skipped names a relationship that could not be checked because its target
// table is not loaded. A loaded but empty target is checked: every value is an orphan.
type Skipped struct {
	Table       schema.TableType `json:"table"`
	Field       string           `json:"field"`
	TargetTable schema.TableType `json:"target_table"`
	Reason      string           `json:"reason"`
}

// Report is the result of an integrity scan.
type Report struct {
	TotalOrphans int       `json:"total_orphans"`
	Details      []Detail  `json:"details"`
	Skipped      []Skipped `json:"skipped,omitempty"`
	// MalformedValues counts unparseable numbers, dates and booleans per table.
	MalformedValues map[schema.TableType]int `json:"malformed_values,omitempty"`
}

// Relationship is one declared foreign key.
type Relationship struct {
	Table schema.TableType
	schema.ForeignKey
}

// Relationships lists every declared foreign key in schema declaration order.
// The list is fixed by the schema and never inferred from data.
func Relationships() []Relationship {
	var out []Relationship
	for _, t := range schema.All() {
		s, _ := schema.Lookup(t)
		for _, fk := range s.ForeignKeys {
			out = append(out, Relationship{Table: t, ForeignKey: fk})
		}
	}
	return out
}

// Check walks every declared relationship. Provider and institution keys resolve
// through the snapshot's identifier resolvers; other keys must match the target
// primary key exactly. Blank foreign keys count as missing data, not orphans.
// Details only lists relationships with at least one orphan.
func Check(snap *store.Snapshot) *Report {
	report := &Report{
		Details:         []Detail{},
		MalformedValues: make(map[schema.TableType]int),
	}

	for _, t := range snap.Tables() {
		tbl := snap.Table(t)
		total := 0
		for _, n := range tbl.Malformed {
			total += n
		}
		if total > 0 {
			report.MalformedValues[t] = total
		}
	}

	for _, rel := range Relationships() {
		source := snap.Table(rel.Table)
		target := snap.Table(rel.Target)
		switch {
		case source.Len() == 0:
			continue
		case target == nil:
			report.Skipped = append(report.Skipped, Skipped{
				Table:       rel.Table,
				Field:       rel.Field,
				TargetTable: rel.Target,
				Reason:      "target table not loaded",
			})
			continue
		}

		detail := checkRelationship(snap, rel, source, target)
		if detail.OrphanCount > 0 {
			report.TotalOrphans += detail.OrphanCount
			report.Details = append(report.Details, detail)
		}
	}
	return report
}

func checkRelationship(snap *store.Snapshot, rel Relationship, source, target *store.Table) Detail {
	detail := Detail{
		Table:       rel.Table,
		Field:       rel.Field,
		TargetTable: rel.Target,
	}
	resolver := snap.Resolver(rel.Resolve)
	samples := make(map[string]struct{})

	for _, rec := range source.Records {
		value := rec.String(rel.Field)
		if value == "" {
			detail.Missing++
			continue
		}
		detail.Checked++

		var found bool
		if resolver != nil {
			_, found = resolver.Resolve(value)
		} else {
			found = target.HasPK(value)
		}
		if found {
			continue
		}

		detail.OrphanCount++
		if _, seen := samples[value]; !seen && len(samples) < maxSampleValues {
			samples[value] = struct{}{}
		}
	}

	for v := range samples {
		detail.SampleValues = append(detail.SampleValues, v)
	}
	sort.Strings(detail.SampleValues)
	return detail
}
