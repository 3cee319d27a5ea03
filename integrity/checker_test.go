package integrity

import (
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/cloudx-io/opentender/schema"
	"github.com/cloudx-io/opentender/store"
)

func load(t *testing.T, st *store.Store, table schema.TableType, rows ...schema.RawRecord) {
	t.Helper()
	s, err := schema.Lookup(table)
	assert.NoError(t, err)
	mapper := schema.NewMapper()
	records := make([]store.Record, 0, len(rows))
	for _, row := range rows {
		m, err := mapper.MapFields(table, row)
		assert.NoError(t, err)
		records = append(records, store.NewRecord(s, m, store.Provenance{}))
	}
	_, err = st.LoadTable(table, records)
	assert.NoError(t, err)
}

func TestCheck_OrphanTenderLine(t *testing.T) {
	st := store.New()
	load(t, st, schema.Tender,
		schema.RawRecord{"tenderNumber": "T-1"},
		schema.RawRecord{"tenderNumber": "T-2"},
	)
	load(t, st, schema.TenderLine,
		schema.RawRecord{"tenderNumber": "T-1", "lineNumber": "1"},
		schema.RawRecord{"tenderNumber": "T-404", "lineNumber": "1"},
		schema.RawRecord{"tenderNumber": "", "lineNumber": "2"},
	)

	report := Check(st.Snapshot())

	check.Equal(t, 1, report.TotalOrphans)
	matches := 0
	for _, d := range report.Details {
		if d.Table == schema.TenderLine && d.Field == "tenderNumber" {
			matches++
			check.Equal(t, 1, d.OrphanCount)
			check.Equal(t, 2, d.Checked)
			check.Equal(t, 1, d.Missing)
			check.Equal(t, []string{"T-404"}, d.SampleValues)
			check.Equal(t, schema.Tender, d.TargetTable)
		}
	}
	check.Equal(t, 1, matches)
}

func TestCheck_ProviderKeysUseResolver(t *testing.T) {
	st := store.New()
	load(t, st, schema.Provider,
		schema.RawRecord{"providerId": "003101123456", "name": "Acme"},
	)
	load(t, st, schema.Tender, schema.RawRecord{"tenderNumber": "T-1"})
	load(t, st, schema.AwardedLine,
		schema.RawRecord{"tenderNumber": "T-1", "lineNumber": "1", "providerId": "3-101-123456"},
		schema.RawRecord{"tenderNumber": "T-1", "lineNumber": "2", "providerId": "003101123456"},
		schema.RawRecord{"tenderNumber": "T-1", "lineNumber": "3", "providerId": "999"},
	)

	report := Check(st.Snapshot())

	check.Equal(t, 1, report.TotalOrphans)
	check.Equal(t, 1, len(report.Details))
	check.Equal(t, schema.AwardedLine, report.Details[0].Table)
	check.Equal(t, "providerId", report.Details[0].Field)
	check.Equal(t, []string{"999"}, report.Details[0].SampleValues)
}

func TestCheck_SkipsUnloadedTargets(t *testing.T) {
	st := store.New()
	load(t, st, schema.Offer, schema.RawRecord{"tenderNumber": "T-1", "offerNumber": "1", "providerId": "1"})

	report := Check(st.Snapshot())

	check.Equal(t, 0, report.TotalOrphans)
	check.Equal(t, 0, len(report.Details))
	check.Equal(t, 2, len(report.Skipped))
	check.Equal(t, "tenderNumber", report.Skipped[0].Field)
	check.Equal(t, "providerId", report.Skipped[1].Field)
}

func TestCheck_EmptyTargetCountsOrphans(t *testing.T) {
	st := store.New()
	load(t, st, schema.Tender)
	load(t, st, schema.TenderLine, schema.RawRecord{"tenderNumber": "T-404", "lineNumber": "1"})

	report := Check(st.Snapshot())

	check.Equal(t, 1, report.TotalOrphans)
	assert.Equal(t, 1, len(report.Details))
	check.Equal(t, schema.TenderLine, report.Details[0].Table)
	check.Equal(t, "tenderNumber", report.Details[0].Field)
	check.Equal(t, []string{"T-404"}, report.Details[0].SampleValues)
	for _, sk := range report.Skipped {
		check.False(t, sk.Table == schema.TenderLine && sk.Field == "tenderNumber")
	}
}

func TestCheck_ReadOnly(t *testing.T) {
	st := store.New()
	load(t, st, schema.Tender, schema.RawRecord{"tenderNumber": "T-1", "monto_estimado": "abc"})
	before := st.Snapshot()

	report := Check(before)

	check.True(t, before == st.Snapshot())
	check.Equal(t, 1, report.MalformedValues[schema.Tender])
	check.Equal(t, 1, before.Table(schema.Tender).Len())
}

func TestRelationships_Declared(t *testing.T) {
	rels := Relationships()
	check.True(t, len(rels) > 20)
	check.Equal(t, schema.Tender, rels[0].Table)
	check.Equal(t, "institutionCode", rels[0].Field)
}
