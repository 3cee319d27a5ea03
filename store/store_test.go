package store

import (
	"sync"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/cloudx-io/opentender/schema"
)

func mustRecord(t *testing.T, table schema.TableType, raw schema.RawRecord) Record {
	t.Helper()
	s, err := schema.Lookup(table)
	assert.NoError(t, err)
	m, err := schema.NewMapper().MapFields(table, raw)
	assert.NoError(t, err)
	return NewRecord(s, m, Provenance{SourceFile: "test.csv"})
}

func TestNewRecord_TypedCoercion(t *testing.T) {
	rec := mustRecord(t, schema.AwardedLine, schema.RawRecord{
		"nro_sicop":                  " T-1 ",
		"precio_unitario_adjudicado": "₡1.500,50",
		"cantidad_adjudicada":        "abc",
		"fecha_adjudicacion":         "02/04/2024",
		"moneda":                     "",
	})

	check.Equal(t, "T-1", rec.String("tenderNumber"))
	check.Equal(t, 1500.5, rec.Number("awardedUnitPrice"))
	check.Equal(t, 0.0, rec.Number("awardedQuantity"))
	_, ok := rec.Date("awardDate")
	check.True(t, ok)
	check.Equal(t, []string{"awardedQuantity"}, rec.Malformed)
	check.Equal(t, "", rec.String("currency"))
	check.Equal(t, " T-1 ", rec.Raw["nro_sicop"])
	check.Equal(t, "test.csv", rec.Provenance.SourceFile)
}

func TestBuildTable_Indices(t *testing.T) {
	s, _ := schema.Lookup(schema.TenderLine)
	records := []Record{
		mustRecord(t, schema.TenderLine, schema.RawRecord{"tenderNumber": "T-1", "lineNumber": "1", "cantidad": "x"}),
		mustRecord(t, schema.TenderLine, schema.RawRecord{"tenderNumber": "T-1", "lineNumber": "2"}),
		mustRecord(t, schema.TenderLine, schema.RawRecord{"tenderNumber": "T-2", "lineNumber": "1"}),
		mustRecord(t, schema.TenderLine, schema.RawRecord{"tenderNumber": "T-2", "lineNumber": "1", "descripcion": "dup"}),
	}

	tbl := BuildTable(s, records)

	check.Equal(t, 4, tbl.Len())
	check.Equal(t, 1, tbl.DuplicateKeys)
	check.Equal(t, 1, tbl.Malformed["requestedQuantity"])
	check.Equal(t, 2, len(tbl.ByFK("tenderNumber", "T-1")))
	check.Equal(t, 2, len(tbl.ByFK("tenderNumber", " T-2 ")))
	check.Nil(t, tbl.ByFK("tenderNumber", "T-3"))
	check.Nil(t, tbl.ByFK("description", "dup"))

	rec, ok := tbl.ByPK("T-2", "1")
	check.True(t, ok)
	check.Equal(t, "", rec.String("description"))
	check.False(t, tbl.HasPK("T-9", "1"))
}

func TestStore_LoadReplaceAndClear(t *testing.T) {
	st := New()
	check.False(t, st.Snapshot().Loaded())

	snap, err := st.LoadTable(schema.Provider, []Record{
		mustRecord(t, schema.Provider, schema.RawRecord{"cedula_proveedor": "001234", "nombre_proveedor": "A"}),
	})
	assert.NoError(t, err)
	check.True(t, snap.Loaded())
	check.Equal(t, uint64(1), snap.Version)

	m, ok := snap.Providers().Resolve("1234")
	check.True(t, ok)
	check.Equal(t, "A", m.Name)

	// unrelated table keeps the provider resolver
	snap2, err := st.LoadTable(schema.Tender, []Record{
		mustRecord(t, schema.Tender, schema.RawRecord{"tenderNumber": "T-1"}),
	})
	assert.NoError(t, err)
	check.Equal(t, 1, snap2.Providers().Len())
	check.Equal(t, []schema.TableType{schema.Provider, schema.Tender}, snap2.Tables())

	// the earlier snapshot is untouched
	check.Nil(t, snap.Table(schema.Tender))

	cleared := st.Clear()
	check.False(t, cleared.Loaded())
	check.Equal(t, 0, cleared.Providers().Len())
	check.Equal(t, uint64(3), cleared.Version)
}

func TestStore_UnknownTable(t *testing.T) {
	_, err := New().LoadTable("Bogus", nil)
	check.Error(t, err)
}

func TestStore_ConcurrentReadersSeeWholeTables(t *testing.T) {
	st := New()
	s, _ := schema.Lookup(schema.TenderLine)

	build := func(n int) []Record {
		out := make([]Record, n)
		for i := range out {
			out[i] = Record{Table: schema.TenderLine, Strings: map[string]string{"tenderNumber": "T", "lineNumber": string(rune('a' + i%26))}}
		}
		return out
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= 50; i++ {
			_, _ = st.Replace(map[schema.TableType]*Table{schema.TenderLine: BuildTable(s, build(i*10))})
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				tbl := st.Snapshot().Table(schema.TenderLine)
				if tbl == nil {
					continue
				}
				if len(tbl.ByFK("tenderNumber", "T")) != tbl.Len() {
					t.Errorf("index out of sync with records")
					return
				}
			}
		}()
	}
	wg.Wait()
}
