package store

import (
	"strings"
	"time"

	"github.com/cloudx-io/opentender/core"
	"github.com/cloudx-io/opentender/schema"
)

// Provenance describes the upload batch a record came from.
type Provenance struct {
	Year       int       `json:"year,omitempty"`
	Month      int       `json:"month,omitempty"`
	SourceFile string    `json:"source_file,omitempty"`
	UploadedAt time.Time `json:"uploaded_at"`
	BatchID    string    `json:"batch_id,omitempty"`
}

// Record is one canonical row. Strings holds the trimmed text of every canonical
// field; typed values live in Numbers, Dates and Bools when they parsed. Raw keeps
// the original headers and values. Records are never mutated after load.
type Record struct {
	Table      schema.TableType     `json:"table"`
	Strings    map[string]string    `json:"strings"`
	Numbers    map[string]float64   `json:"numbers,omitempty"`
	Dates      map[string]time.Time `json:"dates,omitempty"`
	Bools      map[string]bool      `json:"bools,omitempty"`
	Raw        map[string]string    `json:"raw"`
	Malformed  []string             `json:"malformed,omitempty"`
	Provenance Provenance           `json:"provenance"`
}

// NewRecord coerces a mapped row into typed values using the table schema.
// Unparseable numbers, dates and booleans are left out of the typed maps and
// named in Malformed; blank values are simply missing.
func NewRecord(s *schema.Schema, m schema.Mapped, prov Provenance) Record {
	rec := Record{
		Table:      s.Table,
		Strings:    make(map[string]string, len(m.Canonical)),
		Numbers:    make(map[string]float64),
		Dates:      make(map[string]time.Time),
		Bools:      make(map[string]bool),
		Raw:        m.Raw,
		Provenance: prov,
	}

	for name, value := range m.Canonical {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		rec.Strings[name] = value

		field, declared := s.Field(name)
		if !declared {
			continue
		}
		switch field.Kind {
		case schema.KindNumber:
			if v, ok := core.ParseFlexibleNumber(value); ok {
				rec.Numbers[name] = v
			} else {
				rec.Malformed = append(rec.Malformed, name)
			}
		case schema.KindDate:
			if v, ok := core.ParseFlexibleDate(value); ok {
				rec.Dates[name] = v
			} else {
				rec.Malformed = append(rec.Malformed, name)
			}
		case schema.KindBool:
			if v, ok := core.ParseFlexibleBool(value); ok {
				rec.Bools[name] = v
			} else {
				rec.Malformed = append(rec.Malformed, name)
			}
		}
	}
	return rec
}

// String returns the trimmed text of field, or "".
func (r Record) String(field string) string {
	return r.Strings[field]
}

// Number returns the parsed number of field, or 0 when missing or malformed.
func (r Record) Number(field string) float64 {
	return r.Numbers[field]
}

// Date returns the parsed date of field.
func (r Record) Date(field string) (time.Time, bool) {
	t, ok := r.Dates[field]
	return t, ok
}

// Bool returns the parsed boolean of field.
func (r Record) Bool(field string) (value bool, ok bool) {
	value, ok = r.Bools[field]
	return value, ok
}
