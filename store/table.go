package store

import (
	"strings"
	"time"

	"github.com/cloudx-io/opentender/schema"
)

const keySeparator = "\x1f"

// Table is an immutable record list plus its primary-key and foreign-key indices.
type Table struct {
	Type     schema.TableType
	Records  []Record
	LoadedAt time.Time

	// DuplicateKeys counts rows whose primary key was already taken; the first row
	// keeps the index entry, every row stays in Records.
	DuplicateKeys int
	// Malformed counts unparseable values per canonical field.
	Malformed map[string]int

	byPK map[string]int
	byFK map[string]map[string][]int
}

// BuildTable indexes records in one pass per index.
func BuildTable(s *schema.Schema, records []Record) *Table {
	t := &Table{
		Type:      s.Table,
		Records:   records,
		LoadedAt:  time.Now(),
		Malformed: make(map[string]int),
		byPK:      make(map[string]int, len(records)),
		byFK:      make(map[string]map[string][]int, len(s.ForeignKeys)),
	}

	for _, fk := range s.ForeignKeys {
		t.byFK[fk.Field] = make(map[string][]int)
	}

	for i, rec := range records {
		for _, field := range rec.Malformed {
			t.Malformed[field]++
		}

		if key, ok := primaryKey(s.PrimaryKey, rec); ok {
			if _, exists := t.byPK[key]; exists {
				t.DuplicateKeys++
			} else {
				t.byPK[key] = i
			}
		}

		for _, fk := range s.ForeignKeys {
			value := rec.String(fk.Field)
			if value == "" {
				continue
			}
			t.byFK[fk.Field][value] = append(t.byFK[fk.Field][value], i)
		}
	}
	return t
}

func primaryKey(fields []string, rec Record) (string, bool) {
	parts := make([]string, len(fields))
	blank := true
	for i, f := range fields {
		parts[i] = rec.String(f)
		if parts[i] != "" {
			blank = false
		}
	}
	if blank {
		return "", false
	}
	return strings.Join(parts, keySeparator), true
}

// Len returns the number of records; nil tables are empty.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}

// ByPK returns the record whose primary key fields equal key, in declaration order.
func (t *Table) ByPK(key ...string) (Record, bool) {
	if t == nil {
		return Record{}, false
	}
	parts := make([]string, len(key))
	for i, k := range key {
		parts[i] = strings.TrimSpace(k)
	}
	i, ok := t.byPK[strings.Join(parts, keySeparator)]
	if !ok {
		return Record{}, false
	}
	return t.Records[i], true
}

// ByFK returns records whose foreign key field equals value, in load order.
// Fields that are not declared foreign keys yield nil.
func (t *Table) ByFK(field, value string) []Record {
	if t == nil {
		return nil
	}
	index, ok := t.byFK[field]
	if !ok {
		return nil
	}
	positions := index[strings.TrimSpace(value)]
	if len(positions) == 0 {
		return nil
	}
	out := make([]Record, len(positions))
	for i, pos := range positions {
		out[i] = t.Records[pos]
	}
	return out
}

// HasPK reports whether key is present in the primary-key index.
func (t *Table) HasPK(key ...string) bool {
	_, ok := t.ByPK(key...)
	return ok
}
