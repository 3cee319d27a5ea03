// Package store holds the in-memory procurement tables. Readers work on an
// immutable Snapshot; loads build a new snapshot and swap it in atomically, so a
// reader never observes a half-built index.
package store

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cloudx-io/opentender/core"
	"github.com/cloudx-io/opentender/schema"
)

// Snapshot is one consistent view of every loaded table.
type Snapshot struct {
	Version  uint64
	LoadedAt time.Time

	tables       map[schema.TableType]*Table
	providers    *core.Resolver
	institutions *core.Resolver
}

// Table returns the loaded table, or nil.
func (s *Snapshot) Table(t schema.TableType) *Table {
	if s == nil {
		return nil
	}
	return s.tables[t]
}

// Records returns the records of t. The slice must be treated as read-only.
func (s *Snapshot) Records(t schema.TableType) []Record {
	if tbl := s.Table(t); tbl != nil {
		return tbl.Records
	}
	return nil
}

// Loaded reports whether at least one table is present.
func (s *Snapshot) Loaded() bool {
	return s != nil && len(s.tables) > 0
}

// Tables returns the loaded table types in schema declaration order.
func (s *Snapshot) Tables() []schema.TableType {
	out := make([]schema.TableType, 0, len(s.tables))
	for _, t := range schema.All() {
		if _, ok := s.tables[t]; ok {
			out = append(out, t)
		}
	}
	return out
}

// Providers returns the provider identifier resolver.
func (s *Snapshot) Providers() *core.Resolver {
	return s.providers
}

// Institutions returns the institution identifier resolver.
func (s *Snapshot) Institutions() *core.Resolver {
	return s.institutions
}

// Resolver returns the resolver for a foreign key mode, or nil for exact keys.
func (s *Snapshot) Resolver(mode schema.ResolveMode) *core.Resolver {
	switch mode {
	case schema.ResolveProvider:
		return s.providers
	case schema.ResolveInstitution:
		return s.institutions
	default:
		return nil
	}
}

// Store owns the current snapshot. There is a single writer at a time; readers
// never block.
type Store struct {
	writeMu sync.Mutex
	current atomic.Pointer[Snapshot]
}

// New returns an empty store.
func New() *Store {
	s := &Store{}
	s.current.Store(emptySnapshot(0))
	return s
}

func emptySnapshot(version uint64) *Snapshot {
	return &Snapshot{
		Version:      version,
		LoadedAt:     time.Now(),
		tables:       make(map[schema.TableType]*Table),
		providers:    core.NewResolver(nil, nil, nil),
		institutions: core.NewResolver(nil, nil, nil),
	}
}

// Snapshot returns the current snapshot.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// LoadTable replaces one table and returns the new snapshot.
func (s *Store) LoadTable(t schema.TableType, records []Record) (*Snapshot, error) {
	sch, err := schema.Lookup(t)
	if err != nil {
		return nil, err
	}
	return s.Replace(map[schema.TableType]*Table{t: BuildTable(sch, records)})
}

// Replace swaps in every given table in a single step. Tables not named keep
// their current contents.
func (s *Store) Replace(tables map[schema.TableType]*Table) (*Snapshot, error) {
	for t, tbl := range tables {
		if _, err := schema.Lookup(t); err != nil {
			return nil, err
		}
		if tbl == nil || tbl.Type != t {
			return nil, fmt.Errorf("table %s: built table does not match type", t)
		}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	prev := s.current.Load()
	next := &Snapshot{
		Version:      prev.Version + 1,
		LoadedAt:     time.Now(),
		tables:       make(map[schema.TableType]*Table, len(prev.tables)+len(tables)),
		providers:    prev.providers,
		institutions: prev.institutions,
	}
	for t, tbl := range prev.tables {
		next.tables[t] = tbl
	}
	for t, tbl := range tables {
		next.tables[t] = tbl
	}

	if tbl, ok := tables[schema.Provider]; ok {
		next.providers = buildResolver(tbl, "providerId")
	}
	if tbl, ok := tables[schema.Institution]; ok {
		next.institutions = buildResolver(tbl, "institutionCode")
	}

	s.current.Store(next)
	return next, nil
}

// Clear drops every table.
func (s *Store) Clear() *Snapshot {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next := emptySnapshot(s.current.Load().Version + 1)
	s.current.Store(next)
	return next
}

func buildResolver(tbl *Table, idField string) *core.Resolver {
	ids := make([]string, 0, len(tbl.Records))
	names := make([]string, 0, len(tbl.Records))
	for _, rec := range tbl.Records {
		ids = append(ids, rec.String(idField))
		names = append(names, rec.String("name"))
	}
	return core.NewResolver(core.DefaultStrategies, ids, names)
}
