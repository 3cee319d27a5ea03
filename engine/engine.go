// Package engine is the single ingress and query facade over the procurement
// store. Loads map and type raw rows, swap them into the store and invalidate
// cached results; queries run on the current snapshot and are memoized.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/cloudx-io/opentender/analytics"
	"github.com/cloudx-io/opentender/cache"
	"github.com/cloudx-io/opentender/config"
	"github.com/cloudx-io/opentender/core"
	"github.com/cloudx-io/opentender/schema"
	"github.com/cloudx-io/opentender/store"
)

// ErrNotLoaded is returned by queries issued before any table was loaded.
var ErrNotLoaded = errors.New("no tables loaded")

// Batch records one accepted load.
type Batch struct {
	ID         string           `json:"id"`
	Table      schema.TableType `json:"table"`
	Rows       int              `json:"rows"`
	Malformed  int              `json:"malformed"`
	SourceFile string           `json:"source_file,omitempty"`
	Year       int              `json:"year,omitempty"`
	Month      int              `json:"month,omitempty"`
	UploadedAt time.Time        `json:"uploaded_at"`
	Unchanged  bool             `json:"unchanged,omitempty"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger; the default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithClock overrides the time source used for upload timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// Engine owns the mapper, store and cache. Create one with New and share it.
type Engine struct {
	cfg    *config.Config
	opts   analytics.Options
	logger *slog.Logger
	now    func() time.Time

	mapper *schema.Mapper
	store  *store.Store
	cache  *cache.Cache

	loadMu  sync.Mutex
	digests map[schema.TableType]string
	batches []Batch
}

// New builds an engine. A nil cfg means config.Default().
func New(cfg *config.Config, opts ...Option) *Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	e := &Engine{
		cfg:     cfg,
		opts:    analytics.OptionsFromConfig(cfg),
		logger:  slog.Default(),
		now:     time.Now,
		mapper:  schema.NewMapper(),
		store:   store.New(),
		cache:   cache.New(cfg.Cache.Enabled),
		digests: make(map[schema.TableType]string),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Source is one provenance-tagged slice of a table's rows, typically one file.
type Source struct {
	Records    []schema.RawRecord
	Provenance store.Provenance
}

// Load replaces one table with records. Reloading content identical to what
// is already loaded keeps the current snapshot and cached results. Only an
// unknown table type is an error; bad values are counted, never fatal.
func (e *Engine) Load(table schema.TableType, records []schema.RawRecord, prov store.Provenance) error {
	return e.LoadSources(table, []Source{{Records: records, Provenance: prov}})
}

// LoadSources replaces one table with the rows of every source. Each row keeps
// the provenance of the source it came from and each source is recorded as its
// own batch.
func (e *Engine) LoadSources(table schema.TableType, sources []Source) error {
	s, err := schema.Lookup(table)
	if err != nil {
		e.logger.Error("load rejected", "table", string(table), "error", err)
		return err
	}

	e.loadMu.Lock()
	defer e.loadMu.Unlock()

	uploadedAt := e.now()
	digest := contentDigest(table, sources)
	if digest != "" && e.digests[table] == digest && e.store.Snapshot().Table(table) != nil {
		rows := 0
		for _, src := range sources {
			rows += len(src.Records)
			e.batches = append(e.batches, Batch{
				ID:         uuid.NewString(),
				Table:      table,
				Rows:       len(src.Records),
				SourceFile: src.Provenance.SourceFile,
				Year:       src.Provenance.Year,
				Month:      src.Provenance.Month,
				UploadedAt: uploadedAt,
				Unchanged:  true,
			})
		}
		e.logger.Info("table unchanged, keeping snapshot", "table", string(table), "rows", rows)
		return nil
	}

	var records []store.Record
	batches := make([]Batch, 0, len(sources))
	for _, src := range sources {
		prov := provenance(src.Provenance, uploadedAt)
		mapped, err := e.mapRecords(s, src.Records, prov)
		if err != nil {
			return err
		}
		records = append(records, mapped...)
		batches = append(batches, newBatch(table, mapped, prov))
	}
	tbl := store.BuildTable(s, records)

	snap, err := e.store.Replace(map[schema.TableType]*store.Table{table: tbl})
	if err != nil {
		return fmt.Errorf("replace %s: %w", table, err)
	}
	e.cache.InvalidateAll()

	e.digests[table] = digest
	e.batches = append(e.batches, batches...)
	for _, batch := range batches {
		e.logger.Info("table loaded",
			"table", string(table),
			"rows", batch.Rows,
			"malformed", batch.Malformed,
			"source_file", batch.SourceFile,
			"batch_id", batch.ID,
			"snapshot", snap.Version,
		)
	}
	if tbl.DuplicateKeys > 0 {
		e.logger.Warn("duplicate primary keys", "table", string(table), "count", tbl.DuplicateKeys)
	}
	return nil
}

// LoadFromMemory reloads several tables at once. Every table type is checked
// before any work starts; tables are mapped in parallel and swapped in together.
func (e *Engine) LoadFromMemory(tables map[schema.TableType][]schema.RawRecord) error {
	schemas := make(map[schema.TableType]*schema.Schema, len(tables))
	for t := range tables {
		s, err := schema.Lookup(t)
		if err != nil {
			e.logger.Error("bulk load rejected", "table", string(t), "error", err)
			return err
		}
		schemas[t] = s
	}
	if len(tables) == 0 {
		return nil
	}

	e.loadMu.Lock()
	defer e.loadMu.Unlock()

	uploadedAt := e.now()
	var mu sync.Mutex
	built := make(map[schema.TableType]*store.Table, len(tables))
	batches := make(map[schema.TableType]Batch, len(tables))

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for t, raws := range tables {
		t, raws := t, raws
		g.Go(func() error {
			prov := provenance(store.Provenance{SourceFile: memorySource}, uploadedAt)
			records, err := e.mapRecords(schemas[t], raws, prov)
			if err != nil {
				return err
			}
			tbl := store.BuildTable(schemas[t], records)
			mu.Lock()
			built[t] = tbl
			batches[t] = newBatch(t, records, prov)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	snap, err := e.store.Replace(built)
	if err != nil {
		return fmt.Errorf("replace tables: %w", err)
	}
	e.cache.InvalidateAll()

	for _, t := range schema.All() {
		if _, ok := built[t]; !ok {
			continue
		}
		e.digests[t] = contentDigest(t, []Source{{Records: tables[t], Provenance: store.Provenance{SourceFile: memorySource}}})
		e.batches = append(e.batches, batches[t])
	}
	e.logger.Info("tables loaded from memory", "tables", len(built), "snapshot", snap.Version)
	return nil
}

const memorySource = "memory"

func provenance(prov store.Provenance, uploadedAt time.Time) store.Provenance {
	if prov.UploadedAt.IsZero() {
		prov.UploadedAt = uploadedAt
	}
	if prov.BatchID == "" {
		prov.BatchID = uuid.NewString()
	}
	return prov
}

func (e *Engine) mapRecords(s *schema.Schema, raws []schema.RawRecord, prov store.Provenance) ([]store.Record, error) {
	records := make([]store.Record, 0, len(raws))
	for _, raw := range raws {
		mapped, err := e.mapper.MapFields(s.Table, raw)
		if err != nil {
			return nil, fmt.Errorf("map %s: %w", s.Table, err)
		}
		records = append(records, store.NewRecord(s, mapped, prov))
	}
	return records, nil
}

func newBatch(table schema.TableType, records []store.Record, prov store.Provenance) Batch {
	malformed := 0
	for _, rec := range records {
		malformed += len(rec.Malformed)
	}
	return Batch{
		ID:         prov.BatchID,
		Table:      table,
		Rows:       len(records),
		Malformed:  malformed,
		SourceFile: prov.SourceFile,
		Year:       prov.Year,
		Month:      prov.Month,
		UploadedAt: prov.UploadedAt,
	}
}

// contentDigest fingerprints the raw rows of a table together with the
// provenance each source would stamp on them (upload time and batch id
// excluded); "" when the rows cannot be encoded, which forces a reload.
func contentDigest(table schema.TableType, sources []Source) string {
	parts := make([]any, 0, len(sources))
	for _, src := range sources {
		parts = append(parts, map[string]any{
			"rows":       src.Records,
			"sourceFile": src.Provenance.SourceFile,
			"year":       src.Provenance.Year,
			"month":      src.Provenance.Month,
		})
	}
	digest, err := core.Fingerprint("table:"+string(table), map[string]any{"sources": parts})
	if err != nil {
		return ""
	}
	return digest
}

// Clear drops every table, header statistic, batch record and cached result.
func (e *Engine) Clear() {
	e.loadMu.Lock()
	defer e.loadMu.Unlock()

	snap := e.store.Clear()
	e.mapper.ResetStats("")
	e.cache.InvalidateAll()
	e.digests = make(map[schema.TableType]string)
	e.batches = nil
	e.logger.Info("store cleared", "snapshot", snap.Version)
}

// GetTable returns the records of table. The records are shared and must not
// be modified; the slice itself is the caller's.
func (e *Engine) GetTable(table schema.TableType) ([]store.Record, error) {
	if _, err := schema.Lookup(table); err != nil {
		return nil, err
	}
	records := e.store.Snapshot().Records(table)
	if records == nil {
		return []store.Record{}, nil
	}
	return slices.Clone(records), nil
}

// Snapshot exposes the current store snapshot for read-only collaborators.
func (e *Engine) Snapshot() *store.Snapshot {
	return e.store.Snapshot()
}

// InvalidateAllCaches drops every memoized result.
func (e *Engine) InvalidateAllCaches() {
	e.cache.InvalidateAll()
	e.logger.Debug("caches invalidated")
}

// ResolveProvider resolves a raw provider id against the loaded Provider table.
func (e *Engine) ResolveProvider(raw string) (core.Match, bool) {
	return e.store.Snapshot().Providers().Resolve(raw)
}
