package schema

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/cloudx-io/opentender/core"
)

// RawRecord is one source row keyed by its original header.
type RawRecord map[string]any

// Mapped is a raw row after header mapping. Canonical holds values under canonical
// field names; Raw keeps every original key and value untouched.
type Mapped struct {
	Canonical map[string]string
	Raw       map[string]string
}

// HeaderMapping records how one raw header was named.
type HeaderMapping struct {
	Raw       string `json:"raw"`
	Canonical string `json:"canonical"`
}

// HeaderStats is the diagnostics view of header mapping for one table.
type HeaderStats struct {
	RawHeaders       []string        `json:"raw_headers"`
	ExplicitlyMapped []HeaderMapping `json:"explicitly_mapped"`
	AutoNormalized   []HeaderMapping `json:"auto_normalized"`
}

type headerState struct {
	explicit map[string]string
	auto     map[string]string
}

// Mapper maps raw headers onto canonical field names. Header statistics
// accumulate across loads until Reset. Safe for concurrent use.
type Mapper struct {
	dictionaries map[TableType]map[string]string

	mu    sync.Mutex
	stats map[TableType]*headerState
}

// NewMapper builds the per-table alias dictionaries from the declared schemas.
func NewMapper() *Mapper {
	m := &Mapper{
		dictionaries: make(map[TableType]map[string]string, len(declared)),
		stats:        make(map[TableType]*headerState),
	}
	for _, s := range declared {
		dict := make(map[string]string)
		for _, f := range s.Fields {
			if _, exists := dict[headerKey(f.Name)]; !exists {
				dict[headerKey(f.Name)] = f.Name
			}
		}
		for _, f := range s.Fields {
			for _, alias := range f.Aliases {
				key := headerKey(alias)
				if _, exists := dict[key]; !exists {
					dict[key] = f.Name
				}
			}
		}
		m.dictionaries[s.Table] = dict
	}
	return m
}

// MapFields maps one raw record of table t. Explicit dictionary entries win;
// other headers get a lowerCamel fold of their words. When two raw headers map
// to the same canonical name, the first non-empty value in sorted header order
// is kept.
func (m *Mapper) MapFields(t TableType, raw RawRecord) (Mapped, error) {
	dict, ok := m.dictionaries[t]
	if !ok {
		return Mapped{}, fmt.Errorf("%w: %q", ErrUnknownTable, string(t))
	}

	headers := make([]string, 0, len(raw))
	for h := range raw {
		headers = append(headers, h)
	}
	sort.Strings(headers)

	out := Mapped{
		Canonical: make(map[string]string, len(raw)),
		Raw:       make(map[string]string, len(raw)),
	}
	explicit := make(map[string]string)
	auto := make(map[string]string)

	for _, h := range headers {
		value := stringify(raw[h])
		out.Raw[h] = value

		canonical, isExplicit := dict[headerKey(h)]
		if isExplicit {
			explicit[h] = canonical
		} else {
			canonical = FoldHeader(h)
			if canonical == "" {
				continue
			}
			auto[h] = canonical
		}
		if existing, taken := out.Canonical[canonical]; taken && strings.TrimSpace(existing) != "" {
			continue
		}
		out.Canonical[canonical] = value
	}

	m.record(t, explicit, auto)
	return out, nil
}

func (m *Mapper) record(t TableType, explicit, auto map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.stats[t]
	if !ok {
		st = &headerState{explicit: make(map[string]string), auto: make(map[string]string)}
		m.stats[t] = st
	}
	for raw, canonical := range explicit {
		st.explicit[raw] = canonical
	}
	for raw, canonical := range auto {
		st.auto[raw] = canonical
	}
}

// HeaderStats returns the header mapping diagnostics for t, sorted by raw header.
func (m *Mapper) HeaderStats(t TableType) HeaderStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := HeaderStats{
		RawHeaders:       []string{},
		ExplicitlyMapped: []HeaderMapping{},
		AutoNormalized:   []HeaderMapping{},
	}
	st, ok := m.stats[t]
	if !ok {
		return stats
	}
	for raw, canonical := range st.explicit {
		stats.RawHeaders = append(stats.RawHeaders, raw)
		stats.ExplicitlyMapped = append(stats.ExplicitlyMapped, HeaderMapping{Raw: raw, Canonical: canonical})
	}
	for raw, canonical := range st.auto {
		stats.RawHeaders = append(stats.RawHeaders, raw)
		stats.AutoNormalized = append(stats.AutoNormalized, HeaderMapping{Raw: raw, Canonical: canonical})
	}
	sort.Strings(stats.RawHeaders)
	sort.Slice(stats.ExplicitlyMapped, func(i, j int) bool { return stats.ExplicitlyMapped[i].Raw < stats.ExplicitlyMapped[j].Raw })
	sort.Slice(stats.AutoNormalized, func(i, j int) bool { return stats.AutoNormalized[i].Raw < stats.AutoNormalized[j].Raw })
	return stats
}

// ResetStats forgets header statistics for t, or for every table when t is empty.
func (m *Mapper) ResetStats(t TableType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t == "" {
		m.stats = make(map[TableType]*headerState)
		return
	}
	delete(m.stats, t)
}

// FoldHeader turns "Fecha de Registro", "fecha_registro" or "FechaRegistro" into
// lowerCamel ("fechaDeRegistro", "fechaRegistro") after stripping accents.
func FoldHeader(h string) string {
	var words []string
	var current []rune
	flush := func() {
		if len(current) > 0 {
			words = append(words, string(current))
			current = current[:0]
		}
	}

	runes := []rune(core.StripMarks(strings.TrimSpace(h)))
	for i, r := range runes {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if unicode.IsUpper(r) && len(current) > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					flush()
				}
			}
			current = append(current, r)
		default:
			flush()
		}
	}
	flush()

	var b strings.Builder
	for i, w := range words {
		w = strings.ToLower(w)
		if i > 0 {
			w = strings.ToUpper(w[:1]) + w[1:]
		}
		b.WriteString(w)
	}
	return b.String()
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		if val.IsZero() {
			return ""
		}
		return val.Format(time.RFC3339Nano)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
