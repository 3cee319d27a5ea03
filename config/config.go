// Package config loads engine policy and ambient settings from YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cloudx-io/opentender/core"
)

type Config struct {
	Currency       CurrencyConfig `yaml:"currency"`
	Desert         DesertPolicy   `yaml:"desert"`
	KPI            KPIConfig      `yaml:"kpi"`
	Sectors        []core.Sector  `yaml:"sectors"`
	FallbackSector string         `yaml:"fallback_sector"`
	Cache          CacheConfig    `yaml:"cache"`
	Log            LogConfig      `yaml:"log"`
}

type CurrencyConfig struct {
	Base    string `yaml:"base"`
	Foreign string `yaml:"foreign"`
}

// DesertPolicy decides when a tender counts as deserted. A firm award flagged
// deserted always counts; the switches below add the inferred cases.
type DesertPolicy struct {
	// ZeroOffersIsDesert counts tenders with no offers and no received-line offer counts.
	ZeroOffersIsDesert bool `yaml:"zero_offers_is_desert"`
	// AllLinesDesert counts tenders whose received lines are all flagged deserted.
	AllLinesDesert bool `yaml:"all_lines_desert"`
}

type KPIConfig struct {
	TopN int `yaml:"top_n"`
}

type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Currency: CurrencyConfig{Base: core.CurrencyCRC, Foreign: core.CurrencyUSD},
		Desert: DesertPolicy{
			ZeroOffersIsDesert: true,
			AllLinesDesert:     true,
		},
		KPI:            KPIConfig{TopN: 10},
		Sectors:        DefaultSectors(),
		FallbackSector: "Otros",
		Cache:          CacheConfig{Enabled: true},
		Log:            LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads a YAML file over the defaults; keys absent from the file keep
// their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML bytes over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate fills derived defaults and rejects unusable values.
func (c *Config) Validate() error {
	if c.KPI.TopN <= 0 {
		c.KPI.TopN = 10
	}
	if c.FallbackSector == "" {
		c.FallbackSector = "Otros"
	}
	if c.Currency.Base == "" {
		c.Currency.Base = core.CurrencyCRC
	}
	if c.Currency.Foreign == "" {
		c.Currency.Foreign = core.CurrencyUSD
	}
	if c.Currency.Base != core.CurrencyCRC || c.Currency.Foreign != core.CurrencyUSD {
		return fmt.Errorf("unsupported currency pair %s/%s: only CRC base with USD conversion is supported",
			c.Currency.Base, c.Currency.Foreign)
	}
	seen := make(map[string]bool, len(c.Sectors))
	for _, s := range c.Sectors {
		if s.Name == "" {
			return fmt.Errorf("sector with empty name")
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate sector %q", s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}

// DefaultSectors is the built-in sector list; order is classification priority.
func DefaultSectors() []core.Sector {
	return []core.Sector{
		{Name: "Salud", Keywords: []string{"medicamento", "hospital", "medico", "clinic", "farmac", "vacuna", "quirurg", "odontolog", "reactivo"}},
		{Name: "Construcción e infraestructura", Keywords: []string{"construccion", "obra", "asfalto", "carretera", "puente", "edificio", "remodelacion", "alcantarillado", "acueducto"}},
		{Name: "Tecnología", Keywords: []string{"computo", "computadora", "software", "licencia", "servidor", "telecomunicacion", "informatic", "tecnologia", "red de datos"}},
		{Name: "Alimentación", Keywords: []string{"alimento", "alimentacion", "comida", "viveres", "abarrote", "comedor"}},
		{Name: "Educación", Keywords: []string{"educativ", "escolar", "libro", "didactic", "capacitacion"}},
		{Name: "Transporte y vehículos", Keywords: []string{"vehiculo", "combustible", "llanta", "repuesto", "transporte", "flotilla"}},
		{Name: "Seguridad", Keywords: []string{"seguridad", "vigilancia", "policial", "armamento", "cctv"}},
		{Name: "Suministros de oficina", Keywords: []string{"papel", "oficina", "utiles", "tinta", "toner"}},
		{Name: "Servicios generales", Keywords: []string{"limpieza", "mantenimiento", "consultoria", "servicios profesionales", "fumigacion"}},
	}
}
