package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())
	check.Equal(t, "CRC", cfg.Currency.Base)
	check.True(t, cfg.Desert.ZeroOffersIsDesert)
	check.Equal(t, 10, cfg.KPI.TopN)
	check.Equal(t, "Salud", cfg.Sectors[0].Name)
	check.True(t, cfg.Cache.Enabled)
}

func TestParse_OverridesKeepDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
desert:
  zero_offers_is_desert: false
kpi:
  top_n: 3
sectors:
  - name: Agua
    keywords: [acueducto, tuberia]
log:
  format: json
`))
	assert.NoError(t, err)

	check.False(t, cfg.Desert.ZeroOffersIsDesert)
	check.True(t, cfg.Desert.AllLinesDesert)
	check.Equal(t, 3, cfg.KPI.TopN)
	check.Equal(t, 1, len(cfg.Sectors))
	check.Equal(t, "Agua", cfg.Sectors[0].Name)
	check.Equal(t, "Otros", cfg.FallbackSector)
	check.Equal(t, "json", cfg.Log.Format)
	check.Equal(t, "info", cfg.Log.Level)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("currency:\n  base: EUR\n"))
	check.Error(t, err)

	_, err = Parse([]byte("sectors:\n  - name: A\n  - name: A\n"))
	check.Error(t, err)

	_, err = Parse([]byte("kpi: [not a map"))
	check.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "opentender.yaml")
	assert.NoError(t, os.WriteFile(path, []byte("kpi:\n  top_n: 0\n"), 0o600))

	cfg, err := Load(path)
	assert.NoError(t, err)
	check.Equal(t, 10, cfg.KPI.TopN)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	check.Error(t, err)
}

func TestLogConfig_NewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := LogConfig{Level: "warn", Format: "json"}.NewLogger(&buf)

	logger.Info("hidden")
	logger.Warn("shown", "table", "Tender")

	out := buf.String()
	check.False(t, strings.Contains(out, "hidden"))
	check.True(t, strings.Contains(out, `"table":"Tender"`))
}
