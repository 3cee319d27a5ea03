package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/cloudx-io/opentender/config"
	"github.com/cloudx-io/opentender/engine"
	"github.com/cloudx-io/opentender/schema"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	assert.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func dataDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "Carteles_2024_03.csv", "\xEF\xBB\xBFNúmero de Procedimiento;Código Institución;Nombre Cartel;Fecha Apertura\n"+
		"2024LA-000001-0001;100;Compra de medicamentos;01/03/2024\n"+
		"2024LA-000002-0001;100;Compra de papel;05/03/2024\n")
	writeFile(t, dir, "LineasAdjudicadas.csv", "nro_sicop,numero_linea,cedula_proveedor,monto_adjudicado\n"+
		"2024LA-000001-0001,1,0042,\"1,500.50\"\n"+
		"2024LA-404,1,0042,10\n")
	writeFile(t, dir, "notas.csv", "a,b\n1,2\n")
	writeFile(t, dir, "readme.txt", "ignored")
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestReadCSV(t *testing.T) {
	dir := dataDir(t)
	rows, err := readCSV(filepath.Join(dir, "Carteles_2024_03.csv"))
	assert.NoError(t, err)
	assert.Equal(t, 2, len(rows))
	check.Equal(t, "2024LA-000001-0001", rows[0]["Número de Procedimiento"])
	check.Equal(t, "01/03/2024", rows[0]["Fecha Apertura"])

	rows, err = readCSV(filepath.Join(dir, "LineasAdjudicadas.csv"))
	assert.NoError(t, err)
	check.Equal(t, "1,500.50", rows[0]["monto_adjudicado"])
}

func TestSniffDelimiter(t *testing.T) {
	check.Equal(t, ';', sniffDelimiter([]byte("a;b;c\n1,5;2;3")))
	check.Equal(t, ',', sniffDelimiter([]byte("a,b\n1;2")))
	check.Equal(t, ',', sniffDelimiter([]byte("single")))
}

func TestPeriodFromName(t *testing.T) {
	tests := []struct {
		name      string
		wantYear  int
		wantMonth int
	}{
		{"Ofertas_2024_03.csv", 2024, 3},
		{"Ofertas-2023.csv", 2023, 0},
		{"Ofertas_2024_13.csv", 2024, 0},
		{"Ofertas.csv", 0, 0},
		{"Ofertas_12345.csv", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			y, m := periodFromName(tt.name)
			check.Equal(t, tt.wantYear, y)
			check.Equal(t, tt.wantMonth, m)
		})
	}
}

func TestLoadDir_PerFileProvenance(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Carteles_2024_01.csv", "nro_sicop,nombre_cartel\nT-1,Compra de papel\n")
	writeFile(t, dir, "Carteles_2024_02.csv", "nro_sicop,nombre_cartel\nT-2,Compra de tinta\nT-3,Compra de sillas\n")

	e := engine.New(config.Default())
	assert.NoError(t, loadDir(e, dir, slog.New(slog.NewTextHandler(io.Discard, nil))))

	records, err := e.GetTable(schema.Tender)
	assert.NoError(t, err)
	assert.Equal(t, 3, len(records))
	check.Equal(t, "Carteles_2024_01.csv", records[0].Provenance.SourceFile)
	check.Equal(t, 2024, records[0].Provenance.Year)
	check.Equal(t, 1, records[0].Provenance.Month)
	for _, rec := range records[1:] {
		check.Equal(t, "Carteles_2024_02.csv", rec.Provenance.SourceFile)
		check.Equal(t, 2, rec.Provenance.Month)
	}

	batches := e.GetDiagnostics().Batches
	assert.Equal(t, 2, len(batches))
	check.Equal(t, 1, batches[0].Rows)
	check.Equal(t, 2, batches[1].Rows)
}

func TestDiagnosticsCommand(t *testing.T) {
	out, err := run(t, "diagnostics", "--data", dataDir(t))
	assert.NoError(t, err)

	var diag struct {
		RowCounts map[string]int `json:"row_counts"`
		Batches   []struct {
			Table      string `json:"table"`
			SourceFile string `json:"source_file"`
			Year       int    `json:"year"`
			Month      int    `json:"month"`
		} `json:"batches"`
	}
	assert.NoError(t, json.Unmarshal([]byte(out), &diag))
	check.Equal(t, 2, diag.RowCounts["Tender"])
	check.Equal(t, 2, diag.RowCounts["AwardedLine"])
	assert.Equal(t, 2, len(diag.Batches))
	check.Equal(t, "Carteles_2024_03.csv", diag.Batches[0].SourceFile)
	check.Equal(t, 2024, diag.Batches[0].Year)
	check.Equal(t, 3, diag.Batches[0].Month)
}

func TestIntegrityCommand_SignAndVerify(t *testing.T) {
	dir := dataDir(t)
	keyDir := t.TempDir()
	priv := filepath.Join(keyDir, "k.key")
	pub := filepath.Join(keyDir, "k.pub")

	_, err := run(t, "keygen", "--private", priv, "--public", pub)
	assert.NoError(t, err)

	plain, err := run(t, "integrity", "--data", dir)
	assert.NoError(t, err)
	check.True(t, strings.Contains(plain, `"total_orphans": 1`))

	envelope, err := run(t, "integrity", "--data", dir, "--sign-key", priv)
	assert.NoError(t, err)
	envPath := filepath.Join(keyDir, "integrity.cose")
	writeFile(t, keyDir, "integrity.cose", envelope)

	verified, err := run(t, "verify", "--pub-key", pub, envPath)
	assert.NoError(t, err)
	check.True(t, strings.Contains(verified, `"kind": "integrity_report"`))
	check.True(t, strings.Contains(verified, `"total_orphans": 1`))
}

func TestDossierAndSuggestCommands(t *testing.T) {
	dir := dataDir(t)

	out, err := run(t, "dossier", "--data", dir, "2024LA-000001-0001")
	assert.NoError(t, err)
	check.True(t, strings.Contains(out, `"awarded_amount": 1500.5`))

	_, err = run(t, "dossier", "--data", dir, "missing")
	check.Error(t, err)

	out, err = run(t, "suggest", "--data", dir, "--limit", "1", "papel")
	assert.NoError(t, err)
	check.True(t, strings.Contains(out, "2024LA-000002-0001"))
}

func TestKPIsCommand_InvalidDate(t *testing.T) {
	_, err := run(t, "kpis", "--data", dataDir(t), "--from", "not-a-date")
	check.Error(t, err)
}

func TestMissingDataDir(t *testing.T) {
	_, err := run(t, "diagnostics", "--data", filepath.Join(t.TempDir(), "nope"))
	check.Error(t, err)
}
