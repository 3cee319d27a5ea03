package main

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/cloudx-io/opentender/engine"
	"github.com/cloudx-io/opentender/schema"
	"github.com/cloudx-io/opentender/store"
)

// sourceFile is one CSV export mapped to its table.
type sourceFile struct {
	path  string
	table schema.TableType
	year  int
	month int
}

// loadDir reads every *.csv file in dir, groups them by table and loads each
// table once; every row keeps the file name and period of its own file.
// Files whose name matches no table are skipped with a warning.
func loadDir(e *engine.Engine, dir string, logger *slog.Logger) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read data dir: %w", err)
	}

	byTable := make(map[schema.TableType][]sourceFile)
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".csv") {
			continue
		}
		table, err := schema.TableForFile(entry.Name())
		if err != nil {
			logger.Warn("skipping file", "file", entry.Name(), "error", err)
			continue
		}
		year, month := periodFromName(entry.Name())
		byTable[table] = append(byTable[table], sourceFile{
			path:  filepath.Join(dir, entry.Name()),
			table: table,
			year:  year,
			month: month,
		})
	}
	if len(byTable) == 0 {
		return fmt.Errorf("no CSV files for known tables in %s", dir)
	}

	for _, table := range schema.All() {
		files, ok := byTable[table]
		if !ok {
			continue
		}
		sort.Slice(files, func(i, j int) bool { return files[i].path < files[j].path })

		sources := make([]engine.Source, 0, len(files))
		for _, f := range files {
			rows, err := readCSV(f.path)
			if err != nil {
				return err
			}
			sources = append(sources, engine.Source{
				Records: rows,
				Provenance: store.Provenance{
					SourceFile: filepath.Base(f.path),
					Year:       f.year,
					Month:      f.month,
				},
			})
		}
		if err := e.LoadSources(table, sources); err != nil {
			return fmt.Errorf("load %s: %w", table, err)
		}
	}
	return nil
}

// readCSV parses a CSV file with a header row. The delimiter is sniffed from
// the header (';' or ','); short rows leave the missing columns out.
func readCSV(path string) ([]schema.RawRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	data = stripBOM(data)

	r := csv.NewReader(bufio.NewReader(bytes.NewReader(data)))
	r.Comma = sniffDelimiter(data)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s header: %w", path, err)
	}

	var rows []schema.RawRecord
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		row := make(schema.RawRecord, len(header))
		for i, h := range header {
			if h == "" || i >= len(rec) {
				continue
			}
			row[h] = rec[i]
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	if bytes.Count(line, []byte{';'}) > bytes.Count(line, []byte{','}) {
		return ';'
	}
	return ','
}

func stripBOM(b []byte) []byte {
	bom := []byte{0xEF, 0xBB, 0xBF}
	if len(b) >= 3 && bytes.Equal(b[:3], bom) {
		return b[3:]
	}
	return b
}

// periodFromName finds a "YYYY" token optionally followed by a "MM" token in a
// file name such as "Ofertas_2024_03.csv".
func periodFromName(name string) (year, month int) {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	parts := strings.FieldsFunc(base, func(r rune) bool { return r == '_' || r == '-' || r == ' ' || r == '.' })
	for i, p := range parts {
		y, err := strconv.Atoi(p)
		if err != nil || len(p) != 4 || y < 1990 || y > 2100 {
			continue
		}
		year = y
		if i+1 < len(parts) {
			if m, err := strconv.Atoi(parts[i+1]); err == nil && m >= 1 && m <= 12 {
				month = m
			}
		}
		return year, month
	}
	return 0, 0
}
