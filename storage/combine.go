package storage

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// NeighborhoodColumn is appended to every combined row.
const NeighborhoodColumn = "neighborhood"

// CombineStats summarises a CombineCSV run.
type CombineStats struct {
	Files        int
	InputRecords int
	Columns      []string
}

// CombineCSV merges every *.csv file in inputDir into outputFile, adding a
// neighborhood column holding each source file's name without extension.
// Columns are the union of all headers in first-seen order; cells missing
// from a file are left empty.
func CombineCSV(inputDir, outputFile string) (*CombineStats, error) {
	matches, err := filepath.Glob(filepath.Join(inputDir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("combine: glob: %w", err)
	}
	sort.Strings(matches)

	outAbs, _ := filepath.Abs(outputFile)
	type table struct {
		name   string
		header []string
		rows   [][]string
	}
	var tables []table
	stats := &CombineStats{}
	colIndex := make(map[string]int)

	for _, path := range matches {
		if abs, _ := filepath.Abs(path); abs == outAbs {
			continue
		}
		header, rows, err := readCSV(path)
		if err != nil {
			return nil, err
		}
		for _, col := range header {
			if _, ok := colIndex[col]; !ok {
				colIndex[col] = len(stats.Columns)
				stats.Columns = append(stats.Columns, col)
			}
		}
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		tables = append(tables, table{name: name, header: header, rows: rows})
		stats.Files++
		stats.InputRecords += len(rows)
	}
	if stats.Files == 0 {
		return nil, fmt.Errorf("combine: no csv files in %q", inputDir)
	}

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return nil, fmt.Errorf("combine: create output dir: %w", err)
	}
	f, err := os.Create(outputFile)
	if err != nil {
		return nil, fmt.Errorf("combine: create %q: %w", outputFile, err)
	}
	defer f.Close()

	if _, err := f.WriteString(utf8BOM); err != nil {
		return nil, fmt.Errorf("combine: write bom: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(append(append([]string{}, stats.Columns...), NeighborhoodColumn)); err != nil {
		return nil, fmt.Errorf("combine: write header: %w", err)
	}

	for _, t := range tables {
		for _, row := range t.rows {
			out := make([]string, len(stats.Columns)+1)
			for i, col := range t.header {
				if i < len(row) {
					out[colIndex[col]] = row[i]
				}
			}
			out[len(stats.Columns)] = t.name
			if err := w.Write(out); err != nil {
				return nil, fmt.Errorf("combine: write row: %w", err)
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("combine: flush: %w", err)
	}
	return stats, f.Close()
}

func readCSV(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("combine: open %q: %w", path, err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	if r, _, err := br.ReadRune(); err == nil && r != '\ufeff' {
		_ = br.UnreadRune()
	}

	r := csv.NewReader(br)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err == io.EOF {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("combine: read header of %q: %w", path, err)
	}
	rows, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("combine: read %q: %w", path, err)
	}
	return header, rows, nil
}
