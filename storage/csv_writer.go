package storage

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"nadlan-scraper/models"
)

// utf8BOM lets spreadsheet tools detect the encoding of Hebrew text.
const utf8BOM = "\ufeff"

// CSVWriter writes one CSV file per entity into a directory.
// It is safe for concurrent use.
type CSVWriter struct {
	mu  sync.Mutex
	dir string
}

// NewCSVWriter creates the output directory if needed.
func NewCSVWriter(dir string) (*CSVWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}
	return &CSVWriter{dir: dir}, nil
}

// Path returns the file an entity's records are written to. Names are not
// unique across settlements, so an id is always part of the file name.
func (c *CSVWriter) Path(entity models.Entity) string {
	name := entity.Key()
	if entity.Name != "" && entity.ID != "" {
		name = entity.Name + "_" + entity.ID
	}
	return filepath.Join(c.dir, SanitizeKey(name)+".csv")
}

// Write replaces the entity's CSV file with records.
func (c *CSVWriter) Write(ctx context.Context, entity models.Entity, records []models.TransactionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	path := c.Path(entity)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("csv: create file %q: %w", path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(utf8BOM); err != nil {
		return fmt.Errorf("csv: write bom: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(models.RecordColumns); err != nil {
		return fmt.Errorf("csv: write header: %w", err)
	}
	for _, r := range records {
		if err := w.Write(r.Values()); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("csv: flush: %w", err)
	}
	return f.Close()
}

func (c *CSVWriter) Close() error { return nil }
