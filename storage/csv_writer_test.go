package storage

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nadlan-scraper/models"
)

func TestCSVWriterWritesEntityFile(t *testing.T) {
	dir := t.TempDir()
	w, err := NewCSVWriter(filepath.Join(dir, "gov"))
	require.NoError(t, err)

	entity := models.Entity{ID: "65210993", Name: "נווה פז"}
	require.NoError(t, w.Write(context.Background(), entity, sampleRecords()))

	path := w.Path(entity)
	assert.Equal(t, "נווה פז_65210993.csv", filepath.Base(path))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(b), utf8BOM), "file should start with a BOM")

	rows, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(string(b), utf8BOM))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, models.RecordColumns, rows[0])
	assert.Equal(t, "הרצל 1", rows[1][0])
	assert.Equal(t, "200", rows[2][3])
}

func TestCSVWriterFileNames(t *testing.T) {
	w, err := NewCSVWriter(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "4000.csv", filepath.Base(w.Path(models.Entity{ID: "4000"})))
	assert.Equal(t, "פלורנטין.csv", filepath.Base(w.Path(models.Entity{Name: "פלורנטין"})))
}

func TestCSVWriterSameNameDifferentIDs(t *testing.T) {
	w, err := NewCSVWriter(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	a := models.Entity{ID: "1001", Name: "מרכז העיר"}
	b := models.Entity{ID: "2002", Name: "מרכז העיר"}
	recs := sampleRecords()
	require.NoError(t, w.Write(ctx, a, recs))
	require.NoError(t, w.Write(ctx, b, recs[:1]))
	require.NotEqual(t, w.Path(a), w.Path(b))

	for _, tc := range []struct {
		entity models.Entity
		rows   int
	}{{a, 3}, {b, 2}} {
		data, err := os.ReadFile(w.Path(tc.entity))
		require.NoError(t, err)
		rows, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(string(data), utf8BOM))).ReadAll()
		require.NoError(t, err)
		assert.Len(t, rows, tc.rows, tc.entity.Label())
	}
}

func TestCombineCSV(t *testing.T) {
	in := t.TempDir()
	w, err := NewCSVWriter(in)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, w.Write(ctx, models.Entity{Name: "Carmel"}, sampleRecords()))
	require.NoError(t, w.Write(ctx, models.Entity{Name: "Bat Galim"}, sampleRecords()[:1]))
	require.NoError(t, os.WriteFile(filepath.Join(in, "notes.txt"), []byte("ignored"), 0644))

	out := filepath.Join(t.TempDir(), "combined.csv")
	stats, err := CombineCSV(in, out)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Files)
	assert.Equal(t, 3, stats.InputRecords)

	b, err := os.ReadFile(out)
	require.NoError(t, err)
	rows, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(string(b), utf8BOM))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)

	header := rows[0]
	assert.Equal(t, NeighborhoodColumn, header[len(header)-1])
	assert.Equal(t, "address", header[0], "BOM must not leak into the first column name")
	// files are read in name order
	assert.Equal(t, "Bat Galim", rows[1][len(header)-1])
	assert.Equal(t, "Carmel", rows[3][len(header)-1])
}

func TestCombineCSVUnionsHeaders(t *testing.T) {
	in := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(in, "a.csv"), []byte("x,y\n1,2\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(in, "b.csv"), []byte("y,z\n3,4\n"), 0644))

	out := filepath.Join(in, "combined.csv")
	stats, err := CombineCSV(in, out)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y", "z"}, stats.Columns)

	b, err := os.ReadFile(out)
	require.NoError(t, err)
	rows, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(string(b), utf8BOM))).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"x", "y", "z", NeighborhoodColumn},
		{"1", "2", "", "a"},
		{"", "3", "4", "b"},
	}, rows)

	// re-running with the output inside the input dir must not ingest itself
	stats, err = CombineCSV(in, out)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Files)
}

func TestCombineCSVEmptyDir(t *testing.T) {
	_, err := CombineCSV(t.TempDir(), filepath.Join(t.TempDir(), "out.csv"))
	assert.Error(t, err)
}

func TestPostgresRowsCarryHash(t *testing.T) {
	entity := models.Entity{ID: "4000", Name: "Haifa"}
	rows := toRows(entity, sampleRecords())
	require.Len(t, rows, 2)
	assert.Equal(t, "4000", rows[0].EntityKey)
	assert.Equal(t, sampleRecords()[0].Hash(), rows[0].RecordHash)
	assert.Len(t, rows[0].RecordHash, 64)
	assert.Equal(t, "1990", rows[1].BuildYear)
}
