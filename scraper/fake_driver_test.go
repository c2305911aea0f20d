package scraper

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"nadlan-scraper/models"
	"nadlan-scraper/utils"
)

// fakePage is one rendered page: its rows (header first) and the detail
// panel of each row keyed by row index.
type fakePage struct {
	rows    []models.RawRow
	details map[int][]string
}

// fakeDriver replays canned pages.
type fakeDriver struct {
	mu    sync.Mutex
	pages []fakePage
	page  int

	openErr    error
	rowsErr    error
	expandErr  map[int]error
	expandPan  map[int]bool
	advanceErr error
	notReady   bool
	onRows     func(page int)
	panicOnNav bool
	// stuckCollapse[i] is how many Collapse calls on row i fail, leaving its panel open.
	stuckCollapse map[int]int
	panelOpen     bool

	opened    int
	expanded  int
	collapsed int
	closed    bool
}

func (d *fakeDriver) Open(ctx context.Context, entity models.Entity) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opened++
	d.page = 0
	return d.openErr
}

func (d *fakeDriver) WaitForPageReady(ctx context.Context, timeout time.Duration) bool {
	return !d.notReady
}

func (d *fakeDriver) CurrentRows(ctx context.Context) ([]models.RawRow, error) {
	d.mu.Lock()
	page := d.page
	d.mu.Unlock()
	if d.onRows != nil {
		d.onRows(page + 1)
	}
	if d.rowsErr != nil {
		return nil, d.rowsErr
	}
	return d.pages[page].rows, nil
}

func (d *fakeDriver) Expand(ctx context.Context, row models.RawRow) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.expanded++
	if d.expandPan[row.Index] {
		panic("detail panel vanished")
	}
	if err := d.expandErr[row.Index]; err != nil {
		return nil, err
	}
	if d.panelOpen {
		d.panelOpen = false
		return nil, fmt.Errorf("row %d: another panel open: %w", row.Index, utils.ErrStaleElement)
	}
	d.panelOpen = true
	return d.pages[d.page].details[row.Index], nil
}

func (d *fakeDriver) Collapse(ctx context.Context, row models.RawRow) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.collapsed++
	if d.stuckCollapse[row.Index] > 0 {
		d.stuckCollapse[row.Index]--
		return fmt.Errorf("collapse row %d: %w", row.Index, utils.ErrStaleElement)
	}
	d.panelOpen = false
	return nil
}

func (d *fakeDriver) HasNextPage(ctx context.Context) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.panicOnNav {
		panic("pagination widget missing")
	}
	return d.page < len(d.pages)-1, nil
}

func (d *fakeDriver) AdvancePage(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.advanceErr != nil {
		return d.advanceErr
	}
	d.page++
	return nil
}

func (d *fakeDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// row builds a main-table row in the listing's cell layout.
func row(index int, address, date, price string) models.RawRow {
	return models.RawRow{
		Index: index,
		Cells: []string{"", address, "80", date, price, "6543-21-1", "דירה", "3", "2"},
	}
}

func header() models.RawRow {
	return models.RawRow{Index: 0, Cells: []string{"", "כתובת", `מ"ר`, "תאריך עסקה", "מחיר"}}
}

// detail builds a detail panel with the fixed fields and extra (date, price) pairs.
func detail(pairs ...string) []string {
	cells := []string{"", "", "", "1995", "25,000", "8", "", ""}
	return append(cells, pairs...)
}

// pageOf creates a page of n distinct single-transaction rows.
func pageOf(prefix string, n int) fakePage {
	p := fakePage{rows: []models.RawRow{header()}}
	for i := 1; i <= n; i++ {
		p.rows = append(p.rows, row(i, prefix, "2024-01-01", strconv.Itoa(i*100)))
	}
	return p
}

// recordingWriter captures exported records per entity key.
type recordingWriter struct {
	mu  sync.Mutex
	got map[string][]models.TransactionRecord
	err error
}

func newRecordingWriter() *recordingWriter {
	return &recordingWriter{got: make(map[string][]models.TransactionRecord)}
}

func (w *recordingWriter) Write(ctx context.Context, entity models.Entity, records []models.TransactionRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.got[entity.Key()] = append([]models.TransactionRecord(nil), records...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func (w *recordingWriter) records(key string) []models.TransactionRecord {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.got[key]
}
