package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nadlan-scraper/models"
	"nadlan-scraper/services"
	"nadlan-scraper/storage"
	"nadlan-scraper/utils"
)

// State is a PageCrawler lifecycle stage.
type State int

const (
	StateInit State = iota
	StateSearching
	StateExtractingPage
	StatePaginating
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateSearching:
		return "Searching"
	case StateExtractingPage:
		return "ExtractingPage"
	case StatePaginating:
		return "Paginating"
	case StateDone:
		return "Done"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// DefaultCheckpointInterval is the number of new records between saves.
const DefaultCheckpointInterval = 100

// Options tunes a crawl.
type Options struct {
	// CheckpointInterval is the number of new records between snapshot saves.
	CheckpointInterval int
	// MaxPages caps the pages visited per entity; 0 means no cap.
	MaxPages         int
	PageReadyTimeout time.Duration
	RunID            string
}

// CrawlProgress is the in-memory bookkeeping of one crawl session.
type CrawlProgress struct {
	PageNum                    int
	HasNextPage                bool
	RecordsSinceLastCheckpoint int
	DuplicatesThisSession      int
	NewRecordsThisSession      int
}

// PageCrawler walks one entity's paginated listing, from its last checkpoint
// to the last page, collecting every transaction not already seen.
type PageCrawler struct {
	entity    models.Entity
	driver    Driver
	store     storage.CheckpointStore
	retry     *utils.RetryConfig
	cleaner   *services.Cleaner
	exporters []storage.RecordWriter
	opts      Options
	logger    *utils.Logger

	state     State
	progress  CrawlProgress
	index     *services.DedupIndex
	records   []models.TransactionRecord
	sequence  int
	persisted int
	err       error
}

// NewPageCrawler wires a crawler for entity. exporters receive the entity's
// deduplicated records once the crawl reaches Done.
func NewPageCrawler(
	entity models.Entity,
	driver Driver,
	store storage.CheckpointStore,
	retry *utils.RetryConfig,
	cleaner *services.Cleaner,
	exporters []storage.RecordWriter,
	opts Options,
	logger *utils.Logger,
) *PageCrawler {
	if opts.CheckpointInterval <= 0 {
		opts.CheckpointInterval = DefaultCheckpointInterval
	}
	if opts.PageReadyTimeout <= 0 {
		opts.PageReadyTimeout = 10 * time.Second
	}
	return &PageCrawler{
		entity:    entity,
		driver:    driver,
		store:     store,
		retry:     retry,
		cleaner:   cleaner,
		exporters: exporters,
		opts:      opts,
		logger:    logger.With("entity", entity.Key()),
		state:     StateInit,
	}
}

// State returns the crawler's current stage.
func (c *PageCrawler) State() State { return c.state }

// Progress returns a copy of the session counters.
func (c *PageCrawler) Progress() CrawlProgress { return c.progress }

// Run drives the state machine to a terminal state and reports the outcome.
// It never returns an error: failures end up in the result, and whatever was
// collected is checkpointed first.
func (c *PageCrawler) Run(ctx context.Context) (res models.EntityResult) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			c.state = c.fail(&EntityFailure{Entity: c.entity.Label(), Err: fmt.Errorf("panic in %s: %v", c.state, r)})
			res = c.finish(ctx, start)
		}
	}()

	for {
		switch c.state {
		case StateInit:
			c.state = c.init(ctx)
		case StateSearching:
			c.state = c.search(ctx)
		case StateExtractingPage:
			c.state = c.extractPage(ctx)
		case StatePaginating:
			c.state = c.paginate(ctx)
		case StateDone, StateFailed:
			return c.finish(ctx, start)
		}
	}
}

func (c *PageCrawler) init(ctx context.Context) State {
	snap, err := c.store.LoadLatest(ctx, c.entity.Key())
	if err != nil {
		return c.fail(fmt.Errorf("load checkpoint: %w", err))
	}
	// Older runs keyed id-carrying entities by name.
	if snap == nil && c.entity.ID != "" && c.entity.Name != "" && c.entity.Name != c.entity.ID {
		snap, err = c.store.LoadLatest(ctx, c.entity.Name)
		if err != nil {
			return c.fail(fmt.Errorf("load checkpoint: %w", err))
		}
		if snap != nil {
			c.logger.Info("[crawler] Found checkpoint under name %q, continuing under id %s", c.entity.Name, c.entity.ID)
		}
	}

	c.index = services.NewDedupIndex(snap)
	if snap != nil {
		c.records = snap.Records
		c.sequence = snap.Sequence
		c.persisted = len(snap.Records)
		c.logger.Info("[crawler] Resuming from checkpoint %d: %d records, %d seen hashes",
			snap.Sequence, len(snap.Records), c.index.Len())
	} else {
		c.logger.Info("[crawler] No checkpoint found, starting fresh")
	}
	return StateSearching
}

func (c *PageCrawler) search(ctx context.Context) State {
	err := c.retry.Do(ctx, "open "+c.entity.Label(), func() error {
		return c.driver.Open(ctx, c.entity)
	})
	if err != nil {
		if ctx.Err() != nil {
			return c.fail(ctx.Err())
		}
		return c.fail(&SearchFailure{Entity: c.entity.Label(), Err: err})
	}
	if !c.driver.WaitForPageReady(ctx, c.opts.PageReadyTimeout) {
		if ctx.Err() != nil {
			return c.fail(ctx.Err())
		}
		return c.fail(&SearchFailure{Entity: c.entity.Label(), Err: errPageNotReady})
	}

	c.progress.PageNum = 1
	return StateExtractingPage
}

func (c *PageCrawler) extractPage(ctx context.Context) State {
	page := c.progress.PageNum
	rows, err := utils.Retry(ctx, c.retry, fmt.Sprintf("read rows of page %d", page), func() ([]models.RawRow, error) {
		return c.driver.CurrentRows(ctx)
	})
	if err != nil {
		if ctx.Err() != nil {
			return c.fail(ctx.Err())
		}
		return c.fail(&NavigationFailure{Page: page, Err: err})
	}

	before := c.progress.NewRecordsThisSession
	for i, row := range rows {
		if i == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return c.fail(err)
		}
		if err := c.processRow(ctx, row); err != nil {
			c.logger.Warn("[crawler] Skipping row: %v", &RowExtractionError{Page: page, Row: row.Index, Err: err})
			continue
		}
		if c.progress.RecordsSinceLastCheckpoint >= c.opts.CheckpointInterval {
			c.checkpoint(ctx)
		}
	}

	c.logger.Info("[crawler] Page %d done: %d rows, %d new records, %d total",
		page, max(len(rows)-1, 0), c.progress.NewRecordsThisSession-before, len(c.records))
	return StatePaginating
}

// processRow expands one row and folds its transactions into the
// accumulator. A failed expansion still yields the row's base record.
func (c *PageCrawler) processRow(ctx context.Context, row models.RawRow) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	base := services.BaseFields(row)
	detail, err := utils.Retry(ctx, c.retry, fmt.Sprintf("expand row %d", row.Index), func() ([]string, error) {
		return c.driver.Expand(ctx, row)
	})
	if err != nil {
		c.logger.Debug("[crawler] Expand failed for row %d, keeping base record: %v", row.Index, err)
		detail = nil
	} else if err := c.retry.Do(ctx, fmt.Sprintf("collapse row %d", row.Index), func() error {
		return c.driver.Collapse(ctx, row)
	}); err != nil {
		c.logger.Warn("[crawler] Collapse failed for row %d: %v", row.Index, err)
	}

	for _, rec := range services.Extract(base, detail) {
		h := rec.Hash()
		if c.index.Seen(h) {
			c.progress.DuplicatesThisSession++
			continue
		}
		c.index.Add(h)
		c.records = append(c.records, rec)
		c.progress.NewRecordsThisSession++
		c.progress.RecordsSinceLastCheckpoint++
	}
	return nil
}

func (c *PageCrawler) paginate(ctx context.Context) State {
	page := c.progress.PageNum
	if c.opts.MaxPages > 0 && page >= c.opts.MaxPages {
		c.logger.Info("[crawler] Page limit %d reached", c.opts.MaxPages)
		return StateDone
	}

	hasNext, err := utils.Retry(ctx, c.retry, "find next page", func() (bool, error) {
		return c.driver.HasNextPage(ctx)
	})
	if err != nil {
		if ctx.Err() != nil {
			return c.fail(ctx.Err())
		}
		c.logger.Warn("[crawler] Could not locate next-page control, treating page %d as last: %v", page, err)
		hasNext = false
	}
	c.progress.HasNextPage = hasNext
	if !hasNext {
		c.logger.Info("[crawler] No more pages after page %d", page)
		return StateDone
	}

	next := page + 1
	err = c.retry.Do(ctx, fmt.Sprintf("advance to page %d", next), func() error {
		return c.driver.AdvancePage(ctx)
	})
	if err == nil && !c.driver.WaitForPageReady(ctx, c.opts.PageReadyTimeout) {
		err = errPageNotReady
	}
	if err != nil {
		if ctx.Err() != nil {
			return c.fail(ctx.Err())
		}
		return c.fail(&NavigationFailure{Page: next, Err: err})
	}

	c.progress.PageNum = next
	return StateExtractingPage
}

// checkpoint saves everything collected so far under the next sequence
// number. A failed save is logged; the records stay pending for the next one.
func (c *PageCrawler) checkpoint(ctx context.Context) error {
	snap := models.Snapshot{
		Records:    c.records,
		SeenHashes: c.index.Hashes(),
		Sequence:   c.sequence + 1,
		SavedAt:    time.Now(),
		RunID:      c.opts.RunID,
	}
	c.progress.RecordsSinceLastCheckpoint = 0
	if err := c.store.Save(ctx, c.entity.Key(), snap); err != nil {
		c.logger.Error("[crawler] Checkpoint %d failed: %v", snap.Sequence, err)
		return err
	}
	c.sequence = snap.Sequence
	c.persisted = len(c.records)
	return nil
}

func (c *PageCrawler) fail(err error) State {
	c.err = err
	return StateFailed
}

// finish performs the final save and, for a completed crawl, the export.
func (c *PageCrawler) finish(ctx context.Context, start time.Time) models.EntityResult {
	// Cancellation must not prevent the last save.
	saveCtx := context.WithoutCancel(ctx)
	if c.index != nil && len(c.records) > c.persisted {
		if err := c.checkpoint(saveCtx); err != nil {
			c.err = errors.Join(c.err, fmt.Errorf("final checkpoint: %w", err))
		}
	}

	res := models.EntityResult{
		Entity:     c.entity,
		Records:    c.persisted,
		NewRecords: c.progress.NewRecordsThisSession,
		Duplicates: c.progress.DuplicatesThisSession,
		Pages:      c.progress.PageNum,
		State:      c.state.String(),
		Err:        c.err,
		Duration:   time.Since(start),
	}

	if c.state == StateDone {
		clean := c.cleaner.Clean(c.records)
		res.Records = len(clean)
		res.RemovedOnExport = len(c.records) - len(clean)
		for _, w := range c.exporters {
			if err := w.Write(saveCtx, c.entity, clean); err != nil {
				c.logger.Error("[crawler] Export failed: %v", err)
				res.Err = errors.Join(res.Err, fmt.Errorf("export: %w", err))
			}
		}
		c.logger.Info("[crawler] Done: %d unique records (%d new, %d duplicates skipped, %d removed on export)",
			res.Records, res.NewRecords, res.Duplicates, res.RemovedOnExport)
	} else {
		c.logger.Warn("[crawler] Failed in page %d: %v (%d records persisted)", c.progress.PageNum, c.err, res.Records)
	}
	return res
}
