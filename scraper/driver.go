package scraper

import (
	"context"
	"time"

	"nadlan-scraper/models"
)

// Driver is one exclusive session against the rendered transaction listing.
// A Driver is owned by a single crawl and is never shared between workers.
//
// Element lookups that may clear up on their own should fail with
// utils.ErrElementNotFound or utils.ErrStaleElement so the crawler retries them.
type Driver interface {
	// Open navigates to the entity's transaction listing.
	Open(ctx context.Context, entity models.Entity) error
	// WaitForPageReady reports whether the listing table rendered within timeout.
	WaitForPageReady(ctx context.Context, timeout time.Duration) bool
	// CurrentRows returns every row of the current page, header included.
	CurrentRows(ctx context.Context) ([]models.RawRow, error)
	// Expand opens the row's detail panel and returns its cells.
	Expand(ctx context.Context, row models.RawRow) ([]string, error)
	// Collapse closes a panel opened by Expand.
	Collapse(ctx context.Context, row models.RawRow) error
	HasNextPage(ctx context.Context) (bool, error)
	AdvancePage(ctx context.Context) error
	Close() error
}

// DriverFactory opens a fresh Driver for one entity's crawl.
type DriverFactory func(ctx context.Context, entity models.Entity) (Driver, error)
