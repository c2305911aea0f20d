package nadlan

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"nadlan-scraper/models"
	"nadlan-scraper/utils"
)

const (
	defaultBaseURL = "https://www.nadlan.gov.il"
	userAgent      = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	navigationTimeout = 60 * time.Second
	actionTimeout     = 20 * time.Second
)

// Options configures the browser and the site being driven.
type Options struct {
	BaseURL string
	// View is the listing view opened for entities with an id:
	// "neighborhood" or "settlement".
	View      string
	Headless  bool
	ChromeBin string
	// SearchSelector locates the search box used for name-only entities.
	SearchSelector string
	// ExpandDelay is how long a detail panel is given to render.
	ExpandDelay time.Duration
	// PageDelay is the pause after clicking to the next page.
	PageDelay time.Duration
}

func (o *Options) withDefaults() {
	if o.BaseURL == "" {
		o.BaseURL = defaultBaseURL
	}
	o.BaseURL = strings.TrimRight(o.BaseURL, "/")
	if o.View == "" {
		o.View = "neighborhood"
	}
	if o.SearchSelector == "" {
		o.SearchSelector = `input[type="search"]`
	}
	if o.ExpandDelay <= 0 {
		o.ExpandDelay = 300 * time.Millisecond
	}
	if o.PageDelay <= 0 {
		o.PageDelay = 3 * time.Second
	}
}

// Driver drives one headless Chrome tab over the transactions listing.
// It is not safe for concurrent use.
type Driver struct {
	opts   Options
	logger *utils.Logger

	tab         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
}

// NewDriver launches a browser dedicated to one crawl. The browser dies
// with ctx or on Close.
func NewDriver(ctx context.Context, opts Options, logger *utils.Logger) (*Driver, error) {
	opts.withDefaults()

	chromeBin := opts.ChromeBin
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}
	logger.Debug("[nadlan] Using browser binary: %s", chromeBin)

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("lang", "he-IL"),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(userAgent),
	)
	if chromeBin != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	// Suppress chromedp log noise
	tab, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	// An empty Run starts the browser so launch errors surface here.
	if err := chromedp.Run(tab); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("nadlan: start browser: %w", err)
	}

	return &Driver{
		opts:        opts,
		logger:      logger,
		tab:         tab,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
	}, nil
}

// run executes actions on the tab, bounded by timeout and by ctx.
func (d *Driver) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	runCtx, cancel := context.WithTimeout(d.tab, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

// DealsURL is the direct address of an entity's transactions page.
func (d *Driver) DealsURL(entity models.Entity) string {
	q := url.Values{}
	q.Set("view", d.opts.View)
	q.Set("id", entity.ID)
	q.Set("page", "deals")
	return d.opts.BaseURL + "/?" + q.Encode()
}

// Open goes straight to the deals page when the entity has an id and
// falls back to the site search by name otherwise.
func (d *Driver) Open(ctx context.Context, entity models.Entity) error {
	if entity.ID != "" {
		u := d.DealsURL(entity)
		d.logger.Info("[nadlan] Accessing URL: %s", u)
		if err := d.run(ctx, navigationTimeout, chromedp.Navigate(u)); err != nil {
			return fmt.Errorf("nadlan: navigate: %w", err)
		}
		return nil
	}

	d.logger.Info("[nadlan] Searching for %q", entity.Name)
	err := d.run(ctx, navigationTimeout,
		chromedp.Navigate(d.opts.BaseURL),
		chromedp.WaitVisible(d.opts.SearchSelector, chromedp.ByQuery),
		chromedp.SendKeys(d.opts.SearchSelector, entity.Name, chromedp.ByQuery),
		chromedp.Sleep(time.Second),
		chromedp.SendKeys(d.opts.SearchSelector, kb.Enter, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("nadlan: search %q: %w", entity.Name, err)
	}
	return nil
}

func (d *Driver) WaitForPageReady(ctx context.Context, timeout time.Duration) bool {
	err := d.run(ctx, timeout,
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.WaitVisible(".mainTable", chromedp.ByQuery),
	)
	if err != nil {
		d.logger.Debug("[nadlan] Page not ready: %v", err)
		return false
	}
	return true
}

func (d *Driver) CurrentRows(ctx context.Context) ([]models.RawRow, error) {
	var html string
	if err := d.run(ctx, actionTimeout, chromedp.Evaluate(jsTableHTML, &html)); err != nil {
		return nil, fmt.Errorf("nadlan: read table: %w", err)
	}
	if html == "" {
		return nil, fmt.Errorf("nadlan: main table: %w", utils.ErrElementNotFound)
	}
	return parseRows(html)
}

// Expand opens the row's detail panel and returns its cells. A row
// without an expand arrow has no details and yields nil.
func (d *Driver) Expand(ctx context.Context, row models.RawRow) ([]string, error) {
	var status string
	if err := d.run(ctx, actionTimeout, chromedp.Evaluate(fmt.Sprintf(jsExpand, row.Index), &status)); err != nil {
		return nil, fmt.Errorf("nadlan: expand row %d: %w", row.Index, err)
	}
	opened, err := expandResult(row.Index, status)
	if err != nil || !opened {
		return nil, err
	}

	var html string
	err = d.run(ctx, actionTimeout,
		chromedp.Sleep(d.opts.ExpandDelay),
		chromedp.Evaluate(jsDetailHTML, &html),
	)
	if err != nil {
		return nil, fmt.Errorf("nadlan: read details of row %d: %w", row.Index, err)
	}
	if html == "" {
		return nil, fmt.Errorf("nadlan: details of row %d: %w", row.Index, utils.ErrElementNotFound)
	}
	return parseDetail(html)
}

func (d *Driver) Collapse(ctx context.Context, row models.RawRow) error {
	var status string
	if err := d.run(ctx, actionTimeout, chromedp.Evaluate(fmt.Sprintf(jsCollapse, row.Index), &status)); err != nil {
		return fmt.Errorf("nadlan: collapse row %d: %w", row.Index, err)
	}
	if status == "norow" {
		return fmt.Errorf("nadlan: collapse row %d: %w", row.Index, utils.ErrStaleElement)
	}
	return nil
}

func (d *Driver) HasNextPage(ctx context.Context) (bool, error) {
	var ok bool
	if err := d.run(ctx, actionTimeout, chromedp.Evaluate(jsHasNext, &ok)); err != nil {
		return false, fmt.Errorf("nadlan: find next button: %w", err)
	}
	return ok, nil
}

func (d *Driver) AdvancePage(ctx context.Context) error {
	var clicked bool
	err := d.run(ctx, navigationTimeout,
		chromedp.Evaluate(jsClickNext, &clicked),
		chromedp.Sleep(d.opts.PageDelay),
	)
	if err != nil {
		return fmt.Errorf("nadlan: click next: %w", err)
	}
	if !clicked {
		return fmt.Errorf("nadlan: next button: %w", utils.ErrElementNotFound)
	}
	return nil
}

func (d *Driver) Close() error {
	d.cancelTab()
	d.cancelAlloc()
	return nil
}

// findChromeBinary locates Chrome/Chromium binary.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
