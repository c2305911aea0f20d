package scraper

import (
	"context"
	"fmt"
	"time"

	"nadlan-scraper/models"
	"nadlan-scraper/services"
	"nadlan-scraper/storage"
	"nadlan-scraper/utils"
)

// EntityScheduler crawls many entities on a bounded worker pool. Every
// entity gets its own Driver and PageCrawler; one entity's failure never
// reaches another.
type EntityScheduler struct {
	newDriver   DriverFactory
	store       storage.CheckpointStore
	retry       *utils.RetryConfig
	cleaner     *services.Cleaner
	exporters   []storage.RecordWriter
	opts        Options
	rateLimitMs int
	logger      *utils.Logger

	// OnResult, when set, is called from the worker goroutine as each
	// entity finishes. It must be safe for concurrent use.
	OnResult func(models.EntityResult)
}

// NewEntityScheduler creates a scheduler. rateLimitMs spaces out entity starts.
func NewEntityScheduler(
	newDriver DriverFactory,
	store storage.CheckpointStore,
	retry *utils.RetryConfig,
	cleaner *services.Cleaner,
	exporters []storage.RecordWriter,
	opts Options,
	rateLimitMs int,
	logger *utils.Logger,
) *EntityScheduler {
	return &EntityScheduler{
		newDriver:   newDriver,
		store:       store,
		retry:       retry,
		cleaner:     cleaner,
		exporters:   exporters,
		opts:        opts,
		rateLimitMs: rateLimitMs,
		logger:      logger,
	}
}

// Run crawls entities with at most maxWorkers in flight and returns each
// entity key's record count along with the full results in completion order.
// Entities repeating an already-queued key are skipped.
func (s *EntityScheduler) Run(ctx context.Context, entities []models.Entity, maxWorkers int) (map[string]int, []models.EntityResult) {
	s.logger.Info("[scheduler] Crawling %d entities with %d workers", len(entities), maxWorkers)

	pool := utils.NewWorkerPool(maxWorkers, s.rateLimitMs)
	queued := utils.NewKeySet()
	done := make(chan models.EntityResult, len(entities))

	for _, entity := range entities {
		if !queued.Add(entity.Key()) {
			s.logger.Warn("[scheduler] Skipping duplicate entity %s", entity.Label())
			continue
		}
		e := entity
		pool.Submit(func() {
			res := s.runEntity(ctx, e)
			if s.OnResult != nil {
				s.OnResult(res)
			}
			done <- res
		})
	}
	pool.Wait()
	close(done)

	counts := make(map[string]int, queued.Size())
	results := make([]models.EntityResult, 0, queued.Size())
	total := 0
	for res := range done {
		counts[res.Entity.Key()] = res.Records
		results = append(results, res)
		total += res.Records
	}

	s.logger.Info("[scheduler] Finished %d entities, %d records in total", len(results), total)
	return counts, results
}

// runEntity owns one entity's driver for the whole crawl. Panics stop here.
func (s *EntityScheduler) runEntity(ctx context.Context, entity models.Entity) (res models.EntityResult) {
	start := time.Now()
	logger := s.logger.With("entity", entity.Key())

	res = models.EntityResult{Entity: entity, State: StateFailed.String()}
	defer func() {
		if r := recover(); r != nil {
			res.Err = &EntityFailure{Entity: entity.Label(), Err: fmt.Errorf("panic: %v", r)}
			res.State = StateFailed.String()
			logger.Error("[scheduler] %v", res.Err)
		}
		res.Duration = time.Since(start)
	}()

	if err := ctx.Err(); err != nil {
		res.Err = &EntityFailure{Entity: entity.Label(), Err: err}
		return res
	}

	driver, err := s.newDriver(ctx, entity)
	if err != nil {
		res.Err = &EntityFailure{Entity: entity.Label(), Err: fmt.Errorf("start driver: %w", err)}
		logger.Error("[scheduler] %v", res.Err)
		return res
	}
	defer func() {
		if err := driver.Close(); err != nil {
			logger.Warn("[scheduler] Closing driver: %v", err)
		}
	}()

	crawler := NewPageCrawler(entity, driver, s.store, s.retry, s.cleaner, s.exporters, s.opts, s.logger)
	return crawler.Run(ctx)
}
