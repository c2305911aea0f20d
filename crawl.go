package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/briandowns/spinner"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"nadlan-scraper/config"
	"nadlan-scraper/models"
	"nadlan-scraper/scraper"
	"nadlan-scraper/scraper/nadlan"
	"nadlan-scraper/services"
	"nadlan-scraper/storage"
	"nadlan-scraper/utils"
)

type crawlFlags struct {
	workers            int
	maxPages           int
	checkpointInterval int
	entities           []string
	noProgress         bool
}

func init() {
	var f crawlFlags
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl every configured entity, resuming from its latest checkpoint.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			if err := f.apply(cmd, cfg); err != nil {
				return err
			}
			return runCrawl(cmd.Context(), cfg, logger, !f.noProgress)
		},
	}
	cmd.Flags().IntVarP(&f.workers, "workers", "w", 0, "number of entities crawled in parallel (overrides MAX_WORKERS)")
	cmd.Flags().IntVar(&f.maxPages, "max-pages", 0, "page limit per entity, 0 for none (overrides MAX_PAGES)")
	cmd.Flags().IntVar(&f.checkpointInterval, "checkpoint-interval", 0, "new records between checkpoints (overrides CHECKPOINT_INTERVAL)")
	cmd.Flags().StringArrayVarP(&f.entities, "entity", "e", nil, `entity to crawl as "id:name" or "name"; repeatable, replaces ENTITIES`)
	cmd.Flags().BoolVar(&f.noProgress, "no-progress", false, "disable the progress spinner")
	rootCmd.AddCommand(cmd)
}

// apply overlays explicitly set flags on cfg.
func (f *crawlFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	if cmd.Flags().Changed("workers") {
		cfg.MaxWorkers = f.workers
	}
	if cmd.Flags().Changed("max-pages") {
		cfg.MaxPages = f.maxPages
	}
	if cmd.Flags().Changed("checkpoint-interval") {
		cfg.CheckpointInterval = f.checkpointInterval
	}
	if len(f.entities) > 0 {
		cfg.Entities = nil
		for _, s := range f.entities {
			e, err := config.ParseEntity(s)
			if err != nil {
				return err
			}
			cfg.Entities = append(cfg.Entities, e)
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if len(cfg.Entities) == 0 {
		return errors.New("no entities to crawl: set ENTITIES, ENTITIES_FILE or --entity")
	}
	return nil
}

func runCrawl(ctx context.Context, cfg *config.Config, logger *utils.Logger, progress bool) error {
	runID := uuid.NewString()
	logger = logger.With("run", runID[:8])

	logger.Info("=== Nadlan crawl starting ===")
	logger.Info("Config: entities: %d | workers: %d | max pages: %d | checkpoint every %d records",
		len(cfg.Entities), cfg.MaxWorkers, cfg.MaxPages, cfg.CheckpointInterval)

	store, err := openCheckpointStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("open checkpoint store: %w", err)
	}
	defer store.Close()

	csvWriter, err := storage.NewCSVWriter(cfg.DataDir)
	if err != nil {
		return err
	}
	defer csvWriter.Close()
	exporters := []storage.RecordWriter{csvWriter}

	if cfg.PostgresEnabled {
		pgWriter, err := storage.NewPostgresWriter(cfg.DSN())
		if err != nil {
			logger.Error("Failed to connect to PostgreSQL: %v", err)
			logger.Error("Make sure Docker is running: docker compose up -d")
			return err
		}
		defer pgWriter.Close()
		exporters = append(exporters, pgWriter)
	}

	driverOpts := nadlan.Options{
		BaseURL:   cfg.BaseURL,
		View:      cfg.EntityView,
		Headless:  cfg.Headless,
		ChromeBin: cfg.ChromeBin,
	}
	newDriver := func(ctx context.Context, entity models.Entity) (scraper.Driver, error) {
		d, err := nadlan.NewDriver(ctx, driverOpts, logger.With("entity", entity.Key()))
		if err != nil {
			return nil, err
		}
		return d, nil
	}

	retry := &utils.RetryConfig{
		MaxAttempts: cfg.RetryAttempts,
		Backoff:     cfg.RetryBackoff,
		Logger:      logger,
	}
	opts := scraper.Options{
		CheckpointInterval: cfg.CheckpointInterval,
		MaxPages:           cfg.MaxPages,
		PageReadyTimeout:   cfg.PageReadyTimeout,
		RunID:              runID,
	}
	sched := scraper.NewEntityScheduler(newDriver, store, retry, services.NewCleaner(logger),
		exporters, opts, cfg.RateLimitMs, logger)

	total := len(cfg.Entities)
	var finished atomic.Int32
	var spin *spinner.Spinner
	if progress {
		spin = spinner.New(spinner.CharSets[9], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
		spin.Suffix = fmt.Sprintf(" crawling 0/%d entities", total)
		spin.Start()
	}
	sched.OnResult = func(r models.EntityResult) {
		n := finished.Add(1)
		if spin != nil {
			spin.Lock()
			spin.Suffix = fmt.Sprintf(" crawling %d/%d entities (last: %s, %d records)", n, total, r.Entity.Label(), r.Records)
			spin.Unlock()
		}
	}

	start := time.Now()
	_, results := sched.Run(ctx, cfg.Entities, cfg.MaxWorkers)
	if spin != nil {
		spin.Stop()
	}

	reports := services.NewReportService(logger)
	report := reports.Generate(runID, results, time.Since(start))
	reports.Print(os.Stdout, report)

	fmt.Printf("  Done. CSV → %s | checkpoints → %s\n\n", cfg.DataDir, checkpointLocation(cfg))

	if ctx.Err() != nil {
		return fmt.Errorf("crawl interrupted: %w", ctx.Err())
	}
	if report.Failed == len(report.Results) && report.Failed > 0 {
		return fmt.Errorf("all %d entities failed", report.Failed)
	}
	return nil
}

func checkpointLocation(cfg *config.Config) string {
	if cfg.CheckpointBackend == "sqlite" {
		return cfg.SQLitePath
	}
	return cfg.CheckpointDir
}
