package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"nadlan-scraper/config"
	"nadlan-scraper/storage"
	"nadlan-scraper/utils"
)

var rootCmd = &cobra.Command{
	Use:          "nadlan-scraper",
	Short:        "Resumable crawler for real-estate transactions published on nadlan.gov.il.",
	SilenceUsage: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// setup loads configuration and a logger at the configured level.
func setup() (*config.Config, *utils.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	return cfg, utils.NewLogger(cfg.LogLevel), nil
}

// openCheckpointStore returns the configured checkpoint backend.
func openCheckpointStore(cfg *config.Config, logger *utils.Logger) (storage.CheckpointStore, error) {
	switch cfg.CheckpointBackend {
	case "sqlite":
		return storage.NewSQLiteCheckpointStore(cfg.SQLitePath, logger)
	default:
		return storage.NewFileCheckpointStore(cfg.CheckpointDir, logger)
	}
}
