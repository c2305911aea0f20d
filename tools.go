package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"nadlan-scraper/config"
	"nadlan-scraper/models"
	"nadlan-scraper/services"
	"nadlan-scraper/storage"
)

func init() {
	var input, output string
	combine := &cobra.Command{
		Use:   "combine",
		Short: "Merge per-entity CSV files into one, tagging each row with its source.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				output = filepath.Join(input, "combined", "combined.csv")
			}
			stats, err := storage.CombineCSV(input, output)
			if err != nil {
				return err
			}
			fmt.Printf("Combined %d files: %d records → %s\n", stats.Files, stats.InputRecords, output)
			return nil
		},
	}
	combine.Flags().StringVarP(&input, "input", "i", "./data", "directory holding the per-entity CSV files")
	combine.Flags().StringVarP(&output, "output", "o", "", "combined CSV path (default <input>/combined/combined.csv)")
	rootCmd.AddCommand(combine)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "checkpoints <entity>...",
		Short: "Show the latest checkpoint of each entity.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			store, err := openCheckpointStore(cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Entity", "Sequence", "Saved", "Records", "Seen hashes", "Run"})
			for _, arg := range args {
				e, err := config.ParseEntity(arg)
				if err != nil {
					return err
				}
				snap, err := store.LoadLatest(cmd.Context(), e.Key())
				if err != nil {
					return fmt.Errorf("load %s: %w", e.Label(), err)
				}
				if snap == nil {
					t.AppendRow(table.Row{e.Label(), "-", "never", 0, 0, ""})
					continue
				}
				t.AppendRow(table.Row{e.Label(), snap.Sequence, snap.SavedAt.Format(time.DateTime),
					len(snap.Records), len(snap.SeenHashes), snap.RunID})
			}
			t.Render()
			return nil
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "insights <entity>...",
		Short: "Print price and volume statistics from the latest checkpoints.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			store, err := openCheckpointStore(cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			var records []models.TransactionRecord
			var labels []string
			for _, arg := range args {
				e, err := config.ParseEntity(arg)
				if err != nil {
					return err
				}
				snap, err := store.LoadLatest(cmd.Context(), e.Key())
				if err != nil {
					return fmt.Errorf("load %s: %w", e.Label(), err)
				}
				if snap == nil {
					logger.Warn("No checkpoint for %s", e.Label())
					continue
				}
				records = append(records, services.NewCleaner(logger).Clean(snap.Records)...)
				labels = append(labels, e.Label())
			}

			insights := services.NewInsightService(logger)
			insights.Print(os.Stdout, strings.Join(labels, ", "), insights.Generate(records))
			return nil
		},
	})
}
