package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"kpredict/pkg/ingest"
	"kpredict/pkg/logger"
	"kpredict/pkg/ui"
)

var backfillFile string

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Fill opponent strikeout rates from the team rates CSV",
	Long: `Set opponent_k_rate on every stored game whose opponent appears in the
team rates CSV written by scrape. Games against teams missing from the file
keep their current value.`,
	Args: cobra.NoArgs,
	RunE: runBackfill,
}

func init() {
	rootCmd.AddCommand(backfillCmd)
	backfillCmd.Flags().StringVar(&backfillFile, "file", "", "team rates CSV (default from config)")
}

func runBackfill(cmd *cobra.Command, args []string) error {
	flags := map[string]interface{}{}
	if backfillFile != "" {
		flags["team-rates-file"] = backfillFile
	}
	cfg, err := loadConfig(flags)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx, stop := signalContext()
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	coordinator := ingest.NewCoordinator(nil, store, ingest.Options{Season: cfg.Source.Season}, nil, logger.GetLogger())
	n, err := coordinator.Backfill(ctx, cfg.Ingest.TeamRatesFile)
	if err != nil {
		return fmt.Errorf("backfill failed: %w", err)
	}

	ui.PrintSuccess(fmt.Sprintf("Updated %d games from %s", n, cfg.Ingest.TeamRatesFile))
	return nil
}
