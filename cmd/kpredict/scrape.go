package main

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"kpredict/pkg/checkpoint"
	"kpredict/pkg/config"
	"kpredict/pkg/fetcher"
	"kpredict/pkg/ingest"
	"kpredict/pkg/logger"
	"kpredict/pkg/metrics"
	"kpredict/pkg/ratelimit"
	"kpredict/pkg/retry"
	"kpredict/pkg/ui"
)

var (
	season          int
	workers         int
	limit           int
	maxAttempts     int
	cooldownMin     time.Duration
	cooldownMax     time.Duration
	teamRatesFile   string
	resumeRun       bool
	forceRestart    bool
	noBackfill      bool
	metricsListen   string
	metricsTextfile string
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape the season's pitcher game logs into the database",
	Long: `Scrape the pitching roster, the league team strikeout rates and every
pitcher's game log for a season, then store one row per appearance.

Players whose game log cannot be fetched or parsed are skipped. Completed
players are checkpointed so an interrupted run resumes where it stopped.
Press Ctrl+C to stop; the partial work is kept.`,
	Example: `  # Scrape the configured season
  kpredict scrape

  # Scrape 2023 with four workers and shorter pauses
  kpredict scrape --season 2023 --workers 4 --cooldown-min 5s --cooldown-max 10s

  # Ignore an existing checkpoint and expose metrics while running
  kpredict scrape --force-restart --metrics-listen :9108`,
	Args: cobra.NoArgs,
	RunE: runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	scrapeCmd.Flags().IntVar(&season, "season", 0, "season to scrape (default from config)")
	scrapeCmd.Flags().IntVar(&workers, "workers", 0, "number of players fetched concurrently")
	scrapeCmd.Flags().IntVar(&limit, "limit", 0, "only scrape the first N roster players")
	scrapeCmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "fetch attempts per page")
	scrapeCmd.Flags().DurationVar(&cooldownMin, "cooldown-min", 0, "minimum pause before each game log")
	scrapeCmd.Flags().DurationVar(&cooldownMax, "cooldown-max", 0, "maximum pause before each game log")
	scrapeCmd.Flags().StringVar(&teamRatesFile, "team-rates-file", "", "CSV receiving the team strikeout rates")
	scrapeCmd.Flags().BoolVar(&resumeRun, "resume", true, "resume from the season checkpoint")
	scrapeCmd.Flags().BoolVar(&forceRestart, "force-restart", false, "discard the checkpoint and scrape every player")
	scrapeCmd.Flags().BoolVar(&noBackfill, "no-backfill", false, "do not fill opponent rates after the run")
	scrapeCmd.Flags().StringVar(&metricsListen, "metrics-listen", "", "serve Prometheus metrics on this address")
	scrapeCmd.Flags().StringVar(&metricsTextfile, "metrics-textfile", "", "write Prometheus metrics to this file when done")
}

func scrapeFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	if season > 0 {
		flags["season"] = season
	}
	if workers > 0 {
		flags["workers"] = workers
	}
	if maxAttempts > 0 {
		flags["max-attempts"] = maxAttempts
	}
	if cmd.Flags().Changed("cooldown-min") {
		flags["cooldown-min"] = cooldownMin
	}
	if cmd.Flags().Changed("cooldown-max") {
		flags["cooldown-max"] = cooldownMax
	}
	if teamRatesFile != "" {
		flags["team-rates-file"] = teamRatesFile
	}
	if cmd.Flags().Changed("resume") {
		flags["resume"] = resumeRun
	}
	if noBackfill {
		flags["backfill"] = false
	}
	if metricsListen != "" {
		flags["metrics-listen"] = metricsListen
	}
	if metricsTextfile != "" {
		flags["metrics-textfile"] = metricsTextfile
	}
	return flags
}

// newFetcher builds the shared client from the fetch settings
func newFetcher(cfg *config.Config, observer fetcher.Observer) *fetcher.Client {
	f := cfg.Fetch
	throttle := &retry.ExponentialBackoff{
		BaseDelay:  f.BackoffBase,
		MaxDelay:   f.BackoffMax,
		Multiplier: f.BackoffMultiplier,
		MinJitter:  f.JitterMin,
		MaxJitter:  f.JitterMax,
	}
	return fetcher.NewClient(fetcher.Config{
		UserAgents:  f.UserAgents,
		Timeout:     f.Timeout,
		MaxAttempts: f.MaxAttempts,
		Backoff: &retry.ErrorTypeBackoff{
			RateLimited: throttle,
			Unreachable: retry.TransportBackoff(),
			Default:     retry.TransportBackoff(),
		},
		Limiter:  ratelimit.PerMinute(f.RequestsPerMinute),
		Observer: observer,
	}, logger.GetLogger())
}

func runScrape(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(scrapeFlags(cmd))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	log := logger.GetLogger()

	ctx, stop := signalContext()
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	m := metrics.NewManager()
	if cfg.Metrics.Listen != "" {
		srv := m.Serve(cfg.Metrics.Listen, func(err error) {
			log.WithError(err).Error("Metrics server stopped")
		})
		defer metrics.Shutdown(srv)
		ui.PrintInfo("Metrics", "http://"+cfg.Metrics.Listen+"/metrics")
	}

	var checkpoints *checkpoint.Manager
	if cfg.Ingest.Resume || forceRestart {
		checkpoints, err = checkpoint.NewManager(cfg.Ingest.CheckpointDir, cfg.Source.Season, log)
		if err != nil {
			return err
		}
	}

	tracker := ui.NewStatusTracker(0)
	opts := ingest.Options{
		Season:        cfg.Source.Season,
		Endpoints:     fetcher.Endpoints{BaseURL: cfg.Source.BaseURL},
		Workers:       cfg.Ingest.Workers,
		TeamRatesFile: cfg.Ingest.TeamRatesFile,
		Cooldown:      &ratelimit.Cooldown{Min: cfg.Fetch.CooldownMin, Max: cfg.Fetch.CooldownMax},
		Checkpoints:   checkpoints,
		ForceRestart:  forceRestart,
		Backfill:      cfg.Ingest.BackfillAfter,
		Limit:         limit,
	}
	if !quiet {
		opts.Progress = func(done, total int, err error) {
			tracker.Record(done, total, err == nil)
			tracker.PrintProgress()
		}
	}

	if !quiet {
		ui.PrintBanner()
	}
	ui.PrintInfo("Season", fmt.Sprint(cfg.Source.Season))
	ui.PrintInfo("Database", describeDatabase(cfg.Database.Driver, cfg.Database.DSN))

	coordinator := ingest.NewCoordinator(newFetcher(cfg, m), store, opts, m, log)
	summary, runErr := coordinator.Run(ctx)
	if tracker.Done > 0 {
		fmt.Fprintln(ui.Output)
	}

	if cfg.Metrics.Textfile != "" {
		if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			log.WithError(err).Warn("Failed to write metrics textfile")
		}
	}

	if summary != nil {
		printSummary(summary)
	}
	if runErr != nil {
		return fmt.Errorf("scrape failed in state %s: %w", coordinator.State(), runErr)
	}

	ui.PrintSuccess("Scrape completed")
	return nil
}

func printSummary(s *ingest.Summary) {
	t := newTable()
	t.AppendHeader(table.Row{"Season", "Players", "Succeeded", "Skipped", "Resumed", "Rows", "Team rates", "Backfilled", "Duration"})
	t.AppendRow(table.Row{s.Season, s.Players, s.Succeeded, s.Skipped, s.Resumed, s.Rows, s.TeamRates, s.Backfilled, s.Duration.Round(time.Second)})
	t.Render()

	if len(s.SkippedPlayers) > 0 {
		ui.PrintWarning("Skipped players", fmt.Sprint(s.SkippedPlayers))
	}
}
