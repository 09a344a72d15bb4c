package main

import (
	"fmt"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"kpredict/pkg/config"
	"kpredict/pkg/features"
	"kpredict/pkg/logger"
	"kpredict/pkg/model"
	"kpredict/pkg/ui"
)

var showSkipped bool

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train one strikeout model per qualifying pitcher",
	Long: `Train a ridge regression for every pitcher with enough starts in the
database. Relief pitchers are excluded by the minimum average innings.
Each model is written to <model-dir>/<player-slug>.json.`,
	Args: cobra.NoArgs,
	RunE: runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)
	trainCmd.Flags().BoolVar(&showSkipped, "show-skipped", false, "list players that did not qualify")
}

func trainOptions(cfg *config.Config) model.TrainOptions {
	return model.TrainOptions{
		Dir: cfg.Model.Dir,
		Qualification: features.Qualification{
			MinGames:      cfg.Model.MinGames,
			MinAvgInnings: cfg.Model.MinAvgInnings,
		},
		Window:       cfg.Model.RollingWindow,
		TestFraction: cfg.Model.TestFraction,
		Seed:         cfg.Model.Seed,
		Lambda:       cfg.Model.Ridge,
	}
}

func runTrain(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
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

	report, err := model.NewTrainer(store, trainOptions(cfg), logger.GetLogger()).Train(ctx)
	if err != nil {
		return fmt.Errorf("training failed: %w", err)
	}

	players := make([]string, 0, len(report.Trained))
	for p := range report.Trained {
		players = append(players, p)
	}
	sort.Strings(players)

	t := newTable()
	t.AppendHeader(table.Row{"Player", "Train rows", "Test rows", "Test MAE", "Test R²"})
	for _, p := range players {
		a := report.Trained[p]
		t.AppendRow(table.Row{p, a.TrainRows, a.Holdout.Rows, formatOptional(a.Holdout.MAE), formatOptional(a.Holdout.R2)})
	}
	t.Render()

	if showSkipped && len(report.Skipped) > 0 {
		skipped := make([]string, 0, len(report.Skipped))
		for p := range report.Skipped {
			skipped = append(skipped, p)
		}
		sort.Strings(skipped)

		st := newTable()
		st.AppendHeader(table.Row{"Skipped player", "Reason"})
		for _, p := range skipped {
			st.AppendRow(table.Row{p, report.Skipped[p]})
		}
		st.Render()
	}

	ui.PrintSuccess(fmt.Sprintf("Trained %d models, skipped %d players", len(report.Trained), len(report.Skipped)))
	return nil
}

func formatOptional(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.3f", *v)
}
