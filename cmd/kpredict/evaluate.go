package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"kpredict/pkg/logger"
	"kpredict/pkg/model"
	"kpredict/pkg/ui"
)

var evaluationFile string

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Score every stored game against its pitcher's model",
	Long: `Replay every stored game through the saved models and report MAE, MSE
and R². The per-game predictions are written to a CSV file.`,
	Args: cobra.NoArgs,
	RunE: runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)
	evaluateCmd.Flags().StringVarP(&evaluationFile, "output", "o", "", "evaluation CSV (default from config)")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	out := cfg.Model.EvaluationFile
	if evaluationFile != "" {
		out = evaluationFile
	}

	ctx, stop := signalContext()
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	eval, err := model.NewEvaluator(store, cfg.Model.Dir, logger.GetLogger()).Evaluate(ctx)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}
	if eval.Players == 0 {
		ui.PrintWarning("No trained models found in " + cfg.Model.Dir)
		return nil
	}

	if err := model.WriteCSV(out, eval.Predictions); err != nil {
		return err
	}

	t := newTable()
	t.AppendHeader(table.Row{"Players", "Games", "MAE", "MSE", "R²"})
	t.AppendRow(table.Row{
		eval.Players,
		eval.Scores.N,
		fmt.Sprintf("%.3f", eval.Scores.MAE),
		fmt.Sprintf("%.3f", eval.Scores.MSE),
		fmt.Sprintf("%.3f", eval.Scores.R2),
	})
	t.Render()

	ui.PrintSuccess("Predictions written to " + out)
	return nil
}
