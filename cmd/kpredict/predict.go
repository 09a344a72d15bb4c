package main

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"kpredict/pkg/features"
	"kpredict/pkg/logger"
	"kpredict/pkg/model"
	"kpredict/pkg/models"
	"kpredict/pkg/normalize"
	"kpredict/pkg/predict"
	"kpredict/pkg/ui"
)

var (
	opponent string
	innings  string
	home     bool
)

var predictCmd = &cobra.Command{
	Use:   "predict <player>",
	Short: "Predict strikeouts for a pitcher's next start",
	Long: `Predict how many batters a pitcher strikes out against an opponent,
given the innings they are expected to pitch. Innings use the box score
notation: 6.1 is six innings and one out.

The player's season and recent K/9, last five games and history against
the opponent are shown next to the prediction.`,
	Example: `  kpredict predict "Gerrit Cole" --opponent BOS --innings 6.0 --home
  kpredict predict "gerrit cole" --opponent "Tampa Bay Rays" --innings 5.2`,
	Args: cobra.ExactArgs(1),
	RunE: runPredict,
}

func init() {
	rootCmd.AddCommand(predictCmd)
	predictCmd.Flags().StringVar(&opponent, "opponent", "", "opponent team name or abbreviation")
	predictCmd.Flags().StringVar(&innings, "innings", "6.0", "expected innings pitched")
	predictCmd.Flags().BoolVar(&home, "home", false, "the pitcher plays at home")
	_ = predictCmd.MarkFlagRequired("opponent")
}

func runPredict(cmd *cobra.Command, args []string) error {
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

	predictor := predict.New(store, cfg.Model.Dir, logger.GetLogger())
	res, err := predictor.Predict(ctx, predict.Request{
		Player:   args[0],
		Opponent: opponent,
		Innings:  innings,
		Home:     home,
	})
	switch {
	case errors.Is(err, predict.ErrOpponentNotFound), errors.Is(err, model.ErrModelNotFound), errors.Is(err, predict.ErrNoOpponentRate):
		ui.PrintWarning("No prediction", err)
		prof, perr := predictor.Profile(ctx, args[0], opponent)
		if perr != nil {
			return perr
		}
		printProfile(prof)
		return nil
	case err != nil:
		return err
	}

	ui.PrintHighlight(fmt.Sprintf("%s vs %s", res.Player, res.Opponent))
	ui.PrintInfo("Predicted strikeouts", fmt.Sprintf("%.1f", res.Predicted))
	ui.PrintInfo("Innings", fmt.Sprintf("%.2f (%s)", res.Innings, res.HomeAway))
	ui.PrintInfo("Opponent K rate", fmt.Sprintf("%.1f%%", res.OpponentKRate*100))
	ui.PrintInfo("Recent K/9 used", fmt.Sprintf("%.2f", res.RecentK9))
	printProfile(res.Profile)
	return nil
}

func printProfile(p *predict.Profile) {
	season, last := "-", "-"
	if p.HasSeasonK9 {
		season = fmt.Sprintf("%.2f", p.SeasonK9)
	}
	if p.HasLastK9 {
		last = fmt.Sprintf("%.2f", p.LastK9)
	}
	ui.PrintInfo("Season K/9", season)
	ui.PrintInfo(fmt.Sprintf("Last %d K/9", features.DefaultWindow), last)

	if len(p.LastGames) > 0 {
		ui.PrintHighlight("Recent games")
		printGames(p.LastGames)
	}
	if p.Opponent != "" {
		if len(p.VsOpponent) == 0 {
			ui.PrintWarning("No previous games against " + p.Opponent)
			return
		}
		ui.PrintHighlight("Games against " + p.Opponent)
		printGames(p.VsOpponent)
	}
}

func printGames(games []models.PitcherGameRecord) {
	t := newTable()
	t.AppendHeader(table.Row{"Date", "Opponent", "Venue", "IP", "SO", "K/9", "BB", "ER"})
	for _, g := range games {
		k9 := "-"
		if g.Strikeouts.Valid {
			if v, ok := features.KPer9(float64(g.Strikeouts.Int64), normalize.CanonicalizeInnings(g.InningsPitched)); ok {
				k9 = fmt.Sprintf("%.2f", v)
			}
		}
		t.AppendRow(table.Row{g.Date, g.Opponent, g.HomeAway, g.InningsPitched, count(g.Strikeouts), k9, count(g.Walks), count(g.EarnedRuns)})
	}
	t.Render()
}

func count(v sql.NullInt64) string {
	if !v.Valid {
		return "-"
	}
	return fmt.Sprint(v.Int64)
}
