package model

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"kpredict/pkg/features"
	"kpredict/pkg/logger"
)

// Prediction is one evaluated game
type Prediction struct {
	Player        string
	Date          string
	Opponent      string
	Innings       float64
	Actual        float64
	Predicted     float64
	OpponentKRate float64
	RecentK9      float64
}

// Evaluation is the outcome of scoring every stored game against its
// pitcher's model
type Evaluation struct {
	Predictions []Prediction
	Scores      Scores
	Players     int
}

// Evaluator replays stored games through the saved models
type Evaluator struct {
	source GameSource
	dir    string
	logger logger.Logger
}

// NewEvaluator creates an evaluator reading artifacts from dir
func NewEvaluator(source GameSource, dir string, log logger.Logger) *Evaluator {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Evaluator{source: source, dir: dir, logger: log.WithField("component", "evaluator")}
}

// Evaluate predicts every game of every player that has a model. Players
// without an artifact are ignored.
func (e *Evaluator) Evaluate(ctx context.Context) (*Evaluation, error) {
	records, err := e.source.AllGames(ctx)
	if err != nil {
		return nil, fmt.Errorf("load games: %w", err)
	}
	groups := features.GroupByPlayer(records)

	players := make([]string, 0, len(groups))
	for p := range groups {
		players = append(players, p)
	}
	sort.Strings(players)

	eval := &Evaluation{}
	var predicted, actual []float64
	for _, player := range players {
		artifact, err := Load(e.dir, player)
		if errors.Is(err, ErrModelNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		eval.Players++

		games := features.KnownOpponents(groups[player], &artifact.Encoding)
		for _, row := range features.BuildRows(games, &artifact.Encoding, artifact.Window) {
			y, err := artifact.Predict(row.Features)
			if err != nil {
				return nil, fmt.Errorf("predict %s %s: %w", player, row.Date, err)
			}
			eval.Predictions = append(eval.Predictions, Prediction{
				Player:        player,
				Date:          row.Date,
				Opponent:      row.Opponent,
				Innings:       row.Innings,
				Actual:        row.Target,
				Predicted:     y,
				OpponentKRate: row.OpponentKRate,
				RecentK9:      row.RecentK9,
			})
			predicted = append(predicted, y)
			actual = append(actual, row.Target)
		}
	}

	eval.Scores = Score(predicted, actual)
	e.logger.InfoWithFields("Evaluation finished", map[string]interface{}{
		"players": eval.Players,
		"games":   eval.Scores.N,
		"mae":     eval.Scores.MAE,
		"mse":     eval.Scores.MSE,
		"r2":      eval.Scores.R2,
	})
	return eval, nil
}

var evaluationHeader = []string{
	"player", "date", "opponent", "innings_pitched", "actual_strikeouts",
	"predicted_strikeouts", "opponent_k_rate", "recent_k9",
}

// WriteCSV saves the per-game predictions
func WriteCSV(path string, predictions []Prediction) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create evaluation file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(evaluationHeader); err != nil {
		return err
	}
	for _, p := range predictions {
		if err := w.Write([]string{
			p.Player,
			p.Date,
			p.Opponent,
			strconv.FormatFloat(p.Innings, 'f', 3, 64),
			strconv.FormatFloat(p.Actual, 'f', -1, 64),
			strconv.FormatFloat(p.Predicted, 'f', 2, 64),
			strconv.FormatFloat(p.OpponentKRate, 'f', 3, 64),
			strconv.FormatFloat(p.RecentK9, 'f', 2, 64),
		}); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}
