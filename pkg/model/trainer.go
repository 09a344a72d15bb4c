package model

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"kpredict/pkg/features"
	"kpredict/pkg/logger"
	"kpredict/pkg/models"
)

// GameSource reads persisted games
type GameSource interface {
	AllGames(ctx context.Context) ([]models.PitcherGameRecord, error)
}

// TrainOptions controls model training
type TrainOptions struct {
	Dir           string
	Qualification features.Qualification
	Window        int
	TestFraction  float64
	Seed          int64
	Lambda        float64
}

// DefaultTrainOptions mirrors the configuration defaults
func DefaultTrainOptions() TrainOptions {
	return TrainOptions{
		Dir:           "models",
		Qualification: features.DefaultQualification(),
		Window:        features.DefaultWindow,
		TestFraction:  0.2,
		Seed:          42,
		Lambda:        1.0,
	}
}

// TrainReport lists what a training run produced
type TrainReport struct {
	Trained map[string]*Artifact
	Skipped map[string]string
}

// Trainer fits one model per qualifying pitcher
type Trainer struct {
	source GameSource
	opts   TrainOptions
	logger logger.Logger
}

// NewTrainer creates a trainer
func NewTrainer(source GameSource, opts TrainOptions, log logger.Logger) *Trainer {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.Window < 1 {
		opts.Window = features.DefaultWindow
	}
	if opts.TestFraction < 0 || opts.TestFraction >= 1 {
		opts.TestFraction = 0.2
	}
	return &Trainer{source: source, opts: opts, logger: log.WithField("component", "trainer")}
}

// Train fits and saves a model for every qualifying pitcher. Players that
// do not qualify are listed in the report with the reason.
func (t *Trainer) Train(ctx context.Context) (*TrainReport, error) {
	records, err := t.source.AllGames(ctx)
	if err != nil {
		return nil, fmt.Errorf("load games: %w", err)
	}

	opponents := make([]string, 0, len(records))
	for _, r := range records {
		opponents = append(opponents, r.Opponent)
	}
	enc := features.NewEncoding(opponents)
	groups := features.GroupByPlayer(records)

	players := make([]string, 0, len(groups))
	for p := range groups {
		players = append(players, p)
	}
	sort.Strings(players)

	report := &TrainReport{Trained: map[string]*Artifact{}, Skipped: map[string]string{}}
	for _, player := range players {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		artifact, reason, err := t.trainPlayer(player, groups[player], enc)
		if err != nil {
			return report, fmt.Errorf("train %s: %w", player, err)
		}
		if artifact == nil {
			report.Skipped[player] = reason
			t.logger.DebugWithFields("Player skipped", map[string]interface{}{
				"player": player,
				"reason": reason,
			})
			continue
		}

		path, err := Save(t.opts.Dir, artifact)
		if err != nil {
			return report, err
		}
		report.Trained[player] = artifact
		t.logger.InfoWithFields("Model trained", map[string]interface{}{
			"player":     player,
			"train_rows": artifact.TrainRows,
			"test_rows":  artifact.Holdout.Rows,
			"path":       path,
		})
	}

	t.logger.InfoWithFields("Training finished", map[string]interface{}{
		"trained": len(report.Trained),
		"skipped": len(report.Skipped),
	})
	return report, nil
}

func (t *Trainer) trainPlayer(player string, games []features.Game, enc *features.Encoding) (*Artifact, string, error) {
	games = features.KnownOpponents(games, enc)
	if ok, reason := t.opts.Qualification.Qualifies(games); !ok {
		return nil, reason, nil
	}

	rows := features.BuildRows(games, enc, t.opts.Window)
	if len(rows) < 2 {
		return nil, "not enough games with an opponent rate", nil
	}

	train, test := Split(rows, t.opts.TestFraction, t.opts.Seed)

	x := make([][]float64, len(train))
	y := make([]float64, len(train))
	for i, r := range train {
		x[i] = r.Features
		y[i] = r.Target
	}
	fitted, err := FitRidge(x, y, t.opts.Lambda)
	if err != nil {
		return nil, "", err
	}

	holdout, err := scoreHoldout(fitted, test)
	if err != nil {
		return nil, "", err
	}

	return &Artifact{
		Version:   ArtifactVersion,
		Player:    player,
		Features:  append([]string(nil), features.Names...),
		Model:     fitted,
		Lambda:    t.opts.Lambda,
		Encoding:  *enc,
		Window:    t.opts.Window,
		TrainRows: len(train),
		Holdout:   holdout,
		TrainedAt: time.Now().UTC().Truncate(time.Second),
	}, "", nil
}

// scoreHoldout scores the fitted model on the held-out rows
func scoreHoldout(fitted Linear, test []features.Row) (Holdout, error) {
	holdout := Holdout{Rows: len(test)}
	if len(test) == 0 {
		return holdout, nil
	}
	predicted := make([]float64, len(test))
	actual := make([]float64, len(test))
	for i, r := range test {
		y, err := fitted.Predict(r.Features)
		if err != nil {
			return Holdout{}, fmt.Errorf("score holdout row %s: %w", r.Date, err)
		}
		predicted[i] = y
		actual[i] = r.Target
	}
	scores := Score(predicted, actual)
	holdout.MAE = finite(scores.MAE)
	holdout.R2 = finite(scores.R2)
	return holdout, nil
}

// Split shuffles rows with a fixed seed and holds out ceil(n*fraction) of
// them for testing. At least one row always stays in training.
func Split(rows []features.Row, fraction float64, seed int64) (train, test []features.Row) {
	n := len(rows)
	nTest := int(math.Ceil(float64(n) * fraction))
	if nTest >= n {
		nTest = n - 1
	}
	if nTest < 0 {
		nTest = 0
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	for i, idx := range perm {
		if i < nTest {
			test = append(test, rows[idx])
		} else {
			train = append(train, rows[idx])
		}
	}
	return train, test
}
