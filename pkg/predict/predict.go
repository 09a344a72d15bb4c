package predict

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/antzucaro/matchr"
	errs "kpredict/pkg/errors"
	"kpredict/pkg/features"
	"kpredict/pkg/logger"
	"kpredict/pkg/model"
	"kpredict/pkg/models"
	"kpredict/pkg/normalize"
)

// DefaultMatchThreshold is the minimum Jaro-Winkler similarity accepted
// when a player name does not match exactly
const DefaultMatchThreshold = 0.85

var (
	// ErrPlayerNotFound is returned when no stored player resembles the name
	ErrPlayerNotFound = errs.New(errs.ErrorTypeNotFound, "player not found")
	// ErrOpponentNotFound is returned for an opponent the model never saw
	ErrOpponentNotFound = errs.New(errs.ErrorTypeNotFound, "opponent not found in training data")
	// ErrNoOpponentRate is returned when no opponent strikeout rate is stored
	ErrNoOpponentRate = errs.New(errs.ErrorTypeNotFound, "no opponent strikeout rate available")
	// ErrNoHistory is returned for a player without any usable game
	ErrNoHistory = errs.New(errs.ErrorTypeNotFound, "no games with innings pitched")
	// ErrInvalidInnings is returned for innings outside the .0/.1/.2 notation
	ErrInvalidInnings = errors.New("innings must be written as N, N.1 or N.2")
)

// Source reads stored games
type Source interface {
	Players(ctx context.Context) ([]string, error)
	PlayerGames(ctx context.Context, player string) ([]models.PitcherGameRecord, error)
}

// Request asks for one strikeout prediction
type Request struct {
	Player   string
	Opponent string
	// Innings in the source notation, e.g. "6.1"
	Innings string
	Home    bool
}

// Profile is the history shown next to a prediction
type Profile struct {
	Player      string
	Opponent    string
	SeasonK9    float64
	HasSeasonK9 bool
	LastK9      float64
	HasLastK9   bool
	// most recent first
	LastGames  []models.PitcherGameRecord
	VsOpponent []models.PitcherGameRecord
}

// Result is a prediction with the inputs it was made from
type Result struct {
	*Profile
	Innings       float64
	HomeAway      models.HomeAway
	OpponentKRate float64
	RecentK9      float64
	Features      []float64
	Predicted     float64
}

// Predictor answers prediction requests from stored games and artifacts
type Predictor struct {
	source    Source
	dir       string
	window    int
	threshold float64
	logger    logger.Logger
}

// New creates a predictor reading artifacts from dir
func New(source Source, dir string, log logger.Logger) *Predictor {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Predictor{
		source:    source,
		dir:       dir,
		window:    features.DefaultWindow,
		threshold: DefaultMatchThreshold,
		logger:    log.WithField("component", "predict"),
	}
}

// ParseInnings validates and canonicalizes innings in the .1/.2 notation
func ParseInnings(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	whole, frac, _ := strings.Cut(raw, ".")
	w, err := strconv.Atoi(whole)
	if err != nil || w < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidInnings, raw)
	}
	switch frac {
	case "", "0", "1", "2":
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidInnings, raw)
	}
	return normalize.CanonicalizeInnings(raw), nil
}

// ResolvePlayer maps a typed name to a stored player: exact, then
// case-insensitive, then the closest Jaro-Winkler match above the threshold
func (p *Predictor) ResolvePlayer(ctx context.Context, name string) (string, error) {
	players, err := p.source.Players(ctx)
	if err != nil {
		return "", fmt.Errorf("list players: %w", err)
	}

	name = strings.TrimSpace(name)
	for _, candidate := range players {
		if candidate == name {
			return candidate, nil
		}
	}
	for _, candidate := range players {
		if strings.EqualFold(candidate, name) {
			return candidate, nil
		}
	}

	var best string
	var bestScore float64
	for _, candidate := range players {
		score := matchr.JaroWinkler(strings.ToLower(name), strings.ToLower(candidate), false)
		if score > bestScore {
			bestScore = score
			best = candidate
		}
	}
	if bestScore >= p.threshold {
		p.logger.DebugWithFields("Player name matched approximately", map[string]interface{}{
			"input":      name,
			"match":      best,
			"similarity": bestScore,
		})
		return best, nil
	}
	return "", fmt.Errorf("%w: %q", ErrPlayerNotFound, name)
}

// Profile gathers the K/9 figures and recent games for a player. opponent
// may be empty.
func (p *Predictor) Profile(ctx context.Context, player, opponent string) (*Profile, error) {
	prof, _, err := p.load(ctx, player, opponent)
	return prof, err
}

func (p *Predictor) load(ctx context.Context, player, opponent string) (*Profile, []models.PitcherGameRecord, error) {
	resolved, err := p.ResolvePlayer(ctx, player)
	if err != nil {
		return nil, nil, err
	}
	if team, ok := normalize.CanonicalizeTeam(opponent); ok {
		opponent = team
	}

	records, err := p.source.PlayerGames(ctx, resolved)
	if err != nil {
		return nil, nil, fmt.Errorf("load games: %w", err)
	}
	return p.profile(resolved, opponent, records), records, nil
}

func (p *Predictor) profile(player, opponent string, records []models.PitcherGameRecord) *Profile {
	games := features.GroupByPlayer(records)[player]
	prof := &Profile{Player: player, Opponent: opponent}
	prof.SeasonK9, prof.HasSeasonK9 = features.SeasonK9(games)
	prof.LastK9, prof.HasLastK9 = features.LastK9(games, p.window)

	recent := append([]models.PitcherGameRecord(nil), records...)
	sort.SliceStable(recent, func(i, j int) bool { return recent[i].Date > recent[j].Date })
	if len(recent) > p.window {
		prof.LastGames = recent[:p.window]
	} else {
		prof.LastGames = recent
	}
	for _, r := range recent {
		if opponent != "" && r.Opponent == opponent {
			prof.VsOpponent = append(prof.VsOpponent, r)
		}
	}
	return prof
}

// Predict loads the player's model and predicts strikeouts for the request
func (p *Predictor) Predict(ctx context.Context, req Request) (*Result, error) {
	innings, err := ParseInnings(req.Innings)
	if err != nil {
		return nil, err
	}

	prof, records, err := p.load(ctx, req.Player, req.Opponent)
	if err != nil {
		return nil, err
	}

	artifact, err := model.Load(p.dir, prof.Player)
	if err != nil {
		return nil, err
	}

	code, ok := artifact.Encoding.Encode(prof.Opponent)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrOpponentNotFound, req.Opponent)
	}

	rate, err := opponentRate(records, prof.Opponent)
	if err != nil {
		return nil, err
	}

	recent := prof.LastK9
	if !prof.HasLastK9 {
		if !prof.HasSeasonK9 {
			return nil, fmt.Errorf("%w: %s", ErrNoHistory, prof.Player)
		}
		recent = prof.SeasonK9
	}

	homeAway := models.Away
	if req.Home {
		homeAway = models.Home
	}

	x := features.Vector(innings, code, homeAway, rate, recent)
	predicted, err := artifact.Predict(x)
	if err != nil {
		return nil, err
	}
	if predicted < 0 {
		predicted = 0
	}

	p.logger.DebugWithFields("Prediction made", map[string]interface{}{
		"player":    prof.Player,
		"opponent":  prof.Opponent,
		"predicted": predicted,
	})

	return &Result{
		Profile:       prof,
		Innings:       innings,
		HomeAway:      homeAway,
		OpponentKRate: rate,
		RecentK9:      recent,
		Features:      x,
		Predicted:     predicted,
	}, nil
}

// opponentRate averages the stored rate over the player's games against
// opponent, falling back to the player's games against anyone
func opponentRate(records []models.PitcherGameRecord, opponent string) (float64, error) {
	var vsSum, allSum float64
	var vsN, allN int
	for _, r := range records {
		if !r.OpponentKRate.Valid {
			continue
		}
		allSum += r.OpponentKRate.Float64
		allN++
		if r.Opponent == opponent {
			vsSum += r.OpponentKRate.Float64
			vsN++
		}
	}
	switch {
	case vsN > 0:
		return vsSum / float64(vsN), nil
	case allN > 0:
		return allSum / float64(allN), nil
	}
	return 0, ErrNoOpponentRate
}
