package features

import (
	"math"
	"sort"

	"kpredict/pkg/models"
	"kpredict/pkg/normalize"
)

// Names is the fixed feature order every model is trained and queried with
var Names = []string{"innings_pitched", "opponent_encoded", "home_away", "opponent_k_rate", "recent_k9"}

// DefaultWindow is the number of games in the recent-form K/9
const DefaultWindow = 5

// Game is a persisted appearance in numeric form
type Game struct {
	Player        string
	Date          string
	Opponent      string
	HomeAway      models.HomeAway
	Innings       float64
	Strikeouts    float64
	OpponentKRate float64
	HasRate       bool
}

// Row is one training or evaluation example
type Row struct {
	Game
	RecentK9 float64
	Features []float64
	Target   float64
}

// FromRecord converts a stored record. Records without a strikeout count
// carry no target and are rejected.
func FromRecord(r models.PitcherGameRecord) (Game, bool) {
	if !r.Strikeouts.Valid {
		return Game{}, false
	}
	return Game{
		Player:        r.Player,
		Date:          r.Date,
		Opponent:      r.Opponent,
		HomeAway:      r.HomeAway,
		Innings:       normalize.CanonicalizeInnings(r.InningsPitched),
		Strikeouts:    float64(r.Strikeouts.Int64),
		OpponentKRate: r.OpponentKRate.Float64,
		HasRate:       r.OpponentKRate.Valid,
	}, true
}

// GroupByPlayer converts records and groups them per player in date order
func GroupByPlayer(records []models.PitcherGameRecord) map[string][]Game {
	groups := make(map[string][]Game)
	for _, r := range records {
		g, ok := FromRecord(r)
		if !ok {
			continue
		}
		groups[g.Player] = append(groups[g.Player], g)
	}
	for _, games := range groups {
		sort.SliceStable(games, func(i, j int) bool { return games[i].Date < games[j].Date })
	}
	return groups
}

// KPer9 is strikeouts per nine innings. It is undefined for zero innings.
func KPer9(strikeouts, innings float64) (float64, bool) {
	if innings <= 0 {
		return 0, false
	}
	return strikeouts / innings * 9, true
}

// SeasonK9 is the K/9 over every game
func SeasonK9(games []Game) (float64, bool) {
	var so, ip float64
	for _, g := range games {
		so += g.Strikeouts
		ip += g.Innings
	}
	return KPer9(so, ip)
}

// LastK9 is the K/9 over the n most recent games. games must be in date order.
func LastK9(games []Game, n int) (float64, bool) {
	if n > 0 && len(games) > n {
		games = games[len(games)-n:]
	}
	return SeasonK9(games)
}

// RollingK9 returns, for each game, the K/9 over that game and up to
// window-1 games before it. Entries with no innings are NaN.
func RollingK9(games []Game, window int) []float64 {
	if window < 1 {
		window = DefaultWindow
	}
	out := make([]float64, len(games))
	for i := range games {
		lo := i - window + 1
		if lo < 0 {
			lo = 0
		}
		k9, ok := SeasonK9(games[lo : i+1])
		if !ok {
			out[i] = math.NaN()
			continue
		}
		out[i] = k9
	}
	return out
}

// AverageInnings is the mean canonical innings per appearance
func AverageInnings(games []Game) float64 {
	if len(games) == 0 {
		return 0
	}
	var ip float64
	for _, g := range games {
		ip += g.Innings
	}
	return ip / float64(len(games))
}

// Qualification decides which pitchers get a model. Relievers are excluded
// through the average-innings floor.
type Qualification struct {
	MinGames      int
	MinAvgInnings float64
}

// DefaultQualification requires six games averaging three innings
func DefaultQualification() Qualification {
	return Qualification{MinGames: 6, MinAvgInnings: 3.0}
}

// Qualifies reports whether games are enough to train on, with a reason when not
func (q Qualification) Qualifies(games []Game) (bool, string) {
	if avg := AverageInnings(games); avg < q.MinAvgInnings {
		return false, "average innings below minimum"
	}
	if len(games) < q.MinGames {
		return false, "not enough games"
	}
	return true, ""
}

// KnownOpponents drops games whose opponent is missing or not in enc
func KnownOpponents(games []Game, enc *Encoding) []Game {
	out := make([]Game, 0, len(games))
	for _, g := range games {
		if _, ok := enc.Encode(g.Opponent); ok {
			out = append(out, g)
		}
	}
	return out
}

// BuildRows derives the feature vectors for one player's games. Games
// must already be restricted to known opponents and in date order. Games
// without an opponent rate or a defined recent K/9 are dropped.
func BuildRows(games []Game, enc *Encoding, window int) []Row {
	recent := RollingK9(games, window)
	rows := make([]Row, 0, len(games))
	for i, g := range games {
		code, ok := enc.Encode(g.Opponent)
		if !ok || !g.HasRate || math.IsNaN(recent[i]) {
			continue
		}
		rows = append(rows, Row{
			Game:     g,
			RecentK9: recent[i],
			Features: Vector(g.Innings, code, g.HomeAway, g.OpponentKRate, recent[i]),
			Target:   g.Strikeouts,
		})
	}
	return rows
}

// Vector lays out one example in Names order
func Vector(innings float64, opponentCode int, homeAway models.HomeAway, opponentKRate, recentK9 float64) []float64 {
	return []float64{innings, float64(opponentCode), float64(homeAway), opponentKRate, recentK9}
}
