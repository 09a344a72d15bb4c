// Package models holds the records exchanged between the scraper, the store
// and the model layer.
package models

import "database/sql"

// HomeAway marks the venue of a game from the pitcher's perspective
type HomeAway int

const (
	Home HomeAway = 0
	Away HomeAway = 1
)

func (h HomeAway) String() string {
	if h == Away {
		return "away"
	}
	return "home"
}

// Player is a roster entry. ID is the source's opaque identifier, e.g. colege01.
type Player struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// TeamKRate is a team's batting strikeout rate as a fraction in [0,1]
type TeamKRate struct {
	Team          string  `json:"team"`
	OpponentKRate float64 `json:"opponent_k_rate"`
}

// PitcherGameRecord is one pitching appearance. (Player, Date) is the natural key.
//
// Date is kept as the source presents it, so doubleheaders carrying a "(1)" or
// "(2)" suffix stay distinct. InningsPitched keeps the source's fractional-outs
// notation ("6.1" is six and one third). Opponent is empty when the source
// abbreviation was not recognized.
type PitcherGameRecord struct {
	Player         string          `json:"player"`
	Date           string          `json:"date"`
	HomeAway       HomeAway        `json:"home_away"`
	Opponent       string          `json:"opponent"`
	InningsPitched string          `json:"innings_pitched"`
	EarnedRuns     sql.NullInt64   `json:"earned_runs"`
	Strikeouts     sql.NullInt64   `json:"strikeouts"`
	Walks          sql.NullInt64   `json:"walks"`
	PitchCount     sql.NullInt64   `json:"pitch_count"`
	OpponentKRate  sql.NullFloat64 `json:"opponent_k_rate"`
}
