package storage

import (
	"context"
	"database/sql"
	"fmt"

	"kpredict/pkg/models"
	"kpredict/pkg/normalize"
)

const selectGames = `SELECT player, dat, home_away, opponent, innings_pitched,
	earned_runs, strikeouts, walks, pitch_count, opponent_k_rate
FROM pitcher_stats`

// Players returns the distinct player names, sorted
func (s *Store) Players(ctx context.Context) ([]string, error) {
	return s.column(ctx, `SELECT DISTINCT player FROM pitcher_stats ORDER BY player`)
}

// Opponents returns the distinct non-empty opponents, sorted
func (s *Store) Opponents(ctx context.Context) ([]string, error) {
	return s.column(ctx,
		`SELECT DISTINCT opponent FROM pitcher_stats WHERE opponent IS NOT NULL AND opponent <> '' ORDER BY opponent`)
}

// PlayerGames returns one player's games in date order
func (s *Store) PlayerGames(ctx context.Context, player string) ([]models.PitcherGameRecord, error) {
	return s.games(ctx, selectGames+` WHERE player = ? ORDER BY dat`, player)
}

// AllGames returns every stored game ordered by player then date
func (s *Store) AllGames(ctx context.Context) ([]models.PitcherGameRecord, error) {
	return s.games(ctx, selectGames+` ORDER BY player, dat`)
}

// Count returns the number of stored games
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pitcher_stats`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count games: %w", err)
	}
	return n, nil
}

func (s *Store) column(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Store) games(ctx context.Context, query string, args ...interface{}) ([]models.PitcherGameRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var out []models.PitcherGameRecord
	for rows.Next() {
		var (
			r                   models.PitcherGameRecord
			homeAway            sql.NullInt64
			opponent, innings   sql.NullString
			er, so, bb, pitches sql.NullString
		)
		if err := rows.Scan(&r.Player, &r.Date, &homeAway, &opponent, &innings,
			&er, &so, &bb, &pitches, &r.OpponentKRate); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		r.HomeAway = models.HomeAway(homeAway.Int64)
		r.Opponent = opponent.String
		r.InningsPitched = innings.String
		r.EarnedRuns = normalize.CoerceCount(er.String)
		r.Strikeouts = normalize.CoerceCount(so.String)
		r.Walks = normalize.CoerceCount(bb.String)
		r.PitchCount = normalize.CoerceCount(pitches.String)
		out = append(out, r)
	}
	return out, rows.Err()
}
