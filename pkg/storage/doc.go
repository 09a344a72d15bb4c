// Package storage persists scraped pitcher games and the team-rate file.
//
// Store wraps database/sql over either SQLite (modernc.org/sqlite, the
// default, a local mlb_data.db) or PostgreSQL (lib/pq). Queries are written
// with ? placeholders and rebound for postgres.
//
// The pitcher_stats table is keyed by (player, dat). Writing a game that is
// already stored updates it in place, and the opponent strikeout rate filled
// in by UpdateOpponentRate survives re-ingestion:
//
//	store, err := storage.Open(ctx, storage.Options{Driver: "sqlite", DSN: "mlb_data.db"}, log)
//	if err != nil {
//		return err
//	}
//	defer store.Close()
//
//	if err := store.EnsureSchema(ctx); err != nil {
//		return err
//	}
//	n, err := store.InsertOrUpdate(ctx, records)
//
// The team-rate file is a two-column CSV (team, opponent_k_rate) written
// atomically by WriteTeamRates and read back by ReadTeamRates.
package storage
