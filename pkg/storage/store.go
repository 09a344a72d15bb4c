package storage

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	errs "kpredict/pkg/errors"
	"kpredict/pkg/logger"
	"kpredict/pkg/models"
	"kpredict/pkg/normalize"
	_ "modernc.org/sqlite"
)

// Dialect selects the SQL engine behind a Store
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// Options configures Open
type Options struct {
	Driver          string
	DSN             string
	Password        string
	MaxOpenConns    int
	BusyTimeout     time.Duration
	ConnMaxLifetime time.Duration
}

// Store persists pitcher game records. All statements are parameterized and
// safe for concurrent use by several workers.
type Store struct {
	db      *sql.DB
	dialect Dialect
	logger  logger.Logger
}

// New wraps an open database
func New(db *sql.DB, dialect Dialect, log logger.Logger) *Store {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Store{db: db, dialect: dialect, logger: log.WithField("component", "storage")}
}

// Open connects to the configured database and verifies the connection
func Open(ctx context.Context, opts Options, log logger.Logger) (*Store, error) {
	dialect := Dialect(strings.ToLower(opts.Driver))

	var dsn string
	switch dialect {
	case SQLite:
		dsn = sqliteDSN(opts.DSN, opts.BusyTimeout)
	case Postgres:
		dsn = WithPassword(opts.DSN, opts.Password)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}

	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return New(db, dialect, log), nil
}

// sqliteDSN turns a file path into a DSN with WAL and a busy timeout so
// concurrent writers wait instead of failing
func sqliteDSN(path string, busy time.Duration) string {
	if path == ":memory:" || strings.Contains(path, "?") {
		return path
	}
	if busy <= 0 {
		busy = 5 * time.Second
	}
	params := url.Values{}
	params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busy.Milliseconds()))
	params.Add("_pragma", "journal_mode(WAL)")
	return "file:" + strings.TrimPrefix(path, "file:") + "?" + params.Encode()
}

// WithPassword injects password into a postgres DSN that has none
func WithPassword(dsn, password string) string {
	if password == "" {
		return dsn
	}
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil || u.User == nil {
			return dsn
		}
		if _, set := u.User.Password(); set {
			return dsn
		}
		u.User = url.UserPassword(u.User.Username(), password)
		return u.String()
	}
	if strings.Contains(dsn, "password=") {
		return dsn
	}
	return strings.TrimSpace(dsn + " password='" + strings.ReplaceAll(password, "'", `\'`) + "'")
}

// DB exposes the underlying handle
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the engine in use
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders for the dialect
func (s *Store) rebind(query string) string {
	if s.dialect != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) schema() string {
	rateType := "REAL"
	if s.dialect == Postgres {
		rateType = "DOUBLE PRECISION"
	}
	return `CREATE TABLE IF NOT EXISTS pitcher_stats (
	player TEXT NOT NULL,
	dat TEXT NOT NULL,
	home_away INTEGER,
	opponent TEXT,
	innings_pitched TEXT,
	earned_runs TEXT,
	strikeouts TEXT,
	walks TEXT,
	pitch_count TEXT,
	opponent_k_rate ` + rateType + `,
	UNIQUE (player, dat)
)`
}

// EnsureSchema creates the table if it does not exist. It is idempotent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.schema()); err != nil {
		return errs.Wrap(errs.ErrorTypeSchemaInit, "create pitcher_stats", err)
	}
	s.logger.DebugWithFields("schema ready", map[string]interface{}{
		"dialect": string(s.dialect),
	})
	return nil
}

const upsertQuery = `INSERT INTO pitcher_stats
	(player, dat, home_away, opponent, innings_pitched, earned_runs, strikeouts, walks, pitch_count)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (player, dat) DO UPDATE SET
	home_away = excluded.home_away,
	opponent = excluded.opponent,
	innings_pitched = excluded.innings_pitched,
	earned_runs = excluded.earned_runs,
	strikeouts = excluded.strikeouts,
	walks = excluded.walks,
	pitch_count = excluded.pitch_count`

func countText(v sql.NullInt64) sql.NullString {
	if !v.Valid {
		return sql.NullString{}
	}
	return sql.NullString{String: strconv.FormatInt(v.Int64, 10), Valid: true}
}

func nullText(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

// InsertOrUpdate writes records in one transaction. A record whose
// (player, dat) already exists updates that row in place; opponent_k_rate is
// left as it was. Returns the number of records written.
func (s *Store) InsertOrUpdate(ctx context.Context, records []models.PitcherGameRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errs.Wrap(errs.ErrorTypeWriteFailed, "begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.rebind(upsertQuery))
	if err != nil {
		return 0, errs.Wrap(errs.ErrorTypeWriteFailed, "prepare upsert", err)
	}
	defer stmt.Close()

	for _, r := range records {
		_, err := stmt.ExecContext(ctx,
			r.Player,
			r.Date,
			int(r.HomeAway),
			nullText(r.Opponent),
			nullText(r.InningsPitched),
			countText(r.EarnedRuns),
			countText(r.Strikeouts),
			countText(r.Walks),
			countText(r.PitchCount),
		)
		if err != nil {
			return 0, errs.Wrap(errs.ErrorTypeWriteFailed, fmt.Sprintf("upsert %s %s", r.Player, r.Date), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, errs.Wrap(errs.ErrorTypeWriteFailed, "commit", err)
	}
	return len(records), nil
}

// UpdateOpponentRate sets opponent_k_rate on every row whose canonical
// opponent appears in rates. Rows with an empty or unknown opponent are left
// untouched. Returns the number of rows updated.
func (s *Store) UpdateOpponentRate(ctx context.Context, rates map[string]float64) (int64, error) {
	type key struct{ player, dat, opponent string }

	rows, err := s.db.QueryContext(ctx,
		`SELECT player, dat, opponent FROM pitcher_stats WHERE opponent IS NOT NULL AND opponent <> ''`)
	if err != nil {
		return 0, errs.Wrap(errs.ErrorTypeWriteFailed, "select opponents", err)
	}
	var keys []key
	for rows.Next() {
		var k key
		if err := rows.Scan(&k.player, &k.dat, &k.opponent); err != nil {
			rows.Close()
			return 0, errs.Wrap(errs.ErrorTypeWriteFailed, "scan opponent", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, errs.Wrap(errs.ErrorTypeWriteFailed, "iterate opponents", err)
	}
	rows.Close()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errs.Wrap(errs.ErrorTypeWriteFailed, "begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.rebind(
		`UPDATE pitcher_stats SET opponent_k_rate = ? WHERE player = ? AND dat = ?`))
	if err != nil {
		return 0, errs.Wrap(errs.ErrorTypeWriteFailed, "prepare update", err)
	}
	defer stmt.Close()

	var updated int64
	unmatched := 0
	for _, k := range keys {
		team, ok := normalize.CanonicalizeTeam(k.opponent)
		if !ok {
			unmatched++
			continue
		}
		rate, ok := rates[team]
		if !ok {
			unmatched++
			continue
		}
		res, err := stmt.ExecContext(ctx, rate, k.player, k.dat)
		if err != nil {
			return 0, errs.Wrap(errs.ErrorTypeWriteFailed, fmt.Sprintf("update %s %s", k.player, k.dat), err)
		}
		n, _ := res.RowsAffected()
		updated += n
	}

	if err := tx.Commit(); err != nil {
		return 0, errs.Wrap(errs.ErrorTypeWriteFailed, "commit", err)
	}

	s.logger.InfoWithFields("opponent rates backfilled", map[string]interface{}{
		"updated":   updated,
		"unmatched": unmatched,
	})
	return updated, nil
}
