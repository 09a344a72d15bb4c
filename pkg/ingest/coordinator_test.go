package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"kpredict/pkg/checkpoint"
	errs "kpredict/pkg/errors"
	"kpredict/pkg/fetcher"
	"kpredict/pkg/logger"
	"kpredict/pkg/metrics"
	"kpredict/pkg/models"
	"kpredict/pkg/ratelimit"
	"kpredict/pkg/retry"
	"kpredict/pkg/storage"
)

const season = 2024

const rosterPage = `<html><body><table id="players_standard_pitching"><tbody>
<tr><th>1</th><td><a href="/players/c/colege01.shtml">Gerrit Cole</a></td></tr>
<tr><th>2</th><td><a href="/players/b/burneco01.shtml">Corbin Burnes</a></td></tr>
<tr><th>3</th><td><a href="/players/g/gonemis01.shtml">Missing Log</a></td></tr>
</tbody></table></body></html>`

const teamRatesPage = `<html><body><!--
<table id="teams_advanced_batting"><tbody>
<tr><th data-stat="team_name">Boston Red Sox</th><td>1</td><td>2</td><td>3</td><td>4</td><td>5</td><td>23.0%</td></tr>
<tr><th data-stat="team_name">Tampa Bay Rays</th><td>1</td><td>2</td><td>3</td><td>4</td><td>5</td><td>25.0%</td></tr>
</tbody></table>
--></body></html>`

func gameLogPage(rows ...[3]string) string {
	var b strings.Builder
	b.WriteString(`<html><body><table id="pitching_gamelogs"><tbody>`)
	for _, r := range rows {
		cells := make([]string, 22)
		cells[2] = r[0]
		cells[5] = r[1]
		cells[10] = "6.0"
		cells[13] = "1"
		cells[14] = "2"
		cells[15] = r[2]
		cells[21] = "95"
		b.WriteString("<tr><th>1</th>")
		for _, c := range cells {
			fmt.Fprintf(&b, "<td>%s</td>", c)
		}
		b.WriteString("</tr>")
	}
	b.WriteString(`</tbody></table></body></html>`)
	return b.String()
}

// site serves the three page kinds and counts game-log requests per player
type site struct {
	mu            sync.Mutex
	gameLogHits   map[string]int
	teamRatesCode int
	rosterCode    int
	onGameLog     func(id string)
}

func (s *site) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasSuffix(r.URL.Path, "-standard-pitching.shtml"):
		if s.rosterCode != 0 {
			w.WriteHeader(s.rosterCode)
			return
		}
		w.Write([]byte(rosterPage))
	case strings.HasSuffix(r.URL.Path, "-advanced-batting.shtml"):
		if s.teamRatesCode != 0 {
			w.WriteHeader(s.teamRatesCode)
			return
		}
		w.Write([]byte(teamRatesPage))
	case r.URL.Path == "/players/gl.fcgi":
		id := r.URL.Query().Get("id")
		s.mu.Lock()
		s.gameLogHits[id]++
		s.mu.Unlock()
		if s.onGameLog != nil {
			s.onGameLog(id)
		}
		switch id {
		case "colege01":
			w.Write([]byte(gameLogPage(
				[3]string{"2024-04-01", "BOS", "8"},
				[3]string{"2024-04-07", "TBR", "6"},
			)))
		case "burneco01":
			w.Write([]byte(gameLogPage([3]string{"2024-04-02", "BOS", "5"})))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (s *site) hits(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gameLogHits[id]
}

func newSite() *site {
	return &site{gameLogHits: map[string]int{}}
}

func newStore(t *testing.T) *storage.Store {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return storage.New(db, storage.SQLite, logger.NewNopLogger())
}

func newFetcher() *fetcher.Client {
	fast := &retry.ConstantBackoff{Delay: time.Millisecond}
	return fetcher.NewClient(fetcher.Config{
		MaxAttempts: 2,
		Backoff:     &retry.ErrorTypeBackoff{RateLimited: fast, Unreachable: fast, Default: fast},
	}, logger.NewNopLogger())
}

func baseOptions(t *testing.T, url string) Options {
	return Options{
		Season:        season,
		Endpoints:     fetcher.Endpoints{BaseURL: url},
		Workers:       2,
		TeamRatesFile: filepath.Join(t.TempDir(), "team_k_rates.csv"),
		Cooldown:      &ratelimit.Cooldown{},
		Backfill:      true,
	}
}

func TestRunEndToEnd(t *testing.T) {
	s := newSite()
	server := httptest.NewServer(s)
	defer server.Close()

	store := newStore(t)
	m := metrics.NewManager()
	tl := logger.NewTestLogger()
	opts := baseOptions(t, server.URL)
	var calls, failures, lastDone, lastTotal int
	opts.Progress = func(done, total int, err error) {
		calls++
		lastDone, lastTotal = done, total
		if err != nil {
			failures++
		}
	}

	c := NewCoordinator(newFetcher(), store, opts, m, tl)
	assert.Equal(t, StateInit, c.State())

	summary, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateDone, c.State())

	assert.Equal(t, 3, summary.Players)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, []string{"gonemis01"}, summary.SkippedPlayers)
	assert.Equal(t, 3, summary.Rows)
	assert.Equal(t, 2, summary.TeamRates)
	assert.Equal(t, int64(3), summary.Backfilled)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 1, failures)
	assert.Equal(t, 3, lastDone)
	assert.Equal(t, 3, lastTotal)

	games, err := store.PlayerGames(context.Background(), "Gerrit Cole")
	require.NoError(t, err)
	require.Len(t, games, 2)
	assert.Equal(t, "TB", games[1].Opponent)
	assert.InDelta(t, 0.25, games[1].OpponentKRate.Float64, 1e-9)

	raw, err := os.ReadFile(opts.TeamRatesFile)
	require.NoError(t, err)
	assert.Equal(t, "team,opponent_k_rate\nBOS,0.23\nTB,0.25\n", string(raw))

	assert.True(t, tl.HasMessage("Player ingest failed"))
	assert.True(t, tl.HasMessage("Ingestion finished"))
}

func TestRunIsIdempotent(t *testing.T) {
	server := httptest.NewServer(newSite())
	defer server.Close()

	store := newStore(t)
	opts := baseOptions(t, server.URL)

	for i := 0; i < 2; i++ {
		_, err := NewCoordinator(newFetcher(), store, opts, nil, logger.NewNopLogger()).Run(context.Background())
		require.NoError(t, err)
	}

	total, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, total)
}

func TestRunRosterFailureAborts(t *testing.T) {
	s := newSite()
	s.rosterCode = http.StatusInternalServerError
	server := httptest.NewServer(s)
	defer server.Close()

	c := NewCoordinator(newFetcher(), newStore(t), baseOptions(t, server.URL), nil, logger.NewNopLogger())
	_, err := c.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeHTTPStatus))
	assert.Equal(t, StateFailed, c.State())
	assert.Equal(t, 0, s.hits("colege01"))
}

type brokenStore struct{}

func (brokenStore) EnsureSchema(context.Context) error {
	return errs.New(errs.ErrorTypeSchemaInit, "disk full")
}

func (brokenStore) InsertOrUpdate(context.Context, []models.PitcherGameRecord) (int, error) {
	return 0, nil
}

func (brokenStore) UpdateOpponentRate(context.Context, map[string]float64) (int64, error) {
	return 0, nil
}

func TestRunSchemaFailureAborts(t *testing.T) {
	s := newSite()
	server := httptest.NewServer(s)
	defer server.Close()

	c := NewCoordinator(newFetcher(), brokenStore{}, baseOptions(t, server.URL), nil, logger.NewNopLogger())
	_, err := c.Run(context.Background())
	assert.True(t, errs.IsType(err, errs.ErrorTypeSchemaInit))
	assert.Equal(t, StateFailed, c.State())
}

func TestRunContinuesWithoutTeamRates(t *testing.T) {
	s := newSite()
	s.teamRatesCode = http.StatusNotFound
	server := httptest.NewServer(s)
	defer server.Close()

	opts := baseOptions(t, server.URL)
	summary, err := NewCoordinator(newFetcher(), newStore(t), opts, nil, logger.NewNopLogger()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, int64(0), summary.Backfilled)

	_, err = os.Stat(opts.TeamRatesFile)
	assert.True(t, os.IsNotExist(err))
}

func TestRunResumesFromCheckpoint(t *testing.T) {
	s := newSite()
	server := httptest.NewServer(s)
	defer server.Close()

	mgr, err := checkpoint.NewManager(t.TempDir(), season, logger.NewNopLogger())
	require.NoError(t, err)
	cp, err := mgr.Create(season)
	require.NoError(t, err)
	require.NoError(t, mgr.RecordPlayer(cp, "colege01", 2))

	opts := baseOptions(t, server.URL)
	opts.Checkpoints = mgr

	summary, err := NewCoordinator(newFetcher(), newStore(t), opts, nil, logger.NewNopLogger()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Resumed)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 0, s.hits("colege01"))
	assert.Equal(t, 1, s.hits("burneco01"))
	assert.False(t, mgr.Exists())
}

func TestRunForceRestartIgnoresCheckpoint(t *testing.T) {
	s := newSite()
	server := httptest.NewServer(s)
	defer server.Close()

	mgr, err := checkpoint.NewManager(t.TempDir(), season, logger.NewNopLogger())
	require.NoError(t, err)
	cp, err := mgr.Create(season)
	require.NoError(t, err)
	require.NoError(t, mgr.RecordPlayer(cp, "colege01", 2))

	opts := baseOptions(t, server.URL)
	opts.Checkpoints = mgr
	opts.ForceRestart = true

	summary, err := NewCoordinator(newFetcher(), newStore(t), opts, nil, logger.NewNopLogger()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Resumed)
	assert.Equal(t, 1, s.hits("colege01"))
}

func TestRunCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := newSite()
	s.onGameLog = func(string) { cancel() }
	server := httptest.NewServer(s)
	defer server.Close()

	opts := baseOptions(t, server.URL)
	opts.Workers = 1
	// long enough that the second player is still cooling down when cancelled
	opts.Cooldown = &ratelimit.Cooldown{Min: 50 * time.Millisecond, Max: 50 * time.Millisecond}

	c := NewCoordinator(newFetcher(), newStore(t), opts, nil, logger.NewNopLogger())
	summary, err := c.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateFailed, c.State())
	assert.Equal(t, 0, summary.Skipped)
	assert.Equal(t, 0, s.hits("burneco01"))
}

func TestBackfillFromFile(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	require.NoError(t, store.EnsureSchema(ctx))

	_, err := store.InsertOrUpdate(ctx, []models.PitcherGameRecord{
		{Player: "J. Doe", Date: "2024-05-01", Opponent: "NYY", InningsPitched: "6.0"},
		{Player: "J. Doe", Date: "2024-05-07", Opponent: "", InningsPitched: "5.0"},
	})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "rates.csv")
	require.NoError(t, storage.WriteTeamRates(path, []models.TeamKRate{{Team: "NYY", OpponentKRate: 0.22}}))

	c := NewCoordinator(nil, store, Options{Season: season}, nil, logger.NewNopLogger())
	n, err := c.Backfill(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = c.Backfill(ctx, filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}
