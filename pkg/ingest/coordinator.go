package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"kpredict/internal/worker"
	"kpredict/pkg/checkpoint"
	"kpredict/pkg/fetcher"
	"kpredict/pkg/logger"
	"kpredict/pkg/metrics"
	"kpredict/pkg/models"
	"kpredict/pkg/parser"
	"kpredict/pkg/ratelimit"
	"kpredict/pkg/storage"
)

// State is a coordinator run phase
type State string

const (
	StateInit              State = "INIT"
	StateFetchingRoster    State = "FETCHING_ROSTER"
	StateFetchingTeamRates State = "FETCHING_TEAM_RATES"
	StateFetchingPlayers   State = "FETCHING_PLAYERS"
	StateDone              State = "DONE"
	StateFailed            State = "FAILED"
)

// Fetcher retrieves one page
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetcher.Response, error)
}

// Store is the persistence the coordinator writes to
type Store interface {
	EnsureSchema(ctx context.Context) error
	InsertOrUpdate(ctx context.Context, records []models.PitcherGameRecord) (int, error)
	UpdateOpponentRate(ctx context.Context, rates map[string]float64) (int64, error)
}

// Options controls one ingestion run
type Options struct {
	Season    int
	Endpoints fetcher.Endpoints
	Workers   int
	// TeamRatesFile receives the scraped team rates; empty skips the file
	TeamRatesFile string
	Cooldown      *ratelimit.Cooldown
	// Checkpoints enables resume; nil ingests every player
	Checkpoints  *checkpoint.Manager
	ForceRestart bool
	// Backfill fills opponent_k_rate from the freshly scraped rates
	Backfill bool
	// Limit caps the number of roster players; 0 means all
	Limit int
	// Progress is called from a single goroutine after each player
	Progress ProgressFunc
}

// ProgressFunc observes player completion. total counts resumed players.
type ProgressFunc func(done, total int, err error)

// Summary reports the outcome of a run
type Summary struct {
	Season         int
	Players        int
	Succeeded      int
	Skipped        int
	Resumed        int
	Rows           int
	TeamRates      int
	Backfilled     int64
	SkippedPlayers []string
	Duration       time.Duration
}

// Coordinator drives roster, team-rate and per-player ingestion
type Coordinator struct {
	fetcher Fetcher
	parser  *parser.Parser
	store   Store
	metrics *metrics.Manager
	opts    Options
	logger  logger.Logger

	mu    sync.RWMutex
	state State
}

// NewCoordinator creates a coordinator. m may be nil.
func NewCoordinator(f Fetcher, store Store, opts Options, m *metrics.Manager, log logger.Logger) *Coordinator {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.Workers < 1 {
		opts.Workers = 2
	}
	log = log.WithFields(map[string]interface{}{
		"component": "ingest",
		"season":    opts.Season,
	})

	c := &Coordinator{
		fetcher: f,
		parser:  parser.New(log),
		store:   store,
		metrics: m,
		opts:    opts,
		logger:  log,
		state:   StateInit,
	}
	m.SetState(string(StateInit))
	return c
}

// State returns the current phase
func (c *Coordinator) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Coordinator) transition(to State) {
	c.mu.Lock()
	from := c.state
	c.state = to
	c.mu.Unlock()

	logger.LogStateTransition(c.logger, string(from), string(to))
	c.metrics.SetState(string(to))
}

func (c *Coordinator) fail(err error) error {
	c.transition(StateFailed)
	c.logger.WithError(err).Error("Ingestion failed")
	return err
}

// Run performs one full ingestion. Setup failures (schema, roster) abort
// the run; team-rate and per-player failures only degrade it. A cancelled
// ctx stops new players and returns ctx.Err() with the partial summary.
func (c *Coordinator) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	summary := &Summary{Season: c.opts.Season}

	if err := c.store.EnsureSchema(ctx); err != nil {
		return summary, c.fail(err)
	}

	c.transition(StateFetchingRoster)
	players, err := c.fetchRoster(ctx)
	if err != nil {
		return summary, c.fail(err)
	}
	if c.opts.Limit > 0 && len(players) > c.opts.Limit {
		players = players[:c.opts.Limit]
	}
	summary.Players = len(players)

	c.transition(StateFetchingTeamRates)
	rates, err := c.fetchTeamRates(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return summary, c.fail(ctx.Err())
		}
		c.logger.WithError(err).Warn("Team rates unavailable, continuing without backfill")
	}
	summary.TeamRates = len(rates)

	c.transition(StateFetchingPlayers)
	if err := c.ingestPlayers(ctx, players, summary); err != nil {
		summary.Duration = time.Since(start)
		return summary, c.fail(err)
	}

	if c.opts.Backfill && len(rates) > 0 {
		n, err := c.store.UpdateOpponentRate(ctx, rateMap(rates))
		if err != nil {
			c.logger.WithError(err).Warn("Opponent rate backfill failed")
		} else {
			summary.Backfilled = n
			c.metrics.RecordBackfill(n)
		}
	}

	// a finished run leaves nothing to resume
	if mgr := c.opts.Checkpoints; mgr != nil {
		if err := mgr.Delete(); err != nil {
			c.logger.WithError(err).Warn("Failed to delete checkpoint")
		}
	}

	summary.Duration = time.Since(start)
	c.metrics.RecordRun(summary.Duration)
	c.transition(StateDone)

	c.logger.InfoWithFields("Ingestion finished", map[string]interface{}{
		"players":    summary.Players,
		"succeeded":  summary.Succeeded,
		"skipped":    summary.Skipped,
		"resumed":    summary.Resumed,
		"rows":       summary.Rows,
		"backfilled": summary.Backfilled,
		"duration":   summary.Duration,
	})
	return summary, nil
}

func (c *Coordinator) fetchRoster(ctx context.Context) ([]models.Player, error) {
	resp, err := c.fetcher.Fetch(ctx, c.opts.Endpoints.PitchingRosterURL(c.opts.Season))
	if err != nil {
		return nil, fmt.Errorf("fetch roster: %w", err)
	}
	players, err := c.parser.ParseRoster(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("parse roster: %w", err)
	}
	c.logger.WithField("players", len(players)).Info("Roster loaded")
	return players, nil
}

func (c *Coordinator) fetchTeamRates(ctx context.Context) ([]models.TeamKRate, error) {
	resp, err := c.fetcher.Fetch(ctx, c.opts.Endpoints.TeamBattingURL(c.opts.Season))
	if err != nil {
		return nil, fmt.Errorf("fetch team rates: %w", err)
	}
	rates, err := c.parser.ParseTeamRates(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("parse team rates: %w", err)
	}

	if c.opts.TeamRatesFile != "" {
		if err := storage.WriteTeamRates(c.opts.TeamRatesFile, rates); err != nil {
			c.logger.WithError(err).Warn("Failed to write team rates file")
		} else {
			c.logger.InfoWithFields("Team rates saved", map[string]interface{}{
				"teams": len(rates),
				"path":  c.opts.TeamRatesFile,
			})
		}
	}
	return rates, nil
}

// ingestPlayers fans players out over the worker pool. It only returns an
// error when ctx is cancelled or the checkpoint cannot be opened.
func (c *Coordinator) ingestPlayers(ctx context.Context, players []models.Player, summary *Summary) error {
	var cp *checkpoint.Checkpoint
	if mgr := c.opts.Checkpoints; mgr != nil {
		if c.opts.ForceRestart {
			if err := mgr.Delete(); err != nil {
				c.logger.WithError(err).Warn("Failed to delete existing checkpoint")
			}
		}
		var err error
		cp, err = mgr.LoadOrCreate(c.opts.Season)
		if err != nil {
			return fmt.Errorf("open checkpoint: %w", err)
		}
	}

	pending := make([]models.Player, 0, len(players))
	for _, p := range players {
		if cp != nil && cp.IsCompleted(p.ID) {
			summary.Resumed++
			c.metrics.RecordPlayer(metrics.OutcomeResumed, 0)
			continue
		}
		pending = append(pending, p)
	}
	if summary.Resumed > 0 {
		c.logger.InfoWithFields("Resuming from checkpoint", map[string]interface{}{
			"resumed": summary.Resumed,
			"pending": len(pending),
		})
	}

	pool := worker.NewPool(ctx, c.opts.Workers, worker.ProcessorFunc(c.processPlayer), c.logger)
	pool.Start()

	resumed := summary.Resumed
	done := make(chan struct{})
	go func() {
		defer close(done)
		finished := 0
		for result := range pool.Results() {
			finished++
			c.record(ctx, cp, result, summary)
			if c.opts.Progress != nil {
				c.opts.Progress(resumed+finished, len(players), result.Error)
			}
			if finished%10 == 0 {
				logger.LogProgress(c.logger, resumed+finished, len(players))
			}
		}
	}()

	for _, p := range pending {
		if err := pool.Submit(worker.PlayerJob{Player: p, Season: c.opts.Season}); err != nil {
			break
		}
	}

	pool.Stop()
	<-done

	if err := ctx.Err(); err != nil {
		c.logger.WithField("succeeded", summary.Succeeded).Warn("Ingestion cancelled")
		return err
	}
	return nil
}

// record folds one worker result into the summary. Only the results
// goroutine calls it.
func (c *Coordinator) record(ctx context.Context, cp *checkpoint.Checkpoint, result worker.PlayerResult, summary *Summary) {
	p := result.Job.Player

	if result.Error != nil {
		// unfinished because of shutdown, not a skip
		if ctx.Err() != nil && (errors.Is(result.Error, context.Canceled) || errors.Is(result.Error, context.DeadlineExceeded)) {
			return
		}
		summary.Skipped++
		summary.SkippedPlayers = append(summary.SkippedPlayers, p.ID)
		c.metrics.RecordPlayer(metrics.OutcomeSkipped, 0)
		logger.LogPlayerIngest(c.logger, p.ID, p.Name, result.Rows, result.Error)
		return
	}

	summary.Succeeded++
	summary.Rows += result.Rows
	c.metrics.RecordPlayer(metrics.OutcomeSucceeded, result.Rows)
	logger.LogPlayerIngest(c.logger, p.ID, p.Name, result.Rows, nil)

	if cp != nil {
		if err := c.opts.Checkpoints.RecordPlayer(cp, p.ID, result.Rows); err != nil {
			c.logger.WithError(err).WithField("player_id", p.ID).Warn("Failed to update checkpoint")
		}
	}
}

// processPlayer is one worker job: cooldown, fetch, parse, persist
func (c *Coordinator) processPlayer(ctx context.Context, job worker.PlayerJob) (int, error) {
	if err := c.opts.Cooldown.Wait(ctx); err != nil {
		return 0, err
	}

	resp, err := c.fetcher.Fetch(ctx, c.opts.Endpoints.GameLogURL(job.Player.ID, job.Season))
	if err != nil {
		return 0, fmt.Errorf("fetch game log: %w", err)
	}

	records, err := c.parser.ParseGameLog(bytes.NewReader(resp.Body), job.Player.Name)
	if err != nil {
		return 0, fmt.Errorf("parse game log: %w", err)
	}
	if len(records) == 0 {
		return 0, nil
	}

	n, err := c.store.InsertOrUpdate(ctx, records)
	if err != nil {
		return 0, fmt.Errorf("persist game log: %w", err)
	}
	return n, nil
}

// Backfill applies the team rates stored in csvPath to every persisted game
func (c *Coordinator) Backfill(ctx context.Context, csvPath string) (int64, error) {
	rates, err := storage.ReadTeamRates(csvPath)
	if err != nil {
		return 0, err
	}
	if len(rates) == 0 {
		return 0, fmt.Errorf("no team rates in %s", csvPath)
	}

	n, err := c.store.UpdateOpponentRate(ctx, rates)
	if err != nil {
		return 0, err
	}
	c.metrics.RecordBackfill(n)
	return n, nil
}

func rateMap(rates []models.TeamKRate) map[string]float64 {
	m := make(map[string]float64, len(rates))
	for _, r := range rates {
		m[r.Team] = r.OpponentKRate
	}
	return m
}
