package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Player outcomes recorded by RecordPlayer.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeSkipped   = "skipped"
	OutcomeResumed   = "resumed"
)

// Manager owns the ingestion metrics. It satisfies fetcher.Observer.
// A nil *Manager is valid and records nothing.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         *prometheus.Registry

	fetches       *prometheus.CounterVec
	fetchDuration prometheus.Histogram
	retries       *prometheus.CounterVec
	players       *prometheus.CounterVec
	rows          prometheus.Counter
	backfilled    prometheus.Counter
	state         *prometheus.GaugeVec
	lastRun       prometheus.Gauge
}

// NewManager creates a manager on its own registry unless WithRegistry is given.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "kpredict",
		subsystem:        "ingest",
		histogramBuckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		registry:         prometheus.NewRegistry(),
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.fetches = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "fetch_attempts_total",
		Help:        "HTTP fetch attempts by response status (0 for transport failures)",
		ConstLabels: m.constLabels,
	}, []string{"status"})

	m.fetchDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "fetch_duration_seconds",
		Help:        "Duration of single fetch attempts",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	})

	m.retries = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "fetch_retries_total",
		Help:        "Fetch retries by cause (throttled or transport)",
		ConstLabels: m.constLabels,
	}, []string{"kind"})

	m.players = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "players_total",
		Help:        "Players processed by outcome",
		ConstLabels: m.constLabels,
	}, []string{"outcome"})

	m.rows = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "rows_written_total",
		Help:        "Game rows inserted or updated",
		ConstLabels: m.constLabels,
	})

	m.backfilled = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "rows_backfilled_total",
		Help:        "Rows whose opponent strikeout rate was filled in",
		ConstLabels: m.constLabels,
	})

	m.state = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "state",
		Help:        "Current coordinator state (1 for the active state)",
		ConstLabels: m.constLabels,
	}, []string{"state"})

	m.lastRun = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "last_run_duration_seconds",
		Help:        "Wall time of the last completed ingestion run",
		ConstLabels: m.constLabels,
	})
}

// ObserveFetch records one fetch attempt
func (m *Manager) ObserveFetch(status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(strconv.Itoa(status)).Inc()
	m.fetchDuration.Observe(duration.Seconds())
}

// ObserveRetry records a retry caused by kind
func (m *Manager) ObserveRetry(kind string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(kind).Inc()
}

// RecordPlayer counts a finished player and its rows
func (m *Manager) RecordPlayer(outcome string, rows int) {
	if m == nil {
		return
	}
	m.players.WithLabelValues(outcome).Inc()
	if rows > 0 {
		m.rows.Add(float64(rows))
	}
}

// RecordBackfill counts rows updated by a backfill
func (m *Manager) RecordBackfill(rows int64) {
	if m == nil || rows <= 0 {
		return
	}
	m.backfilled.Add(float64(rows))
}

// SetState marks state as the only active coordinator state
func (m *Manager) SetState(state string) {
	if m == nil {
		return
	}
	m.state.Reset()
	m.state.WithLabelValues(state).Set(1)
}

// RecordRun stores the duration of a finished run
func (m *Manager) RecordRun(d time.Duration) {
	if m == nil {
		return
	}
	m.lastRun.Set(d.Seconds())
}

// Registry returns the registry the metrics live on
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the text exposition format
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WriteTextfile writes the current values for a node-exporter textfile collector
func (m *Manager) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}

// Serve exposes /metrics and /healthz on addr in a background goroutine.
// The returned server is shut down with Shutdown.
func (m *Manager) Serve(addr string, onError func(error)) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) && onError != nil {
			onError(err)
		}
	}()

	return srv
}

// Shutdown stops a server returned by Serve
func Shutdown(srv *http.Server) error {
	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
