package metrics

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options", func() {
			manager := NewManager()

			Convey("Then it should use its own registry", func() {
				So(manager, ShouldNotBeNil)
				So(manager.Registry(), ShouldNotBeNil)
				So(manager.Registry(), ShouldNotEqual, prometheus.DefaultRegisterer)
			})
		})

		Convey("When creating two managers with default options", func() {
			Convey("Then registration should not collide", func() {
				So(func() {
					NewManager()
					NewManager()
				}, ShouldNotPanic)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("scrape"),
				WithHistogramBuckets([]float64{0.5, 1}),
				WithConstLabels(prometheus.Labels{"season": "2024"}),
				WithRegistry(registry),
			)
			manager.RecordPlayer(OutcomeSucceeded, 1)

			Convey("Then metric names should carry them", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)

				names := map[string]bool{}
				for _, f := range families {
					names[f.GetName()] = true
				}
				So(names["test_scrape_players_total"], ShouldBeTrue)
			})
		})
	})
}

func TestRecording(t *testing.T) {
	Convey("Given a metrics manager", t, func() {
		m := NewManager()

		Convey("When fetches and retries are observed", func() {
			m.ObserveFetch(200, 150*time.Millisecond)
			m.ObserveFetch(429, 10*time.Millisecond)
			m.ObserveFetch(429, 10*time.Millisecond)
			m.ObserveRetry("throttled")
			m.ObserveRetry("throttled")
			m.ObserveRetry("transport")

			Convey("Then counters should be labelled by status and kind", func() {
				So(testutil.ToFloat64(m.fetches.WithLabelValues("200")), ShouldEqual, 1)
				So(testutil.ToFloat64(m.fetches.WithLabelValues("429")), ShouldEqual, 2)
				So(testutil.ToFloat64(m.retries.WithLabelValues("throttled")), ShouldEqual, 2)
				So(testutil.ToFloat64(m.retries.WithLabelValues("transport")), ShouldEqual, 1)
			})
		})

		Convey("When players are recorded", func() {
			m.RecordPlayer(OutcomeSucceeded, 30)
			m.RecordPlayer(OutcomeSucceeded, 12)
			m.RecordPlayer(OutcomeSkipped, 0)
			m.RecordBackfill(25)

			Convey("Then rows should be summed", func() {
				So(testutil.ToFloat64(m.players.WithLabelValues(OutcomeSucceeded)), ShouldEqual, 2)
				So(testutil.ToFloat64(m.players.WithLabelValues(OutcomeSkipped)), ShouldEqual, 1)
				So(testutil.ToFloat64(m.rows), ShouldEqual, 42)
				So(testutil.ToFloat64(m.backfilled), ShouldEqual, 25)
			})
		})

		Convey("When the state changes", func() {
			m.SetState("FETCHING_ROSTER")
			m.SetState("FETCHING_PLAYERS")

			Convey("Then only the latest state should be active", func() {
				So(testutil.CollectAndCount(m.state), ShouldEqual, 1)
				So(testutil.ToFloat64(m.state.WithLabelValues("FETCHING_PLAYERS")), ShouldEqual, 1)
			})
		})
	})
}

func TestNilManager(t *testing.T) {
	Convey("Given a nil manager", t, func() {
		var m *Manager

		Convey("Then recording should be a no-op", func() {
			So(func() {
				m.ObserveFetch(200, time.Second)
				m.ObserveRetry("throttled")
				m.RecordPlayer(OutcomeSucceeded, 3)
				m.RecordBackfill(3)
				m.SetState("DONE")
				m.RecordRun(time.Second)
			}, ShouldNotPanic)
		})
	})
}

func TestExport(t *testing.T) {
	Convey("Given recorded metrics", t, func() {
		m := NewManager()
		m.RecordPlayer(OutcomeSucceeded, 7)

		Convey("When scraping the handler", func() {
			rec := httptest.NewRecorder()
			m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

			Convey("Then the exposition should contain the counters", func() {
				So(rec.Code, ShouldEqual, 200)
				So(rec.Body.String(), ShouldContainSubstring, `kpredict_ingest_players_total{outcome="succeeded"} 1`)
				So(rec.Body.String(), ShouldContainSubstring, "kpredict_ingest_rows_written_total 7")
			})
		})

		Convey("When writing a textfile", func() {
			path := filepath.Join(t.TempDir(), "kpredict.prom")
			err := m.WriteTextfile(path)

			Convey("Then the file should hold the exposition", func() {
				So(err, ShouldBeNil)
				raw, readErr := os.ReadFile(path)
				So(readErr, ShouldBeNil)
				So(strings.Contains(string(raw), "kpredict_ingest_rows_written_total 7"), ShouldBeTrue)
			})
		})
	})
}
