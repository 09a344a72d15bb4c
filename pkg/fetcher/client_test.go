package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errs "kpredict/pkg/errors"
	"kpredict/pkg/logger"
	"kpredict/pkg/retry"
)

func fastBackoff() *retry.ErrorTypeBackoff {
	fast := &retry.ConstantBackoff{Delay: time.Millisecond}
	return &retry.ErrorTypeBackoff{RateLimited: fast, Unreachable: fast, Default: fast}
}

func newTestClient(cfg Config) *Client {
	if cfg.Backoff == nil {
		cfg.Backoff = fastBackoff()
	}
	return NewClient(cfg, logger.NewNopLogger())
}

type recordingObserver struct {
	mu       sync.Mutex
	statuses []int
	retries  []string
}

func (o *recordingObserver) ObserveFetch(status int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.statuses = append(o.statuses, status)
}

func (o *recordingObserver) ObserveRetry(kind string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.retries = append(o.retries, kind)
}

func TestFetchSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>ok</html>"))
	}))
	defer server.Close()

	resp, err := newTestClient(Config{}).Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "<html>ok</html>", string(resp.Body))
}

func TestFetchRetriesThrottledThenSucceeds(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("page"))
	}))
	defer server.Close()

	obs := &recordingObserver{}
	resp, err := newTestClient(Config{Observer: obs}).Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "page", string(resp.Body))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, []string{"throttled", "throttled"}, obs.retries)
	assert.Equal(t, []int{429, 429, 200}, obs.statuses)
}

func TestFetchRateLimitedAfterMaxAttempts(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := newTestClient(Config{MaxAttempts: 6}).Fetch(context.Background(), server.URL)
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeRateLimited))
	assert.Equal(t, int32(6), atomic.LoadInt32(&calls))
}

func TestFetchHTTPStatusNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := newTestClient(Config{}).Fetch(context.Background(), server.URL)
	require.Error(t, err)

	var typed *errs.Error
	require.True(t, errors.As(err, &typed))
	assert.Equal(t, errs.ErrorTypeHTTPStatus, typed.Type)
	assert.Equal(t, http.StatusNotFound, typed.Code)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetchUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	obs := &recordingObserver{}
	_, err := newTestClient(Config{MaxAttempts: 3, Observer: obs}).Fetch(context.Background(), url)
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeUnreachable))
	assert.Len(t, obs.retries, 2)
}

func TestFetchRotatesUserAgent(t *testing.T) {
	agents := []string{"agent-a", "agent-b", "agent-c"}
	var mu sync.Mutex
	seen := map[string]bool{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen[r.Header.Get("User-Agent")] = true
		mu.Unlock()
	}))
	defer server.Close()

	client := newTestClient(Config{UserAgents: agents})
	for i := 0; i < 50; i++ {
		_, err := client.Fetch(context.Background(), server.URL)
		require.NoError(t, err)
	}

	mu.Lock()
	defer mu.Unlock()
	for ua := range seen {
		assert.Contains(t, agents, ua)
	}
	assert.Greater(t, len(seen), 1)
}

func TestFetchCancelledDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	slow := &retry.ConstantBackoff{Delay: time.Hour}
	client := newTestClient(Config{Backoff: &retry.ErrorTypeBackoff{RateLimited: slow, Default: slow}})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.Fetch(ctx, server.URL)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestEndpoints(t *testing.T) {
	e := Endpoints{}
	assert.Equal(t, "https://www.baseball-reference.com/leagues/majors/2024-advanced-batting.shtml", e.TeamBattingURL(2024))
	assert.Equal(t, "https://www.baseball-reference.com/leagues/majors/2024-standard-pitching.shtml", e.PitchingRosterURL(2024))
	assert.Equal(t, "https://www.baseball-reference.com/players/gl.fcgi?id=colege01&t=p&year=2024", e.GameLogURL("colege01", 2024))

	local := Endpoints{BaseURL: "http://127.0.0.1:8080/"}
	assert.Equal(t, "http://127.0.0.1:8080/leagues/majors/2023-standard-pitching.shtml", local.PitchingRosterURL(2023))
}
