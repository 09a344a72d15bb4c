package fetcher

import (
	"context"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	errs "kpredict/pkg/errors"
	"kpredict/pkg/logger"
	"kpredict/pkg/ratelimit"
	"kpredict/pkg/retry"
)

// Response is a successful page fetch
type Response struct {
	Status int
	Body   []byte
}

// Observer receives per-attempt outcomes. kind is "throttled" or "transport".
type Observer interface {
	ObserveFetch(status int, duration time.Duration)
	ObserveRetry(kind string)
}

// Config holds the fetcher settings
type Config struct {
	UserAgents  []string
	Timeout     time.Duration
	MaxAttempts int
	Backoff     *retry.ErrorTypeBackoff
	// Limiter is shared by every caller of the client; nil disables it
	Limiter  ratelimit.Limiter
	Observer Observer
	// Transport overrides the HTTP transport, mainly for tests
	Transport http.RoundTripper
}

// Client fetches pages from the source site with identity rotation, retries
// and backoff. It is safe for concurrent use.
type Client struct {
	http    *resty.Client
	cfg     Config
	logger  logger.Logger
	randMu  sync.Mutex
	rand    *rand.Rand
	headers map[string]string
}

// NewClient creates a fetcher client
func NewClient(cfg Config, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 6
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Backoff == nil {
		cfg.Backoff = retry.NewErrorTypeBackoff()
	}

	client := resty.New()
	client.SetTimeout(cfg.Timeout)
	client.SetRetryCount(0)
	if cfg.Transport != nil {
		client.SetTransport(cfg.Transport)
	}

	return &Client{
		http:   client,
		cfg:    cfg,
		logger: log.WithField("component", "fetcher"),
		rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
		headers: map[string]string{
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.9",
			"Cache-Control":   "no-cache",
		},
	}
}

// userAgent picks an identity for one attempt
func (c *Client) userAgent() string {
	if len(c.cfg.UserAgents) == 0 {
		return ""
	}
	c.randMu.Lock()
	defer c.randMu.Unlock()
	return c.cfg.UserAgents[c.rand.Intn(len(c.cfg.UserAgents))]
}

// Fetch retrieves url. A 429 or a transport failure is retried up to
// MaxAttempts times in total with backoff; the final outcome is a
// rate_limited or unreachable error. Any other non-2xx status fails at once
// with an http_status error. Cancelling ctx aborts between and during attempts.
func (c *Client) Fetch(ctx context.Context, url string) (*Response, error) {
	resp, err := retry.DoWithResult(ctx, func(ctx context.Context, attempt int) (*Response, error) {
		if c.cfg.Limiter != nil {
			if err := c.cfg.Limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		return c.attempt(ctx, url, attempt)
	}, &retry.Config{
		MaxAttempts: c.cfg.MaxAttempts,
		BackoffFor:  c.cfg.Backoff.For,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			logger.LogBackoff(c.logger, url, attempt, delay)
			if c.cfg.Observer != nil {
				kind := "transport"
				if errs.IsType(err, errs.ErrorTypeRateLimited) {
					kind = "throttled"
				}
				c.cfg.Observer.ObserveRetry(kind)
			}
		},
		Logger: c.logger,
	})
	if err == nil {
		return resp, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	switch errs.TypeOf(err) {
	case errs.ErrorTypeRateLimited:
		return nil, errs.RateLimited(url, c.cfg.MaxAttempts)
	case errs.ErrorTypeUnreachable:
		return nil, errs.Unreachable(url, err)
	}
	return nil, err
}

// attempt performs one request. Retryable outcomes are reported as typed
// errors for retry.Do to classify.
func (c *Client) attempt(ctx context.Context, url string, attempt int) (*Response, error) {
	start := time.Now()
	res, err := c.http.R().
		SetContext(ctx).
		SetHeaders(c.headers).
		SetHeader("User-Agent", c.userAgent()).
		Get(url)
	duration := time.Since(start)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.WarnWithFields("request failed", map[string]interface{}{
			"url":     url,
			"attempt": attempt,
			"error":   err.Error(),
		})
		if c.cfg.Observer != nil {
			c.cfg.Observer.ObserveFetch(0, duration)
		}
		return nil, errs.Wrap(errs.ErrorTypeUnreachable, url, err)
	}

	status := res.StatusCode()
	logger.LogFetch(c.logger, url, attempt, status, duration)
	if c.cfg.Observer != nil {
		c.cfg.Observer.ObserveFetch(status, duration)
	}

	switch {
	case status >= 200 && status < 300:
		return &Response{Status: status, Body: res.Body()}, nil
	case status == http.StatusTooManyRequests:
		return nil, &errs.Error{
			Type:    errs.ErrorTypeRateLimited,
			Message: url,
			Code:    status,
		}
	default:
		return nil, errs.HTTPStatus(url, status)
	}
}
