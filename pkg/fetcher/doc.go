// Package fetcher retrieves pages from baseball-reference.
//
// Each attempt rotates the User-Agent. Throttled (429) responses and
// connection failures are retried with exponential backoff and jitter;
// every other non-2xx status is returned at once:
//
//	client := fetcher.NewClient(fetcher.Config{
//		UserAgents:  cfg.Fetch.UserAgents,
//		MaxAttempts: 6,
//		Limiter:     ratelimit.PerMinute(20),
//	}, log)
//	resp, err := client.Fetch(ctx, fetcher.Endpoints{}.PitchingRosterURL(2024))
package fetcher
