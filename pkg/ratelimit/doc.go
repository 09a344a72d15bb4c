// Package ratelimit keeps the scraper polite toward the source site.
//
// TokenBucket caps requests per period across all workers. Cooldown is the
// random pause taken before each player's game-log fetch:
//
//	bucket := ratelimit.PerMinute(cfg.Fetch.RequestsPerMinute)
//	cooldown := &ratelimit.Cooldown{Min: 15 * time.Second, Max: 30 * time.Second}
//
//	if err := cooldown.Wait(ctx); err != nil {
//		return err
//	}
//	if err := bucket.Wait(ctx); err != nil {
//		return err
//	}
package ratelimit
