// Package retry provides bounded retries with exponential backoff for
// fetches against the source site.
//
// A throttled response waits 2^(n-1) seconds plus a random 10-20s before the
// next attempt; connection failures use a shorter curve. Strategies can be
// chosen per failure class:
//
//	cfg := &retry.Config{
//		MaxAttempts: 6,
//		BackoffFor:  retry.NewErrorTypeBackoff().For,
//		Logger:      log,
//	}
//	err := retry.Do(ctx, func(ctx context.Context, attempt int) error {
//		return fetchOnce(ctx, url)
//	}, cfg)
//
// Only errors whose pkg/errors type is retryable are attempted again.
// Cancelling ctx interrupts both attempts and waits.
package retry
