package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	errs "kpredict/pkg/errors"
)

// BackoffStrategy computes the wait before the next attempt. attempt is the
// 1-based number of the attempt that just failed.
type BackoffStrategy interface {
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff waits BaseDelay·Multiplier^(attempt-1), capped at
// MaxDelay, plus an additive jitter drawn uniformly from [MinJitter, MaxJitter).
type ExponentialBackoff struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	MinJitter  time.Duration
	MaxJitter  time.Duration

	// Float64 overrides the jitter source; nil uses math/rand
	Float64 func() float64
}

// ThrottleBackoff is the wait used after a 429: 2^(n-1) seconds plus 10-20s
func ThrottleBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:  1 * time.Second,
		MaxDelay:   5 * time.Minute,
		Multiplier: 2.0,
		MinJitter:  10 * time.Second,
		MaxJitter:  20 * time.Second,
	}
}

// TransportBackoff is the wait used after a connection failure
func TransportBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
		Multiplier: 2.0,
		MaxJitter:  1 * time.Second,
	}
}

// NextDelay calculates the delay for the given attempt
func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	mult := eb.Multiplier
	if mult < 1 {
		mult = 1
	}
	delay := float64(eb.BaseDelay) * math.Pow(mult, float64(attempt-1))
	if eb.MaxDelay > 0 && delay > float64(eb.MaxDelay) {
		delay = float64(eb.MaxDelay)
	}

	if eb.MaxJitter > eb.MinJitter {
		rnd := rand.Float64
		if eb.Float64 != nil {
			rnd = eb.Float64
		}
		delay += float64(eb.MinJitter) + rnd()*float64(eb.MaxJitter-eb.MinJitter)
	} else {
		delay += float64(eb.MinJitter)
	}

	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// ConstantBackoff implements constant delay backoff
type ConstantBackoff struct {
	Delay time.Duration
}

func (cb *ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return cb.Delay
}

// Wait waits for the specified duration or until context is cancelled
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ErrorTypeBackoff picks a strategy from the failure class of the error
type ErrorTypeBackoff struct {
	RateLimited BackoffStrategy
	Unreachable BackoffStrategy
	Default     BackoffStrategy
}

// NewErrorTypeBackoff returns the fetcher's default per-class strategies
func NewErrorTypeBackoff() *ErrorTypeBackoff {
	return &ErrorTypeBackoff{
		RateLimited: ThrottleBackoff(),
		Unreachable: TransportBackoff(),
		Default:     TransportBackoff(),
	}
}

// For returns the strategy for err
func (etb *ErrorTypeBackoff) For(err error) BackoffStrategy {
	switch errs.TypeOf(err) {
	case errs.ErrorTypeRateLimited:
		if etb.RateLimited != nil {
			return etb.RateLimited
		}
	case errs.ErrorTypeUnreachable:
		if etb.Unreachable != nil {
			return etb.Unreachable
		}
	}
	return etb.Default
}
