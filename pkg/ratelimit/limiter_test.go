package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTokenBucket(t *testing.T) {
	tb := NewTokenBucket(5, 200*time.Millisecond)

	for i := 0; i < 5; i++ {
		if !tb.Allow() {
			t.Errorf("Expected token %d to be available", i+1)
		}
	}

	if tb.Allow() {
		t.Error("Expected no more tokens to be available")
	}

	time.Sleep(250 * time.Millisecond)
	if !tb.Allow() {
		t.Error("Expected tokens to be refilled after waiting")
	}

	tb.tokens = 0
	tb.Reset()
	if tb.tokens != tb.capacity {
		t.Error("Expected tokens to be reset to capacity")
	}
}

func TestTokenBucketWaitBlocksUntilRefill(t *testing.T) {
	tb := NewTokenBucket(1, 100*time.Millisecond)
	if !tb.Allow() {
		t.Fatal("Expected first token")
	}

	start := time.Now()
	if err := tb.Wait(context.Background()); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("Expected Wait to block for the refill, took %v", elapsed)
	}
}

func TestTokenBucketWaitCancelled(t *testing.T) {
	tb := PerMinute(1)
	tb.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := tb.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestCooldownRange(t *testing.T) {
	c := DefaultCooldown()
	for i := 0; i < 100; i++ {
		d := c.Next()
		if d < 15*time.Second || d >= 30*time.Second {
			t.Fatalf("cooldown %v outside [15s, 30s)", d)
		}
	}

	fixed := &Cooldown{Min: time.Second, Max: 3 * time.Second, Float64: func() float64 { return 0.5 }}
	if d := fixed.Next(); d != 2*time.Second {
		t.Errorf("Expected 2s, got %v", d)
	}

	if d := (&Cooldown{}).Next(); d != 0 {
		t.Errorf("Expected zero cooldown, got %v", d)
	}
}

func TestCooldownWaitCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := DefaultCooldown().Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
