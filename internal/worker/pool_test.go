package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"kpredict/pkg/logger"
	"kpredict/pkg/models"
)

func job(id string) PlayerJob {
	return PlayerJob{Player: models.Player{Name: id, ID: id}, Season: 2024}
}

func collect(p *Pool) <-chan []PlayerResult {
	done := make(chan []PlayerResult, 1)
	go func() {
		var results []PlayerResult
		for r := range p.Results() {
			results = append(results, r)
		}
		done <- results
	}()
	return done
}

func TestPoolProcessesAllJobs(t *testing.T) {
	var calls int32
	proc := ProcessorFunc(func(ctx context.Context, j PlayerJob) (int, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(5 * time.Millisecond)
		return 3, nil
	})

	pool := NewPool(context.Background(), 2, proc, logger.NewNopLogger())
	pool.Start()
	done := collect(pool)

	for i := 0; i < 10; i++ {
		if err := pool.Submit(job(fmt.Sprintf("p%02d", i))); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}
	pool.Stop()

	results := <-done
	if len(results) != 10 {
		t.Fatalf("Expected 10 results, got %d", len(results))
	}
	for _, r := range results {
		if !r.Success || r.Rows != 3 {
			t.Errorf("Unexpected result %+v", r)
		}
	}
	if atomic.LoadInt32(&calls) != 10 {
		t.Errorf("Expected 10 calls, got %d", calls)
	}
}

func TestPoolIsolatesFailures(t *testing.T) {
	proc := ProcessorFunc(func(ctx context.Context, j PlayerJob) (int, error) {
		switch j.Player.ID {
		case "bad":
			return 0, errors.New("table not found")
		case "panic":
			panic("boom")
		}
		return 1, nil
	})

	pool := NewPool(context.Background(), 2, proc, logger.NewNopLogger())
	pool.Start()
	done := collect(pool)

	for _, id := range []string{"a", "bad", "b", "panic", "c"} {
		if err := pool.Submit(job(id)); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}
	pool.Stop()

	succeeded, failed := 0, 0
	for _, r := range <-done {
		if r.Success {
			succeeded++
		} else {
			failed++
			if r.Error == nil {
				t.Errorf("Failed result without error: %+v", r)
			}
		}
	}
	if succeeded != 3 || failed != 2 {
		t.Errorf("Expected 3 succeeded and 2 failed, got %d and %d", succeeded, failed)
	}
}

func TestPoolCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{}, 1)

	proc := ProcessorFunc(func(ctx context.Context, j PlayerJob) (int, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return 0, ctx.Err()
	})

	pool := NewPool(ctx, 1, proc, logger.NewNopLogger())
	pool.Start()
	done := collect(pool)

	if err := pool.Submit(job("first")); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	<-started
	cancel()

	if err := pool.Submit(job("late")); err == nil {
		t.Error("Expected Submit to fail after cancellation")
	}
	pool.Stop()

	for _, r := range <-done {
		if r.Success {
			t.Errorf("Job should not succeed after cancellation: %+v", r)
		}
	}
}

func TestPoolMinimumWidth(t *testing.T) {
	pool := NewPool(context.Background(), 0, ProcessorFunc(func(context.Context, PlayerJob) (int, error) {
		return 0, nil
	}), nil)
	if pool.Workers() != 1 {
		t.Errorf("Expected width 1, got %d", pool.Workers())
	}
}
