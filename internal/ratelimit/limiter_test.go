package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewSpacingThrottlerValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewSpacingThrottler(0, 30*time.Second); err == nil {
		t.Fatal("expected error for zero min delay")
	}
	if _, err := NewSpacingThrottler(30*time.Second, 20*time.Second); err == nil {
		t.Fatal("expected error for max below min")
	}
	if _, err := NewSpacingThrottler(20*time.Second, 20*time.Second); err != nil {
		t.Fatalf("fixed delay should be accepted, got %v", err)
	}
}

func TestSpacingThrottlerFirstCallIsImmediate(t *testing.T) {
	t.Parallel()

	slept := false
	throttler, err := newSpacingThrottler(
		20*time.Second, 30*time.Second,
		func() time.Time { return time.Unix(1_700_000_000, 0) },
		func(ctx context.Context, d time.Duration) error {
			slept = true
			return nil
		},
		func(n int64) int64 { return 0 },
	)
	if err != nil {
		t.Fatalf("newSpacingThrottler() error = %v", err)
	}

	if err := throttler.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if slept {
		t.Fatal("first Wait() must not sleep")
	}
}

func TestSpacingThrottlerEnforcesDrawnDelay(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)
	var sleeps []time.Duration
	// Jitter draw of 5s on top of the 20s floor.
	throttler, err := newSpacingThrottler(
		20*time.Second, 30*time.Second,
		func() time.Time { return now },
		func(ctx context.Context, d time.Duration) error {
			sleeps = append(sleeps, d)
			now = now.Add(d)
			return nil
		},
		func(n int64) int64 { return int64(5 * time.Second) },
	)
	if err != nil {
		t.Fatalf("newSpacingThrottler() error = %v", err)
	}

	if err := throttler.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	// Second call 3s later: 25s drawn delay minus 3s elapsed = 22s sleep.
	now = now.Add(3 * time.Second)
	if err := throttler.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if len(sleeps) != 1 || sleeps[0] != 22*time.Second {
		t.Fatalf("sleeps = %v, want [22s]", sleeps)
	}

	// Third call after more than the delay has already passed: no sleep.
	now = now.Add(40 * time.Second)
	if err := throttler.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if len(sleeps) != 1 {
		t.Fatalf("sleeps = %v, want no additional sleep", sleeps)
	}
}

func TestSpacingThrottlerDelayStaysInRange(t *testing.T) {
	t.Parallel()

	throttler, err := NewSpacingThrottler(20*time.Second, 30*time.Second)
	if err != nil {
		t.Fatalf("NewSpacingThrottler() error = %v", err)
	}

	for i := 0; i < 1000; i++ {
		delay := throttler.drawDelay()
		if delay < 20*time.Second || delay > 30*time.Second {
			t.Fatalf("drawDelay() = %s, out of [20s, 30s]", delay)
		}
	}
}

func TestSpacingThrottlerPropagatesContextCancellation(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)
	throttler, err := newSpacingThrottler(
		20*time.Second, 20*time.Second,
		func() time.Time { return now },
		nil, // real sleep, interrupted by the canceled context
		func(n int64) int64 { return 0 },
	)
	if err != nil {
		t.Fatalf("newSpacingThrottler() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := throttler.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	cancel()
	if err := throttler.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Wait() error = %v, want context.Canceled", err)
	}
}
