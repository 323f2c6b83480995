package ratelimit

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// Throttler enforces minimum spacing between consecutive sends inside one
// batch run. The first call returns immediately.
type Throttler interface {
	Wait(ctx context.Context) error
}

// Factory returns a fresh Throttler. Spacing state resets with every batch
// run, so the batch processor asks for a new one per invocation.
type Factory func() Throttler

// NopThrottler imposes no spacing.
type NopThrottler struct{}

func (NopThrottler) Wait(ctx context.Context) error { return nil }

// SpacingThrottler blocks until a delay drawn uniformly from
// [minDelay, maxDelay] has elapsed since the previous Wait returned. The
// jitter avoids a detectable fixed send interval. Not safe for concurrent
// use; a batch run drives it from a single goroutine.
type SpacingThrottler struct {
	minDelay time.Duration
	maxDelay time.Duration
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
	randI64n func(n int64) int64
	last     time.Time
}

func NewSpacingThrottler(minDelay, maxDelay time.Duration) (*SpacingThrottler, error) {
	return newSpacingThrottler(minDelay, maxDelay, time.Now, sleepWithContext, rand.Int63n)
}

func newSpacingThrottler(
	minDelay, maxDelay time.Duration,
	nowFn func() time.Time,
	sleepFn func(ctx context.Context, d time.Duration) error,
	randFn func(n int64) int64,
) (*SpacingThrottler, error) {
	if minDelay <= 0 {
		return nil, fmt.Errorf("min delay must be positive, got %s", minDelay)
	}
	if maxDelay < minDelay {
		return nil, fmt.Errorf("max delay %s is below min delay %s", maxDelay, minDelay)
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	if sleepFn == nil {
		sleepFn = sleepWithContext
	}
	if randFn == nil {
		randFn = rand.Int63n
	}

	return &SpacingThrottler{
		minDelay: minDelay,
		maxDelay: maxDelay,
		now:      nowFn,
		sleep:    sleepFn,
		randI64n: randFn,
	}, nil
}

// Wait blocks until the per-call delay has elapsed since the previous call
// returned, or until the context is canceled.
func (t *SpacingThrottler) Wait(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if t.last.IsZero() {
		t.last = t.now()
		return nil
	}

	delay := t.drawDelay()
	if remaining := delay - t.now().Sub(t.last); remaining > 0 {
		if err := t.sleep(ctx, remaining); err != nil {
			return err
		}
	}

	t.last = t.now()
	return nil
}

func (t *SpacingThrottler) drawDelay() time.Duration {
	spread := int64(t.maxDelay - t.minDelay)
	if spread <= 0 {
		return t.minDelay
	}
	return t.minDelay + time.Duration(t.randI64n(spread+1))
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
