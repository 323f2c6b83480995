package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/coldsend/outreach-engine/internal/domain"
	"go.uber.org/zap"
)

type fakeRunner struct {
	mu      sync.Mutex
	runs    int
	block   chan struct{}
	started chan struct{}
}

func (r *fakeRunner) RunOnce(ctx context.Context) (*BatchReport, error) {
	r.mu.Lock()
	r.runs++
	r.mu.Unlock()

	if r.started != nil {
		r.started <- struct{}{}
	}
	if r.block != nil {
		<-r.block
	}
	return &BatchReport{}, nil
}

func (r *fakeRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs
}

func weekdaySchedule() domain.Schedule {
	return domain.Schedule{Hour: 8, Minute: 0, Location: time.UTC, SkipWeekends: true}
}

func TestSchedulerFiresAtScheduledTimes(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{started: make(chan struct{}, 4)}
	scheduler, err := NewScheduler(runner, weekdaySchedule(), "q3-outbound", zap.NewNop())
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}

	// Thursday 2024-03-07 07:59 UTC; every simulated wait jumps straight to
	// the requested slot.
	clock := struct {
		sync.Mutex
		now time.Time
	}{now: time.Date(2024, time.March, 7, 7, 59, 0, 0, time.UTC)}

	scheduler.now = func() time.Time {
		clock.Lock()
		defer clock.Unlock()
		return clock.now
	}

	fired := 0
	ctx, cancel := context.WithCancel(context.Background())
	scheduler.waitUntil = func(ctx context.Context, target time.Time) error {
		// Let the previous run finish before the next slot, so slots are
		// never skipped by the overlap guard.
		for scheduler.running.Load() {
			time.Sleep(time.Millisecond)
		}

		clock.Lock()
		clock.now = target
		clock.Unlock()

		fired++
		if fired > 2 {
			cancel()
			return context.Canceled
		}
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- scheduler.Start(ctx) }()

	for i := 0; i < 2; i++ {
		select {
		case <-runner.started:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for scheduled run")
		}
	}

	if err := <-done; err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if got := runner.count(); got != 2 {
		t.Errorf("runs = %d, want 2", got)
	}
}

func TestSchedulerSkipsSlotWhileRunInFlight(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	scheduler, err := NewScheduler(runner, weekdaySchedule(), "q3-outbound", zap.NewNop())
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}

	clock := struct {
		sync.Mutex
		now time.Time
	}{now: time.Date(2024, time.March, 7, 7, 59, 0, 0, time.UTC)}

	scheduler.now = func() time.Time {
		clock.Lock()
		defer clock.Unlock()
		return clock.now
	}

	fired := 0
	ctx, cancel := context.WithCancel(context.Background())
	scheduler.waitUntil = func(ctx context.Context, target time.Time) error {
		clock.Lock()
		clock.now = target
		clock.Unlock()

		fired++
		switch fired {
		case 1:
			// First slot fires and the run blocks.
			return nil
		case 2:
			// Second slot arrives while the first run is still going; the
			// scheduler must skip it, not start a second run.
			return nil
		default:
			close(runner.block)
			cancel()
			return context.Canceled
		}
	}

	done := make(chan error, 1)
	go func() { done <- scheduler.Start(ctx) }()

	select {
	case <-runner.started:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for first run")
	}

	if err := <-done; err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if got := runner.count(); got != 1 {
		t.Errorf("runs = %d, want 1: overlapping slot must be skipped", got)
	}
}

func TestSchedulerWaitsForInFlightRunOnShutdown(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	scheduler, err := NewScheduler(runner, weekdaySchedule(), "q3-outbound", zap.NewNop())
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	fired := false
	scheduler.waitUntil = func(ctx context.Context, target time.Time) error {
		if !fired {
			fired = true
			return nil
		}
		<-ctx.Done()
		return ctx.Err()
	}

	done := make(chan error, 1)
	go func() { done <- scheduler.Start(ctx) }()

	select {
	case <-runner.started:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for run start")
	}

	cancel()
	select {
	case <-done:
		t.Fatal("Start() returned while a run was still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(runner.block)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return after run finished")
	}
}

func TestNewSchedulerValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewScheduler(nil, weekdaySchedule(), "c", nil); err == nil {
		t.Error("expected error for nil runner")
	}
	if _, err := NewScheduler(&fakeRunner{}, domain.Schedule{Hour: 25, Location: time.UTC}, "c", nil); err == nil {
		t.Error("expected error for invalid schedule")
	}
	if _, err := NewScheduler(&fakeRunner{}, domain.Schedule{Hour: 8, Minute: 0}, "c", nil); err == nil {
		t.Error("expected error for missing timezone")
	}
}
