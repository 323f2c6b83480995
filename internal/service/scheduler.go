package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coldsend/outreach-engine/internal/domain"
	"github.com/coldsend/outreach-engine/internal/observability"
	"go.uber.org/zap"
)

const batchResultSkipped = "skipped"

// BatchRunner executes one batch run.
type BatchRunner interface {
	RunOnce(ctx context.Context) (*BatchReport, error)
}

// Scheduler fires the batch runner at the campaign's daily send time. A run
// still in flight when the next slot arrives makes the scheduler skip that
// slot rather than overlap; skipped slots are not made up later.
type Scheduler struct {
	runner    BatchRunner
	schedule  domain.Schedule
	logger    *zap.Logger
	metrics   *observability.Metrics
	campaign  string
	now       func() time.Time
	waitUntil func(ctx context.Context, t time.Time) error

	running atomic.Bool
	wg      sync.WaitGroup
}

func NewScheduler(
	runner BatchRunner,
	schedule domain.Schedule,
	campaignID string,
	logger *zap.Logger,
) (*Scheduler, error) {
	if runner == nil {
		return nil, fmt.Errorf("batch runner is required")
	}
	if err := schedule.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Scheduler{
		runner:   runner,
		schedule: schedule,
		logger:   logger,
		campaign: campaignID,
		now:      time.Now,
	}
	s.waitUntil = s.sleepUntil

	return s, nil
}

func (s *Scheduler) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Start blocks until the context is canceled, firing a batch run at every
// schedule occurrence. Cancellation waits for an in-flight run to finish;
// the run itself is not aborted mid-send.
func (s *Scheduler) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		next := s.schedule.Next(s.now())
		s.logger.Info("next batch run scheduled",
			zap.String("campaignId", s.campaign),
			zap.Time("at", next),
		)

		if err := s.waitUntil(ctx, next); err != nil {
			s.wg.Wait()
			return nil
		}

		if !s.running.CompareAndSwap(false, true) {
			s.metrics.IncBatchRun(s.campaign, batchResultSkipped)
			s.logger.Warn("previous batch run still in flight, skipping slot",
				zap.String("campaignId", s.campaign),
				zap.Time("slot", next),
			)
			continue
		}

		// Detached from the scheduler context so shutdown does not cut a
		// half-delivered batch; Start waits for it before returning.
		runCtx := context.WithoutCancel(ctx)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.running.Store(false)

			if _, err := s.runner.RunOnce(runCtx); err != nil {
				s.logger.Error("batch run failed",
					zap.String("campaignId", s.campaign),
					zap.Error(err),
				)
			}
		}()
	}
}

func (s *Scheduler) sleepUntil(ctx context.Context, t time.Time) error {
	d := t.Sub(s.now())
	if d < 0 {
		d = 0
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
