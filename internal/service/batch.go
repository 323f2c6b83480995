package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coldsend/outreach-engine/internal/domain"
	"github.com/coldsend/outreach-engine/internal/mailer"
	"github.com/coldsend/outreach-engine/internal/observability"
	"github.com/coldsend/outreach-engine/internal/ratelimit"
	"github.com/coldsend/outreach-engine/internal/repository"
	"github.com/coldsend/outreach-engine/internal/template"
	"go.uber.org/zap"
)

// Batch run results as reported to metrics.
const (
	batchResultCompleted = "completed"
	batchResultPartial   = "partial"
	batchResultEmpty     = "empty"
	batchResultAborted   = "aborted"
)

// BatchReport summarizes one batch run.
type BatchReport struct {
	CampaignID string
	StartedAt  time.Time
	FinishedAt time.Time

	Attempted int
	Sent      int
	Failed    int
	// Deferred counts leads that stay eligible for the next run: transient
	// failures plus leads never attempted because the quota ran out.
	Deferred int
	// Partial marks a run stopped early by quota exhaustion.
	Partial bool
	Errors  []string
}

// BatchProcessor drains one batch of eligible leads through the mailer. A run
// is sequential: one lead at a time, spaced by the throttler, each send
// charged against the daily quota before it leaves.
type BatchProcessor struct {
	leads       repository.LeadRepository
	sender      mailer.Mailer
	reconciler  *StateReconciler
	newThrottle ratelimit.Factory
	quota       ratelimit.QuotaGuard
	campaign    domain.Campaign
	metadata    mailer.Metadata
	logger      *zap.Logger
	metrics     *observability.Metrics
	now         func() time.Time
}

func NewBatchProcessor(
	leads repository.LeadRepository,
	sender mailer.Mailer,
	reconciler *StateReconciler,
	newThrottle ratelimit.Factory,
	quota ratelimit.QuotaGuard,
	campaign domain.Campaign,
	metadata mailer.Metadata,
	logger *zap.Logger,
) (*BatchProcessor, error) {
	if leads == nil {
		return nil, fmt.Errorf("lead repository is required")
	}
	if sender == nil {
		return nil, fmt.Errorf("mailer is required")
	}
	if reconciler == nil {
		return nil, fmt.Errorf("state reconciler is required")
	}
	if newThrottle == nil {
		return nil, fmt.Errorf("throttler factory is required")
	}
	if quota == nil {
		quota = ratelimit.NopQuota{}
	}
	if err := campaign.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &BatchProcessor{
		leads:       leads,
		sender:      sender,
		reconciler:  reconciler,
		newThrottle: newThrottle,
		quota:       quota,
		campaign:    campaign,
		metadata:    metadata,
		logger:      logger,
		now:         time.Now,
	}, nil
}

func (p *BatchProcessor) SetMetrics(metrics *observability.Metrics) {
	if p == nil {
		return
	}
	p.metrics = metrics
}

// RunOnce executes a single batch run. Template syntax errors abort before
// any send; quota exhaustion stops the run mid-batch and the report comes
// back partial. Attempt results are committed lead by lead, so a run stopped
// halfway leaves no in-memory state behind.
func (p *BatchProcessor) RunOnce(ctx context.Context) (*BatchReport, error) {
	report := &BatchReport{
		CampaignID: p.campaign.ID,
		StartedAt:  p.now().UTC(),
	}

	pair, err := template.ParsePair(p.campaign.Subject, p.campaign.Body)
	if err != nil {
		report.FinishedAt = p.now().UTC()
		p.metrics.IncBatchRun(p.campaign.ID, batchResultAborted)
		return report, fmt.Errorf("batch run aborted: %w", err)
	}

	leads, err := p.leads.FetchEligible(ctx, p.campaign.ID, p.campaign.BatchSize)
	if err != nil {
		report.FinishedAt = p.now().UTC()
		p.metrics.IncBatchRun(p.campaign.ID, batchResultAborted)
		return report, fmt.Errorf("failed to fetch eligible leads: %w", err)
	}

	if len(leads) == 0 {
		report.FinishedAt = p.now().UTC()
		p.metrics.IncBatchRun(p.campaign.ID, batchResultEmpty)
		p.logger.Info("batch run found no eligible leads",
			zap.String("campaignId", p.campaign.ID),
		)
		return report, nil
	}

	p.logger.Info("batch run started",
		zap.String("campaignId", p.campaign.ID),
		zap.Int("leads", len(leads)),
	)

	throttle := p.newThrottle()

	for i := range leads {
		lead := leads[i]
		// Queued in memory only; the stored row keeps its fetched status so a
		// crash mid-run leaves the lead eligible.
		lead.Status = domain.StatusQueued

		if err := throttle.Wait(ctx); err != nil {
			report.Deferred += len(leads) - i
			report.FinishedAt = p.now().UTC()
			p.metrics.IncBatchRun(p.campaign.ID, batchResultAborted)
			return report, fmt.Errorf("batch run interrupted: %w", err)
		}

		if err := p.quota.Reserve(ctx); err != nil {
			report.Deferred += len(leads) - i
			report.Partial = true
			report.FinishedAt = p.now().UTC()
			p.metrics.IncBatchRun(p.campaign.ID, batchResultPartial)

			if errors.Is(err, domain.ErrQuotaExhausted) {
				p.logger.Warn("daily quota exhausted, stopping batch run",
					zap.String("campaignId", p.campaign.ID),
					zap.Int("remaining", len(leads)-i),
				)
				return report, nil
			}
			return report, fmt.Errorf("quota reservation failed: %w", err)
		}

		attempt, quotaHit := p.sendOne(ctx, lead, pair)
		report.Attempted++

		if err := p.reconciler.Apply(ctx, lead, attempt); err != nil {
			report.Errors = append(report.Errors, err.Error())
			p.logger.Error("failed to reconcile attempt",
				zap.String("leadKey", lead.Key),
				zap.Error(err),
			)
		}

		switch attempt.Outcome {
		case domain.OutcomeSuccess:
			report.Sent++
		case domain.OutcomePermanent:
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("lead %s: %s", lead.Key, attempt.ErrorDetail))
		case domain.OutcomeTransient:
			report.Deferred++
			report.Errors = append(report.Errors, fmt.Sprintf("lead %s: %s", lead.Key, attempt.ErrorDetail))
		}

		if quotaHit {
			report.Deferred += len(leads) - i - 1
			report.Partial = true
			report.FinishedAt = p.now().UTC()
			p.metrics.IncBatchRun(p.campaign.ID, batchResultPartial)
			p.logger.Warn("provider reported quota exhaustion, stopping batch run",
				zap.String("campaignId", p.campaign.ID),
				zap.Int("remaining", len(leads)-i-1),
			)
			return report, nil
		}
	}

	report.FinishedAt = p.now().UTC()
	p.metrics.IncBatchRun(p.campaign.ID, batchResultCompleted)
	p.logger.Info("batch run finished",
		zap.String("campaignId", p.campaign.ID),
		zap.Int("sent", report.Sent),
		zap.Int("failed", report.Failed),
		zap.Int("deferred", report.Deferred),
	)

	return report, nil
}

// sendOne renders and delivers one email. quotaHit reports the provider
// itself signalling an exhausted quota; the lead is deferred like any
// transient failure and the caller stops the run.
func (p *BatchProcessor) sendOne(ctx context.Context, lead domain.Lead, pair *template.Pair) (attempt domain.SendAttempt, quotaHit bool) {
	msg := pair.Render(&lead, p.campaign.FieldFallback)

	attempt = domain.SendAttempt{
		LeadKey:   lead.Key,
		Subject:   msg.Subject,
		Body:      msg.Body,
		Timestamp: p.now().UTC(),
	}

	req := mailer.SendRequest{
		To:       lead.Email,
		Subject:  msg.Subject,
		Body:     msg.Body,
		Metadata: p.metadata,
	}

	sendStart := p.now()
	result, err := p.sender.Send(ctx, req)
	p.metrics.ObserveEmailSendDuration(p.campaign.ID, p.now().Sub(sendStart))

	if err == nil {
		attempt.Outcome = domain.OutcomeSuccess
		if result != nil {
			attempt.MessageID = result.MessageID
		}
		return attempt, false
	}

	attempt.ErrorDetail = err.Error()
	switch {
	case mailer.IsQuotaExhausted(err):
		attempt.Outcome = domain.OutcomeTransient
		quotaHit = true
	case mailer.IsTransient(err):
		attempt.Outcome = domain.OutcomeTransient
	default:
		attempt.Outcome = domain.OutcomePermanent
	}

	p.logger.Warn("send attempt failed",
		zap.String("leadKey", lead.Key),
		zap.String("outcome", attempt.Outcome.String()),
		zap.String("detail", attempt.ErrorDetail),
	)

	return attempt, quotaHit
}
