package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coldsend/outreach-engine/internal/domain"
	"github.com/coldsend/outreach-engine/internal/notify"
	"github.com/coldsend/outreach-engine/internal/observability"
	"github.com/coldsend/outreach-engine/internal/repository"
	"go.uber.org/zap"
)

// Commits lose to the event listener only when a bounce landed mid-run; the
// listener's write wins and the batch result is discarded.
const commitWriterBatch = "batch"

// defaultTransientAlertThreshold is how many transient failures in a row a
// single lead accumulates before the operator is alerted.
const defaultTransientAlertThreshold = 3

// StateReconciler folds send attempts back into the lead source. Every write
// is a conditional commit against the status the batch run read, so a webhook
// that raced the run wins and the attempt result is dropped.
type StateReconciler struct {
	leads    repository.LeadRepository
	notifier notify.Notifier
	logger   *zap.Logger
	metrics  *observability.Metrics

	campaignID         string
	transientThreshold int

	mu              sync.Mutex
	transientStreak map[string]int
}

func NewStateReconciler(
	leads repository.LeadRepository,
	notifier notify.Notifier,
	campaignID string,
	logger *zap.Logger,
) (*StateReconciler, error) {
	if leads == nil {
		return nil, fmt.Errorf("lead repository is required")
	}
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &StateReconciler{
		leads:              leads,
		notifier:           notifier,
		logger:             logger,
		campaignID:         campaignID,
		transientThreshold: defaultTransientAlertThreshold,
		transientStreak:    make(map[string]int),
	}, nil
}

func (r *StateReconciler) SetMetrics(metrics *observability.Metrics) {
	if r == nil {
		return
	}
	r.metrics = metrics
}

// Apply commits one attempt result. Applying the same attempt twice produces
// the same stored state: the first commit moves the lead off its expected
// status, the second loses the conditional write and is dropped.
func (r *StateReconciler) Apply(ctx context.Context, lead domain.Lead, attempt domain.SendAttempt) error {
	update, err := r.buildUpdate(attempt)
	if err != nil {
		return err
	}

	// The batch run queues leads in memory only; the stored row still reads
	// whatever FetchEligible saw.
	expected := lead.Status
	if expected == domain.StatusQueued {
		expected = domain.StatusNew
	}

	err = r.leads.Commit(ctx, attempt.LeadKey, update, expected)
	switch {
	case errors.Is(err, domain.ErrConflict):
		r.metrics.IncCommitConflict(commitWriterBatch)
		r.logger.Info("attempt result discarded after losing commit race",
			zap.String("leadKey", attempt.LeadKey),
			zap.String("outcome", attempt.Outcome.String()),
			zap.String("messageId", attempt.MessageID),
			zap.String("detail", attempt.ErrorDetail),
		)
		return nil
	case errors.Is(err, domain.ErrNotFound):
		r.logger.Warn("lead disappeared before attempt commit",
			zap.String("leadKey", attempt.LeadKey),
		)
		return nil
	case err != nil:
		return fmt.Errorf("failed to commit attempt for lead %s: %w", attempt.LeadKey, err)
	}

	r.recordOutcome(ctx, lead, attempt)
	return nil
}

func (r *StateReconciler) buildUpdate(attempt domain.SendAttempt) (domain.LeadUpdate, error) {
	touched := attempt.Timestamp
	if touched.IsZero() {
		touched = time.Now().UTC()
	}

	update := domain.LeadUpdate{
		LastTouch:  &touched,
		CampaignID: &r.campaignID,
	}

	switch attempt.Outcome {
	case domain.OutcomeSuccess:
		status := domain.StatusSent
		detail := ""
		update.Status = &status
		update.MessageID = &attempt.MessageID
		update.ErrorDetail = &detail
	case domain.OutcomePermanent:
		status := domain.StatusFailed
		update.Status = &status
		update.ErrorDetail = &attempt.ErrorDetail
	case domain.OutcomeTransient:
		// Status stays as read; the lead remains eligible next run, the
		// refreshed touch time pushes it behind untouched leads.
		update.ErrorDetail = &attempt.ErrorDetail
	default:
		return domain.LeadUpdate{}, fmt.Errorf("unknown attempt outcome %q", attempt.Outcome)
	}

	return update, nil
}

func (r *StateReconciler) recordOutcome(ctx context.Context, lead domain.Lead, attempt domain.SendAttempt) {
	switch attempt.Outcome {
	case domain.OutcomeSuccess:
		r.metrics.IncEmailSent(r.campaignID)
		r.clearStreak(attempt.LeadKey)

	case domain.OutcomePermanent:
		r.metrics.IncEmailFailed(r.campaignID, "permanent")
		r.clearStreak(attempt.LeadKey)
		r.alert(ctx, lead, attempt, "permanent send failure")

	case domain.OutcomeTransient:
		r.metrics.IncEmailFailed(r.campaignID, "transient")
		if streak := r.bumpStreak(attempt.LeadKey); streak >= r.transientThreshold {
			r.clearStreak(attempt.LeadKey)
			r.alert(ctx, lead, attempt,
				fmt.Sprintf("lead failed transiently %d runs in a row", streak))
		}
	}
}

func (r *StateReconciler) alert(ctx context.Context, lead domain.Lead, attempt domain.SendAttempt, reason string) {
	alert := notify.Alert{
		LeadKey:    attempt.LeadKey,
		Email:      lead.Email,
		CampaignID: r.campaignID,
		Reason:     reason,
		Detail:     attempt.ErrorDetail,
		OccurredAt: attempt.Timestamp,
	}

	if err := r.notifier.Notify(ctx, alert); err != nil {
		r.logger.Error("failed to deliver operator alert",
			zap.String("leadKey", attempt.LeadKey),
			zap.Error(err),
		)
	}
}

func (r *StateReconciler) bumpStreak(leadKey string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.transientStreak[leadKey]++
	return r.transientStreak[leadKey]
}

func (r *StateReconciler) clearStreak(leadKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.transientStreak, leadKey)
}
