package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coldsend/outreach-engine/internal/domain"
	"github.com/coldsend/outreach-engine/internal/notify"
	"github.com/coldsend/outreach-engine/internal/observability"
	"github.com/coldsend/outreach-engine/internal/queue"
	"github.com/coldsend/outreach-engine/internal/repository"
	"go.uber.org/zap"
)

const commitWriterListener = "listener"

// Webhook handling results as reported to metrics.
const (
	eventResultApplied   = "applied"
	eventResultIgnored   = "ignored"
	eventResultUnmatched = "unmatched"
	eventResultConflict  = "conflict"
)

// EventService applies inbound delivery events to lead state. Handling is
// idempotent: re-delivered events resolve to no-op transitions and are
// acknowledged without a second side effect.
type EventService struct {
	leads     repository.LeadRepository
	publisher queue.Publisher
	notifier  notify.Notifier
	logger    *zap.Logger
	metrics   *observability.Metrics
	now       func() time.Time
}

func NewEventService(
	leads repository.LeadRepository,
	publisher queue.Publisher,
	notifier notify.Notifier,
	logger *zap.Logger,
) (*EventService, error) {
	if leads == nil {
		return nil, fmt.Errorf("lead repository is required")
	}
	if publisher == nil {
		publisher = queue.NopPublisher{}
	}
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &EventService{
		leads:     leads,
		publisher: publisher,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
	}, nil
}

func (s *EventService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// OnEvent resolves the lead, applies the transition table, and triggers the
// branch side effect. Events that resolve to no lead or to no valid
// transition are acknowledged and dropped. A commit conflict is retried
// exactly once against re-read state; a second conflict drops the event.
func (s *EventService) OnEvent(ctx context.Context, event domain.WebhookEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}

	lead, err := s.resolveLead(ctx, event)
	if errors.Is(err, domain.ErrNotFound) {
		s.metrics.IncWebhookEvent(event.Kind.String(), eventResultUnmatched)
		s.logger.Info("event matched no lead, dropping",
			zap.String("kind", event.Kind.String()),
			zap.String("messageId", event.MessageID),
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to resolve lead for event: %w", err)
	}

	applied, effect, err := s.applyOnce(ctx, lead, event)
	if err != nil {
		if !errors.Is(err, domain.ErrConflict) {
			return err
		}

		s.metrics.IncCommitConflict(commitWriterListener)
		lead, err = s.resolveLead(ctx, event)
		if errors.Is(err, domain.ErrNotFound) {
			s.metrics.IncWebhookEvent(event.Kind.String(), eventResultUnmatched)
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to re-resolve lead after commit conflict: %w", err)
		}

		applied, effect, err = s.applyOnce(ctx, lead, event)
		if errors.Is(err, domain.ErrConflict) {
			// Two losses in a row; whatever kept winning carries newer truth.
			s.metrics.IncCommitConflict(commitWriterListener)
			s.metrics.IncWebhookEvent(event.Kind.String(), eventResultConflict)
			s.logger.Warn("event dropped after repeated commit conflicts",
				zap.String("leadKey", lead.Key),
				zap.String("kind", event.Kind.String()),
			)
			return nil
		}
		if err != nil {
			return err
		}
	}

	if !applied {
		s.metrics.IncWebhookEvent(event.Kind.String(), eventResultIgnored)
		return nil
	}

	s.metrics.IncWebhookEvent(event.Kind.String(), eventResultApplied)
	s.runSideEffect(ctx, lead, event, effect)
	return nil
}

func (s *EventService) resolveLead(ctx context.Context, event domain.WebhookEvent) (*domain.Lead, error) {
	if event.MessageID != "" {
		lead, err := s.leads.FindByMessageID(ctx, event.MessageID)
		if err == nil {
			return lead, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}

	if event.Email != "" {
		return s.leads.FindByEmail(ctx, event.Email)
	}

	return nil, domain.ErrNotFound
}

// applyOnce evaluates the transition table against the lead as read and
// commits conditionally on that same status.
func (s *EventService) applyOnce(ctx context.Context, lead *domain.Lead, event domain.WebhookEvent) (applied bool, effect domain.SideEffect, err error) {
	next, effect, ok := domain.ApplyEvent(lead.Status, event.Kind)
	if !ok {
		s.logger.Info("event does not apply to lead state, dropping",
			zap.String("leadKey", lead.Key),
			zap.String("status", lead.Status.String()),
			zap.String("kind", event.Kind.String()),
		)
		return false, domain.EffectNone, nil
	}

	// Opened touches nothing; acknowledge without a write.
	if next == lead.Status {
		return true, effect, nil
	}

	touched := event.Timestamp
	if touched.IsZero() {
		touched = s.now().UTC()
	}

	update := domain.LeadUpdate{
		Status:    &next,
		LastTouch: &touched,
	}
	if event.Kind == domain.EventBounced {
		detail := fmt.Sprintf("bounced at %s", touched.UTC().Format(time.RFC3339))
		update.ErrorDetail = &detail
	}

	if err := s.leads.Commit(ctx, lead.Key, update, lead.Status); err != nil {
		return false, domain.EffectNone, err
	}

	return true, effect, nil
}

// runSideEffect fires the branch action after a successful commit. Failures
// are logged, never propagated; the state write already happened.
func (s *EventService) runSideEffect(ctx context.Context, lead *domain.Lead, event domain.WebhookEvent, effect domain.SideEffect) {
	occurredAt := event.Timestamp
	if occurredAt.IsZero() {
		occurredAt = s.now().UTC()
	}

	switch effect {
	case domain.EffectFollowUp:
		msg := queue.FollowupMessage{
			LeadKey:    lead.Key,
			Email:      lead.Email,
			CampaignID: lead.CampaignID,
			Trigger:    event.Kind,
			OccurredAt: occurredAt,
		}
		if err := s.publisher.Publish(ctx, queue.FollowupQueueName, msg); err != nil {
			s.logger.Error("failed to publish follow-up action",
				zap.String("leadKey", lead.Key),
				zap.Error(err),
			)
		}

	case domain.EffectAlert:
		alert := notify.Alert{
			LeadKey:    lead.Key,
			Email:      lead.Email,
			CampaignID: lead.CampaignID,
			Reason:     fmt.Sprintf("lead %s", event.Kind),
			OccurredAt: occurredAt,
		}
		if err := s.notifier.Notify(ctx, alert); err != nil {
			s.logger.Error("failed to deliver event alert",
				zap.String("leadKey", lead.Key),
				zap.Error(err),
			)
		}
	}
}
