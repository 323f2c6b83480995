// Package queue publishes follow-up actions for downstream flows (follow-up
// messaging, CRM sync, manual-outreach nudges). The engine only produces;
// consumers live outside this service.
package queue

import "context"

// FollowupQueueName is the work queue downstream follow-up consumers read.
const FollowupQueueName = "outreach.followups"

// Publisher publishes follow-up action messages.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg FollowupMessage) error
	Close() error
}

// NopPublisher drops follow-up actions. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, queue string, msg FollowupMessage) error {
	return nil
}

func (NopPublisher) Close() error { return nil }
