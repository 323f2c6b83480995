// Package notify emits fire-and-forget operator alerts on the error branch:
// permanent send failures, repeated transient failures, and bounces. Alert
// delivery failures are never fatal to the engine.
package notify

import (
	"context"
	"time"
)

// Alert is one structured operator notification.
type Alert struct {
	LeadKey    string
	Email      string
	CampaignID string
	Reason     string
	Detail     string
	OccurredAt time.Time
}

// Notifier delivers alerts to an operator side channel.
type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}

// NopNotifier drops alerts. Used when no side channel is configured.
type NopNotifier struct{}

func (NopNotifier) Notify(ctx context.Context, alert Alert) error { return nil }
