package notify

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultSlackTimeout = 5 * time.Second

type slackPayload struct {
	Text string `json:"text"`
}

// SlackNotifier posts alerts to a Slack incoming-webhook URL.
type SlackNotifier struct {
	client     *resty.Client
	webhookURL string
}

func NewSlackNotifier(webhookURL string) (*SlackNotifier, error) {
	client := resty.New()
	client.SetTimeout(defaultSlackTimeout)
	client.SetRetryCount(0)

	return NewSlackNotifierWithClient(webhookURL, client)
}

func NewSlackNotifierWithClient(webhookURL string, client *resty.Client) (*SlackNotifier, error) {
	trimmedURL := strings.TrimSpace(webhookURL)
	if trimmedURL == "" {
		return nil, fmt.Errorf("slack webhook url is required")
	}
	if _, err := url.ParseRequestURI(trimmedURL); err != nil {
		return nil, fmt.Errorf("invalid slack webhook url: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	return &SlackNotifier{
		client:     client,
		webhookURL: trimmedURL,
	}, nil
}

var _ Notifier = (*SlackNotifier)(nil)

func (n *SlackNotifier) Notify(ctx context.Context, alert Alert) error {
	if n == nil || n.client == nil {
		return fmt.Errorf("slack notifier is not initialized")
	}

	response, err := n.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(slackPayload{Text: formatAlert(alert)}).
		Post(n.webhookURL)
	if err != nil {
		return fmt.Errorf("slack notification failed: %w", err)
	}
	if response.IsError() {
		return fmt.Errorf("slack returned status %d", response.StatusCode())
	}

	return nil
}

func formatAlert(alert Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, ":rotating_light: outreach alert: %s", alert.Reason)
	fmt.Fprintf(&b, "\n> campaign: %s", alert.CampaignID)
	fmt.Fprintf(&b, "\n> lead: %s", alert.LeadKey)
	if alert.Email != "" {
		fmt.Fprintf(&b, " (%s)", alert.Email)
	}
	if alert.Detail != "" {
		fmt.Fprintf(&b, "\n> detail: %s", alert.Detail)
	}
	if !alert.OccurredAt.IsZero() {
		fmt.Fprintf(&b, "\n> at: %s", alert.OccurredAt.UTC().Format(time.RFC3339))
	}
	return b.String()
}
