package mailer

import (
	"context"
	"fmt"
	"strings"
)

// Metadata is the opaque per-message header bundle: reply-to routing, BCC
// logging, unsubscribe link, and tracking domain. The core never interprets
// it; adapters attach it to the outgoing message.
type Metadata struct {
	ReplyTo        string
	BCC            string
	UnsubscribeURL string
	TrackingDomain string
}

// SendRequest is one personalized outbound email.
type SendRequest struct {
	To       string
	Subject  string
	Body     string
	Metadata Metadata
}

func (r SendRequest) Validate() error {
	if strings.TrimSpace(r.To) == "" {
		return fmt.Errorf("recipient is required")
	}
	if strings.TrimSpace(r.Subject) == "" {
		return fmt.Errorf("subject is required")
	}
	if strings.TrimSpace(r.Body) == "" {
		return fmt.Errorf("body is required")
	}
	return nil
}

// SendResult carries the provider message identifier used later to resolve
// webhook events back to the lead.
type SendResult struct {
	MessageID string
}

// Mailer is the outbound email delivery port. Implementations classify every
// failure into the transient/permanent/quota taxonomy before it reaches the
// batch processor; callers never inspect raw transport errors.
type Mailer interface {
	Send(ctx context.Context, req SendRequest) (*SendResult, error)
}
