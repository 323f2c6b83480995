package mailer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/resend/resend-go/v2"
)

// ResendMailer sends through the Resend API. The SDK surfaces failures as
// plain errors, so classification falls back to the status hints Resend
// embeds in its messages.
type ResendMailer struct {
	client *resend.Client
	from   string
}

func NewResendMailer(apiKey, from string) (*ResendMailer, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("resend api key is required")
	}
	if strings.TrimSpace(from) == "" {
		return nil, fmt.Errorf("from address is required")
	}

	return &ResendMailer{
		client: resend.NewClient(apiKey),
		from:   from,
	}, nil
}

func (m *ResendMailer) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	if m == nil || m.client == nil {
		return nil, fmt.Errorf("resend mailer is not initialized")
	}
	if err := req.Validate(); err != nil {
		return nil, &SendError{Kind: KindPermanent, Message: "invalid send request", Cause: err}
	}

	params := &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{req.To},
		Subject: req.Subject,
		Text:    req.Body,
	}
	if req.Metadata.ReplyTo != "" {
		params.ReplyTo = req.Metadata.ReplyTo
	}
	if req.Metadata.BCC != "" {
		params.Bcc = []string{req.Metadata.BCC}
	}

	headers := map[string]string{}
	if req.Metadata.UnsubscribeURL != "" {
		headers["List-Unsubscribe"] = fmt.Sprintf("<%s>", req.Metadata.UnsubscribeURL)
	}
	if req.Metadata.TrackingDomain != "" {
		headers["X-Tracking-Domain"] = req.Metadata.TrackingDomain
	}
	if len(headers) > 0 {
		params.Headers = headers
	}

	sent, err := m.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return nil, classifyResendError(err)
	}
	if sent == nil || strings.TrimSpace(sent.Id) == "" {
		return nil, &SendError{Kind: KindTransient, Message: "resend returned no message id"}
	}

	return &SendResult{MessageID: sent.Id}, nil
}

func classifyResendError(err error) *SendError {
	if errors.Is(err, context.Canceled) {
		return &SendError{Kind: KindPermanent, Message: "send canceled", Cause: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &SendError{Kind: KindTransient, Message: "send timed out", Cause: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &SendError{Kind: KindTransient, Message: "network failure", Cause: err}
	}

	message := strings.ToLower(err.Error())
	switch {
	case strings.Contains(message, "429") ||
		strings.Contains(message, "rate limit") ||
		strings.Contains(message, "quota"):
		return &SendError{Kind: KindQuotaExhausted, Message: "resend quota exhausted", Cause: err}
	case strings.Contains(message, "422") ||
		strings.Contains(message, "400") ||
		strings.Contains(message, "invalid"):
		return &SendError{Kind: KindPermanent, Message: "resend rejected message", Cause: err}
	default:
		return &SendError{Kind: KindTransient, Message: "resend request failed", Cause: err}
	}
}
