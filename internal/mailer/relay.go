package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultRelayTimeout = 10 * time.Second

type relayRequest struct {
	To          string            `json:"to"`
	Subject     string            `json:"subject"`
	Body        string            `json:"body"`
	Headers     map[string]string `json:"headers,omitempty"`
	Unsubscribe string            `json:"unsubscribe,omitempty"`
}

type relayResponse struct {
	MessageID string `json:"messageId"`
}

// RelayMailer delivers through an HTTP SMTP-relay bridge. Useful for
// self-hosted relays and as the staging transport; failure classification
// follows the relay's HTTP status.
type RelayMailer struct {
	client   *resty.Client
	endpoint string
}

func NewRelayMailer(endpoint string) (*RelayMailer, error) {
	client := resty.New()
	client.SetTimeout(defaultRelayTimeout)
	client.SetRetryCount(0)

	return NewRelayMailerWithClient(endpoint, client)
}

func NewRelayMailerWithClient(endpoint string, client *resty.Client) (*RelayMailer, error) {
	trimmedEndpoint := strings.TrimSpace(endpoint)
	if trimmedEndpoint == "" {
		return nil, fmt.Errorf("relay endpoint is required")
	}
	if _, err := url.ParseRequestURI(trimmedEndpoint); err != nil {
		return nil, fmt.Errorf("invalid relay endpoint: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultRelayTimeout)
	}
	client.SetRetryCount(0)

	return &RelayMailer{
		client:   client,
		endpoint: trimmedEndpoint,
	}, nil
}

func (m *RelayMailer) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	if m == nil || m.client == nil {
		return nil, fmt.Errorf("relay mailer is not initialized")
	}
	if err := req.Validate(); err != nil {
		return nil, &SendError{Kind: KindPermanent, Message: "invalid send request", Cause: err}
	}

	headers := map[string]string{}
	if req.Metadata.ReplyTo != "" {
		headers["Reply-To"] = req.Metadata.ReplyTo
	}
	if req.Metadata.BCC != "" {
		headers["Bcc"] = req.Metadata.BCC
	}
	if req.Metadata.TrackingDomain != "" {
		headers["X-Tracking-Domain"] = req.Metadata.TrackingDomain
	}

	body := relayRequest{
		To:          req.To,
		Subject:     req.Subject,
		Body:        req.Body,
		Headers:     headers,
		Unsubscribe: req.Metadata.UnsubscribeURL,
	}

	response, err := m.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(m.endpoint)
	if err != nil {
		kind := KindTransient
		if errors.Is(err, context.Canceled) {
			kind = KindPermanent
		}
		return nil, &SendError{Kind: kind, Message: "relay request failed", Cause: err}
	}
	if response == nil {
		return nil, &SendError{Kind: KindTransient, Message: "relay returned empty response"}
	}

	statusCode := response.StatusCode()
	responseBody := strings.TrimSpace(response.String())

	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return &SendResult{MessageID: relayMessageID(response, responseBody)}, nil
	}

	return nil, &SendError{
		Kind:       classifyHTTPStatus(statusCode),
		StatusCode: statusCode,
		Message:    relayErrorMessage(statusCode, responseBody),
	}
}

func classifyHTTPStatus(statusCode int) ErrorKind {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return KindQuotaExhausted
	case statusCode >= http.StatusInternalServerError && statusCode <= 599:
		return KindTransient
	default:
		return KindPermanent
	}
}

func relayErrorMessage(statusCode int, body string) string {
	base := fmt.Sprintf("relay returned status %d", statusCode)
	if body == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, body)
}

func relayMessageID(response *resty.Response, body string) string {
	var parsed relayResponse
	if err := json.Unmarshal([]byte(body), &parsed); err == nil {
		if id := strings.TrimSpace(parsed.MessageID); id != "" {
			return id
		}
	}

	for _, key := range []string{"X-Message-ID", "X-Message-Id", "Message-ID", "Message-Id"} {
		if value := strings.TrimSpace(response.Header().Get(key)); value != "" {
			return value
		}
	}

	return ""
}
