package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coldsend/outreach-engine/internal/domain"
	"github.com/gofiber/fiber/v2"
)

// EventSink consumes inbound delivery events.
type EventSink interface {
	OnEvent(ctx context.Context, event domain.WebhookEvent) error
}

// WebhookHandler receives provider delivery notifications: opens, replies,
// and bounces.
type WebhookHandler struct {
	events EventSink
}

func NewWebhookHandler(events EventSink) (*WebhookHandler, error) {
	if events == nil {
		return nil, fmt.Errorf("event sink is required")
	}
	return &WebhookHandler{events: events}, nil
}

func RegisterWebhookRoutes(router fiber.Router, events EventSink) error {
	h, err := NewWebhookHandler(events)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/events", h.ReceiveEvent)

	return nil
}

type webhookEventRequest struct {
	MessageID string          `json:"messageId"`
	Email     string          `json:"email"`
	Kind      string          `json:"kind"`
	Timestamp *time.Time      `json:"timestamp,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// ReceiveEvent accepts one delivery event. Events that match no lead or no
// valid transition are still acknowledged with 202 so the provider does not
// retry them forever.
func (h *WebhookHandler) ReceiveEvent(c *fiber.Ctx) error {
	var req webhookEventRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	kind, err := domain.ParseEventKindFromString(req.Kind)
	if err != nil {
		return toHTTPError(err)
	}

	event := domain.WebhookEvent{
		MessageID: strings.TrimSpace(req.MessageID),
		Email:     strings.TrimSpace(req.Email),
		Kind:      kind,
		Payload:   req.Payload,
	}
	if req.Timestamp != nil {
		event.Timestamp = *req.Timestamp
	}

	if err := h.events.OnEvent(c.Context(), event); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status": "accepted",
	})
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}
