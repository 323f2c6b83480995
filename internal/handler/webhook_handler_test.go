package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/coldsend/outreach-engine/internal/domain"
	"github.com/gofiber/fiber/v2"
)

type fakeEventSink struct {
	mu     sync.Mutex
	events []domain.WebhookEvent
	err    error
}

func (s *fakeEventSink) OnEvent(ctx context.Context, event domain.WebhookEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

func newTestApp(t *testing.T, sink EventSink) *fiber.App {
	t.Helper()

	app := fiber.New()
	if err := RegisterWebhookRoutes(app, sink); err != nil {
		t.Fatalf("RegisterWebhookRoutes() error = %v", err)
	}
	return app
}

func postEvent(t *testing.T, app *fiber.App, body any) int {
	t.Helper()

	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}

	req := httptest.NewRequest("POST", "/v1/events", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()

	return resp.StatusCode
}

func TestReceiveEventAccepted(t *testing.T) {
	t.Parallel()

	sink := &fakeEventSink{}
	app := newTestApp(t, sink)

	status := postEvent(t, app, map[string]any{
		"messageId": "msg-1",
		"kind":      "replied",
	})
	if status != fiber.StatusAccepted {
		t.Fatalf("status = %d, want 202", status)
	}

	if len(sink.events) != 1 {
		t.Fatalf("events = %d, want 1", len(sink.events))
	}
	got := sink.events[0]
	if got.MessageID != "msg-1" || got.Kind != domain.EventReplied {
		t.Errorf("event = %+v, want msg-1/replied", got)
	}
}

func TestReceiveEventEmailOnly(t *testing.T) {
	t.Parallel()

	sink := &fakeEventSink{}
	app := newTestApp(t, sink)

	status := postEvent(t, app, map[string]any{
		"email": "jane@acme.test",
		"kind":  "bounced",
	})
	if status != fiber.StatusAccepted {
		t.Fatalf("status = %d, want 202", status)
	}
	if sink.events[0].Email != "jane@acme.test" {
		t.Errorf("email = %q, want jane@acme.test", sink.events[0].Email)
	}
}

func TestReceiveEventValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body map[string]any
	}{
		{name: "unknown kind", body: map[string]any{"messageId": "m", "kind": "clicked"}},
		{name: "missing kind", body: map[string]any{"messageId": "m"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sink := &fakeEventSink{}
			app := newTestApp(t, sink)

			if status := postEvent(t, app, tt.body); status != fiber.StatusBadRequest {
				t.Errorf("status = %d, want 400", status)
			}
			if len(sink.events) != 0 {
				t.Errorf("events = %d, want none", len(sink.events))
			}
		})
	}
}

func TestReceiveEventSinkValidationError(t *testing.T) {
	t.Parallel()

	sink := &fakeEventSink{err: domain.ErrValidation}
	app := newTestApp(t, sink)

	status := postEvent(t, app, map[string]any{"messageId": "m", "kind": "opened"})
	if status != fiber.StatusBadRequest {
		t.Errorf("status = %d, want 400", status)
	}
}

func TestRegisterWebhookRoutesRequiresSink(t *testing.T) {
	t.Parallel()

	if err := RegisterWebhookRoutes(fiber.New(), nil); err == nil {
		t.Fatal("expected error for nil event sink")
	}
}
