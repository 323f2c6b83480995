package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// EventKind is the kind of inbound webhook notification.
type EventKind string

const (
	EventOpened  EventKind = "opened"
	EventReplied EventKind = "replied"
	EventBounced EventKind = "bounced"
)

func (k EventKind) String() string { return string(k) }

func (k EventKind) IsValid() bool {
	switch k {
	case EventOpened, EventReplied, EventBounced:
		return true
	}
	return false
}

func ParseEventKindFromString(s string) (EventKind, error) {
	k := EventKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.IsValid() {
		return "", fmt.Errorf("%w: invalid event kind %q", ErrValidation, s)
	}
	return k, nil
}

// WebhookEvent is an asynchronous provider notification about a delivered
// message. The lead is resolved via MessageID, falling back to Email.
type WebhookEvent struct {
	MessageID string
	Email     string
	Kind      EventKind
	Timestamp time.Time
	Payload   json.RawMessage
}

func (e *WebhookEvent) Validate() error {
	if strings.TrimSpace(e.MessageID) == "" && strings.TrimSpace(e.Email) == "" {
		return fmt.Errorf("%w: event needs a message id or an email address", ErrValidation)
	}
	if !e.Kind.IsValid() {
		return fmt.Errorf("%w: invalid event kind %q", ErrValidation, e.Kind)
	}
	return nil
}

// SideEffect tags what an event transition triggers beyond the status write.
type SideEffect string

const (
	EffectNone     SideEffect = "none"
	EffectFollowUp SideEffect = "follow_up"
	EffectAlert    SideEffect = "alert"
)

type eventTransition struct {
	next   Status
	effect SideEffect
}

// Event handling is a pure state-transition table: current status x event
// kind -> new status + side-effect tag. Opened and replied apply only to
// sent leads; a bounce may also land while the row still reads new because
// the batch run holds the lead queued in memory only.
var eventTransitions = map[Status]map[EventKind]eventTransition{
	StatusSent: {
		EventOpened:  {next: StatusSent, effect: EffectNone},
		EventReplied: {next: StatusReplied, effect: EffectFollowUp},
		EventBounced: {next: StatusBounced, effect: EffectAlert},
	},
	StatusNew: {
		EventBounced: {next: StatusBounced, effect: EffectAlert},
	},
	StatusQueued: {
		EventBounced: {next: StatusBounced, effect: EffectAlert},
	},
}

// ApplyEvent resolves the transition table. ok is false when the event does
// not apply to the lead's current status and must be dropped.
func ApplyEvent(current Status, kind EventKind) (next Status, effect SideEffect, ok bool) {
	transition, found := eventTransitions[current][kind]
	if !found {
		return current, EffectNone, false
	}
	return transition.next, transition.effect, true
}
