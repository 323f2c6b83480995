package domain

import (
	"fmt"
	"strings"
	"time"
)

// Status represents the delivery lifecycle state of a lead.
type Status string

const (
	StatusNew     Status = "new"
	StatusQueued  Status = "queued"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
	StatusReplied Status = "replied"
	StatusBounced Status = "bounced"
)

func (s Status) String() string { return string(s) }

func (s Status) IsValid() bool {
	switch s {
	case StatusNew, StatusQueued, StatusSent, StatusFailed, StatusReplied, StatusBounced:
		return true
	}
	return false
}

// IsTerminal reports whether a lead is out of first-touch eligibility for good.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusFailed, StatusReplied, StatusBounced:
		return true
	}
	return false
}

func ParseStatusFromString(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid status %q", ErrValidation, s)
	}
	return st, nil
}

// Personalization field names shared by the template engine and the lead
// source column mapping.
const (
	FieldFirstName = "first_name"
	FieldCompany   = "company"
	FieldRole      = "role"
	FieldPainPoint = "pain_point"
	FieldHook      = "hook"
	FieldEmail     = "email"
)

// Lead is a single outreach target row. It is owned by the lead source and
// mutated only through conditional commits keyed by the last-known status.
type Lead struct {
	Key         string
	Email       string
	Fields      map[string]string
	Status      Status
	LastTouch   *time.Time
	CampaignID  string
	MessageID   string
	ErrorDetail string
}

func (l *Lead) Validate() error {
	if strings.TrimSpace(l.Key) == "" {
		return fmt.Errorf("%w: lead key is required", ErrValidation)
	}
	if strings.TrimSpace(l.Email) == "" {
		return fmt.Errorf("%w: lead email is required", ErrValidation)
	}
	if !l.Status.IsValid() {
		return fmt.Errorf("%w: invalid status %q", ErrValidation, l.Status)
	}
	return nil
}

// Field returns a personalization field value, falling back to the built-in
// email field so templates can always reference the recipient address.
func (l *Lead) Field(name string) (string, bool) {
	if name == FieldEmail && l.Email != "" {
		return l.Email, true
	}
	value, ok := l.Fields[name]
	return value, ok
}

// LeadUpdate carries the fields a commit is allowed to change. Nil pointers
// leave the column untouched.
type LeadUpdate struct {
	Status      *Status
	LastTouch   *time.Time
	MessageID   *string
	CampaignID  *string
	ErrorDetail *string
}

// first-touch transitions; replied/bounced are reachable only through
// webhook events (see event.go).
var firstTouchTransitions = map[Status][]Status{
	StatusNew:    {StatusQueued, StatusSent, StatusFailed},
	StatusQueued: {StatusSent, StatusFailed},
}

// CanTransition reports whether a first-touch status move is allowed. The
// progression is monotonic: new -> queued -> sent|failed.
func CanTransition(from, to Status) bool {
	for _, allowed := range firstTouchTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
