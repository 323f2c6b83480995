package domain

import "time"

// Outcome classifies a send attempt. Quota exhaustion is not an outcome:
// it stops the batch before an attempt is produced.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeTransient Outcome = "transient"
	OutcomePermanent Outcome = "permanent"
)

func (o Outcome) String() string { return string(o) }

// SendAttempt is the ephemeral per-lead record produced by a batch iteration
// and consumed immediately by the state reconciler. It is not persisted
// beyond the run.
type SendAttempt struct {
	LeadKey     string
	Subject     string
	Body        string
	Outcome     Outcome
	MessageID   string
	ErrorDetail string
	Timestamp   time.Time
}
