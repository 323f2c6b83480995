package queue

import (
	"fmt"
	"strings"
	"time"

	"github.com/coldsend/outreach-engine/internal/domain"
)

// FollowupMessage is the broker payload describing why a lead needs a
// follow-up action.
type FollowupMessage struct {
	LeadKey    string           `json:"leadKey"`
	Email      string           `json:"email,omitempty"`
	CampaignID string           `json:"campaignId"`
	Trigger    domain.EventKind `json:"trigger"`
	OccurredAt time.Time        `json:"occurredAt"`
}

func (m FollowupMessage) Validate() error {
	if strings.TrimSpace(m.LeadKey) == "" {
		return fmt.Errorf("leadKey is required")
	}
	if strings.TrimSpace(m.CampaignID) == "" {
		return fmt.Errorf("campaignId is required")
	}
	if !m.Trigger.IsValid() {
		return fmt.Errorf("invalid trigger %q", m.Trigger)
	}
	return nil
}
