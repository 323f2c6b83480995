package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/coldsend/outreach-engine/internal/domain"
	"github.com/coldsend/outreach-engine/internal/mailer"
	"github.com/coldsend/outreach-engine/internal/notify"
	"github.com/coldsend/outreach-engine/internal/queue"
)

// fakeLeadRepo is an in-memory lead source with the same conditional-commit
// semantics as the real adapters.
type fakeLeadRepo struct {
	mu    sync.Mutex
	order []string
	leads map[string]*domain.Lead

	commits   []string
	conflicts int

	fetchErr  error
	commitErr error
	// failCommitOnce injects a single conflict for the named lead key, to
	// simulate a webhook winning the race.
	failCommitOnce map[string]bool
}

func newFakeLeadRepo(leads ...domain.Lead) *fakeLeadRepo {
	repo := &fakeLeadRepo{
		leads:          make(map[string]*domain.Lead),
		failCommitOnce: make(map[string]bool),
	}
	for i := range leads {
		lead := leads[i]
		repo.order = append(repo.order, lead.Key)
		repo.leads[lead.Key] = &lead
	}
	return repo
}

func (r *fakeLeadRepo) FetchEligible(ctx context.Context, campaignID string, max int) ([]domain.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.fetchErr != nil {
		return nil, r.fetchErr
	}

	var eligible []domain.Lead
	for _, key := range r.order {
		lead := r.leads[key]
		if lead.Status != domain.StatusNew {
			continue
		}
		if lead.CampaignID != "" && lead.CampaignID != campaignID {
			continue
		}
		eligible = append(eligible, *lead)
		if len(eligible) == max {
			break
		}
	}
	return eligible, nil
}

func (r *fakeLeadRepo) GetByKey(ctx context.Context, key string) (*domain.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	lead, ok := r.leads[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *lead
	return &copied, nil
}

func (r *fakeLeadRepo) FindByMessageID(ctx context.Context, messageID string) (*domain.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, lead := range r.leads {
		if lead.MessageID == messageID && messageID != "" {
			copied := *lead
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *fakeLeadRepo) FindByEmail(ctx context.Context, email string) (*domain.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, lead := range r.leads {
		if lead.Email == email && email != "" {
			copied := *lead
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *fakeLeadRepo) Commit(ctx context.Context, key string, update domain.LeadUpdate, expected domain.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.commitErr != nil {
		return r.commitErr
	}
	if r.failCommitOnce[key] {
		delete(r.failCommitOnce, key)
		r.conflicts++
		return domain.ErrConflict
	}

	lead, ok := r.leads[key]
	if !ok {
		return domain.ErrNotFound
	}
	if lead.Status != expected {
		r.conflicts++
		return domain.ErrConflict
	}

	if update.Status != nil {
		lead.Status = *update.Status
	}
	if update.LastTouch != nil {
		touched := *update.LastTouch
		lead.LastTouch = &touched
	}
	if update.MessageID != nil {
		lead.MessageID = *update.MessageID
	}
	if update.CampaignID != nil {
		lead.CampaignID = *update.CampaignID
	}
	if update.ErrorDetail != nil {
		lead.ErrorDetail = *update.ErrorDetail
	}

	r.commits = append(r.commits, key)
	return nil
}

func (r *fakeLeadRepo) get(key string) domain.Lead {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.leads[key]
}

// fakeMailer returns scripted results per recipient; unscripted recipients
// succeed with a derived message id.
type fakeMailer struct {
	mu       sync.Mutex
	requests []mailer.SendRequest
	errByTo  map[string]error
}

func newFakeMailer() *fakeMailer {
	return &fakeMailer{errByTo: make(map[string]error)}
}

func (m *fakeMailer) Send(ctx context.Context, req mailer.SendRequest) (*mailer.SendResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)
	if err := m.errByTo[req.To]; err != nil {
		return nil, err
	}
	return &mailer.SendResult{MessageID: "msg-" + req.To}, nil
}

func (m *fakeMailer) sent() []mailer.SendRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mailer.SendRequest(nil), m.requests...)
}

// fakeThrottler records Wait calls without sleeping.
type fakeThrottler struct {
	mu    sync.Mutex
	waits int
	err   error
}

func (t *fakeThrottler) Wait(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.waits++
	return t.err
}

// fakeQuota allows a fixed number of reservations.
type fakeQuota struct {
	mu        sync.Mutex
	remaining int
	unlimited bool
}

func newFakeQuota(allowed int) *fakeQuota {
	if allowed < 0 {
		return &fakeQuota{unlimited: true}
	}
	return &fakeQuota{remaining: allowed}
}

func (q *fakeQuota) Reserve(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.unlimited {
		return nil
	}
	if q.remaining == 0 {
		return fmt.Errorf("daily cap reached: %w", domain.ErrQuotaExhausted)
	}
	q.remaining--
	return nil
}

// fakePublisher records published follow-up messages.
type fakePublisher struct {
	mu        sync.Mutex
	published []queue.FollowupMessage
	err       error
}

func (p *fakePublisher) Publish(ctx context.Context, queueName string, msg queue.FollowupMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, msg)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) messages() []queue.FollowupMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]queue.FollowupMessage(nil), p.published...)
}

// fakeNotifier records alerts.
type fakeNotifier struct {
	mu     sync.Mutex
	alerts []notify.Alert
}

func (n *fakeNotifier) Notify(ctx context.Context, alert notify.Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, alert)
	return nil
}

func (n *fakeNotifier) all() []notify.Alert {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Alert(nil), n.alerts...)
}
