package repository

import (
	"context"
	"errors"

	"github.com/coldsend/outreach-engine/internal/domain"
	"gorm.io/gorm"
)

// LeadRepository is the lead source port: a row-oriented read/write adapter
// over the external tabular store. All mutation goes through Commit, a
// conditional write keyed by the lead's last-known status, so the batch loop
// and the event listener cannot silently clobber each other.
type LeadRepository interface {
	// FetchEligible returns up to max leads with status new, oldest or
	// never-touched first. Leads already claimed by another campaign are
	// excluded.
	FetchEligible(ctx context.Context, campaignID string, max int) ([]domain.Lead, error)
	GetByKey(ctx context.Context, key string) (*domain.Lead, error)
	FindByMessageID(ctx context.Context, messageID string) (*domain.Lead, error)
	FindByEmail(ctx context.Context, email string) (*domain.Lead, error)
	// Commit applies update only while the lead still holds expected status;
	// it fails with domain.ErrConflict when a concurrent writer got there
	// first and domain.ErrNotFound when the key does not resolve.
	Commit(ctx context.Context, key string, update domain.LeadUpdate, expected domain.Status) error
}

// GormLeadRepo is the Postgres-backed lead source.
type GormLeadRepo struct {
	db *gorm.DB
}

func NewGormLeadRepo(db *gorm.DB) *GormLeadRepo {
	return &GormLeadRepo{db: db}
}

var _ LeadRepository = (*GormLeadRepo)(nil)

// Create inserts a lead row. Used by intake tooling, not by the engine loop.
func (r *GormLeadRepo) Create(ctx context.Context, lead *domain.Lead) error {
	model := leadModelFromDomain(lead)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if lead != nil {
		*lead = *leadModelToDomain(model)
	}
	return nil
}

func (r *GormLeadRepo) FetchEligible(ctx context.Context, campaignID string, max int) ([]domain.Lead, error) {
	var models []LeadModel
	err := r.db.WithContext(ctx).
		Where("status = ?", domain.StatusNew).
		Where("campaign = '' OR campaign = ?", campaignID).
		Order("last_touch ASC NULLS FIRST").
		Limit(max).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	leads := make([]domain.Lead, 0, len(models))
	for i := range models {
		leads = append(leads, *leadModelToDomain(&models[i]))
	}

	return leads, nil
}

func (r *GormLeadRepo) GetByKey(ctx context.Context, key string) (*domain.Lead, error) {
	var model LeadModel
	err := r.db.WithContext(ctx).First(&model, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return leadModelToDomain(&model), nil
}

func (r *GormLeadRepo) FindByMessageID(ctx context.Context, messageID string) (*domain.Lead, error) {
	var model LeadModel
	err := r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return leadModelToDomain(&model), nil
}

func (r *GormLeadRepo) FindByEmail(ctx context.Context, email string) (*domain.Lead, error) {
	var model LeadModel
	err := r.db.WithContext(ctx).
		Where("email = ?", email).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return leadModelToDomain(&model), nil
}

func (r *GormLeadRepo) Commit(ctx context.Context, key string, update domain.LeadUpdate, expected domain.Status) error {
	updates := map[string]any{}
	if update.Status != nil {
		updates["status"] = *update.Status
	}
	if update.LastTouch != nil {
		updates["last_touch"] = *update.LastTouch
	}
	if update.MessageID != nil {
		updates["message_id"] = *update.MessageID
	}
	if update.CampaignID != nil {
		updates["campaign"] = *update.CampaignID
	}
	if update.ErrorDetail != nil {
		updates["error_detail"] = *update.ErrorDetail
	}
	if len(updates) == 0 {
		return nil
	}

	result := r.db.WithContext(ctx).
		Model(&LeadModel{}).
		Where("key = ? AND status = ?", key, expected).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	// Zero rows: either the key is gone or the status moved underneath us.
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&LeadModel{}).
		Where("key = ?", key).
		Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return domain.ErrNotFound
	}
	return domain.ErrConflict
}
