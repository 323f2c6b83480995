package repository

import (
	"time"

	"github.com/coldsend/outreach-engine/internal/domain"
)

// LeadModel is the persistence model for the leads table. Columns mirror the
// outreach sheet layout: First Name, Company, Role, Pain Point, Hook,
// Status, Email, Last Touch, Campaign, Message Id.
type LeadModel struct {
	Key         string        `gorm:"type:uuid;primaryKey"`
	FirstName   string        `gorm:"type:varchar(255)"`
	Company     string        `gorm:"type:varchar(255)"`
	Role        string        `gorm:"type:varchar(255)"`
	PainPoint   string        `gorm:"type:text"`
	Hook        string        `gorm:"type:text"`
	Status      domain.Status `gorm:"type:varchar(20);not null;default:'new'"`
	Email       string        `gorm:"type:varchar(255);not null"`
	LastTouch   *time.Time    `gorm:"type:timestamptz"`
	Campaign    string        `gorm:"type:varchar(255);not null;default:''"`
	MessageID   string        `gorm:"type:varchar(255);not null;default:'';column:message_id"`
	ErrorDetail string        `gorm:"type:text;not null;default:''"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (LeadModel) TableName() string {
	return "leads"
}

func leadModelToDomain(m *LeadModel) *domain.Lead {
	if m == nil {
		return nil
	}

	return &domain.Lead{
		Key:   m.Key,
		Email: m.Email,
		Fields: map[string]string{
			domain.FieldFirstName: m.FirstName,
			domain.FieldCompany:   m.Company,
			domain.FieldRole:      m.Role,
			domain.FieldPainPoint: m.PainPoint,
			domain.FieldHook:      m.Hook,
		},
		Status:      m.Status,
		LastTouch:   m.LastTouch,
		CampaignID:  m.Campaign,
		MessageID:   m.MessageID,
		ErrorDetail: m.ErrorDetail,
	}
}

func leadModelFromDomain(l *domain.Lead) *LeadModel {
	if l == nil {
		return nil
	}

	return &LeadModel{
		Key:         l.Key,
		FirstName:   l.Fields[domain.FieldFirstName],
		Company:     l.Fields[domain.FieldCompany],
		Role:        l.Fields[domain.FieldRole],
		PainPoint:   l.Fields[domain.FieldPainPoint],
		Hook:        l.Fields[domain.FieldHook],
		Status:      l.Status,
		Email:       l.Email,
		LastTouch:   l.LastTouch,
		Campaign:    l.CampaignID,
		MessageID:   l.MessageID,
		ErrorDetail: l.ErrorDetail,
	}
}
