package migrations

import (
	"github.com/coldsend/outreach-engine/internal/repository"
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "000001_create_leads",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.LeadModel{}); err != nil {
					return err
				}
				indexes := []string{
					// FetchEligible scans status=new ordered by last_touch.
					`CREATE INDEX IF NOT EXISTS idx_leads_status_last_touch ON leads (status, last_touch ASC NULLS FIRST)`,
					// Webhook events resolve by message id, falling back to email.
					`CREATE INDEX IF NOT EXISTS idx_leads_message_id ON leads (message_id) WHERE message_id <> ''`,
					`CREATE UNIQUE INDEX IF NOT EXISTS idx_leads_email ON leads (email)`,
				}
				for _, sql := range indexes {
					if err := tx.Exec(sql).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.LeadModel{})
			},
		},
	})

	return m.Migrate()
}
