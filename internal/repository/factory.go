package repository

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

const (
	SourcePostgres = "postgres"
	SourceSheets   = "sheets"
)

// SourceSettings selects and configures the lead source backend.
type SourceSettings struct {
	Kind                  string
	DB                    *gorm.DB
	SheetsCredentialsFile string
	SpreadsheetID         string
	ReadRange             string
}

// NewLeadRepository builds the configured lead source adapter.
func NewLeadRepository(ctx context.Context, settings SourceSettings) (LeadRepository, error) {
	switch strings.ToLower(strings.TrimSpace(settings.Kind)) {
	case SourcePostgres, "":
		if settings.DB == nil {
			return nil, fmt.Errorf("postgres lead source requires a database handle")
		}
		return NewGormLeadRepo(settings.DB), nil
	case SourceSheets:
		return NewSheetsLeadRepo(ctx, settings.SheetsCredentialsFile, settings.SpreadsheetID, settings.ReadRange)
	default:
		return nil, fmt.Errorf("unsupported lead source %q", settings.Kind)
	}
}
