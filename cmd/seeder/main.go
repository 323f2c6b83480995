// Seeder imports a CSV of leads into the Postgres lead source. Expected
// header: first_name,company,role,pain_point,hook,email. Rows with an email
// already present are skipped.
package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/coldsend/outreach-engine/internal/domain"
	"github.com/coldsend/outreach-engine/internal/infra/postgresql"
	"github.com/coldsend/outreach-engine/internal/infra/postgresql/migrations"
	"github.com/coldsend/outreach-engine/internal/observability"
	"github.com/coldsend/outreach-engine/internal/repository"
)

func main() {
	filePath := flag.String("file", "", "path to the leads CSV file")
	flag.Parse()

	if *filePath == "" {
		log.Fatal("usage: seeder -file leads.csv")
	}

	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		log.Fatal("DATABASE_DSN is required")
	}

	logger, err := observability.NewLogger(os.Getenv("LOG_LEVEL"))
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	db, err := postgresql.NewPostgres(dsn)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}
	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	repo := repository.NewGormLeadRepo(db)

	created, skipped, err := seed(context.Background(), repo, *filePath)
	if err != nil {
		logger.Fatal("seeding failed", zap.Error(err))
	}

	logger.Info("seeding finished",
		zap.Int("created", created),
		zap.Int("skipped", skipped),
	)
}

func seed(ctx context.Context, repo *repository.GormLeadRepo, filePath string) (created, skipped int, err error) {
	f, err := os.Open(filePath)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to open %s: %w", filePath, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := columns[domain.FieldEmail]; !ok {
		return 0, 0, fmt.Errorf("csv is missing the email column")
	}

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return created, skipped, fmt.Errorf("failed to read row: %w", err)
		}

		lead := rowToLead(columns, row)
		if lead.Email == "" {
			skipped++
			continue
		}

		if _, err := repo.FindByEmail(ctx, lead.Email); err == nil {
			skipped++
			continue
		} else if !errors.Is(err, domain.ErrNotFound) {
			return created, skipped, err
		}

		if err := repo.Create(ctx, &lead); err != nil {
			return created, skipped, fmt.Errorf("failed to create lead %s: %w", lead.Email, err)
		}
		created++
	}

	return created, skipped, nil
}

func rowToLead(columns map[string]int, row []string) domain.Lead {
	cell := func(name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	return domain.Lead{
		Key:    uuid.NewString(),
		Email:  cell(domain.FieldEmail),
		Status: domain.StatusNew,
		Fields: map[string]string{
			domain.FieldFirstName: cell(domain.FieldFirstName),
			domain.FieldCompany:   cell(domain.FieldCompany),
			domain.FieldRole:      cell(domain.FieldRole),
			domain.FieldPainPoint: cell(domain.FieldPainPoint),
			domain.FieldHook:      cell(domain.FieldHook),
		},
	}
}
