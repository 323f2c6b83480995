package repository

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/coldsend/outreach-engine/internal/domain"
	sheets "google.golang.org/api/sheets/v4"
	"google.golang.org/api/option"
)

// Sheet column layout, matching the outreach sheet the campaign reads from:
// A First Name, B Company, C Role, D Pain Point, E Hook, F Status, G Email,
// H Last Touch, I Campaign, J Message Id, K Error.
const (
	colFirstName = iota
	colCompany
	colRole
	colPainPoint
	colHook
	colStatus
	colEmail
	colLastTouch
	colCampaign
	colMessageID
	colError
	sheetColumnCount
)

const sheetTimeLayout = time.RFC3339

// SheetsLeadRepo reads and writes lead rows in a Google Sheet. Lead keys are
// 1-based sheet row numbers. The sheet has no conditional-write primitive,
// so Commit re-reads the status cell and compares before writing; the small
// read-write window is acceptable because only the engine and its webhook
// listener write to the outreach columns.
type SheetsLeadRepo struct {
	svc           *sheets.Service
	spreadsheetID string
	sheetName     string
	readRange     string
}

func NewSheetsLeadRepo(ctx context.Context, credentialsFile, spreadsheetID, readRange string) (*SheetsLeadRepo, error) {
	if strings.TrimSpace(credentialsFile) == "" {
		return nil, fmt.Errorf("sheets credentials file is required")
	}

	svc, err := sheets.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build sheets service: %w", err)
	}

	return NewSheetsLeadRepoWithService(svc, spreadsheetID, readRange)
}

func NewSheetsLeadRepoWithService(svc *sheets.Service, spreadsheetID, readRange string) (*SheetsLeadRepo, error) {
	if svc == nil {
		return nil, fmt.Errorf("sheets service is required")
	}
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, fmt.Errorf("spreadsheet id is required")
	}

	sheetName, err := sheetNameFromRange(readRange)
	if err != nil {
		return nil, err
	}

	return &SheetsLeadRepo{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		readRange:     readRange,
	}, nil
}

var _ LeadRepository = (*SheetsLeadRepo)(nil)

func sheetNameFromRange(readRange string) (string, error) {
	name, _, found := strings.Cut(strings.TrimSpace(readRange), "!")
	if !found || name == "" {
		return "", fmt.Errorf("range %q must be sheet-qualified, e.g. Leads!A:K", readRange)
	}
	return name, nil
}

func (r *SheetsLeadRepo) FetchEligible(ctx context.Context, campaignID string, max int) ([]domain.Lead, error) {
	leads, err := r.readAll(ctx)
	if err != nil {
		return nil, err
	}

	eligible := make([]domain.Lead, 0, max)
	for _, lead := range leads {
		if lead.Status != domain.StatusNew {
			continue
		}
		if lead.CampaignID != "" && lead.CampaignID != campaignID {
			continue
		}
		eligible = append(eligible, lead)
	}

	// Oldest or never-touched first.
	sort.SliceStable(eligible, func(i, j int) bool {
		a, b := eligible[i].LastTouch, eligible[j].LastTouch
		switch {
		case a == nil:
			return b != nil
		case b == nil:
			return false
		default:
			return a.Before(*b)
		}
	})

	if len(eligible) > max {
		eligible = eligible[:max]
	}
	return eligible, nil
}

func (r *SheetsLeadRepo) GetByKey(ctx context.Context, key string) (*domain.Lead, error) {
	rowNum, err := rowNumberFromKey(key)
	if err != nil {
		return nil, err
	}

	rowRange := fmt.Sprintf("%s!A%d:K%d", r.sheetName, rowNum, rowNum)
	resp, err := r.svc.Spreadsheets.Values.Get(r.spreadsheetID, rowRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read row %d: %w", rowNum, err)
	}
	if len(resp.Values) == 0 {
		return nil, domain.ErrNotFound
	}

	lead := rowToLead(rowNum, resp.Values[0])
	return &lead, nil
}

func (r *SheetsLeadRepo) FindByMessageID(ctx context.Context, messageID string) (*domain.Lead, error) {
	return r.findFirst(ctx, func(l domain.Lead) bool { return l.MessageID == messageID })
}

func (r *SheetsLeadRepo) FindByEmail(ctx context.Context, email string) (*domain.Lead, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	return r.findFirst(ctx, func(l domain.Lead) bool {
		return strings.ToLower(strings.TrimSpace(l.Email)) == normalized
	})
}

func (r *SheetsLeadRepo) findFirst(ctx context.Context, match func(domain.Lead) bool) (*domain.Lead, error) {
	leads, err := r.readAll(ctx)
	if err != nil {
		return nil, err
	}
	for i := range leads {
		if match(leads[i]) {
			return &leads[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *SheetsLeadRepo) Commit(ctx context.Context, key string, update domain.LeadUpdate, expected domain.Status) error {
	rowNum, err := rowNumberFromKey(key)
	if err != nil {
		return err
	}

	// Re-read the bookkeeping columns F:K and compare the status stamp.
	writeRange := fmt.Sprintf("%s!F%d:K%d", r.sheetName, rowNum, rowNum)
	resp, err := r.svc.Spreadsheets.Values.Get(r.spreadsheetID, writeRange).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to read row %d before commit: %w", rowNum, err)
	}
	if len(resp.Values) == 0 {
		return domain.ErrNotFound
	}

	row := resp.Values[0]
	current, err := domain.ParseStatusFromString(cellAt(row, 0))
	if err != nil || current != expected {
		return domain.ErrConflict
	}

	status := cellAt(row, 0)
	email := cellAt(row, 1)
	lastTouch := cellAt(row, 2)
	campaign := cellAt(row, 3)
	messageID := cellAt(row, 4)
	errorDetail := cellAt(row, 5)

	if update.Status != nil {
		status = update.Status.String()
	}
	if update.LastTouch != nil {
		lastTouch = update.LastTouch.UTC().Format(sheetTimeLayout)
	}
	if update.CampaignID != nil {
		campaign = *update.CampaignID
	}
	if update.MessageID != nil {
		messageID = *update.MessageID
	}
	if update.ErrorDetail != nil {
		errorDetail = *update.ErrorDetail
	}

	values := &sheets.ValueRange{
		Values: [][]any{{status, email, lastTouch, campaign, messageID, errorDetail}},
	}
	_, err = r.svc.Spreadsheets.Values.
		Update(r.spreadsheetID, writeRange, values).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to write row %d: %w", rowNum, err)
	}

	return nil
}

func (r *SheetsLeadRepo) readAll(ctx context.Context) ([]domain.Lead, error) {
	resp, err := r.svc.Spreadsheets.Values.Get(r.spreadsheetID, r.readRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read range %q: %w", r.readRange, err)
	}

	// First row is the header.
	leads := make([]domain.Lead, 0, len(resp.Values))
	for i, row := range resp.Values {
		if i == 0 {
			continue
		}
		leads = append(leads, rowToLead(i+1, row))
	}
	return leads, nil
}

func rowToLead(rowNum int, row []any) domain.Lead {
	status, err := domain.ParseStatusFromString(cellAt(row, colStatus))
	if err != nil {
		// Blank or unrecognized status cells read as new rows not yet
		// normalized by intake; they are still first-touch eligible.
		status = domain.StatusNew
	}

	lead := domain.Lead{
		Key:   strconv.Itoa(rowNum),
		Email: strings.TrimSpace(cellAt(row, colEmail)),
		Fields: map[string]string{
			domain.FieldFirstName: cellAt(row, colFirstName),
			domain.FieldCompany:   cellAt(row, colCompany),
			domain.FieldRole:      cellAt(row, colRole),
			domain.FieldPainPoint: cellAt(row, colPainPoint),
			domain.FieldHook:      cellAt(row, colHook),
		},
		Status:      status,
		CampaignID:  strings.TrimSpace(cellAt(row, colCampaign)),
		MessageID:   strings.TrimSpace(cellAt(row, colMessageID)),
		ErrorDetail: cellAt(row, colError),
	}

	if raw := strings.TrimSpace(cellAt(row, colLastTouch)); raw != "" {
		if parsed, err := time.Parse(sheetTimeLayout, raw); err == nil {
			lead.LastTouch = &parsed
		}
	}

	return lead
}

func cellAt(row []any, index int) string {
	if index >= len(row) {
		return ""
	}
	value, ok := row[index].(string)
	if !ok {
		return fmt.Sprint(row[index])
	}
	return value
}

func rowNumberFromKey(key string) (int, error) {
	rowNum, err := strconv.Atoi(strings.TrimSpace(key))
	if err != nil || rowNum < 2 {
		return 0, fmt.Errorf("%w: key %q is not a sheet row", domain.ErrNotFound, key)
	}
	return rowNum, nil
}
