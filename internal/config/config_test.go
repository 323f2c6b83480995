package config

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CAMPAIGN_ID", "q3-outbound")
	t.Setenv("DATABASE_DSN", "host=localhost user=test password=test dbname=test port=5432 sslmode=disable")
	t.Setenv("RESEND_API_KEY", "re_test_key")
	t.Setenv("MAIL_FROM", "outreach@coldsend.test")
	t.Setenv("TEMPLATE_SUBJECT", "Quick question for {{company}}")
	t.Setenv("TEMPLATE_BODY", "Hi {{first_name}}, worth a chat?")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.LeadSource != LeadSourcePostgres {
		t.Errorf("LeadSource = %s, want postgres", cfg.LeadSource)
	}
	if cfg.Mailer != MailerResend {
		t.Errorf("Mailer = %s, want resend", cfg.Mailer)
	}
	if cfg.BatchSize != 25 {
		t.Errorf("BatchSize = %d, want 25", cfg.BatchSize)
	}
	if cfg.SendDelayMinSeconds != 20 || cfg.SendDelayMaxSeconds != 30 {
		t.Errorf("send delay = [%d, %d], want [20, 30]", cfg.SendDelayMinSeconds, cfg.SendDelayMaxSeconds)
	}
	if cfg.ScheduleAt != "08:00" {
		t.Errorf("ScheduleAt = %s, want 08:00", cfg.ScheduleAt)
	}
	if !cfg.SkipWeekends {
		t.Error("SkipWeekends = false, want true")
	}
	if cfg.APIPort != 8080 {
		t.Errorf("APIPort = %d, want 8080", cfg.APIPort)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %s, want info", cfg.LogLevel)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("BATCH_SIZE", "10")
	t.Setenv("SCHEDULE_AT", "09:30")
	t.Setenv("TIMEZONE", "America/New_York")
	t.Setenv("API_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.BatchSize != 10 {
		t.Errorf("BatchSize = %d, want 10", cfg.BatchSize)
	}
	if cfg.ScheduleAt != "09:30" {
		t.Errorf("ScheduleAt = %s, want 09:30", cfg.ScheduleAt)
	}
	if cfg.APIPort != 9090 {
		t.Errorf("APIPort = %d, want 9090", cfg.APIPort)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %s, want debug", cfg.LogLevel)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("CAMPAIGN_ID", "q3-outbound")
	t.Setenv("DATABASE_DSN", "host=localhost")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing required env vars, got nil")
	}
}

func TestLoad_PostgresSourceNeedsDSN(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DATABASE_DSN", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for postgres source without DATABASE_DSN")
	}
}

func TestLoad_SheetsSourceNeedsCredentials(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("LEAD_SOURCE", "sheets")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for sheets source without credentials")
	}

	t.Setenv("SHEETS_CREDENTIALS_FILE", "/etc/coldsend/sa.json")
	t.Setenv("SHEETS_SPREADSHEET_ID", "sheet-123")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.SheetsReadRange != "Leads!A:K" {
		t.Errorf("SheetsReadRange = %s, want Leads!A:K", cfg.SheetsReadRange)
	}
}

func TestLoad_RelayMailerNeedsURL(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MAILER", "relay")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for relay mailer without RELAY_URL")
	}

	t.Setenv("RELAY_URL", "https://relay.coldsend.test/send")
	if _, err := Load(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoad_QuotaNeedsRedis(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DAILY_QUOTA", "100")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for daily quota without REDIS_URL")
	}

	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	if _, err := Load(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCampaignFromConfig(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SCHEDULE_AT", "08:00")
	t.Setenv("TIMEZONE", "America/New_York")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	campaign, err := cfg.Campaign()
	if err != nil {
		t.Fatalf("Campaign() error = %v", err)
	}

	if campaign.ID != "q3-outbound" {
		t.Errorf("ID = %s, want q3-outbound", campaign.ID)
	}
	if campaign.Schedule.Hour != 8 || campaign.Schedule.Minute != 0 {
		t.Errorf("schedule = %02d:%02d, want 08:00", campaign.Schedule.Hour, campaign.Schedule.Minute)
	}
	if campaign.Schedule.Location.String() != "America/New_York" {
		t.Errorf("location = %s, want America/New_York", campaign.Schedule.Location)
	}
	if campaign.SendDelayMin != 20*time.Second || campaign.SendDelayMax != 30*time.Second {
		t.Errorf("send delay = [%s, %s], want [20s, 30s]", campaign.SendDelayMin, campaign.SendDelayMax)
	}
}

func TestCampaignInvalidSchedule(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SCHEDULE_AT", "25:00")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := cfg.Campaign(); err == nil {
		t.Fatal("expected error for out-of-range schedule hour")
	}

	t.Setenv("SCHEDULE_AT", "08:00")
	t.Setenv("TIMEZONE", "Mars/Olympus")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := cfg.Campaign(); err == nil {
		t.Fatal("expected error for unknown timezone")
	}
}
