package config

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
	"github.com/coldsend/outreach-engine/internal/domain"
	"github.com/coldsend/outreach-engine/internal/mailer"
)

// Lead source kinds.
const (
	LeadSourcePostgres = "postgres"
	LeadSourceSheets   = "sheets"
)

// Mailer kinds.
const (
	MailerResend = "resend"
	MailerRelay  = "relay"
)

type Config struct {
	CampaignID string `env:"CAMPAIGN_ID,required=true"`

	// Lead source. Postgres is the default; Sheets keeps the lead list in a
	// shared spreadsheet.
	LeadSource            string `env:"LEAD_SOURCE,default=postgres"`
	DatabaseDSN           string `env:"DATABASE_DSN"`
	SheetsCredentialsFile string `env:"SHEETS_CREDENTIALS_FILE"`
	SheetsSpreadsheetID   string `env:"SHEETS_SPREADSHEET_ID"`
	SheetsReadRange       string `env:"SHEETS_READ_RANGE,default=Leads!A:K"`

	// Delivery.
	Mailer       string `env:"MAILER,default=resend"`
	ResendAPIKey string `env:"RESEND_API_KEY"`
	RelayURL     string `env:"RELAY_URL"`
	MailFrom     string `env:"MAIL_FROM,required=true"`

	// Per-message metadata.
	MailReplyTo        string `env:"MAIL_REPLY_TO"`
	MailBCC            string `env:"MAIL_BCC"`
	MailUnsubscribeURL string `env:"MAIL_UNSUBSCRIBE_URL"`
	MailTrackingDomain string `env:"MAIL_TRACKING_DOMAIN"`

	// Batch and pacing.
	BatchSize            int `env:"BATCH_SIZE,default=25"`
	SendDelayMinSeconds  int `env:"SEND_DELAY_MIN_SECONDS,default=20"`
	SendDelayMaxSeconds  int `env:"SEND_DELAY_MAX_SECONDS,default=30"`
	DailyQuota           int `env:"DAILY_QUOTA,default=0"`

	// Schedule.
	ScheduleAt   string `env:"SCHEDULE_AT,default=08:00"`
	Timezone     string `env:"TIMEZONE,default=UTC"`
	SkipWeekends bool   `env:"SKIP_WEEKENDS,default=true"`

	// Templates.
	TemplateSubject  string `env:"TEMPLATE_SUBJECT,required=true"`
	TemplateBody     string `env:"TEMPLATE_BODY,required=true"`
	TemplateFallback string `env:"TEMPLATE_FALLBACK,default=there"`

	// Infrastructure. Redis backs the daily quota, RabbitMQ carries follow-up
	// actions, the Slack webhook receives operator alerts. All optional.
	RedisURL        string `env:"REDIS_URL"`
	RabbitMQURL     string `env:"RABBITMQ_URL"`
	SlackWebhookURL string `env:"SLACK_WEBHOOK_URL"`

	APIPort  int    `env:"API_PORT,default=8080"`
	LogLevel string `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.LeadSource {
	case LeadSourcePostgres:
		if c.DatabaseDSN == "" {
			return fmt.Errorf("DATABASE_DSN is required for the postgres lead source")
		}
	case LeadSourceSheets:
		if c.SheetsCredentialsFile == "" || c.SheetsSpreadsheetID == "" {
			return fmt.Errorf("SHEETS_CREDENTIALS_FILE and SHEETS_SPREADSHEET_ID are required for the sheets lead source")
		}
	default:
		return fmt.Errorf("unknown lead source %q", c.LeadSource)
	}

	switch c.Mailer {
	case MailerResend:
		if c.ResendAPIKey == "" {
			return fmt.Errorf("RESEND_API_KEY is required for the resend mailer")
		}
	case MailerRelay:
		if c.RelayURL == "" {
			return fmt.Errorf("RELAY_URL is required for the relay mailer")
		}
	default:
		return fmt.Errorf("unknown mailer %q", c.Mailer)
	}

	if c.DailyQuota > 0 && c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required when DAILY_QUOTA is set")
	}

	return nil
}

// Campaign assembles the immutable campaign configuration.
func (c *Config) Campaign() (domain.Campaign, error) {
	hour, minute, err := domain.ParseScheduleAt(c.ScheduleAt)
	if err != nil {
		return domain.Campaign{}, err
	}

	location, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return domain.Campaign{}, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}

	campaign := domain.Campaign{
		ID:            c.CampaignID,
		BatchSize:     c.BatchSize,
		SendDelayMin:  time.Duration(c.SendDelayMinSeconds) * time.Second,
		SendDelayMax:  time.Duration(c.SendDelayMaxSeconds) * time.Second,
		Subject:       c.TemplateSubject,
		Body:          c.TemplateBody,
		FieldFallback: c.TemplateFallback,
		Schedule: domain.Schedule{
			Hour:         hour,
			Minute:       minute,
			Location:     location,
			SkipWeekends: c.SkipWeekends,
		},
		SheetRange: c.SheetsReadRange,
	}

	if err := campaign.Validate(); err != nil {
		return domain.Campaign{}, err
	}

	return campaign, nil
}

// MailMetadata assembles the per-message header bundle.
func (c *Config) MailMetadata() mailer.Metadata {
	return mailer.Metadata{
		ReplyTo:        c.MailReplyTo,
		BCC:            c.MailBCC,
		UnsubscribeURL: c.MailUnsubscribeURL,
		TrackingDomain: c.MailTrackingDomain,
	}
}
