package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/coldsend/outreach-engine/internal/config"
	"github.com/coldsend/outreach-engine/internal/handler"
	"github.com/coldsend/outreach-engine/internal/infra/postgresql"
	"github.com/coldsend/outreach-engine/internal/infra/postgresql/migrations"
	infraredis "github.com/coldsend/outreach-engine/internal/infra/redis"
	"github.com/coldsend/outreach-engine/internal/mailer"
	"github.com/coldsend/outreach-engine/internal/notify"
	"github.com/coldsend/outreach-engine/internal/observability"
	"github.com/coldsend/outreach-engine/internal/queue"
	"github.com/coldsend/outreach-engine/internal/ratelimit"
	"github.com/coldsend/outreach-engine/internal/repository"
	"github.com/coldsend/outreach-engine/internal/service"
	"github.com/coldsend/outreach-engine/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("engine exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	campaign, err := cfg.Campaign()
	if err != nil {
		return fmt.Errorf("invalid campaign configuration: %w", err)
	}

	var sqlDB *sql.DB
	sourceSettings := repository.SourceSettings{
		Kind:                  cfg.LeadSource,
		SheetsCredentialsFile: cfg.SheetsCredentialsFile,
		SpreadsheetID:         cfg.SheetsSpreadsheetID,
		ReadRange:             cfg.SheetsReadRange,
	}

	if cfg.LeadSource == config.LeadSourcePostgres {
		db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
		if err != nil {
			return fmt.Errorf("postgres initialization failed: %w", err)
		}
		if err := migrations.Migrate(db); err != nil {
			return fmt.Errorf("database migrations failed: %w", err)
		}
		sqlDB, err = db.DB()
		if err != nil {
			return fmt.Errorf("postgres underlying db init failed: %w", err)
		}
		defer sqlDB.Close()

		sourceSettings.DB = db
	}

	leads, err := repository.NewLeadRepository(ctx, sourceSettings)
	if err != nil {
		return fmt.Errorf("lead source initialization failed: %w", err)
	}

	sender, err := buildMailer(cfg)
	if err != nil {
		return err
	}

	var rdb *goredis.Client
	var quota ratelimit.QuotaGuard = ratelimit.NopQuota{}
	if cfg.DailyQuota > 0 {
		rdb, err = infraredis.NewRedis(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis initialization failed: %w", err)
		}
		defer rdb.Close()

		quota, err = infraredis.NewDailyQuota(rdb, campaign.ID, cfg.DailyQuota)
		if err != nil {
			return fmt.Errorf("daily quota initialization failed: %w", err)
		}
	}

	var publisher queue.Publisher = queue.NopPublisher{}
	if cfg.RabbitMQURL != "" {
		rabbit, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
		if err != nil {
			return fmt.Errorf("rabbitmq initialization failed: %w", err)
		}
		publisher = queue.NewRabbitMQPublisher(rabbit)
		defer publisher.Close()
	}

	var notifier notify.Notifier = notify.NopNotifier{}
	if cfg.SlackWebhookURL != "" {
		notifier, err = notify.NewSlackNotifier(cfg.SlackWebhookURL)
		if err != nil {
			return fmt.Errorf("slack notifier initialization failed: %w", err)
		}
	}

	metrics := observability.NewMetrics()

	reconciler, err := service.NewStateReconciler(leads, notifier, campaign.ID, logger)
	if err != nil {
		return err
	}
	reconciler.SetMetrics(metrics)

	throttleFactory := func() ratelimit.Throttler {
		t, err := ratelimit.NewSpacingThrottler(campaign.SendDelayMin, campaign.SendDelayMax)
		if err != nil {
			// Campaign validation already bounds the delay range.
			logger.Error("throttler initialization failed", zap.Error(err))
			return ratelimit.NopThrottler{}
		}
		return t
	}

	processor, err := service.NewBatchProcessor(
		leads, sender, reconciler, throttleFactory, quota, campaign, cfg.MailMetadata(), logger,
	)
	if err != nil {
		return err
	}
	processor.SetMetrics(metrics)

	scheduler, err := service.NewScheduler(processor, campaign.Schedule, campaign.ID, logger)
	if err != nil {
		return err
	}
	scheduler.SetMetrics(metrics)

	events, err := service.NewEventService(leads, publisher, notifier, logger)
	if err != nil {
		return err
	}
	events.SetMetrics(metrics)

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(transport.CorrelationMiddleware())
	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	if err := handler.RegisterWebhookRoutes(app, events); err != nil {
		return err
	}

	g, groupCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return scheduler.Start(groupCtx)
	})

	g.Go(func() error {
		logger.Info("outreach engine started",
			zap.String("campaignId", campaign.ID),
			zap.Int("port", cfg.APIPort),
		)
		return app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	})

	g.Go(func() error {
		<-groupCtx.Done()
		return app.Shutdown()
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}

	logger.Info("outreach engine stopped")
	return nil
}

func buildMailer(cfg *config.Config) (mailer.Mailer, error) {
	switch cfg.Mailer {
	case config.MailerResend:
		return mailer.NewResendMailer(cfg.ResendAPIKey, cfg.MailFrom)
	case config.MailerRelay:
		return mailer.NewRelayMailer(cfg.RelayURL)
	default:
		return nil, fmt.Errorf("unknown mailer %q", cfg.Mailer)
	}
}
