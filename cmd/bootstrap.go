package cmd

import (
	"context"
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-tg-payments/app/events"
	"github.com/vibast-solutions/ms-go-tg-payments/app/gateway"
	"github.com/vibast-solutions/ms-go-tg-payments/app/metrics"
	"github.com/vibast-solutions/ms-go-tg-payments/app/repository"
	"github.com/vibast-solutions/ms-go-tg-payments/app/service"
	"github.com/vibast-solutions/ms-go-tg-payments/app/telegram"
	"github.com/vibast-solutions/ms-go-tg-payments/config"

	_ "github.com/glebarez/go-sqlite"
	_ "github.com/go-sql-driver/mysql"
)

type application struct {
	cfg            *config.Config
	db             *sql.DB
	registry       *prometheus.Registry
	metrics        *metrics.Metrics
	publisher      events.Publisher
	telegram       *telegram.Client
	paymentService *service.PaymentService
}

func mustLoadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}
	return cfg
}

func mustOpenDatabase(cfg config.DatabaseConfig) *sql.DB {
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	if cfg.Driver == config.DriverSQLite {
		// sqlite allows a single writer
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		logrus.WithError(err).Fatal("Failed to ping database")
	}

	return db
}

func mustTelegramClient(cfg config.TelegramConfig) *telegram.Client {
	client, err := newTelegramClient(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Invalid telegram configuration")
	}
	return client
}

// newTelegramClient fails only on configuration. An unreachable Telegram at boot is
// logged and the client is returned anyway.
func newTelegramClient(cfg config.TelegramConfig) (*telegram.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := telegram.NewClient(telegram.Config{
		Token:       cfg.Token,
		APIEndpoint: cfg.APIEndpoint,
		HTTPTimeout: cfg.HTTPTimeout,
	})
	if err != nil {
		return nil, err
	}
	if err := client.Authorize(); err != nil {
		logrus.WithError(err).Warn("Telegram getMe failed, continuing without bot identity")
	}
	return client, nil
}

func newPublisher(cfg config.KafkaConfig) events.Publisher {
	if len(cfg.Brokers) == 0 {
		logrus.Info("KAFKA_BROKERS not set, status events are not published")
		return events.NopPublisher{}
	}
	logrus.WithField("brokers", cfg.Brokers).WithField("topic", cfg.Topic).Info("Publishing status events to kafka")
	return events.NewKafkaPublisher(events.NewKafkaWriter(cfg.Brokers, cfg.Topic))
}

// mustCreateApplication wires the service context. A telegram token is required when
// requireTelegram is set and optional otherwise.
func mustCreateApplication(requireTelegram bool) (*application, func()) {
	cfg := mustLoadConfig()
	db := mustOpenDatabase(cfg.Database)

	if cfg.Database.AutoMigrate {
		if err := repository.Migrate(context.Background(), db, cfg.Database.Driver); err != nil {
			_ = db.Close()
			logrus.WithError(err).Fatal("Failed to apply migrations")
		}
	}

	if err := cfg.Instamojo.Validate(); err != nil {
		logrus.WithError(err).Warn("Instamojo credentials incomplete, payment links will fail")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	appMetrics := metrics.New(registry)

	var tgClient *telegram.Client
	if requireTelegram {
		tgClient = mustTelegramClient(cfg.Telegram)
	} else if client, err := newTelegramClient(cfg.Telegram); err != nil {
		logrus.WithError(err).Warn("Telegram not configured, requesters will not be notified")
	} else {
		tgClient = client
	}

	instamojo := gateway.NewInstamojoGateway(gateway.InstamojoConfig{
		APIKey:      cfg.Instamojo.APIKey,
		AuthToken:   cfg.Instamojo.AuthToken,
		Endpoint:    cfg.Instamojo.Endpoint,
		RedirectURL: cfg.App.CallbackURL(),
		WebhookURL:  cfg.App.GatewayWebhookURL(),
		PrivateSalt: cfg.Instamojo.PrivateSalt,
		HTTPTimeout: cfg.Instamojo.HTTPTimeout,
	})

	publisher := newPublisher(cfg.Kafka)

	paymentService := service.NewPaymentService(
		repository.NewPaymentRepository(db),
		repository.NewPaymentEventRepository(db),
		repository.NewPaymentCallbackRepository(db),
		instamojo,
		cfg.Instamojo,
		cfg.Jobs,
	).WithPublisher(publisher).WithMetrics(appMetrics)
	if tgClient != nil {
		paymentService.WithNotifier(tgClient)
	}

	app := &application{
		cfg:            cfg,
		db:             db,
		registry:       registry,
		metrics:        appMetrics,
		publisher:      publisher,
		telegram:       tgClient,
		paymentService: paymentService,
	}

	cleanup := func() {
		if err := publisher.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close event publisher")
		}
		if err := db.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close database")
		}
	}

	return app, cleanup
}
