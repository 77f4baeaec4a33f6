package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/kelseyhightower/envconfig"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/recordvault/access-api/internal/email"
	"github.com/recordvault/access-api/internal/repository/postgres"
	"github.com/recordvault/access-api/pkg/logger"
	"github.com/recordvault/access-api/pkg/messaging/redis"
	"github.com/recordvault/access-api/pkg/metrics"
	"github.com/recordvault/access-api/pkg/worker"
)

// workerConfig comes from the environment; the worker runs standalone and has
// no use for the api server's yaml file.
type workerConfig struct {
	DatabaseURL  string        `envconfig:"DATABASE_URL" required:"true"`
	RedisURL     string        `envconfig:"REDIS_URL" default:"redis://localhost:6379"`
	BatchSize    int           `envconfig:"OUTBOX_BATCH_SIZE" default:"50"`
	PollInterval time.Duration `envconfig:"OUTBOX_POLL_INTERVAL" default:"5s"`
	Channel      string        `envconfig:"OUTBOX_CHANNEL" default:"access-notifications"`
	HealthPort   int           `envconfig:"HEALTH_PORT" default:"8081"`

	SMTPHost       string   `envconfig:"SMTP_HOST"`
	SMTPPort       int      `envconfig:"SMTP_PORT" default:"587"`
	SMTPUsername   string   `envconfig:"SMTP_USERNAME"`
	SMTPPassword   string   `envconfig:"SMTP_PASSWORD"`
	SMTPFrom       string   `envconfig:"SMTP_FROM"`
	NotifyContacts []string `envconfig:"NOTIFY_RECIPIENTS"`
}

func main() {
	var cfg workerConfig
	if err := envconfig.Process("worker", &cfg); err != nil {
		log.Fatal().Err(err).Msg("failed to load worker configuration")
	}

	lg := logger.NewLogger(nil)

	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	broker, err := redis.NewRedisBroker(redis.Config{URL: cfg.RedisURL}, &log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer broker.Close()

	var notifier email.Notifier
	if cfg.SMTPHost != "" {
		notifier = email.NewNotifier(email.Config{
			Host:       cfg.SMTPHost,
			Port:       cfg.SMTPPort,
			Username:   cfg.SMTPUsername,
			Password:   cfg.SMTPPassword,
			From:       cfg.SMTPFrom,
			Recipients: cfg.NotifyContacts,
		})
	}

	baseRepo := postgres.NewBaseRepository(db)
	outboxRepo := postgres.NewOutboxRepository(baseRepo)

	processor := worker.NewOutboxProcessor(
		outboxRepo,
		broker,
		notifier,
		worker.OutboxProcessorConfig{
			BatchSize:    cfg.BatchSize,
			PollInterval: cfg.PollInterval,
			Channel:      cfg.Channel,
		},
		lg,
		metrics.NewMetrics("outbox_processor"),
	)

	setupHealthCheck(cfg.HealthPort, lg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		lg.Info("shutting down worker")
		cancel()
	}()

	processor.Start(ctx)
}

func setupHealthCheck(port int, lg *logger.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	go func() {
		if err := http.ListenAndServe(fmt.Sprintf(":%d", port), mux); err != nil {
			lg.Error(err, "health check server failed")
			os.Exit(1)
		}
	}()
}
