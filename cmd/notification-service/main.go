package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	identitypg "github.com/caprisoft/storefront/internal/identity/infrastructure/postgres"
	"github.com/caprisoft/storefront/internal/notification/application"
	notifykafka "github.com/caprisoft/storefront/internal/notification/infrastructure/kafka"
	"github.com/caprisoft/storefront/internal/notification/infrastructure/logsink"
	"github.com/caprisoft/storefront/internal/notification/infrastructure/ses"
	"github.com/caprisoft/storefront/pkg/config"
	"github.com/caprisoft/storefront/pkg/database"
	"github.com/caprisoft/storefront/pkg/idempotency"
	"github.com/caprisoft/storefront/pkg/logging"
	"github.com/caprisoft/storefront/pkg/shutdown"
	"github.com/caprisoft/storefront/pkg/tracing"
)

func main() {
	cfg, err := config.Load("notification-service")
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}
	log := logging.New(cfg.ServiceName, cfg.LogLevel)

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	stopTracing, err := tracing.Init(ctx, cfg.ServiceName, cfg.OtelEndpoint, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}

	pool, err := database.Connect(ctx, database.PoolConfig{URL: cfg.PGURL, MaxConns: cfg.PGMaxConns})
	if err != nil {
		log.Error("pg connect failed", "err", err)
		os.Exit(1)
	}

	var sender application.Sender = logsink.NewSender(log)
	if cfg.SESSenderEmail != "" {
		s, err := ses.NewFromEnv(ctx, cfg.AWSRegion, cfg.SESSenderEmail)
		if err != nil {
			log.Error("ses setup failed", "err", err)
			os.Exit(1)
		}
		sender = s
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	idem := idempotency.NewStore(rdb, cfg.IdempotencyTTL)

	svc := application.NewService(log, sender, identitypg.NewRepository(log, pool))
	reader := notifykafka.NewReader(cfg.KafkaBrokers, cfg.NotificationTopic, cfg.NotificationGroup)
	consumer := notifykafka.NewConsumer(log, reader, svc, idem)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := consumer.Run(ctx); err != nil {
			log.Error("consumer stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()

	_ = shutdown.Run(log, 10*time.Second,
		shutdown.Step{Name: "consumer", Stop: func(ctx context.Context) error {
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}},
		shutdown.Step{Name: "redis", Stop: func(context.Context) error { return rdb.Close() }},
		shutdown.Step{Name: "postgres", Stop: func(context.Context) error { pool.Close(); return nil }},
		shutdown.Step{Name: "tracing", Stop: stopTracing},
	)
	log.Info("notification-service shutdown complete")
}
