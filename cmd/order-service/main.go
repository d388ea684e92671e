package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	catalogapp "github.com/caprisoft/storefront/internal/catalog/application"
	cataloghttp "github.com/caprisoft/storefront/internal/catalog/infrastructure/http"
	catalogpg "github.com/caprisoft/storefront/internal/catalog/infrastructure/postgres"
	identityapp "github.com/caprisoft/storefront/internal/identity/application"
	identity "github.com/caprisoft/storefront/internal/identity/domain"
	identityhttp "github.com/caprisoft/storefront/internal/identity/infrastructure/http"
	"github.com/caprisoft/storefront/internal/identity/infrastructure/jwt"
	identitypg "github.com/caprisoft/storefront/internal/identity/infrastructure/postgres"
	notifyapp "github.com/caprisoft/storefront/internal/notification/application"
	"github.com/caprisoft/storefront/internal/notification/infrastructure/logsink"
	"github.com/caprisoft/storefront/internal/notification/infrastructure/ses"
	"github.com/caprisoft/storefront/internal/order/application"
	orderhttp "github.com/caprisoft/storefront/internal/order/infrastructure/http"
	orderkafka "github.com/caprisoft/storefront/internal/order/infrastructure/kafka"
	orderpg "github.com/caprisoft/storefront/internal/order/infrastructure/postgres"
	reportapp "github.com/caprisoft/storefront/internal/report/application"
	reporthttp "github.com/caprisoft/storefront/internal/report/infrastructure/http"
	"github.com/caprisoft/storefront/internal/store/memory"
	"github.com/caprisoft/storefront/pkg/config"
	"github.com/caprisoft/storefront/pkg/database"
	"github.com/caprisoft/storefront/pkg/idempotency"
	"github.com/caprisoft/storefront/pkg/logging"
	"github.com/caprisoft/storefront/pkg/outbox"
	"github.com/caprisoft/storefront/pkg/shutdown"
	"github.com/caprisoft/storefront/pkg/tracing"
)

type wiring struct {
	orders  *application.Service
	catalog *catalogapp.Service
	reports *reportapp.Service
	users   identityapp.UserRepository
	tokens  identityapp.ResetTokenReader
	authUoW identityapp.AuthUnitOfWork
	relay   *outbox.Relay
	stops   []shutdown.Step
}

func main() {
	cfg, err := config.Load("order-service")
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}
	log := logging.New(cfg.ServiceName, cfg.LogLevel)

	if cfg.JWTSecret == "" {
		log.Error("JWT_SECRET is required")
		os.Exit(1)
	}

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	stopTracing, err := tracing.Init(ctx, cfg.ServiceName, cfg.OtelEndpoint, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}

	var w wiring
	switch cfg.Store {
	case "memory":
		w = memoryWiring(log, cfg)
	default:
		w, err = postgresWiring(ctx, log, cfg)
		if err != nil {
			log.Error("postgres setup failed", "err", err)
			os.Exit(1)
		}
	}

	idem := func(next http.Handler) http.Handler { return next }
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		store := idempotency.NewStore(rdb, cfg.IdempotencyTTL)
		idem = idempotency.Middleware(log, store, func(r *http.Request) string {
			u, _ := identityhttp.UserFrom(r.Context())
			return u.Email
		})
		w.stops = append(w.stops, shutdown.Step{Name: "redis", Stop: func(context.Context) error { return rdb.Close() }})
	}

	mailer, err := resetMailer(ctx, log, cfg, w.users)
	if err != nil {
		log.Error("mail sender setup failed", "err", err)
		os.Exit(1)
	}

	verifier := jwt.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	auth := identityhttp.Authenticate(log, identityapp.NewResolver(w.users, verifier))
	accounts := identityapp.NewAuthService(identityapp.AuthDeps{
		Log:        log,
		UoW:        w.authUoW,
		Users:      w.users,
		Tokens:     w.tokens,
		Issuer:     verifier,
		Notifier:   mailer,
		SessionTTL: cfg.JWTTTL,
	})
	reports := reporthttp.NewHandler(log, w.reports)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Get("/healthz", func(rw http.ResponseWriter, _ *http.Request) { rw.WriteHeader(http.StatusOK) })
	r.Mount("/api/orders", orderhttp.NewHandler(log, w.orders).Routes(auth, idem))
	r.Mount("/api/products", cataloghttp.NewHandler(log, w.catalog, cfg.LowStockThreshold).Routes(auth))
	r.Mount("/api/auth", identityhttp.NewHandler(log, accounts).Routes())
	r.Mount("/api/reports", reports.Routes(auth))
	r.Mount("/api/dashboard", reports.DashboardRoutes(auth))

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      otelhttp.NewHandler(r, "order-service"),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	relayCtx, stopRelay := context.WithCancel(ctx)
	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		if w.relay == nil {
			return
		}
		if err := w.relay.Run(relayCtx); err != nil {
			log.Error("relay stopped with error", "err", err)
		}
	}()

	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr, "store", cfg.Store)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()

	steps := []shutdown.Step{
		{Name: "http", Stop: srv.Shutdown},
		{Name: "relay", Stop: func(ctx context.Context) error {
			stopRelay()
			select {
			case <-relayDone:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}},
	}
	steps = append(steps, w.stops...)
	steps = append(steps, shutdown.Step{Name: "tracing", Stop: stopTracing})
	_ = shutdown.Run(log, 10*time.Second, steps...)
	log.Info("order-service shutdown complete")
}

func memoryWiring(log *slog.Logger, cfg config.Config) wiring {
	store := memory.New()
	if cfg.SeedAdminEmail != "" {
		store.AddUser(identity.User{Email: cfg.SeedAdminEmail, Name: "Administrator", Role: identity.RoleAdmin, Active: true})
	}
	log.Warn("using in-memory store; data is lost on restart and events are not relayed")
	return wiring{
		orders: application.NewService(application.Deps{
			Log:    log,
			UoW:    store.OrderUnitOfWork(),
			Orders: store.OrderReader(),
			Users:  store,
		}),
		catalog: catalogapp.NewService(log, store.CatalogUnitOfWork(), store.ProductReader()),
		reports: reportapp.NewService(reportapp.Deps{
			Log:               log,
			Orders:            store.OrderReader(),
			Products:          store.ProductReader(),
			Users:             store,
			LowStockThreshold: cfg.LowStockThreshold,
		}),
		users:   store,
		tokens:  store,
		authUoW: store.AuthUnitOfWork(),
	}
}

func postgresWiring(ctx context.Context, log *slog.Logger, cfg config.Config) (wiring, error) {
	pool, err := database.Connect(ctx, database.PoolConfig{URL: cfg.PGURL, MaxConns: cfg.PGMaxConns})
	if err != nil {
		return wiring{}, err
	}
	if err := database.Migrate(ctx, log, pool); err != nil {
		pool.Close()
		return wiring{}, err
	}

	users := identitypg.NewRepository(log, pool)
	if cfg.SeedAdminEmail != "" {
		if _, err := users.Ensure(ctx, identity.User{Email: cfg.SeedAdminEmail, Name: "Administrator", Role: identity.RoleAdmin}); err != nil {
			pool.Close()
			return wiring{}, err
		}
	}

	writer := orderkafka.NewWriter(cfg.KafkaBrokers)
	dispatch := outbox.NewDispatcher(log, writer, cfg.OutboxTopic)
	store := orderpg.NewOutboxStore(log, pool, cfg.OutboxMaxRetries)
	relay := outbox.NewRelay(log, store, dispatch, "order-service")

	orders := orderpg.NewRepository(log, pool)
	products := catalogpg.NewRepository(log, pool)
	return wiring{
		orders: application.NewService(application.Deps{
			Log:    log,
			UoW:    orderpg.NewUnitOfWork(log, pool),
			Orders: orders,
			Users:  users,
		}),
		catalog: catalogapp.NewService(log, catalogpg.NewUnitOfWork(log, pool), products),
		reports: reportapp.NewService(reportapp.Deps{
			Log:               log,
			Orders:            orders,
			Products:          products,
			Users:             users,
			LowStockThreshold: cfg.LowStockThreshold,
		}),
		users:   users,
		tokens:  users,
		authUoW: identitypg.NewAuthUnitOfWork(log, pool),
		relay:   relay,
		stops: []shutdown.Step{
			{Name: "kafka", Stop: func(context.Context) error { return writer.Close() }},
			{Name: "postgres", Stop: func(context.Context) error { pool.Close(); return nil }},
		},
	}, nil
}

// resetMailer sends reset links through SES when a sender address is
// configured and to the log otherwise.
func resetMailer(ctx context.Context, log *slog.Logger, cfg config.Config, users notifyapp.UserRepository) (*notifyapp.ResetMailer, error) {
	var sender notifyapp.Sender = logsink.NewSender(log)
	if cfg.SESSenderEmail != "" {
		s, err := ses.NewFromEnv(ctx, cfg.AWSRegion, cfg.SESSenderEmail)
		if err != nil {
			return nil, err
		}
		sender = s
	}
	return notifyapp.NewResetMailer(notifyapp.NewService(log, sender, users), cfg.ResetURLBase), nil
}
