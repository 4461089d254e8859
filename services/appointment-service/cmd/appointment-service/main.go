package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/salonbook/salonbook/libs/auth"
	"github.com/salonbook/salonbook/libs/db"
	"github.com/salonbook/salonbook/libs/httpx"
	"github.com/salonbook/salonbook/libs/kafkax"
	otelx "github.com/salonbook/salonbook/libs/otel"
	"github.com/salonbook/salonbook/libs/runtime"
	"github.com/salonbook/salonbook/services/appointment-service/internal/availability"
	"github.com/salonbook/salonbook/services/appointment-service/internal/booking"
	"github.com/salonbook/salonbook/services/appointment-service/internal/clock"
	"github.com/salonbook/salonbook/services/appointment-service/internal/handlers"
	"github.com/salonbook/salonbook/services/appointment-service/internal/lifecycle"
	"github.com/salonbook/salonbook/services/appointment-service/internal/metrics"
	"github.com/salonbook/salonbook/services/appointment-service/internal/outbox"
	"github.com/salonbook/salonbook/services/appointment-service/internal/settings"
	"github.com/salonbook/salonbook/services/appointment-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type appointmentStore interface {
	booking.Repository
	lifecycle.Store
}

func main() {
	_ = godotenv.Load()

	cfg, err := settings.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	logger := runtime.NewLogger(cfg.Service)

	ctx, stop := runtime.SignalContext(logger)
	defer stop()

	otelCfg, err := otelx.ConfigFromEnv(cfg.Service)
	if err != nil {
		logger.Error("invalid otel configuration", "err", err)
		os.Exit(1)
	}
	otelShutdown, err := otelx.Setup(ctx, otelCfg)
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	rules, err := availability.NewRuleSet(cfg.Rules)
	if err != nil {
		logger.Error("invalid availability rules", "err", err)
		os.Exit(1)
	}
	clk := clock.System(rules.Location())
	m := metrics.New(nil)

	var readyChecks []runtime.ReadyCheck
	var repo appointmentStore
	var profiles booking.Profiles
	switch cfg.StorageDriver {
	case settings.DriverMemory:
		logger.Warn("using in-memory storage; appointments are lost on restart")
		repo = storage.NewMemoryRepository()
		profiles = storage.NewMemoryProfiles()
	default:
		pool, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("db connection failed", "err", err)
			os.Exit(1)
		}
		defer pool.Close()

		outboxRepo := outbox.NewRepository()
		repo = storage.NewPostgresRepository(pool, outboxRepo)
		profiles = storage.NewProfileRepository(pool)
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)})
		if len(kafkax.SplitBrokers(cfg.KafkaBrokers)) > 0 {
			readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(cfg.KafkaBrokers)})
		}

		publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
			Brokers:   cfg.KafkaBrokers,
			PollEvery: cfg.OutboxPollEvery,
			BatchSize: cfg.OutboxBatchSize,
		})
		go publisher.Run(ctx)
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer func() { _ = rdb.Close() }()
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}

	svc := booking.NewService(repo, handlers.WithTokenNames(profiles), rules, clk, logger, booking.Config{
		Timeout:                cfg.BookingTimeout,
		AllowedServices:        cfg.AllowedServices,
		MonotonicAdminOverride: cfg.AdminOverrideMonotonic,
		Recorder:               m,
	})

	engine := lifecycle.NewEngine(repo, clk, logger, lifecycle.Config{CatchUp: cfg.SweepCatchUp, Recorder: m})
	var lease lifecycle.Lease
	if rdb != nil {
		lease = lifecycle.NewRedisLease(rdb, cfg.SweepLeaseKey)
	}
	worker := lifecycle.NewWorker(engine, lease, logger, lifecycle.WorkerConfig{
		Interval: cfg.SweepInterval,
		Timeout:  cfg.SweepTimeout,
	})
	go worker.Run(ctx)

	var jwksClient *auth.JWKSClient
	if cfg.JWKSURL != "" {
		jwksClient = auth.NewJWKSClient(cfg.JWKSURL, cfg.JWKSCacheTTL)
	}
	verifier := auth.NewVerifier(cfg.JWTSecret, jwksClient)

	var limiter httpx.Limiter
	if rdb != nil {
		limiter = httpx.NewRedisLimiter(rdb, cfg.RateLimit, time.Minute, "rl:"+cfg.Service)
		logger.Info("rate limiting enabled (redis)", "per_minute", cfg.RateLimit)
	} else {
		limiter = httpx.NewMemoryLimiter(cfg.RateLimit, time.Minute)
		logger.Info("rate limiting enabled (in-memory)", "per_minute", cfg.RateLimit)
	}
	requireIdentity := handlers.RequireIdentity(verifier)
	rateLimit := httpx.RateLimit(limiter, handlers.CallerKey, logger, cfg.RateLimitFailOpen)
	protect := func(next http.Handler) http.Handler {
		return httpx.Chain(next,
			requireIdentity,
			rateLimit,
			httpx.WithTimeout(cfg.RequestTimeout),
			httpx.WithBodyLimit(cfg.BodyLimitBytes),
		)
	}

	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	mux.Handle("/metrics", promhttp.Handler())
	handlers.NewAppointmentHandler(svc, logger, rules.Location()).Register(mux, protect)

	handler := httpx.Chain(mux,
		httpx.WithCORS(cfg.AllowedOrigins, 10*time.Minute),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "appointments")
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr, "storage", cfg.StorageDriver, "timezone", rules.Location().String())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
