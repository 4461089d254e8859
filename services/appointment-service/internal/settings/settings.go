// Package settings assembles the appointment service configuration from the environment.
package settings

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/salonbook/salonbook/libs/config"
	"github.com/salonbook/salonbook/services/appointment-service/internal/availability"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

var DefaultServices = []string{"haircut", "beard_trim", "coloring", "blow_dry", "manicure", "pedicure"}

type Settings struct {
	Service       string
	Port          string
	StorageDriver string
	DatabaseURL   string

	Rules                  availability.Config
	AllowedServices        []string
	BookingTimeout         time.Duration
	AdminOverrideMonotonic bool

	SweepInterval time.Duration
	SweepTimeout  time.Duration
	SweepCatchUp  bool
	SweepLeaseKey string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	KafkaBrokers      string
	OutboxPollEvery   time.Duration
	OutboxBatchSize   int
	JWTSecret         string
	JWKSURL           string
	JWKSCacheTTL      time.Duration
	AllowedOrigins    []string
	RateLimit         int
	RateLimitFailOpen bool
	RequestTimeout    time.Duration
	BodyLimitBytes    int64
}

// Load reads every setting. Invalid values are errors; missing values take defaults.
func Load() (Settings, error) {
	var s Settings
	var err error

	s.Service = config.String("SERVICE_NAME", "appointment-service")
	if s.Port, err = config.Port("PORT", "8083"); err != nil {
		return Settings{}, err
	}
	s.StorageDriver = strings.ToLower(config.String("STORAGE_DRIVER", DriverPostgres))
	switch s.StorageDriver {
	case DriverPostgres:
		if s.DatabaseURL, err = config.RequiredString("DATABASE_URL"); err != nil {
			return Settings{}, err
		}
	case DriverMemory:
	default:
		return Settings{}, fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverMemory, s.StorageDriver)
	}

	if s.Rules, err = loadRules(); err != nil {
		return Settings{}, err
	}
	s.AllowedServices = config.List("ALLOWED_SERVICES", DefaultServices)
	if len(s.AllowedServices) == 0 {
		return Settings{}, fmt.Errorf("ALLOWED_SERVICES must name at least one service")
	}
	if s.BookingTimeout, err = config.Duration("BOOKING_TIMEOUT", 5*time.Second); err != nil {
		return Settings{}, err
	}
	if s.AdminOverrideMonotonic, err = config.Bool("ADMIN_STATUS_OVERRIDE_MONOTONIC", true); err != nil {
		return Settings{}, err
	}

	if s.SweepInterval, err = config.Duration("SWEEP_INTERVAL", 5*time.Minute); err != nil {
		return Settings{}, err
	}
	if s.SweepTimeout, err = config.Duration("SWEEP_TIMEOUT", 30*time.Second); err != nil {
		return Settings{}, err
	}
	if s.SweepCatchUp, err = config.Bool("SWEEP_CATCH_UP", false); err != nil {
		return Settings{}, err
	}
	s.SweepLeaseKey = config.String("SWEEP_LEASE_KEY", "salonbook:lifecycle:sweep")

	s.RedisAddr = config.String("REDIS_ADDR", "")
	s.RedisPassword = config.String("REDIS_PASSWORD", "")
	if s.RedisDB, err = config.Int("REDIS_DB", 0); err != nil {
		return Settings{}, err
	}

	s.KafkaBrokers = config.String("KAFKA_BROKERS", "")
	if s.OutboxPollEvery, err = config.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second); err != nil {
		return Settings{}, err
	}
	if s.OutboxBatchSize, err = config.Int("OUTBOX_BATCH_SIZE", 50); err != nil {
		return Settings{}, err
	}

	s.JWTSecret = config.String("JWT_SECRET", "dev-secret")
	s.JWKSURL = config.String("JWKS_URL", "")
	if s.JWKSCacheTTL, err = config.Duration("JWKS_CACHE_TTL", 5*time.Minute); err != nil {
		return Settings{}, err
	}
	s.AllowedOrigins = config.List("FRONTEND_URL", nil)
	if s.RateLimit, err = config.Int("RATE_LIMIT_PER_MINUTE", 60); err != nil {
		return Settings{}, err
	}
	if s.RateLimitFailOpen, err = config.Bool("RATE_LIMIT_FAIL_OPEN", true); err != nil {
		return Settings{}, err
	}
	if s.RequestTimeout, err = config.Duration("REQUEST_TIMEOUT", 10*time.Second); err != nil {
		return Settings{}, err
	}
	limit, err := config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20)
	if err != nil {
		return Settings{}, err
	}
	s.BodyLimitBytes = int64(limit)
	return s, nil
}

func loadRules() (availability.Config, error) {
	var cfg availability.Config
	var err error
	if cfg.StartHour, err = config.Int("WORK_START_HOUR", 8); err != nil {
		return cfg, err
	}
	if cfg.EndHour, err = config.Int("WORK_END_HOUR", 17); err != nil {
		return cfg, err
	}
	if cfg.WeekendsEnabled, err = config.Bool("WEEKENDS_ENABLED", true); err != nil {
		return cfg, err
	}
	cfg.Holidays = config.List("HOLIDAYS", []string{"2025-12-25", "2025-01-01"})

	zone := config.String("OPERATING_TIMEZONE", "America/Bogota")
	if cfg.Location, err = time.LoadLocation(zone); err != nil {
		return cfg, fmt.Errorf("OPERATING_TIMEZONE %q: %w", zone, err)
	}
	return cfg, nil
}
