package settings

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("ALLOWED_SERVICES", "")
	t.Setenv("HOLIDAYS", "")

	s, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Rules.StartHour != 8 || s.Rules.EndHour != 17 || !s.Rules.WeekendsEnabled {
		t.Fatalf("unexpected rule defaults: %+v", s.Rules)
	}
	if s.Rules.Location.String() != "America/Bogota" {
		t.Fatalf("unexpected zone %s", s.Rules.Location)
	}
	if strings.Join(s.Rules.Holidays, ",") != "2025-12-25,2025-01-01" {
		t.Fatalf("unexpected holidays %v", s.Rules.Holidays)
	}
	if s.SweepInterval != 5*time.Minute || s.SweepCatchUp || !s.AdminOverrideMonotonic {
		t.Fatalf("unexpected sweep defaults: %+v", s)
	}
	if len(s.AllowedServices) != len(DefaultServices) {
		t.Fatalf("expected default services, got %v", s.AllowedServices)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/salonbook")
	t.Setenv("WORK_START_HOUR", "9")
	t.Setenv("WORK_END_HOUR", "18")
	t.Setenv("WEEKENDS_ENABLED", "false")
	t.Setenv("ALLOWED_SERVICES", "haircut, nails ,")
	t.Setenv("OPERATING_TIMEZONE", "Europe/Madrid")
	t.Setenv("SWEEP_INTERVAL", "1m")
	t.Setenv("SWEEP_CATCH_UP", "true")
	t.Setenv("ADMIN_STATUS_OVERRIDE_MONOTONIC", "false")

	s, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Rules.StartHour != 9 || s.Rules.EndHour != 18 || s.Rules.WeekendsEnabled {
		t.Fatalf("overrides not applied: %+v", s.Rules)
	}
	if strings.Join(s.AllowedServices, "|") != "haircut|nails" {
		t.Fatalf("unexpected services %v", s.AllowedServices)
	}
	if s.SweepInterval != time.Minute || !s.SweepCatchUp || s.AdminOverrideMonotonic {
		t.Fatalf("unexpected settings %+v", s)
	}
	if s.DatabaseURL == "" {
		t.Fatal("expected database url")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"STORAGE_DRIVER":     "mongo",
		"WORK_START_HOUR":    "eight",
		"WEEKENDS_ENABLED":   "sometimes",
		"OPERATING_TIMEZONE": "Mars/Olympus",
		"SWEEP_INTERVAL":     "-5m",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv("STORAGE_DRIVER", "memory")
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected %s=%q to be rejected", key, value)
			}
		})
	}
}

func TestLoadRequiresDatabaseURLForPostgres(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected missing DATABASE_URL to fail")
	}
}
