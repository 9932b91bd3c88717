package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsInDevelopment(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("expected :8080, got %s", cfg.Address())
	}
	if cfg.RentLamportsPerByteYear != 3480 || cfg.RentExemptionYears != 2 {
		t.Fatalf("unexpected rent defaults %d/%d", cfg.RentLamportsPerByteYear, cfg.RentExemptionYears)
	}
	if cfg.IdempotencyTTL != 24*time.Hour {
		t.Fatalf("unexpected idempotency ttl %s", cfg.IdempotencyTTL)
	}
	if cfg.LogFormat != "json" || cfg.DBMaxConns != 10 || cfg.RedisPoolSize != 20 {
		t.Fatalf("unexpected store defaults %+v", cfg)
	}
}

func TestLoadPoolSizesFromEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("DB_MAX_CONNS", "32")
	t.Setenv("REDIS_POOL_SIZE", "64")
	t.Setenv("LOG_FORMAT", "TEXT")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBMaxConns != 32 || cfg.RedisPoolSize != 64 || cfg.LogFormat != "text" {
		t.Fatalf("environment not applied: %+v", cfg)
	}
}

func TestLoadRequiresStoresOutsideDevelopment(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	if _, err := Load(); err == nil {
		t.Fatal("expected missing DATABASE_URL to fail")
	}

	t.Setenv("DATABASE_URL", "postgres://localhost/vault")
	t.Setenv("REDIS_URL", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected missing REDIS_URL to fail")
	}
}

func TestLoadYAMLOverlayThenEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.yaml")
	body := []byte("port: \"9090\"\nrent_exemption_years: 3\nauth_max_skew: 30s\nairdrop_max_lamports: 42\n")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("APP_ENV", "test")
	t.Setenv("AIRDROP_MAX_LAMPORTS", "100")
	t.Setenv("SHUTDOWN_TIMEOUT_SECONDS", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9090" || cfg.RentExemptionYears != 3 || cfg.AuthMaxSkew != 30*time.Second {
		t.Fatalf("overlay not applied: %+v", cfg)
	}
	if cfg.AirdropMaxLamports != 100 {
		t.Fatalf("expected environment to win, got %d", cfg.AirdropMaxLamports)
	}
	if cfg.ShutdownPeriod != 3*time.Second {
		t.Fatalf("expected 3s shutdown, got %s", cfg.ShutdownPeriod)
	}
}

func TestLoadRejectsBadNumbers(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	for key, value := range map[string]string{
		"RENT_EXEMPTION_YEARS":        "-1",
		"AUTH_MAX_SKEW":               "five minutes",
		"IDEMPOTENCY_TTL_SECONDS":     "x",
		"RENT_LAMPORTS_PER_BYTE_YEAR": "0",
		"DB_MAX_CONNS":                "0",
		"REDIS_POOL_SIZE":             "many",
	} {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected %s=%q to fail", key, value)
			}
		})
	}
}
