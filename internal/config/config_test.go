package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
)

func TestLoadConfig_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "PORT")
	unsetEnvWithCleanup(t, "SERVER_PORT")
	unsetEnvWithCleanup(t, "BALANCE_LOCK_TIMEOUT_MS")
	unsetEnvWithCleanup(t, "AUTHORIZE_RATE_LIMIT_PER_MINUTE")
	unsetEnvWithCleanup(t, "EVENT_EXCHANGE")
	unsetEnvWithCleanup(t, "REDIS_RATE_LIMIT_PREFIX")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.ServerPort)
	}
	if cfg.BalanceLockTimeoutMs != 250 {
		t.Fatalf("expected default lock timeout 250ms, got %d", cfg.BalanceLockTimeoutMs)
	}
	if cfg.AuthorizeRateLimitPerMinute != 0 {
		t.Fatalf("expected rate limiting disabled by default, got %d", cfg.AuthorizeRateLimitPerMinute)
	}
	if cfg.EventExchange != "card.events" {
		t.Fatalf("expected default exchange card.events, got %q", cfg.EventExchange)
	}
	if cfg.SeedDemoData {
		t.Fatal("expected demo seeding disabled by default")
	}
}

func TestLoadConfig_PortEnvTakesPrecedence(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "SERVER_PORT", "8080")
	setEnvWithCleanup(t, "PORT", "9999")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "9999" {
		t.Fatalf("expected PORT to win, got %q", cfg.ServerPort)
	}
}

func TestLoadConfig_CoercesBadLockTimeout(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "BALANCE_LOCK_TIMEOUT_MS", "-5")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.BalanceLockTimeoutMs != 250 {
		t.Fatalf("expected coerced lock timeout 250ms, got %d", cfg.BalanceLockTimeoutMs)
	}
}

func TestLoadConfig_ReadsValuesFromEnv(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "PORT")
	setEnvWithCleanup(t, "DATABASE_URL", "postgres://localhost:5432/authorizer")
	setEnvWithCleanup(t, "AUTHORIZE_RATE_LIMIT_PER_MINUTE", "60")
	setEnvWithCleanup(t, "SEED_DEMO_DATA", "true")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.DatabaseURL != "postgres://localhost:5432/authorizer" {
		t.Fatalf("unexpected database url %q", cfg.DatabaseURL)
	}
	if cfg.AuthorizeRateLimitPerMinute != 60 {
		t.Fatalf("expected rate limit 60, got %d", cfg.AuthorizeRateLimitPerMinute)
	}
	if !cfg.SeedDemoData {
		t.Fatal("expected demo seeding enabled")
	}
}

func setEnvWithCleanup(t *testing.T, key string, value string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			os.Setenv(key, prev)
		} else {
			os.Unsetenv(key)
		}
	})
}

func unsetEnvWithCleanup(t *testing.T, key string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("failed to unset env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			os.Setenv(key, prev)
		}
	})
}
