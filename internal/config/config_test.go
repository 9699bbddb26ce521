package config

import (
	"testing"
	"time"
)

func TestNew_Defaults(t *testing.T) {
	t.Setenv("API_KEY", "test-key")
	t.Setenv("PORT", "")
	t.Setenv("DATABASE_PATH", "")
	t.Setenv("KEY_PREFIX", "")
	t.Setenv("RATE_LIMIT_MAX", "")
	t.Setenv("RATE_LIMIT_WINDOW", "")

	cfg, err := New()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Expected default port 8080, got %s", cfg.Port)
	}
	if cfg.DatabasePath != "licenses.db" {
		t.Errorf("Expected default database path, got %s", cfg.DatabasePath)
	}
	if cfg.KeyPrefix != "TLIC" {
		t.Errorf("Expected default prefix TLIC, got %s", cfg.KeyPrefix)
	}
	if cfg.RateLimitMax != 60 || cfg.RateLimitWindow != time.Minute {
		t.Errorf("Expected default rate limit 60/min, got %d/%v", cfg.RateLimitMax, cfg.RateLimitWindow)
	}
}

func TestNew_RequiresAPIKey(t *testing.T) {
	t.Setenv("API_KEY", "")

	if _, err := New(); err == nil {
		t.Error("Expected error without API_KEY")
	}
}

func TestNew_Overrides(t *testing.T) {
	t.Setenv("API_KEY", "test-key")
	t.Setenv("PORT", "9090")
	t.Setenv("RATE_LIMIT_MAX", "10")
	t.Setenv("RATE_LIMIT_WINDOW", "30s")

	cfg, err := New()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("Expected port 9090, got %s", cfg.Port)
	}
	if cfg.RateLimitMax != 10 || cfg.RateLimitWindow != 30*time.Second {
		t.Errorf("Expected 10/30s, got %d/%v", cfg.RateLimitMax, cfg.RateLimitWindow)
	}
}

func TestNew_RejectsBadRateLimit(t *testing.T) {
	t.Setenv("API_KEY", "test-key")
	t.Setenv("RATE_LIMIT_MAX", "lots")

	if _, err := New(); err == nil {
		t.Error("Expected error for non-numeric rate limit")
	}
}
