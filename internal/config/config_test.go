package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.RateLimit.Default.Interval != "1m" || cfg.RateLimit.Default.Limit != 100 {
		t.Errorf("default budget = %+v", cfg.RateLimit.Default)
	}
	if cfg.RateLimit.Auth.Interval != "1h" || cfg.RateLimit.Auth.Limit != 5 {
		t.Errorf("auth budget = %+v", cfg.RateLimit.Auth)
	}
	if cfg.Cache.UserTTL != 5*time.Minute {
		t.Errorf("user TTL = %v, want 5m", cfg.Cache.UserTTL)
	}
	if cfg.Cache.OrgTTL != 10*time.Minute {
		t.Errorf("org TTL = %v, want 10m", cfg.Cache.OrgTTL)
	}
	if cfg.Cache.SessionTTL != 30*time.Second {
		t.Errorf("session TTL = %v, want 30s", cfg.Cache.SessionTTL)
	}
}

func TestLoadRejectsMalformedInterval(t *testing.T) {
	t.Setenv("RATE_LIMIT_AUTH_INTERVAL", "5x")

	if _, err := Load(); err == nil {
		t.Error("expected Load to fail on a malformed interval")
	}
}

func TestLoadRejectsNonPositiveLimit(t *testing.T) {
	t.Setenv("RATE_LIMIT_DEFAULT_LIMIT", "0")

	if _, err := Load(); err == nil {
		t.Error("expected Load to fail on a zero limit")
	}
}

func TestLoadRejectsWeeksUnit(t *testing.T) {
	t.Setenv("RATE_LIMIT_REPORTS_INTERVAL", "2w")

	if _, err := Load(); err == nil {
		t.Error("expected Load to fail on an unsupported unit")
	}
}
