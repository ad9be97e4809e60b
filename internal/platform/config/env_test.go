package config

import (
	"strings"
	"testing"
	"time"
)

type envTestConfig struct {
	Port     int           `env:"HUDDLE_TEST_PORT" envDefault:"123"`
	Interval time.Duration `env:"HUDDLE_TEST_INTERVAL" envDefault:"60s"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != 123 {
		t.Fatalf("expected default port 123, got %d", cfg.Port)
	}
	if cfg.Interval != time.Minute {
		t.Fatalf("expected default interval 1m, got %s", cfg.Interval)
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("HUDDLE_TEST_PORT", "not-an-int")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestRequireValue(t *testing.T) {
	if err := RequireValue("HUDDLE_JWT_SECRET", "  "); err == nil {
		t.Fatal("expected blank value to be rejected")
	} else if !strings.Contains(err.Error(), "HUDDLE_JWT_SECRET") {
		t.Fatalf("expected setting name in error, got %v", err)
	}
	if err := RequireValue("HUDDLE_JWT_SECRET", "s3cret"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
