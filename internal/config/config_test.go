package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("UPSTREAM_MODE", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.UpstreamMode != "fake" {
		t.Fatalf("expected fake upstream mode by default, got %s", cfg.UpstreamMode)
	}
	if cfg.CRMBaseURL != "http://localhost:3001" {
		t.Fatalf("expected default CRM URL, got %s", cfg.CRMBaseURL)
	}
	if cfg.UpstreamMaxRetries != 3 {
		t.Fatalf("expected default retry count, got %d", cfg.UpstreamMaxRetries)
	}
	if cfg.SessionTTL != 24*time.Hour {
		t.Fatalf("expected default session TTL, got %s", cfg.SessionTTL)
	}
	if cfg.MaxUploadBytes != 10*1024*1024 {
		t.Fatalf("expected default upload cap, got %d", cfg.MaxUploadBytes)
	}
	if !cfg.UseMemoryQueue {
		t.Fatalf("expected memory queue by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("UPSTREAM_MODE", "LIVE")
	t.Setenv("CRM_API_URL", "http://crm.internal:3001")
	t.Setenv("UPSTREAM_MAX_RETRIES", "5")
	t.Setenv("UPSTREAM_RETRY_BASE", "50ms")
	t.Setenv("SESSION_TTL", "1h")
	t.Setenv("MAX_UPLOAD_BYTES", "1048576")
	t.Setenv("USE_MEMORY_QUEUE", "false")
	t.Setenv("EVENT_QUEUE_URL", "http://localstack:4566/000000000000/loan-events")

	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected overridden port, got %s", cfg.Port)
	}
	if cfg.Env != "production" {
		t.Fatalf("expected overridden env, got %s", cfg.Env)
	}
	if cfg.DatabaseURL != "postgres://user@host/db" {
		t.Fatalf("expected overridden database URL, got %s", cfg.DatabaseURL)
	}
	if cfg.UpstreamMode != "live" {
		t.Fatalf("expected lowered upstream mode, got %s", cfg.UpstreamMode)
	}
	if cfg.CRMBaseURL != "http://crm.internal:3001" {
		t.Fatalf("expected overridden CRM URL, got %s", cfg.CRMBaseURL)
	}
	if cfg.UpstreamMaxRetries != 5 {
		t.Fatalf("expected overridden retry count, got %d", cfg.UpstreamMaxRetries)
	}
	if cfg.UpstreamRetryBase != 50*time.Millisecond {
		t.Fatalf("expected overridden retry base, got %s", cfg.UpstreamRetryBase)
	}
	if cfg.SessionTTL != time.Hour {
		t.Fatalf("expected overridden session TTL, got %s", cfg.SessionTTL)
	}
	if cfg.MaxUploadBytes != 1048576 {
		t.Fatalf("expected overridden upload cap, got %d", cfg.MaxUploadBytes)
	}
	if cfg.UseMemoryQueue {
		t.Fatalf("expected SQS queue when USE_MEMORY_QUEUE=false")
	}
	if cfg.EventQueueURL == "" {
		t.Fatalf("expected queue URL to load")
	}
}

func TestGetEnvAsDurationFallback(t *testing.T) {
	t.Setenv("UPSTREAM_TIMEOUT", "not-a-duration")
	cfg := Load()
	if cfg.UpstreamTimeout != 5*time.Second {
		t.Fatalf("expected fallback timeout on bad value, got %s", cfg.UpstreamTimeout)
	}
}
