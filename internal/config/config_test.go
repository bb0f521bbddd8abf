package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Scheduler.SweepInterval != 30*time.Minute {
		t.Fatalf("unexpected sweep interval: %v", cfg.Scheduler.SweepInterval)
	}
	if cfg.Scheduler.ReportAt != "18:00" {
		t.Fatalf("unexpected report time: %s", cfg.Scheduler.ReportAt)
	}
	if cfg.Scheduler.Location().String() != "Europe/Paris" {
		t.Fatalf("unexpected timezone: %s", cfg.Scheduler.Location())
	}
	if cfg.OpenAI.ChunkSize != 8000 || cfg.OpenAI.ChunkOverlap != 500 {
		t.Fatalf("unexpected chunking: %d/%d", cfg.OpenAI.ChunkSize, cfg.OpenAI.ChunkOverlap)
	}
	if cfg.Database.LocalPath == "" {
		t.Fatal("expected a default local store path")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
scheduler:
  sweepInterval: 5m
  reportAt: "09:30"
poller:
  maxConcurrency: 2
webhooks:
  uploads: https://example.com/hook
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(configPathEnv, path)

	cfg := Load()

	if cfg.Scheduler.SweepInterval != 5*time.Minute {
		t.Fatalf("file override lost: %v", cfg.Scheduler.SweepInterval)
	}
	if cfg.Scheduler.ReportAt != "09:30" {
		t.Fatalf("file override lost: %s", cfg.Scheduler.ReportAt)
	}
	if cfg.Poller.MaxConcurrency != 2 {
		t.Fatalf("file override lost: %d", cfg.Poller.MaxConcurrency)
	}
	if cfg.Webhooks["uploads"] != "https://example.com/hook" {
		t.Fatalf("webhooks not loaded: %v", cfg.Webhooks)
	}
	// Untouched keys keep defaults.
	if cfg.Poller.MaxItemsPerSweep != 5 {
		t.Fatalf("default lost on merge: %d", cfg.Poller.MaxItemsPerSweep)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(databaseDSNEnv, "postgres://env-dsn")
	t.Setenv(openAIKeyEnv, "sk-test")
	t.Setenv(listenAddrEnv, ":9999")
	t.Setenv("DISCORD_WEBHOOK_REPORT", "https://example.com/report")

	cfg := Load()

	if cfg.Database.DSN != "postgres://env-dsn" {
		t.Fatalf("dsn override lost: %s", cfg.Database.DSN)
	}
	if cfg.OpenAI.APIKey != "sk-test" {
		t.Fatalf("api key override lost")
	}
	if cfg.HTTP.ListenAddr != ":9999" {
		t.Fatalf("listen override lost: %s", cfg.HTTP.ListenAddr)
	}
	if cfg.Webhooks["report"] != "https://example.com/report" {
		t.Fatalf("webhook override lost: %v", cfg.Webhooks)
	}
}

func TestBadTimezoneFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("scheduler:\n  timezone: Not/AZone\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(configPathEnv, path)

	cfg := Load()
	if cfg.Scheduler.Location().String() != "Europe/Paris" {
		t.Fatalf("expected fallback timezone, got %s", cfg.Scheduler.Location())
	}
}
