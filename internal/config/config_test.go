package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadReadsCriticalEnvKeys(t *testing.T) {
	t.Setenv("GNB_JWT_SIGNING_KEY", "supersecret")
	t.Setenv("GNB_ENV", "development")
	t.Setenv("GNB_MAX_CELLS", "8")
	t.Setenv("SCHED_WORKERS", "3")
	t.Setenv("GNB_NOTIFY_BACKEND", "NATS")
	t.Setenv("SCHED_LOG_LEVEL", "warn")
	t.Setenv("GNB_MAX_PENDING_EVENTS", "256")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.JWTSigningKey != "supersecret" {
		t.Fatalf("unexpected jwt signing key: %q", cfg.JWTSigningKey)
	}
	if cfg.MaxCells != 8 || cfg.Workers != 3 {
		t.Fatalf("sizing = %d cells, %d workers", cfg.MaxCells, cfg.Workers)
	}
	if cfg.NotifyBackend != NotifyNATS {
		t.Fatalf("backend = %q", cfg.NotifyBackend)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("log level = %q", cfg.LogLevel)
	}
	if cfg.MaxPending != 256 {
		t.Fatalf("pending limit = %d", cfg.MaxPending)
	}
	if got := cfg.EffectiveSlotDuration(); got != 500*time.Microsecond {
		t.Fatalf("slot duration = %v, want 500us for numerology 1", got)
	}
}

func TestLoadRequiresSigningKey(t *testing.T) {
	t.Setenv("GNB_JWT_SIGNING_KEY", "")
	t.Setenv("SCHED_JWT_SIGNING_KEY", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected load to fail without a signing key")
	}
}

func TestLoadReportsLegacyEnvWarnings(t *testing.T) {
	t.Setenv("GNB_JWT_SIGNING_KEY", "supersecret")
	t.Setenv("JWT_SIGNING_KEY", "legacy")
	t.Setenv("TRACING_ENABLED", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	joined := strings.Join(cfg.LegacyEnvWarnings, "\n")
	if !strings.Contains(joined, "JWT_SIGNING_KEY") || !strings.Contains(joined, "TRACING_ENABLED") {
		t.Fatalf("expected legacy env warnings, got %v", cfg.LegacyEnvWarnings)
	}
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"GNB_NOTIFY_BACKEND", "kafka"},
		{"GNB_MAX_CELLS", "0"},
		{"GNB_GRID_RING_DEPTH", "1"},
		{"GNB_NUMEROLOGY", "5"},
		{"GNB_WORKERS", "0"},
		{"GNB_TRACING_SAMPLE_RATE", "1.5"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv("GNB_JWT_SIGNING_KEY", "supersecret")
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Fatalf("%s=%s accepted", tt.key, tt.value)
			}
		})
	}
}

func TestValidateResultCache(t *testing.T) {
	base := Config{NotifyBackend: NotifyMemory, MaxCells: 4, RingDepth: 16, Workers: 1}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"disabled", func(c *Config) {}, false},
		{"enabled", func(c *Config) {
			c.ResultCacheEnabled, c.RedisAddr, c.ResultCacheTTL = true, "localhost:6379", time.Second
		}, false},
		{"no ttl", func(c *Config) {
			c.ResultCacheEnabled, c.RedisAddr = true, "localhost:6379"
		}, true},
		{"no redis", func(c *Config) {
			c.ResultCacheEnabled, c.ResultCacheTTL = true, time.Second
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadCellsAppliesDefaults(t *testing.T) {
	doc := `
cells:
  - index: 0
    pci: 11
    num_prbs: 52
  - index: 3
    pci: 12
    numerology: 0
    num_prbs: 106
    random_access:
      response_window: 20
      msg3_delay: 4
`
	path := filepath.Join(t.TempDir(), "cells.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	cells, err := LoadCells(path, 1)
	if err != nil {
		t.Fatalf("LoadCells: %v", err)
	}
	if len(cells) != 2 {
		t.Fatalf("cells = %d, want 2", len(cells))
	}
	if cells[0].Numerology != 1 || cells[0].RA.ResponseWindow != 10 {
		t.Fatalf("cell 0 defaults not applied: %+v", cells[0])
	}
	c := cells[1]
	if c.Index != 3 || c.Numerology != 0 || c.NumPRBs != 106 {
		t.Fatalf("cell 3 = %+v", c)
	}
	if c.RA.ResponseWindow != 20 || c.RA.Msg3Delay != 4 || c.RA.MaxRARsPerSlot != 4 {
		t.Fatalf("cell 3 RA = %+v", c.RA)
	}
	if err := c.Validate(4, 16); err != nil {
		t.Fatalf("loaded cell invalid: %v", err)
	}
}

func TestParseCellsRejectsDuplicates(t *testing.T) {
	doc := []byte("cells:\n  - index: 1\n    num_prbs: 24\n  - index: 1\n    num_prbs: 52\n")
	_, err := ParseCells(doc, 1)
	if err == nil || !strings.Contains(err.Error(), "duplicate index 1") {
		t.Fatalf("ParseCells = %v", err)
	}

	if _, err := LoadCells(filepath.Join(t.TempDir(), "missing.yaml"), 1); err == nil {
		t.Fatal("missing file accepted")
	}
}
