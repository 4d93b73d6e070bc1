/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Notification backend selection.
type NotifyBackend string

const (
	NotifyMemory NotifyBackend = "memory"
	NotifyRedis  NotifyBackend = "redis"
	NotifyNATS   NotifyBackend = "nats"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment   string
	LogLevel      string
	HTTPBind      string
	HTTPPort      int
	MetricsBind   string
	JWTSigningKey string

	// Scheduler sizing
	MaxCells      int
	RingDepth     int
	ResultHistory int
	MaxPending    int
	Numerology    uint8 // default numerology for cells that do not set one
	Workers       int
	CellsFile     string
	DiagCapacity  int
	// SlotDuration overrides the air-interface slot length, e.g. to slow a lab run.
	SlotDuration       time.Duration
	PublishSlotResults bool

	// Notifications
	NotifyBackend NotifyBackend
	NATSURL       string

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	// Multi-instance configuration
	LeaderElectionEnabled bool
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	InstanceID            string

	// Result mirror in Redis, readable by standby instances
	ResultCacheEnabled  bool
	ResultCacheInterval time.Duration
	ResultCacheTTL      time.Duration

	LegacyEnvWarnings []string
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment:   getEnvAny([]string{"GNB_ENV", "SCHED_ENV"}, "development"),
		LogLevel:      getEnvAny([]string{"GNB_LOG_LEVEL", "SCHED_LOG_LEVEL"}, ""),
		HTTPBind:      getEnvAny([]string{"GNB_HTTP_BIND", "SCHED_HTTP_BIND"}, "0.0.0.0"),
		HTTPPort:      getEnvIntAny([]string{"GNB_HTTP_PORT", "SCHED_HTTP_PORT"}, 8080),
		MetricsBind:   getEnvAny([]string{"GNB_METRICS_BIND", "SCHED_METRICS_BIND"}, "127.0.0.1:9000"),
		JWTSigningKey: getEnvAny([]string{"GNB_JWT_SIGNING_KEY", "SCHED_JWT_SIGNING_KEY"}, ""),

		MaxCells:           getEnvIntAny([]string{"GNB_MAX_CELLS", "SCHED_MAX_CELLS"}, 16),
		RingDepth:          getEnvIntAny([]string{"GNB_GRID_RING_DEPTH", "SCHED_GRID_RING_DEPTH"}, 16),
		ResultHistory:      getEnvIntAny([]string{"GNB_RESULT_HISTORY", "SCHED_RESULT_HISTORY"}, 32),
		MaxPending:         getEnvIntAny([]string{"GNB_MAX_PENDING_EVENTS", "SCHED_MAX_PENDING_EVENTS"}, 4096),
		Numerology:         uint8(getEnvIntAny([]string{"GNB_NUMEROLOGY", "SCHED_NUMEROLOGY"}, 1)),
		Workers:            getEnvIntAny([]string{"GNB_WORKERS", "SCHED_WORKERS"}, 1),
		CellsFile:          getEnvAny([]string{"GNB_CELLS_FILE", "SCHED_CELLS_FILE"}, ""),
		DiagCapacity:       getEnvIntAny([]string{"GNB_DIAG_CAPACITY", "SCHED_DIAG_CAPACITY"}, 4096),
		SlotDuration:       time.Duration(getEnvIntAny([]string{"GNB_SLOT_DURATION_US", "SCHED_SLOT_DURATION_US"}, 0)) * time.Microsecond,
		PublishSlotResults: getEnvBoolAny([]string{"GNB_PUBLISH_SLOT_RESULTS", "SCHED_PUBLISH_SLOT_RESULTS"}, false),

		NotifyBackend: NotifyBackend(strings.ToLower(getEnvAny([]string{"GNB_NOTIFY_BACKEND", "SCHED_NOTIFY_BACKEND"}, string(NotifyMemory)))),
		NATSURL:       getEnvAny([]string{"GNB_NATS_URL", "SCHED_NATS_URL"}, "nats://localhost:4222"),

		// Tracing configuration
		TracingEnabled:    getEnvBoolAny([]string{"GNB_TRACING_ENABLED", "SCHED_TRACING_ENABLED"}, false),
		OTLPEndpoint:      getEnvAny([]string{"GNB_OTLP_ENDPOINT", "SCHED_OTLP_ENDPOINT"}, "localhost:4317"),
		TracingSampleRate: getEnvFloatAny([]string{"GNB_TRACING_SAMPLE_RATE", "SCHED_TRACING_SAMPLE_RATE"}, 0.01),

		// Multi-instance configuration
		LeaderElectionEnabled: getEnvBoolAny([]string{"GNB_LEADER_ELECTION_ENABLED", "SCHED_LEADER_ELECTION_ENABLED"}, false),
		RedisAddr:             getEnvAny([]string{"GNB_REDIS_ADDR", "SCHED_REDIS_ADDR"}, "localhost:6379"),
		RedisPassword:         getEnvAny([]string{"GNB_REDIS_PASSWORD", "SCHED_REDIS_PASSWORD"}, ""),
		RedisDB:               getEnvIntAny([]string{"GNB_REDIS_DB", "SCHED_REDIS_DB"}, 0),
		InstanceID:            getEnvAny([]string{"GNB_INSTANCE_ID", "SCHED_INSTANCE_ID"}, ""),

		ResultCacheEnabled:  getEnvBoolAny([]string{"GNB_RESULT_CACHE_ENABLED", "SCHED_RESULT_CACHE_ENABLED"}, false),
		ResultCacheInterval: time.Duration(getEnvIntAny([]string{"GNB_RESULT_CACHE_INTERVAL_MS", "SCHED_RESULT_CACHE_INTERVAL_MS"}, 100)) * time.Millisecond,
		ResultCacheTTL:      time.Duration(getEnvIntAny([]string{"GNB_RESULT_CACHE_TTL_S", "SCHED_RESULT_CACHE_TTL_S"}, 30)) * time.Second,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.JWTSigningKey == "" {
		return nil, fmt.Errorf("GNB_JWT_SIGNING_KEY or SCHED_JWT_SIGNING_KEY must be provided")
	}
	cfg.LegacyEnvWarnings = detectLegacyEnvWarnings()

	return cfg, nil
}

// Validate checks the settings that do not depend on the environment.
func (c *Config) Validate() error {
	switch c.NotifyBackend {
	case NotifyMemory, NotifyRedis, NotifyNATS:
	default:
		return fmt.Errorf("unsupported notification backend %q", c.NotifyBackend)
	}
	if c.MaxCells < 1 || c.MaxCells > 1024 {
		return fmt.Errorf("GNB_MAX_CELLS must be in 1..1024, got %d", c.MaxCells)
	}
	if c.RingDepth < 2 || c.RingDepth > 256 {
		return fmt.Errorf("GNB_GRID_RING_DEPTH must be in 2..256, got %d", c.RingDepth)
	}
	if c.Numerology > 4 {
		return fmt.Errorf("GNB_NUMEROLOGY must be in 0..4, got %d", c.Numerology)
	}
	if c.Workers < 1 {
		return fmt.Errorf("GNB_WORKERS must be positive, got %d", c.Workers)
	}
	if c.SlotDuration < 0 {
		return fmt.Errorf("GNB_SLOT_DURATION_US must not be negative")
	}
	if c.TracingSampleRate < 0 || c.TracingSampleRate > 1 {
		return fmt.Errorf("GNB_TRACING_SAMPLE_RATE must be in [0,1], got %v", c.TracingSampleRate)
	}
	if c.LeaderElectionEnabled && c.RedisAddr == "" {
		return fmt.Errorf("GNB_REDIS_ADDR is required when leader election is enabled")
	}
	if c.ResultCacheEnabled {
		if c.RedisAddr == "" {
			return fmt.Errorf("GNB_REDIS_ADDR is required when the result cache is enabled")
		}
		if c.ResultCacheInterval < 0 || c.ResultCacheTTL <= 0 {
			return fmt.Errorf("GNB_RESULT_CACHE_INTERVAL_MS must not be negative and GNB_RESULT_CACHE_TTL_S must be positive")
		}
	}
	return nil
}

// HTTPAddr returns the control-plane listen address.
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.HTTPBind, c.HTTPPort)
}

// EffectiveSlotDuration returns the configured slot length, or the nominal
// length of the default numerology (1 ms >> mu).
func (c *Config) EffectiveSlotDuration() time.Duration {
	if c.SlotDuration > 0 {
		return c.SlotDuration
	}
	return time.Millisecond >> c.Numerology
}

func detectLegacyEnvWarnings() []string {
	legacy := map[string]string{
		"ENVIRONMENT":             "use GNB_ENV (or SCHED_ENV)",
		"JWT_SIGNING_KEY":         "use GNB_JWT_SIGNING_KEY (or SCHED_JWT_SIGNING_KEY)",
		"REDIS_ADDR":              "use GNB_REDIS_ADDR (or SCHED_REDIS_ADDR)",
		"LEADER_ELECTION_ENABLED": "use GNB_LEADER_ELECTION_ENABLED",
		"TRACING_ENABLED":         "use GNB_TRACING_ENABLED (or SCHED_TRACING_ENABLED)",
		"OTLP_ENDPOINT":           "use GNB_OTLP_ENDPOINT (or SCHED_OTLP_ENDPOINT)",
	}

	warnings := make([]string, 0, len(legacy))
	for key, recommendation := range legacy {
		if os.Getenv(key) != "" {
			warnings = append(warnings, fmt.Sprintf("legacy env key %s is set; %s", key, recommendation))
		}
	}
	return warnings
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

// getEnvIntAny returns the first set integer environment variable value from keys, or def.
func getEnvIntAny(keys []string, def int) int {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvBoolAny returns the first set boolean environment variable value from keys, or def.
func getEnvBoolAny(keys []string, def bool) bool {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "true" || v == "1" || v == "yes" {
				return true
			}
			if v == "false" || v == "0" || v == "no" {
				return false
			}
		}
	}
	return def
}

// getEnvFloatAny returns the first set float environment variable value from keys, or def.
func getEnvFloatAny(keys []string, def float64) float64 {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				return parsed
			}
		}
	}
	return def
}
