/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cache mirrors scheduler state into Redis so standby instances can
// serve reads while another instance drives the slot clock.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/gnb_scheduler/internal/models"
)

const (
	// DefaultResultTTL bounds how long a mirrored result outlives its writer.
	DefaultResultTTL = 30 * time.Second
	// DefaultRetryAfter is how long the mirror stays off after a Redis error.
	DefaultRetryAfter = 10 * time.Second

	keyPrefix       = "gnbsched:mirror:"
	keyLatestResult = keyPrefix + "latest:" // + cell index
	keyAll          = keyPrefix + "*"
	scanBatch       = 100
)

// Config contains mirror configuration.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	ResultTTL time.Duration
	// DisableOnError trips the breaker on the first failed command. The mirror
	// is tried again after RetryAfter.
	DisableOnError bool
	RetryAfter     time.Duration
}

// DefaultConfig returns default mirror configuration.
func DefaultConfig() Config {
	return Config{
		RedisAddr:      "localhost:6379",
		ResultTTL:      DefaultResultTTL,
		DisableOnError: true,
		RetryAfter:     DefaultRetryAfter,
	}
}

// Cache is the Redis result mirror. Every method degrades to a miss or a
// no-op while Redis is unreachable; slot processing never waits on it.
type Cache struct {
	client *redis.Client
	logger zerolog.Logger
	config Config
	now    func() time.Time

	mu       sync.Mutex
	offUntil time.Time
}

// New connects to Redis. An unreachable Redis yields a mirror whose breaker is
// already open, not an error.
func New(cfg Config, logger zerolog.Logger) *Cache {
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = DefaultResultTTL
	}
	if cfg.RetryAfter <= 0 {
		cfg.RetryAfter = DefaultRetryAfter
	}
	c := &Cache{
		client: redis.NewClient(&redis.Options{
			Addr:         cfg.RedisAddr,
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			PoolSize:     4,
		}),
		logger: logger.With().Str("component", "result_mirror").Logger(),
		config: cfg,
		now:    time.Now,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.client.Ping(ctx).Err(); err != nil {
		c.logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unavailable, result mirror paused")
		c.trip()
		return c
	}
	c.logger.Info().Str("addr", cfg.RedisAddr).Dur("ttl", cfg.ResultTTL).Msg("result mirror connected")
	return c
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}

// IsAvailable reports whether the breaker is closed.
func (c *Cache) IsAvailable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.now().Before(c.offUntil)
}

func (c *Cache) trip() {
	c.mu.Lock()
	c.offUntil = c.now().Add(c.config.RetryAfter)
	c.mu.Unlock()
}

// fail records a failed command and opens the breaker when configured to.
func (c *Cache) fail(err error, op string) {
	if err == nil || errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
		return
	}
	c.logger.Debug().Err(err).Str("op", op).Msg("result mirror command failed")
	if c.config.DisableOnError {
		c.trip()
		c.logger.Warn().Dur("retry_after", c.config.RetryAfter).Msg("result mirror paused after redis error")
	}
}

func latestKey(idx models.CellIndex) string {
	return keyLatestResult + strconv.Itoa(int(idx))
}

// GetLatestResult returns the mirrored latest result of a cell.
func (c *Cache) GetLatestResult(ctx context.Context, idx models.CellIndex) (*models.SlotResult, bool) {
	if !c.IsAvailable() {
		return nil, false
	}
	data, err := c.client.Get(ctx, latestKey(idx)).Bytes()
	if err != nil {
		c.fail(err, "get")
		return nil, false
	}
	var res models.SlotResult
	if err := json.Unmarshal(data, &res); err != nil {
		c.logger.Debug().Err(err).Uint16("cell", uint16(idx)).Msg("discarding undecodable mirrored result")
		return nil, false
	}
	return &res, true
}

// SetLatestResult mirrors the latest result of a cell.
func (c *Cache) SetLatestResult(ctx context.Context, res *models.SlotResult) error {
	if !c.IsAvailable() {
		return nil
	}
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal slot result: %w", err)
	}
	if err := c.client.Set(ctx, latestKey(res.Cell), data, c.config.ResultTTL).Err(); err != nil {
		c.fail(err, "set")
		return err
	}
	return nil
}

// InvalidateAll removes every mirrored key, e.g. when a new clock owner starts
// and results from a previous run must not be served.
func (c *Cache) InvalidateAll(ctx context.Context) error {
	if !c.IsAvailable() {
		return nil
	}
	var cursor uint64
	removed := 0
	for {
		keys, next, err := c.client.Scan(ctx, cursor, keyAll, scanBatch).Result()
		if err != nil {
			c.fail(err, "scan")
			return err
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.fail(err, "del")
				return err
			}
			removed += len(keys)
		}
		if cursor = next; cursor == 0 {
			break
		}
	}
	c.logger.Debug().Int("keys", removed).Msg("result mirror cleared")
	return nil
}
