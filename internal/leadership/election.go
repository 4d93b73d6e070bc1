/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package leadership elects the one instance that drives the slot clock when
// several scheduler instances run active/standby. Two instances must never
// drive the same cells at once, so a leader steps down when its lease may have
// expired, even if Redis never told it so.
package leadership

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/gnb_scheduler/internal/telemetry"
)

const (
	defaultElectionKey     = "gnbsched:leader:slot-driver"
	defaultLeaseDuration   = 6 * time.Second
	defaultRenewalInterval = 2 * time.Second
	defaultRetryInterval   = time.Second
	releaseTimeout         = 5 * time.Second
)

// campaignScript takes the lease when it is free and extends it when we
// already hold it. Returns 1 when we hold the lease afterwards.
var campaignScript = redis.NewScript(`
local holder = redis.call("get", KEYS[1])
if holder == false then
	redis.call("set", KEYS[1], ARGV[1], "PX", ARGV[2])
	return 1
end
if holder == ARGV[1] then
	redis.call("pexpire", KEYS[1], ARGV[2])
	return 1
end
return 0
`)

// releaseScript deletes the key only while we still hold it.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// ElectionConfig configures the lease.
type ElectionConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// ElectionKey holds the leader's instance ID.
	ElectionKey string
	// LeaseDuration is the TTL set on every successful campaign.
	LeaseDuration time.Duration
	// RenewalInterval is how often the leader extends the lease. It must be
	// shorter than LeaseDuration.
	RenewalInterval time.Duration
	// RetryInterval is how often a standby tries to take the lease.
	RetryInterval time.Duration
	InstanceID    string
}

// DefaultConfig returns default election configuration.
func DefaultConfig() ElectionConfig {
	return ElectionConfig{
		RedisAddr:       "localhost:6379",
		ElectionKey:     defaultElectionKey,
		LeaseDuration:   defaultLeaseDuration,
		RenewalInterval: defaultRenewalInterval,
		RetryInterval:   defaultRetryInterval,
		InstanceID:      uuid.New().String(),
	}
}

// Election campaigns for the slot-driver lease.
type Election struct {
	client     *redis.Client
	logger     zerolog.Logger
	config     ElectionConfig
	instanceID string
	now        func() time.Time

	isLeader atomic.Bool
	// leaseEnd is the local deadline of the lease last confirmed by Redis.
	// Only the campaign goroutine touches it.
	leaseEnd time.Time

	cancel   context.CancelFunc
	done     chan struct{}
	leaderCh chan bool
	stopOnce sync.Once
}

// NewElection connects to Redis and validates the lease timings.
func NewElection(config ElectionConfig, logger zerolog.Logger) (*Election, error) {
	if config.ElectionKey == "" {
		config.ElectionKey = defaultElectionKey
	}
	if config.LeaseDuration <= 0 {
		config.LeaseDuration = defaultLeaseDuration
	}
	if config.RenewalInterval <= 0 {
		config.RenewalInterval = defaultRenewalInterval
	}
	if config.RetryInterval <= 0 {
		config.RetryInterval = defaultRetryInterval
	}
	if config.RenewalInterval >= config.LeaseDuration {
		return nil, fmt.Errorf("renewal interval %s must be shorter than lease %s", config.RenewalInterval, config.LeaseDuration)
	}
	if config.InstanceID == "" {
		config.InstanceID = uuid.New().String()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis for leader election: %w", err)
	}

	e := &Election{
		client:     client,
		logger:     logger.With().Str("component", "leader_election").Logger(),
		config:     config,
		instanceID: config.InstanceID,
		now:        time.Now,
		done:       make(chan struct{}),
		leaderCh:   make(chan bool, 1),
	}
	e.logger.Info().
		Str("redis_addr", config.RedisAddr).
		Str("instance_id", config.InstanceID).
		Dur("lease", config.LeaseDuration).
		Msg("leader election ready")
	return e, nil
}

// InstanceID returns the identity this instance campaigns with.
func (e *Election) InstanceID() string { return e.instanceID }

// Start launches the campaign goroutine.
func (e *Election) Start(ctx context.Context) error {
	ctx, e.cancel = context.WithCancel(ctx)
	go e.campaignLoop(ctx)
	return nil
}

// Stop ends the campaign and hands the lease back if held, so a standby can
// take over without waiting for the TTL.
func (e *Election) Stop() error {
	var err error
	e.stopOnce.Do(func() {
		if e.cancel != nil {
			e.cancel()
			<-e.done
		}
		if e.isLeader.Load() {
			ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()
			if rerr := releaseScript.Run(ctx, e.client, []string{e.config.ElectionKey}, e.instanceID).Err(); rerr != nil {
				e.logger.Error().Err(rerr).Msg("release slot-driver lease")
			} else {
				e.logger.Info().Msg("slot-driver lease released")
			}
			e.setLeader(false)
		}
		err = e.client.Close()
	})
	return err
}

// IsLeader reports whether this instance holds the lease.
func (e *Election) IsLeader() bool {
	return e.isLeader.Load()
}

// LeaderCh delivers leadership changes. Only the newest pending change is kept.
func (e *Election) LeaderCh() <-chan bool {
	return e.leaderCh
}

// GetLeader returns the instance ID holding the lease, or "" when it is free.
func (e *Election) GetLeader(ctx context.Context) (string, error) {
	id, err := e.client.Get(ctx, e.config.ElectionKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get leader: %w", err)
	}
	return id, nil
}

func (e *Election) campaignLoop(ctx context.Context) {
	defer close(e.done)

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			e.campaign(ctx)
			next := e.config.RetryInterval
			if e.isLeader.Load() {
				next = e.config.RenewalInterval
			}
			timer.Reset(next)
		}
	}
}

// campaign runs one acquire-or-renew round.
func (e *Election) campaign(ctx context.Context) {
	start := e.now()
	held, err := campaignScript.Run(ctx, e.client,
		[]string{e.config.ElectionKey},
		e.instanceID, e.config.LeaseDuration.Milliseconds(),
	).Bool()
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		e.logger.Warn().Err(err).Msg("slot-driver lease campaign failed")
		e.observe(false, false, start)
		return
	}
	e.observe(true, held, start)
}

// observe applies the outcome of a campaign round started at start. A failed
// round keeps an existing leader in place until its lease deadline passes.
func (e *Election) observe(reached, held bool, start time.Time) {
	switch {
	case reached && held:
		// The TTL started no earlier than the round did.
		e.leaseEnd = start.Add(e.config.LeaseDuration)
		if !e.isLeader.Load() {
			e.logger.Info().Str("instance_id", e.instanceID).Msg("acquired slot-driver lease")
			e.setLeader(true)
		}
	case reached:
		if e.isLeader.Load() {
			e.logger.Warn().Str("instance_id", e.instanceID).Msg("slot-driver lease taken by another instance")
			e.setLeader(false)
		}
	case e.isLeader.Load() && !e.now().Before(e.leaseEnd):
		e.logger.Warn().Time("lease_end", e.leaseEnd).Msg("slot-driver lease expired without renewal")
		e.setLeader(false)
	}
}

// setLeader records a leadership change and notifies LeaderCh.
func (e *Election) setLeader(leader bool) {
	if e.isLeader.Swap(leader) == leader {
		return
	}
	if leader {
		telemetry.LeaderStatus.Set(1)
	} else {
		telemetry.LeaderStatus.Set(0)
	}

	select {
	case e.leaderCh <- leader:
	default:
		select {
		case <-e.leaderCh:
		default:
		}
		select {
		case e.leaderCh <- leader:
		default:
		}
	}
}
