/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package driver

import (
	"context"
	"errors"
	"sync"

	"github.com/friendsincode/gnb_scheduler/internal/events"
	"github.com/rs/zerolog"
)

// Campaigner is a leader election. *leadership.Election implements it.
type Campaigner interface {
	Start(ctx context.Context) error
	Stop() error
	IsLeader() bool
	LeaderCh() <-chan bool
}

// Runner is anything with a blocking run loop; *Driver implements it.
type Runner interface {
	Run(ctx context.Context) error
}

// LeaderAware runs the slot driver only while this instance holds leadership.
type LeaderAware struct {
	runner   Runner
	election Campaigner
	pub      events.Publisher
	logger   zerolog.Logger

	ctx     context.Context
	done    context.CancelFunc
	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
	fatal   chan error
	wg      sync.WaitGroup
}

// NewLeaderAware creates a leader-aware driver wrapper.
func NewLeaderAware(runner Runner, election Campaigner, pub events.Publisher, logger zerolog.Logger) *LeaderAware {
	if pub == nil {
		pub = events.Nop{}
	}
	return &LeaderAware{
		runner:   runner,
		election: election,
		pub:      pub,
		logger:   logger.With().Str("component", "leader_aware_driver").Logger(),
		fatal:    make(chan error, 1),
	}
}

// Start begins monitoring leadership status and manages the driver lifecycle.
func (la *LeaderAware) Start(ctx context.Context) error {
	la.ctx, la.done = context.WithCancel(ctx)
	la.logger.Info().Msg("starting leader-aware driver")

	if err := la.election.Start(la.ctx); err != nil {
		return err
	}

	la.wg.Add(1)
	go la.monitorLeadership()
	return nil
}

// Fatal delivers the error that stopped a running driver for a reason other
// than losing leadership.
func (la *LeaderAware) Fatal() <-chan error { return la.fatal }

// Stop stops the driver and releases leadership.
func (la *LeaderAware) Stop() error {
	la.logger.Info().Msg("stopping leader-aware driver")
	if la.done != nil {
		la.done()
	}
	la.wg.Wait()
	la.stopDriver()
	return la.election.Stop()
}

// IsLeader returns whether this instance is the leader.
func (la *LeaderAware) IsLeader() bool {
	return la.election.IsLeader()
}

// Running reports whether the driver is currently ticking.
func (la *LeaderAware) Running() bool {
	la.mu.Lock()
	defer la.mu.Unlock()
	return la.cancel != nil
}

func (la *LeaderAware) monitorLeadership() {
	defer la.wg.Done()
	leaderCh := la.election.LeaderCh()

	if la.election.IsLeader() {
		la.startDriver()
	}

	for {
		select {
		case <-la.ctx.Done():
			la.stopDriver()
			return
		case isLeader := <-leaderCh:
			la.pub.Publish(events.EventLeadershipChanged, events.Payload{"leader": isLeader})
			if isLeader {
				la.logger.Info().Msg("became leader, starting slot driver")
				la.startDriver()
			} else {
				la.logger.Warn().Msg("lost leadership, stopping slot driver")
				la.stopDriver()
			}
		}
	}
}

func (la *LeaderAware) startDriver() {
	la.mu.Lock()
	defer la.mu.Unlock()
	if la.cancel != nil {
		la.logger.Warn().Msg("slot driver already running")
		return
	}

	ctx, cancel := context.WithCancel(la.ctx)
	stopped := make(chan struct{})
	la.cancel = cancel
	la.stopped = stopped

	go func() {
		defer close(stopped)
		err := la.runner.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			la.logger.Error().Err(err).Msg("slot driver failed")
			select {
			case la.fatal <- err:
			default:
			}
		}
	}()
}

// stopDriver cancels the driver and waits for its loop to return.
func (la *LeaderAware) stopDriver() {
	la.mu.Lock()
	cancel, stopped := la.cancel, la.stopped
	la.cancel, la.stopped = nil, nil
	la.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-stopped
}
