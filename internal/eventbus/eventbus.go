/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package eventbus selects the transport that carries scheduler notifications
// between instances.
package eventbus

import (
	"fmt"

	"github.com/friendsincode/gnb_scheduler/internal/events"
	"github.com/rs/zerolog"
)

// Backend names.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendNATS   = "nats"
)

// Bus is a notification broker that owns a connection.
type Bus interface {
	events.Broker
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Backend string
	NodeID  string
	Redis   RedisConfig
	NATS    NATSConfig
}

// Memory wraps the in-process bus.
type Memory struct {
	*events.Bus
}

// NewMemory creates an in-process bus.
func NewMemory() *Memory {
	return &Memory{Bus: events.NewBus()}
}

// Close implements Bus.
func (*Memory) Close() error { return nil }

// Open connects the configured backend.
func Open(cfg Config, logger zerolog.Logger) (Bus, error) {
	if cfg.NodeID == "" {
		cfg.NodeID = GenerateNodeID()
	}
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemory(), nil
	case BackendRedis:
		return NewRedisBus(cfg.Redis, cfg.NodeID, logger), nil
	case BackendNATS:
		nb, err := NewNATSBus(cfg.NATS, cfg.NodeID, logger)
		if err != nil {
			return nil, fmt.Errorf("connect nats: %w", err)
		}
		return nb, nil
	default:
		return nil, fmt.Errorf("unknown event bus backend %q", cfg.Backend)
	}
}
