/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"sync"
	"time"

	"github.com/friendsincode/gnb_scheduler/internal/events"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// NATSBus fans scheduler notifications out over core NATS subjects. Like
// RedisBus it serves local subscribers from an in-memory bus.
type NATSBus struct {
	conn   *nats.Conn
	logger zerolog.Logger
	local  *events.Bus
	nodeID string
	prefix string

	mu   sync.Mutex
	refs map[events.EventType]int
	subs map[events.EventType]*nats.Subscription
}

// NATSConfig contains NATS connection configuration.
type NATSConfig struct {
	URL   string
	Token string
	// SubjectPrefix namespaces the subjects; the event type is appended.
	SubjectPrefix string
	// Connection options
	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// DefaultNATSConfig returns default NATS configuration.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "gnbsched.events.",
		MaxReconnects: -1, // Unlimited
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

// NewNATSBus connects to NATS. Unlike Redis there is no fallback at startup: a
// failed initial connection is returned to the caller.
func NewNATSBus(cfg NATSConfig, nodeID string, logger zerolog.Logger) (*NATSBus, error) {
	nb := &NATSBus{
		logger: logger.With().Str("component", "eventbus").Str("backend", "nats").Logger(),
		local:  events.NewBus(),
		nodeID: nodeID,
		prefix: cfg.SubjectPrefix,
		refs:   make(map[events.EventType]int),
		subs:   make(map[events.EventType]*nats.Subscription),
	}

	opts := []nats.Option{
		nats.Name("gnbsched-" + nodeID),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			nb.logger.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			nb.logger.Info().Str("url", c.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, err
	}
	nb.conn = conn
	nb.logger.Info().Str("url", conn.ConnectedUrl()).Msg("NATS event bus initialized")
	return nb, nil
}

func (nb *NATSBus) subject(eventType events.EventType) string {
	return nb.prefix + string(eventType)
}

// Subscribe registers a subscriber for an event type.
func (nb *NATSBus) Subscribe(eventType events.EventType) events.Subscriber {
	sub := nb.local.Subscribe(eventType)

	nb.mu.Lock()
	defer nb.mu.Unlock()
	nb.refs[eventType]++
	if _, exists := nb.subs[eventType]; exists {
		return sub
	}
	remote, err := nb.conn.Subscribe(nb.subject(eventType), nb.handleMessage)
	if err != nil {
		nb.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("NATS subscribe failed, local delivery only")
		return sub
	}
	nb.subs[eventType] = remote
	return sub
}

func (nb *NATSBus) handleMessage(msg *nats.Msg) {
	remote, err := unmarshalMessage(msg.Data)
	if err != nil {
		nb.logger.Error().Err(err).Str("subject", msg.Subject).Msg("failed to unmarshal NATS message")
		return
	}
	if remote.NodeID == nb.nodeID {
		return
	}
	nb.local.Publish(remote.EventType, remote.Payload)
}

// Publish delivers the payload locally and to every other instance. NATS buffers
// while reconnecting, so there is no breaker.
func (nb *NATSBus) Publish(eventType events.EventType, payload events.Payload) {
	nb.local.Publish(eventType, payload)

	data, err := marshalMessage(eventType, payload, nb.nodeID)
	if err != nil {
		nb.logger.Error().Err(err).Msg("failed to marshal NATS message")
		return
	}
	if err := nb.conn.Publish(nb.subject(eventType), data); err != nil {
		nb.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to publish to NATS")
	}
}

// Unsubscribe removes a subscriber.
func (nb *NATSBus) Unsubscribe(eventType events.EventType, sub events.Subscriber) {
	nb.local.Unsubscribe(eventType, sub)

	nb.mu.Lock()
	defer nb.mu.Unlock()
	if nb.refs[eventType] == 0 {
		return
	}
	nb.refs[eventType]--
	if nb.refs[eventType] > 0 {
		return
	}
	delete(nb.refs, eventType)
	if remote, exists := nb.subs[eventType]; exists {
		if err := remote.Unsubscribe(); err != nil {
			nb.logger.Debug().Err(err).Str("event_type", string(eventType)).Msg("NATS unsubscribe")
		}
		delete(nb.subs, eventType)
	}
}

// Close drains pending messages and closes the connection.
func (nb *NATSBus) Close() error {
	nb.logger.Info().Msg("closing NATS event bus")
	return nb.conn.Drain()
}
