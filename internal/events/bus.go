/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package events carries scheduler notifications to interested parties.
package events

import "sync"

// EventType enumerates notification categories.
type EventType string

const (
	EventCellConfigured     EventType = "cell.configured"
	EventCellConfigRejected EventType = "cell.config_rejected"
	EventCellReconfigured   EventType = "cell.reconfigured"
	EventDropped            EventType = "event.dropped"
	EventRAExpired          EventType = "ra.expired"
	EventRAResolved         EventType = "ra.resolved"
	EventRARejected         EventType = "ra.rejected"
	EventSlotResult         EventType = "slot.result"
	EventLeadershipChanged  EventType = "leadership.changed"
)

// AllEventTypes lists every notification category, for stream subscribers.
var AllEventTypes = []EventType{
	EventCellConfigured,
	EventCellConfigRejected,
	EventCellReconfigured,
	EventDropped,
	EventRAExpired,
	EventRAResolved,
	EventRARejected,
	EventSlotResult,
	EventLeadershipChanged,
}

// Payload generic event payload.
type Payload map[string]any

// Subscriber receives event payloads.
type Subscriber chan Payload

// Publisher emits notifications. Publish is fire-and-forget and never blocks.
type Publisher interface {
	Publish(eventType EventType, payload Payload)
}

// Broker is a Publisher that also hands out subscriptions.
type Broker interface {
	Publisher
	Subscribe(eventType EventType) Subscriber
	Unsubscribe(eventType EventType, sub Subscriber)
}

// Bus implements a simple in-process pubsub.
type Bus struct {
	mu   sync.RWMutex
	subs map[EventType][]Subscriber
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[EventType][]Subscriber)}
}

// Subscribe registers a subscriber for event type.
func (b *Bus) Subscribe(eventType EventType) Subscriber {
	ch := make(Subscriber, 8)
	b.mu.Lock()
	b.subs[eventType] = append(b.subs[eventType], ch)
	b.mu.Unlock()
	return ch
}

// Publish sends payload to subscribers, dropping it for subscribers that are full.
func (b *Bus) Publish(eventType EventType, payload Payload) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs[eventType] {
		select {
		case sub <- payload:
		default:
		}
	}
}

// Unsubscribe removes the subscriber.
func (b *Bus) Unsubscribe(eventType EventType, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[eventType]
	for i, candidate := range subs {
		if candidate == sub {
			subs = append(subs[:i], subs[i+1:]...)
			close(sub)
			break
		}
	}
	b.subs[eventType] = subs
}

// Nop discards notifications.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(EventType, Payload) {}
