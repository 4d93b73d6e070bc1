/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package diag records scheduler diagnostics (dropped events, rejected
// configurations, expired random-access attempts, contract violations).
//
// The scheduler never reaches for a process-wide logger; it is handed a Sink.
package diag

import (
	"sync"
	"time"
)

// Kind classifies a diagnostic.
type Kind string

const (
	KindDroppedEvent      Kind = "dropped_event"
	KindConfigRejected    Kind = "config_rejected"
	KindRAExpired         Kind = "ra_expired"
	KindAllocConflict     Kind = "alloc_conflict"
	KindContractViolation Kind = "contract_violation"
)

// NoCell marks an entry that is not tied to a cell.
const NoCell = -1

// Entry is a single diagnostic record.
type Entry struct {
	Timestamp time.Time      `json:"timestamp"`
	Kind      Kind           `json:"kind"`
	Cell      int            `json:"cell"`
	Slot      string         `json:"slot,omitempty"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Sink receives diagnostics.
type Sink interface {
	Record(Entry)
}

// Buffer is a thread-safe ring buffer of diagnostics.
type Buffer struct {
	mu       sync.RWMutex
	entries  []Entry
	capacity int
	head     int
	count    int
}

// New creates a diagnostic buffer with the specified capacity.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = 4096
	}
	return &Buffer{
		entries:  make([]Entry, capacity),
		capacity: capacity,
	}
}

// Record adds an entry, overwriting the oldest once full.
func (b *Buffer) Record(entry Entry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[b.head] = entry
	b.head = (b.head + 1) % b.capacity
	if b.count < b.capacity {
		b.count++
	}
}

// GetAll returns all entries in chronological order.
func (b *Buffer) GetAll() []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := make([]Entry, b.count)
	if b.count == 0 {
		return result
	}

	start := 0
	if b.count == b.capacity {
		start = b.head
	}

	for i := 0; i < b.count; i++ {
		result[i] = b.entries[(start+i)%b.capacity]
	}
	return result
}

// QueryParams filters Query results.
type QueryParams struct {
	Kind       Kind      // Filter by kind
	Cell       *int      // Filter by cell index
	Since      time.Time // Only entries after this time
	Limit      int       // Max entries to return (0 = all)
	Descending bool      // Return newest first
}

// Query returns entries matching the filter criteria.
func (b *Buffer) Query(params QueryParams) []Entry {
	all := b.GetAll()

	var filtered []Entry
	for _, entry := range all {
		if params.Kind != "" && entry.Kind != params.Kind {
			continue
		}
		if params.Cell != nil && entry.Cell != *params.Cell {
			continue
		}
		if !params.Since.IsZero() && entry.Timestamp.Before(params.Since) {
			continue
		}
		filtered = append(filtered, entry)
	}

	if params.Descending {
		for i, j := 0, len(filtered)-1; i < j; i, j = i+1, j-1 {
			filtered[i], filtered[j] = filtered[j], filtered[i]
		}
	}

	if params.Limit > 0 && len(filtered) > params.Limit {
		filtered = filtered[:params.Limit]
	}

	return filtered
}

// Stats summarises buffer contents.
type Stats struct {
	Capacity  int          `json:"capacity"`
	Count     int          `json:"count"`
	KindCount map[Kind]int `json:"kind_count"`
}

// Stats returns buffer statistics.
func (b *Buffer) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	stats := Stats{
		Capacity:  b.capacity,
		Count:     b.count,
		KindCount: make(map[Kind]int),
	}
	for i := 0; i < b.count; i++ {
		stats.KindCount[b.entries[i].Kind]++
	}
	return stats
}

// Clear empties the buffer.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.head = 0
	b.count = 0
}
