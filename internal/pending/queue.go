/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package pending implements the per-cell event ingestion queue that sits between
// control-plane producers and the slot pipeline.
package pending

import (
	"errors"
	"fmt"
	"sync"

	"github.com/friendsincode/gnb_scheduler/internal/models"
	"github.com/friendsincode/gnb_scheduler/internal/slot"
)

var (
	// ErrInvalidCell indicates an event addressed outside the queue's partitions.
	ErrInvalidCell = errors.New("event addressed to invalid cell")

	// ErrQueueFull indicates a partition already holding its limit of undrained events.
	ErrQueueFull = errors.New("pending event queue full")
)

// DefaultLimit is the per-cell bound on undrained events used when New is given
// no limit.
const DefaultLimit = 4096

// partition holds the events of one cell.
//
// Producers only touch incoming (under mu). spare, deferred and held belong to the
// consumer and are reused between drains.
type partition struct {
	mu       sync.Mutex
	incoming []Event

	spare    []Event
	deferred []Event
	held     []Event
}

// Queue is a multi-producer, single-consumer-per-cell event queue.
type Queue struct {
	parts []partition
	limit int
}

// New creates a queue with one partition per cell. Each partition accepts at
// most limit events between two drains; limit < 1 selects DefaultLimit.
func New(maxCells, limit int) *Queue {
	if limit < 1 {
		limit = DefaultLimit
	}
	q := &Queue{parts: make([]partition, maxCells), limit: limit}
	for i := range q.parts {
		q.parts[i].incoming = make([]Event, 0, 64)
		q.parts[i].spare = make([]Event, 0, 64)
		q.parts[i].deferred = make([]Event, 0, 16)
		q.parts[i].held = make([]Event, 0, 16)
	}
	return q
}

// Push appends ev to its cell's partition. It never waits on the consumer beyond
// the append itself. A partition whose consumer has fallen behind by the limit
// rejects ev with ErrQueueFull.
func (q *Queue) Push(ev Event) error {
	cell := int(ev.TargetCell())
	if cell >= len(q.parts) {
		return fmt.Errorf("%w: %d", ErrInvalidCell, cell)
	}
	p := &q.parts[cell]
	p.mu.Lock()
	if len(p.incoming) >= q.limit {
		p.mu.Unlock()
		return fmt.Errorf("%w: cell %d holds %d events", ErrQueueFull, cell, q.limit)
	}
	p.incoming = append(p.incoming, ev)
	p.mu.Unlock()
	return nil
}

// Len returns the number of events waiting for cell, including deferred ones.
// It is only exact when called from the cell's consumer.
func (q *Queue) Len(cell models.CellIndex) int {
	p := &q.parts[cell]
	p.mu.Lock()
	n := len(p.incoming)
	p.mu.Unlock()
	return n + len(p.deferred)
}

// Drain applies, in submission order, every queued event for cell whose target slot
// is not after now. Events for later slots stay queued in their original order.
// Drain must only be called by the cell's consumer.
func (q *Queue) Drain(cell models.CellIndex, now slot.Point, apply func(Event)) int {
	p := &q.parts[cell]

	p.mu.Lock()
	batch := p.incoming
	p.incoming = p.spare[:0]
	p.mu.Unlock()

	kept := p.held[:0]
	applied := 0
	visit := func(ev Event) {
		if target := ev.TargetSlot(); target.Valid() && target.After(now) {
			kept = append(kept, ev)
			return
		}
		apply(ev)
		applied++
	}

	// Deferred events were submitted before anything in batch.
	for _, ev := range p.deferred {
		visit(ev)
	}
	for _, ev := range batch {
		visit(ev)
	}

	clear(p.deferred)
	p.held = p.deferred[:0]
	p.deferred = kept

	clear(batch)
	p.spare = batch[:0]

	return applied
}
