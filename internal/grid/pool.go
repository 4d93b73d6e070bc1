/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package grid

import (
	"fmt"

	"github.com/friendsincode/gnb_scheduler/internal/models"
	"github.com/friendsincode/gnb_scheduler/internal/slot"
)

// entry is one ring position: the DL and UL grids of a single slot.
type entry struct {
	slot slot.Point
	dl   *Grid
	ul   *Grid
}

// Pool owns a fixed-depth ring of grids covering [current, current+depth).
//
// Positions are derived from an absolute slot counter rather than the wrapped
// slot count, so the ring stays consistent across hyper-frame wrap for any depth.
type Pool struct {
	depth   int
	entries []entry
	current slot.Point
	abs     uint64
	started bool
}

// NewPool allocates depth DL/UL grid pairs of numPRBs PRBs.
func NewPool(depth, numPRBs int) *Pool {
	if depth < 1 {
		panic(fmt.Sprintf("grid: invalid ring depth %d", depth))
	}
	p := &Pool{depth: depth, entries: make([]entry, depth)}
	for i := range p.entries {
		p.entries[i] = entry{dl: NewGrid(numPRBs), ul: NewGrid(numPRBs)}
	}
	return p
}

// Depth returns the look-ahead window in slots.
func (p *Pool) Depth() int { return p.depth }

// Current returns the slot most recently made current.
func (p *Pool) Current() slot.Point { return p.current }

// Advance makes sl the current slot. Grids for slots newly entering the window are
// reset; grids already inside the window keep their pre-computed grants.
// sl must not be before the current slot.
func (p *Pool) Advance(sl slot.Point) {
	if !p.started {
		p.started = true
		p.current = sl
		p.abs = 0
		for k := 0; k < p.depth; k++ {
			p.resetAt(k, sl.Add(k))
		}
		return
	}

	d := sl.Sub(p.current)
	if d < 0 {
		panic(fmt.Sprintf("grid: advance to %s before current slot %s", sl, p.current))
	}
	if d == 0 {
		return
	}

	// Slots [max(current+depth, sl), sl+depth) enter the window.
	first := max(p.depth, d)
	p.abs += uint64(d)
	p.current = sl
	for k := first - d; k < p.depth; k++ {
		p.resetAt(k, sl.Add(k))
	}
}

// InWindow reports whether sl is addressable.
func (p *Pool) InWindow(sl slot.Point) bool {
	if !p.started {
		return false
	}
	d := sl.Sub(p.current)
	return d >= 0 && d < p.depth
}

// Grid returns the grid of sl in direction dir. Addressing a slot outside the
// window is a caller bug and panics.
func (p *Pool) Grid(sl slot.Point, dir models.Direction) *Grid {
	e := p.entryFor(sl)
	if dir == models.Uplink {
		return e.ul
	}
	return e.dl
}

func (p *Pool) entryFor(sl slot.Point) *entry {
	if !p.InWindow(sl) {
		panic(fmt.Sprintf("grid: slot %s outside window [%s, %s)", sl, p.current, p.current.Add(p.depth)))
	}
	d := sl.Sub(p.current)
	e := &p.entries[(p.abs+uint64(d))%uint64(p.depth)]
	if !e.slot.Equal(sl) {
		panic(fmt.Sprintf("grid: ring position holds %s, expected %s", e.slot, sl))
	}
	return e
}

func (p *Pool) resetAt(offset int, sl slot.Point) {
	e := &p.entries[(p.abs+uint64(offset))%uint64(p.depth)]
	e.slot = sl
	e.dl.Reset()
	e.ul.Reset()
}
