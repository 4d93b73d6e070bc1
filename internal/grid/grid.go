/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package grid tracks committed time/frequency resources per slot.
package grid

import (
	"math/bits"

	"github.com/friendsincode/gnb_scheduler/internal/models"
)

// Grid is the occupancy table of one slot in one direction: a PRB bitmap per OFDM symbol.
type Grid struct {
	numPRBs int
	words   int
	used    [models.SymbolsPerSlot][]uint64
	grants  []models.Grant
}

// NewGrid creates an all-free grid of numPRBs PRBs.
func NewGrid(numPRBs int) *Grid {
	words := (numPRBs + 63) / 64
	g := &Grid{
		numPRBs: numPRBs,
		words:   words,
		grants:  make([]models.Grant, 0, 16),
	}
	for s := range g.used {
		g.used[s] = make([]uint64, words)
	}
	return g
}

// NumPRBs returns the carrier width.
func (g *Grid) NumPRBs() int { return g.numPRBs }

// Reset marks every unit free and forgets committed grants. Buffers are kept.
func (g *Grid) Reset() {
	for s := range g.used {
		clear(g.used[s])
	}
	g.grants = g.grants[:0]
}

// Contains reports whether the region lies inside the grid.
func (g *Grid) Contains(r models.Region) bool {
	return !r.Empty() &&
		r.StartSymbol >= 0 && r.StartSymbol+r.NumSymbols <= models.SymbolsPerSlot &&
		r.StartPRB >= 0 && r.StartPRB+r.NumPRBs <= g.numPRBs
}

// Collides reports whether any unit of the region is already committed.
// Regions outside the grid always collide.
func (g *Grid) Collides(r models.Region) bool {
	if !g.Contains(r) {
		return true
	}
	for s := r.StartSymbol; s < r.StartSymbol+r.NumSymbols; s++ {
		if g.anySet(s, r.StartPRB, r.NumPRBs) {
			return true
		}
	}
	return false
}

// Commit places the grant if its region is inside the grid and free.
// On failure the grid is left untouched.
func (g *Grid) Commit(grant models.Grant) bool {
	r := grant.Region
	if g.Collides(r) {
		return false
	}
	for s := r.StartSymbol; s < r.StartSymbol+r.NumSymbols; s++ {
		g.setRange(s, r.StartPRB, r.NumPRBs)
	}
	g.grants = append(g.grants, grant)
	return true
}

// Grants returns the committed grants in commit order. The slice is owned by the grid.
func (g *Grid) Grants() []models.Grant { return g.grants }

// FindFree returns the lowest-frequency region of numPRBs PRBs that is free on every
// symbol of [startSymbol, startSymbol+numSymbols).
func (g *Grid) FindFree(startSymbol, numSymbols, numPRBs int) (models.Region, bool) {
	if numPRBs <= 0 || numPRBs > g.numPRBs {
		return models.Region{}, false
	}
	if startSymbol < 0 || numSymbols <= 0 || startSymbol+numSymbols > models.SymbolsPerSlot {
		return models.Region{}, false
	}

	run := 0
	for prb := 0; prb < g.numPRBs; prb++ {
		if g.columnBusy(prb, startSymbol, numSymbols) {
			run = 0
			continue
		}
		run++
		if run == numPRBs {
			return models.Region{
				StartSymbol: startSymbol,
				NumSymbols:  numSymbols,
				StartPRB:    prb - numPRBs + 1,
				NumPRBs:     numPRBs,
			}, true
		}
	}
	return models.Region{}, false
}

func (g *Grid) columnBusy(prb, startSymbol, numSymbols int) bool {
	w, bit := prb/64, uint(prb%64)
	for s := startSymbol; s < startSymbol+numSymbols; s++ {
		if g.used[s][w]&(1<<bit) != 0 {
			return true
		}
	}
	return false
}

func (g *Grid) anySet(symbol, start, n int) bool {
	row := g.used[symbol]
	for n > 0 {
		w, off := start/64, start%64
		span := min(64-off, n)
		if row[w]&rangeMask(off, span) != 0 {
			return true
		}
		start += span
		n -= span
	}
	return false
}

func (g *Grid) setRange(symbol, start, n int) {
	row := g.used[symbol]
	for n > 0 {
		w, off := start/64, start%64
		span := min(64-off, n)
		row[w] |= rangeMask(off, span)
		start += span
		n -= span
	}
}

// UsedUnits counts committed (symbol, PRB) units.
func (g *Grid) UsedUnits() int {
	total := 0
	for s := range g.used {
		for _, w := range g.used[s] {
			total += bits.OnesCount64(w)
		}
	}
	return total
}

func rangeMask(off, n int) uint64 {
	if n >= 64 {
		return ^uint64(0)
	}
	return ((uint64(1) << uint(n)) - 1) << uint(off)
}
