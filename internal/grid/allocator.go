/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package grid

import (
	"github.com/friendsincode/gnb_scheduler/internal/models"
	"github.com/friendsincode/gnb_scheduler/internal/slot"
)

// Allocator exposes check-and-commit primitives over a Pool for the slot being
// processed. It is used by a single pipeline goroutine.
type Allocator struct {
	pool      *Pool
	conflicts int
}

// NewAllocator wraps pool.
func NewAllocator(pool *Pool) *Allocator {
	return &Allocator{pool: pool}
}

// Current returns the slot being processed.
func (a *Allocator) Current() slot.Point { return a.pool.Current() }

// Depth returns how far ahead grants may be placed.
func (a *Allocator) Depth() int { return a.pool.Depth() }

// Allocate commits grant into the grid of sl selected by grant.Direction.
// It returns false, leaving the grid untouched, if the region overlaps a commitment.
func (a *Allocator) Allocate(sl slot.Point, grant models.Grant) bool {
	if !a.pool.Grid(sl, grant.Direction).Commit(grant) {
		a.conflicts++
		return false
	}
	return true
}

// UsedUnits counts the committed units of sl's grid in direction dir.
func (a *Allocator) UsedUnits(sl slot.Point, dir models.Direction) int {
	return a.pool.Grid(sl, dir).UsedUnits()
}

// FindFree searches sl's grid for a free region of numPRBs PRBs over the given symbols.
func (a *Allocator) FindFree(sl slot.Point, dir models.Direction, startSymbol, numSymbols, numPRBs int) (models.Region, bool) {
	return a.pool.Grid(sl, dir).FindFree(startSymbol, numSymbols, numPRBs)
}

// Grants returns the grants committed for sl in direction dir.
func (a *Allocator) Grants(sl slot.Point, dir models.Direction) []models.Grant {
	return a.pool.Grid(sl, dir).Grants()
}

// Conflicts returns and clears the number of failed Allocate calls.
func (a *Allocator) Conflicts() int {
	n := a.conflicts
	a.conflicts = 0
	return n
}
