/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduler

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/friendsincode/gnb_scheduler/internal/cell"
	"github.com/friendsincode/gnb_scheduler/internal/models"
	"github.com/friendsincode/gnb_scheduler/internal/slot"
)

// cellState pairs a cell with its published results.
//
// mu serialises pipeline passes; with one driver goroutine per cell it is never
// contended. Results are published through atomic pointers and never mutated
// afterwards, so readers take no lock.
type cellState struct {
	mu    sync.Mutex
	cell  *cell.Cell
	label string

	config  atomic.Pointer[models.CellConfigRequest]
	latest  atomic.Pointer[models.SlotResult]
	history []atomic.Pointer[models.SlotResult]
}

func newCellState(c *cell.Cell, historyDepth int) *cellState {
	st := &cellState{
		cell:    c,
		label:   strconv.Itoa(int(c.Index())),
		history: make([]atomic.Pointer[models.SlotResult], historyDepth),
	}
	cfg := c.Config()
	st.config.Store(&cfg)
	return st
}

// lookup returns the published result of sl, or nil if sl has not run or has
// left the history ring.
func (st *cellState) lookup(sl slot.Point) *models.SlotResult {
	latest := st.latest.Load()
	if latest == nil || sl.Numerology() != latest.Slot.Numerology() {
		return nil
	}
	d := latest.Slot.Sub(sl)
	if d < 0 || d >= len(st.history) {
		return nil
	}
	res := st.history[sl.Count()%uint32(len(st.history))].Load()
	if res == nil || !res.Slot.Equal(sl) {
		return nil
	}
	return res
}

func (st *cellState) publish(res *models.SlotResult) {
	st.history[res.Slot.Count()%uint32(len(st.history))].Store(res)
	st.latest.Store(res)
}
