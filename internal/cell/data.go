/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package cell

import (
	"github.com/friendsincode/gnb_scheduler/internal/grid"
	"github.com/friendsincode/gnb_scheduler/internal/models"
	"github.com/friendsincode/gnb_scheduler/internal/slot"
)

// Data region layout: the first two symbols of a downlink slot carry control.
const (
	dataStartSymbol = 2
	dataSymbols     = models.SymbolsPerSlot - dataStartSymbol
)

// DataScheduler places data grants for the active terminals of a cell on the
// capacity left after random access. It returns the number of grants placed.
type DataScheduler interface {
	Schedule(alloc *grid.Allocator, sl slot.Point, ues *UERepository) int
}

// RoundRobin serves terminals in admission order, starting one terminal later on
// every slot.
type RoundRobin struct {
	next int
}

// NewRoundRobin creates the default data scheduler.
func NewRoundRobin() *RoundRobin {
	return &RoundRobin{}
}

// Schedule implements DataScheduler.
func (rr *RoundRobin) Schedule(alloc *grid.Allocator, sl slot.Point, ues *UERepository) int {
	n := ues.Len()
	if n == 0 {
		return 0
	}
	if rr.next >= n {
		rr.next = 0
	}

	placed := 0
	for i := 0; i < n; i++ {
		ue := ues.At((rr.next + i) % n)
		if !ue.Active {
			continue
		}
		cfg := ue.Config
		if cfg.DLPRBs > 0 {
			if r, ok := alloc.FindFree(sl, models.Downlink, dataStartSymbol, dataSymbols, cfg.DLPRBs); ok {
				if alloc.Allocate(sl, dataGrant(models.Downlink, cfg.RNTI, r, cfg.MCS)) {
					placed++
				}
			}
		}
		if cfg.ULPRBs > 0 {
			if r, ok := alloc.FindFree(sl, models.Uplink, 0, models.SymbolsPerSlot, cfg.ULPRBs); ok {
				if alloc.Allocate(sl, dataGrant(models.Uplink, cfg.RNTI, r, cfg.MCS)) {
					placed++
				}
			}
		}
	}
	rr.next = (rr.next + 1) % n
	return placed
}

func dataGrant(dir models.Direction, rnti models.RNTI, r models.Region, mcs uint8) models.Grant {
	return models.Grant{
		Kind:      models.GrantData,
		Direction: dir,
		RNTI:      rnti,
		Region:    r,
		MCS:       mcs,
		TBSBytes:  models.TransportBlockBytes(r, mcs),
	}
}
