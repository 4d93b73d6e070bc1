/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cell aggregates the per-cell scheduling state: the resource grid ring,
// the random-access scheduler and the served terminals.
package cell

import (
	"errors"
	"fmt"

	"github.com/friendsincode/gnb_scheduler/internal/grid"
	"github.com/friendsincode/gnb_scheduler/internal/models"
	"github.com/friendsincode/gnb_scheduler/internal/ra"
	"github.com/friendsincode/gnb_scheduler/internal/slot"
)

var (
	// ErrNonMonotonicSlot indicates a slot at or before the last processed one.
	ErrNonMonotonicSlot = errors.New("non-monotonic slot")

	// ErrNumerologyMismatch indicates a slot built for another subcarrier spacing.
	ErrNumerologyMismatch = errors.New("slot numerology does not match cell")
)

// Cell is the scheduling state of one configured cell. All methods except
// Index are called by the cell's pipeline goroutine only.
type Cell struct {
	index models.CellIndex
	cfg   models.CellConfigRequest

	pool  *grid.Pool
	alloc *grid.Allocator
	rntis *ra.RNTIAllocator
	ra    *ra.Scheduler
	ues   *UERepository
	data  DataScheduler

	last    slot.Point
	started bool
}

// New builds a cell from a validated configuration. A nil data scheduler selects
// round-robin.
func New(cfg models.CellConfigRequest, ringDepth int, data DataScheduler) *Cell {
	if data == nil {
		data = NewRoundRobin()
	}
	pool := grid.NewPool(ringDepth, cfg.NumPRBs)
	rntis := ra.NewRNTIAllocator()
	return &Cell{
		index: cfg.Index,
		cfg:   cfg,
		pool:  pool,
		alloc: grid.NewAllocator(pool),
		rntis: rntis,
		ra:    ra.NewScheduler(cfg.RA, rntis),
		ues:   NewUERepository(),
		data:  data,
	}
}

// Index returns the cell index.
func (c *Cell) Index() models.CellIndex { return c.index }

// Config returns the current configuration.
func (c *Cell) Config() models.CellConfigRequest { return c.cfg }

// SlotIndication makes sl the current slot, resetting grids that enter the
// look-ahead window. sl must be strictly after the previous slot.
func (c *Cell) SlotIndication(sl slot.Point) error {
	if sl.Numerology() != c.cfg.Numerology {
		return fmt.Errorf("%w: slot mu=%d, cell mu=%d", ErrNumerologyMismatch, sl.Numerology(), c.cfg.Numerology)
	}
	if c.started && !sl.After(c.last) {
		return fmt.Errorf("%w: %s after %s", ErrNonMonotonicSlot, sl, c.last)
	}
	c.pool.Advance(sl)
	c.last = sl
	c.started = true
	return nil
}

// HandleRach admits the preambles of ind. Rejected preambles are returned.
func (c *Cell) HandleRach(ind models.RachIndication) []ra.Outcome {
	return c.ra.HandleIndication(ind, c.last)
}

// Reconfigure applies a reconfiguration. It returns how many outstanding
// random-access procedures were dropped.
func (c *Cell) Reconfigure(req models.CellReconfiguration) (int, error) {
	if req.RA != nil {
		if err := req.RA.Validate(c.pool.Depth(), c.cfg.NumPRBs); err != nil {
			return 0, err
		}
		c.ra.SetConfig(*req.RA)
		c.cfg.RA = *req.RA
	}
	if !req.ResetRandomAccess {
		return 0, nil
	}
	dropped := c.ra.Reset()
	for i := c.ues.Len() - 1; i >= 0; i-- {
		if ue := c.ues.At(i); !ue.Active {
			c.removeUE(ue.Config.RNTI)
		}
	}
	return dropped, nil
}

// HandleUEEvent applies a terminal lifecycle change.
//
// A terminal added with a TC-RNTI completes that random-access procedure; it is
// scheduled for data only once the contention resolution grant has been sent.
func (c *Cell) HandleUEEvent(ev models.UEEvent) error {
	cfg := ev.Config
	switch ev.Kind {
	case models.UEAdd:
		if cfg.RNTI == 0 {
			cfg.RNTI = cfg.TCRNTI
		}
		if cfg.RNTI == 0 {
			return fmt.Errorf("%w: no RNTI", ErrUnknownUE)
		}
		pending := cfg.TCRNTI != 0 && cfg.TCRNTI == cfg.RNTI
		if pending {
			if !c.ra.ResolveContention(cfg.TCRNTI) {
				return fmt.Errorf("%w: no procedure awaiting %s", ErrUnknownUE, cfg.TCRNTI)
			}
		} else if !c.rntis.Reserve(cfg.RNTI) {
			return fmt.Errorf("%w: %s", ErrDuplicateUE, cfg.RNTI)
		}
		if _, err := c.ues.Add(cfg, !pending); err != nil {
			if !pending {
				c.rntis.Release(cfg.RNTI)
			}
			return err
		}
		return nil
	case models.UEReconfigure:
		return c.ues.Update(cfg)
	case models.UERemove:
		return c.removeUE(cfg.RNTI)
	default:
		return fmt.Errorf("unknown UE event kind %q", ev.Kind)
	}
}

// RunRandomAccess runs the random-access scheduler for the current slot and
// settles the terminals waiting on finished procedures.
func (c *Cell) RunRandomAccess() ra.Report {
	report := c.ra.Run(c.alloc, c.last)
	for _, o := range report.Outcomes {
		ue, ok := c.ues.Get(o.Procedure.TCRNTI)
		if !ok {
			if o.Kind == ra.OutcomeResolved {
				// The terminal was removed before its contention resolution.
				c.rntis.Release(o.Procedure.TCRNTI)
			}
			continue
		}
		switch o.Kind {
		case ra.OutcomeResolved:
			ue.Active = true
		case ra.OutcomeExpired:
			// The identifier was already released with the procedure.
			c.ues.Remove(ue.Config.RNTI)
		}
	}
	return report
}

// RunDataScheduling places data grants on the remaining capacity of the current slot.
func (c *Cell) RunDataScheduling() int {
	return c.data.Schedule(c.alloc, c.last, c.ues)
}

// Conflicts returns and clears the allocation conflicts seen since the last call.
func (c *Cell) Conflicts() int { return c.alloc.Conflicts() }

// Freeze copies the grants of the current slot into a new immutable result.
func (c *Cell) Freeze() *models.SlotResult {
	res := &models.SlotResult{
		Cell:      c.index,
		Slot:      c.last,
		SlotLabel: c.last.String(),
		Downlink:  copyGrants(c.alloc.Grants(c.last, models.Downlink)),
		Uplink:    copyGrants(c.alloc.Grants(c.last, models.Uplink)),
	}
	res.RandomAccess = c.ra.Snapshots(nil)
	return res
}

// Utilization returns the share of the current slot's units in dir that carry
// grants.
func (c *Cell) Utilization(dir models.Direction) float64 {
	units := models.SymbolsPerSlot * c.cfg.NumPRBs
	if !c.started || units == 0 {
		return 0
	}
	return float64(c.alloc.UsedUnits(c.last, dir)) / float64(units)
}

// UEs returns a copy of the configured terminals.
func (c *Cell) UEs() []models.UEConfig { return c.ues.Configs() }

// Outstanding returns the number of random-access procedures in progress.
func (c *Cell) Outstanding() int { return c.ra.Outstanding() }

func (c *Cell) removeUE(rnti models.RNTI) error {
	ue, ok := c.ues.Get(rnti)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownUE, rnti)
	}
	if err := c.ues.Remove(rnti); err != nil {
		return err
	}
	// A pending terminal's identifier belongs to its random-access procedure.
	if ue.Active {
		c.rntis.Release(rnti)
	}
	return nil
}

func copyGrants(src []models.Grant) []models.Grant {
	out := make([]models.Grant, len(src))
	copy(out, src)
	return out
}
