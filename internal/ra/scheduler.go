/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package ra implements per-cell random-access admission: RAR scheduling with the
// paired Msg3 uplink grant, and contention resolution.
package ra

import (
	"fmt"

	"github.com/friendsincode/gnb_scheduler/internal/grid"
	"github.com/friendsincode/gnb_scheduler/internal/models"
	"github.com/friendsincode/gnb_scheduler/internal/slot"
)

// MaxProcedures bounds the outstanding procedures per cell.
const MaxProcedures = 512

// Expiry reasons.
const (
	ReasonResponseWindow = "response window elapsed"
	ReasonConResWindow   = "contention resolution window elapsed"
)

// OutcomeKind classifies an Outcome.
type OutcomeKind string

const (
	OutcomeResolved OutcomeKind = "resolved"
	OutcomeExpired  OutcomeKind = "expired"
	OutcomeRejected OutcomeKind = "rejected"
)

// Outcome reports a procedure that finished, or a preamble that was never admitted.
type Outcome struct {
	Kind      OutcomeKind
	Procedure models.RAProcedure
}

// Report summarizes one Run.
type Report struct {
	// Outcomes is only valid until the next Run.
	Outcomes []Outcome
	RARs     int
	ConRes   int
	// Deferred counts eligible procedures left for a later slot.
	Deferred int
}

// Scheduler owns the random-access procedures of one cell. It is driven by the
// cell's pipeline goroutine only.
type Scheduler struct {
	cfg   models.RAConfig
	rntis *RNTIAllocator

	procs    []*procedure
	free     []*procedure
	outcomes []Outcome
	rejected []Outcome
}

// NewScheduler creates a random-access scheduler drawing TC-RNTIs from rntis.
func NewScheduler(cfg models.RAConfig, rntis *RNTIAllocator) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		rntis:    rntis,
		procs:    make([]*procedure, 0, 64),
		free:     make([]*procedure, 0, 64),
		outcomes: make([]Outcome, 0, 16),
		rejected: make([]Outcome, 0, 4),
	}
}

// Config returns the active parameters.
func (s *Scheduler) Config() models.RAConfig { return s.cfg }

// SetConfig replaces the parameters. Deadlines of admitted procedures are kept.
func (s *Scheduler) SetConfig(cfg models.RAConfig) { s.cfg = cfg }

// HandleIndication admits every preamble of ind as a new DETECTED procedure.
// Preambles that cannot be admitted are returned as rejected outcomes; the slice is
// only valid until the next call.
func (s *Scheduler) HandleIndication(ind models.RachIndication, now slot.Point) []Outcome {
	s.rejected = s.rejected[:0]
	detected := ind.Slot
	if !detected.Valid() {
		detected = now
	}

	for _, pre := range ind.Preambles {
		if s.duplicate(detected, pre.Index) {
			s.reject(detected, pre, "duplicate preamble")
			continue
		}
		if len(s.procs) >= MaxProcedures {
			s.reject(detected, pre, "procedure table full")
			continue
		}
		tcrnti, err := s.rntis.Allocate()
		if err != nil {
			s.reject(detected, pre, err.Error())
			continue
		}

		p := s.newProcedure()
		*p = procedure{
			tcrnti:           tcrnti,
			preamble:         pre.Index,
			ta:               pre.TimingAdvance,
			detected:         detected,
			responseDeadline: detected.Add(s.cfg.ResponseWindow),
			state:            models.RAStateDetected,
		}
		s.insert(p)
	}
	return s.rejected
}

// ResolveContention records that the terminal behind tcrnti was accepted by the
// higher layers, allowing the contention resolution grant to be sent.
func (s *Scheduler) ResolveContention(tcrnti models.RNTI) bool {
	for _, p := range s.procs {
		if p.tcrnti != tcrnti {
			continue
		}
		if p.state == models.RAStateResponseScheduled || p.state == models.RAStateAwaitingContentionRes {
			p.ueReady = true
			return true
		}
		return false
	}
	return false
}

// Run advances every procedure to slot now and places RAR, Msg3 and contention
// resolution grants through alloc.
func (s *Scheduler) Run(alloc *grid.Allocator, now slot.Point) Report {
	s.outcomes = s.outcomes[:0]
	s.prune()

	for _, p := range s.procs {
		switch p.state {
		case models.RAStateDetected:
			if now.After(p.responseDeadline) {
				s.finish(p, models.RAStateExpired, ReasonResponseWindow)
			}
		case models.RAStateResponseScheduled:
			if now.Before(p.msg3Slot) {
				continue
			}
			p.mustTransition(models.RAStateAwaitingContentionRes)
			// A skipped stretch of slots may already cover the whole window.
			if now.After(p.conResDeadline) {
				s.finish(p, models.RAStateExpired, ReasonConResWindow)
			}
		case models.RAStateAwaitingContentionRes:
			if now.After(p.conResDeadline) {
				s.finish(p, models.RAStateExpired, ReasonConResWindow)
			}
		}
	}

	report := Report{}

	// Earliest-detected first; procs is kept in that order.
	for _, p := range s.procs {
		if p.state != models.RAStateDetected || !now.After(p.detected) {
			continue
		}
		if report.RARs >= s.cfg.MaxRARsPerSlot || !s.placeResponse(alloc, p, now) {
			report.Deferred++
			continue
		}
		report.RARs++
	}

	for _, p := range s.procs {
		if p.state != models.RAStateAwaitingContentionRes || !p.ueReady || !now.After(p.msg3Slot) || now.After(p.conResDeadline) {
			continue
		}
		if !s.placeContentionResolution(alloc, p, now) {
			report.Deferred++
			continue
		}
		report.ConRes++
		s.finish(p, models.RAStateResolved, "")
	}

	report.Outcomes = s.outcomes
	return report
}

// Snapshots appends the state of every procedure, including those that finished
// during the last Run, to dst.
func (s *Scheduler) Snapshots(dst []models.RAProcedure) []models.RAProcedure {
	for _, p := range s.procs {
		dst = append(dst, p.snapshot())
	}
	return dst
}

// Lookup returns the procedure holding tcrnti.
func (s *Scheduler) Lookup(tcrnti models.RNTI) (models.RAProcedure, bool) {
	for _, p := range s.procs {
		if p.tcrnti == tcrnti {
			return p.snapshot(), true
		}
	}
	return models.RAProcedure{}, false
}

// Outstanding returns the number of non-terminal procedures.
func (s *Scheduler) Outstanding() int {
	n := 0
	for _, p := range s.procs {
		if !p.state.Terminal() {
			n++
		}
	}
	return n
}

// Reset drops every procedure, releasing identifiers not handed over to a terminal.
// It returns how many outstanding procedures were dropped.
func (s *Scheduler) Reset() int {
	n := 0
	for _, p := range s.procs {
		if !p.state.Terminal() {
			n++
			s.rntis.Release(p.tcrnti)
		}
		s.free = append(s.free, p)
	}
	clear(s.procs)
	s.procs = s.procs[:0]
	return n
}

func (s *Scheduler) placeResponse(alloc *grid.Allocator, p *procedure, now slot.Point) bool {
	msg3At := now.Add(s.cfg.Msg3Delay)
	rar, ok := alloc.FindFree(now, models.Downlink, models.SymbolsPerSlot-s.cfg.RARSymbols, s.cfg.RARSymbols, s.cfg.RARPRBs)
	if !ok {
		return false
	}
	msg3, ok := alloc.FindFree(msg3At, models.Uplink, 0, models.SymbolsPerSlot, s.cfg.Msg3PRBs)
	if !ok {
		return false
	}

	if !alloc.Allocate(now, models.Grant{
		Kind:          models.GrantRAR,
		Direction:     models.Downlink,
		RNTI:          p.tcrnti,
		Region:        rar,
		TBSBytes:      models.TransportBlockBytes(rar, 0),
		Preamble:      p.preamble,
		TimingAdvance: p.ta,
	}) {
		return false
	}
	if !alloc.Allocate(msg3At, models.Grant{
		Kind:      models.GrantMsg3,
		Direction: models.Uplink,
		RNTI:      p.tcrnti,
		Region:    msg3,
		TBSBytes:  models.TransportBlockBytes(msg3, 0),
	}) {
		panic(fmt.Sprintf("ra: msg3 region %s at %s taken after FindFree", msg3, msg3At))
	}

	p.mustTransition(models.RAStateResponseScheduled)
	p.msg3Slot = msg3At
	p.conResDeadline = msg3At.Add(s.cfg.ContentionResolutionWindow)
	return true
}

func (s *Scheduler) placeContentionResolution(alloc *grid.Allocator, p *procedure, now slot.Point) bool {
	r, ok := alloc.FindFree(now, models.Downlink, models.SymbolsPerSlot-s.cfg.RARSymbols, s.cfg.RARSymbols, s.cfg.ConResPRBs)
	if !ok {
		return false
	}
	return alloc.Allocate(now, models.Grant{
		Kind:      models.GrantConRes,
		Direction: models.Downlink,
		RNTI:      p.tcrnti,
		Region:    r,
		TBSBytes:  models.TransportBlockBytes(r, 0),
	})
}

// finish moves p to a terminal state and records the outcome. A resolved
// procedure keeps its identifier: it becomes the terminal's C-RNTI.
func (s *Scheduler) finish(p *procedure, to models.RAState, reason string) {
	p.mustTransition(to)
	p.reason = reason
	kind := OutcomeResolved
	if to == models.RAStateExpired {
		kind = OutcomeExpired
		s.rntis.Release(p.tcrnti)
	}
	s.outcomes = append(s.outcomes, Outcome{Kind: kind, Procedure: p.snapshot()})
}

func (s *Scheduler) reject(detected slot.Point, pre models.Preamble, reason string) {
	s.rejected = append(s.rejected, Outcome{
		Kind: OutcomeRejected,
		Procedure: models.RAProcedure{
			Preamble:      pre.Index,
			TimingAdvance: pre.TimingAdvance,
			DetectedAt:    detected.String(),
			Reason:        reason,
		},
	})
}

func (s *Scheduler) duplicate(detected slot.Point, preamble uint8) bool {
	for _, p := range s.procs {
		if p.preamble == preamble && p.detected.Equal(detected) && !p.state.Terminal() {
			return true
		}
	}
	return false
}

// prune removes procedures that reached a terminal state in an earlier Run.
func (s *Scheduler) prune() {
	kept := s.procs[:0]
	for _, p := range s.procs {
		if p.state.Terminal() {
			s.free = append(s.free, p)
			continue
		}
		kept = append(kept, p)
	}
	clear(s.procs[len(kept):])
	s.procs = kept
}

func (s *Scheduler) newProcedure() *procedure {
	if n := len(s.free); n > 0 {
		p := s.free[n-1]
		s.free = s.free[:n-1]
		return p
	}
	return &procedure{}
}

// insert keeps procs ordered by detection slot, then preamble.
func (s *Scheduler) insert(p *procedure) {
	s.procs = append(s.procs, p)
	for i := len(s.procs) - 1; i > 0 && p.before(s.procs[i-1]); i-- {
		s.procs[i], s.procs[i-1] = s.procs[i-1], s.procs[i]
	}
}
