/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package scheduler is the slot scheduler facade. It owns the configured cells
// and the pending-event queue, runs the per-slot pipeline and publishes the
// resulting downlink and uplink grants.
package scheduler

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/friendsincode/gnb_scheduler/internal/cell"
	"github.com/friendsincode/gnb_scheduler/internal/diag"
	"github.com/friendsincode/gnb_scheduler/internal/events"
	"github.com/friendsincode/gnb_scheduler/internal/models"
	"github.com/friendsincode/gnb_scheduler/internal/pending"
	"github.com/friendsincode/gnb_scheduler/internal/slot"
	"github.com/friendsincode/gnb_scheduler/internal/telemetry"
	"github.com/rs/zerolog"
)

// Config sizes the scheduler.
type Config struct {
	// MaxCells is the number of addressable cell indices.
	MaxCells int
	// RingDepth is the grid look-ahead window in slots.
	RingDepth int
	// ResultHistory is how many past slot results stay readable per cell. It is
	// rounded down to a power of two.
	ResultHistory int
	// MaxPendingEvents bounds the undrained events of one cell. Submissions over
	// the bound are dropped.
	MaxPendingEvents int
	// PublishSlotResults emits a slot.result notification per pipeline pass.
	PublishSlotResults bool
	// DataScheduler builds the data scheduler of a new cell. Nil selects round-robin.
	DataScheduler func(models.CellConfigRequest) cell.DataScheduler
}

// DefaultConfig returns a configuration suitable for a small deployment.
func DefaultConfig() Config {
	return Config{
		MaxCells:         16,
		RingDepth:        16,
		ResultHistory:    32,
		MaxPendingEvents: pending.DefaultLimit,
	}
}

// Scheduler is the facade over every cell.
type Scheduler struct {
	cfg    Config
	logger zerolog.Logger
	diag   diag.Sink
	pub    events.Publisher

	queue *pending.Queue
	cells []atomic.Pointer[cellState]

	configMu sync.Mutex
}

// New creates a scheduler. A nil sink or publisher discards diagnostics or
// notifications respectively.
func New(cfg Config, sink diag.Sink, pub events.Publisher, logger zerolog.Logger) *Scheduler {
	def := DefaultConfig()
	if cfg.MaxCells < 1 {
		cfg.MaxCells = def.MaxCells
	}
	if cfg.RingDepth < 2 {
		cfg.RingDepth = def.RingDepth
	}
	cfg.ResultHistory = historyDepth(cfg.ResultHistory)
	if sink == nil {
		sink = diag.Nop{}
	}
	if pub == nil {
		pub = events.Nop{}
	}
	return &Scheduler{
		cfg:    cfg,
		logger: logger.With().Str("component", "scheduler").Logger(),
		diag:   sink,
		pub:    pub,
		queue:  pending.New(cfg.MaxCells, cfg.MaxPendingEvents),
		cells:  make([]atomic.Pointer[cellState], cfg.MaxCells),
	}
}

// historyDepth rounds n down to a power of two in [1, 1024] so that it divides
// the slot counter modulus of every numerology.
func historyDepth(n int) int {
	if n < 1 {
		return DefaultConfig().ResultHistory
	}
	h := 1
	for h*2 <= n && h*2 <= 1024 {
		h *= 2
	}
	return h
}

// MaxCells returns the number of addressable cell indices.
func (s *Scheduler) MaxCells() int { return s.cfg.MaxCells }

// RingDepth returns the grid look-ahead window.
func (s *Scheduler) RingDepth() int { return s.cfg.RingDepth }

// ConfigureCell creates and activates a cell. It returns false, leaving the
// scheduler unchanged, if the request is rejected.
func (s *Scheduler) ConfigureCell(req models.CellConfigRequest) bool {
	return s.Configure(req) == nil
}

// Configure is ConfigureCell returning the rejection reason.
func (s *Scheduler) Configure(req models.CellConfigRequest) error {
	s.configMu.Lock()
	defer s.configMu.Unlock()

	if err := req.Validate(s.cfg.MaxCells, s.cfg.RingDepth); err != nil {
		s.rejectConfig(req, err)
		return err
	}
	if s.cells[req.Index].Load() != nil {
		err := fmt.Errorf("%w: %d", models.ErrCellAlreadyConfigured, req.Index)
		s.rejectConfig(req, err)
		return err
	}

	var data cell.DataScheduler
	if s.cfg.DataScheduler != nil {
		data = s.cfg.DataScheduler(req)
	}
	st := newCellState(cell.New(req, s.cfg.RingDepth, data), s.cfg.ResultHistory)
	s.cells[req.Index].Store(st)
	telemetry.CellsActive.Inc()

	s.logger.Info().
		Uint16("cell", uint16(req.Index)).
		Uint16("pci", req.PCI).
		Uint8("numerology", req.Numerology).
		Int("prbs", req.NumPRBs).
		Msg("cell configured")
	s.pub.Publish(events.EventCellConfigured, events.Payload{
		"cell":       int(req.Index),
		"pci":        int(req.PCI),
		"numerology": int(req.Numerology),
		"num_prbs":   req.NumPRBs,
	})
	return nil
}

func (s *Scheduler) rejectConfig(req models.CellConfigRequest, err error) {
	telemetry.ConfigRejected.Inc()
	s.diag.Record(diag.Entry{
		Timestamp: time.Now(),
		Kind:      diag.KindConfigRejected,
		Cell:      int(req.Index),
		Message:   err.Error(),
	})
	s.pub.Publish(events.EventCellConfigRejected, events.Payload{
		"cell":   int(req.Index),
		"reason": err.Error(),
	})
}

// SubmitRandomAccess queues a PRACH detection report. The cell index is produced
// by the radio layer; an index outside MaxCells is a contract violation.
func (s *Scheduler) SubmitRandomAccess(ind models.RachIndication) {
	if !ind.Cell.InRange(s.cfg.MaxCells) {
		s.violation("submit_random_access", int(ind.Cell), ind.Slot.String(), "cell index out of range")
	}
	ind.Preambles = slices.Clone(ind.Preambles)
	s.submit(&pending.RachIndication{RachIndication: ind})
}

// SubmitCellReconfiguration queues a reconfiguration of a running cell.
func (s *Scheduler) SubmitCellReconfiguration(req models.CellReconfiguration) {
	if req.RA != nil {
		ra := *req.RA
		req.RA = &ra
	}
	s.submit(&pending.CellReconfiguration{CellReconfiguration: req})
}

// SubmitUEEvent queues a terminal lifecycle change.
func (s *Scheduler) SubmitUEEvent(ev models.UEEvent) {
	s.submit(&pending.UEEvent{UEEvent: ev})
}

// submit enqueues ev, dropping it if its cell cannot accept events.
func (s *Scheduler) submit(ev pending.Event) {
	idx := ev.TargetCell()
	if !idx.InRange(s.cfg.MaxCells) {
		s.dropEvent(ev, fmt.Errorf("%w: %d", models.ErrInvalidCellIndex, idx))
		return
	}
	st := s.cells[idx].Load()
	if st == nil {
		s.dropEvent(ev, fmt.Errorf("%w: %d", ErrCellNotConfigured, idx))
		return
	}
	if sl := ev.TargetSlot(); sl.Valid() && sl.Numerology() != st.config.Load().Numerology {
		s.dropEvent(ev, fmt.Errorf("%w: event slot mu=%d", cell.ErrNumerologyMismatch, sl.Numerology()))
		return
	}
	if err := s.queue.Push(ev); err != nil {
		s.dropEvent(ev, err)
	}
}

func (s *Scheduler) dropEvent(ev pending.Event, err error) {
	telemetry.EventsDropped.WithLabelValues(ev.Name()).Inc()
	sl := ""
	if target := ev.TargetSlot(); target.Valid() {
		sl = target.String()
	}
	s.diag.Record(diag.Entry{
		Timestamp: time.Now(),
		Kind:      diag.KindDroppedEvent,
		Cell:      int(ev.TargetCell()),
		Slot:      sl,
		Message:   err.Error(),
		Fields:    map[string]any{"event": ev.Name()},
	})
	s.pub.Publish(events.EventDropped, events.Payload{
		"cell":   int(ev.TargetCell()),
		"event":  ev.Name(),
		"reason": err.Error(),
	})
}

// Result runs the pipeline for (sl, cell) if it has not run yet and returns the
// frozen result. Repeated calls return the same result.
func (s *Scheduler) Result(sl slot.Point, idx models.CellIndex) *models.SlotResult {
	st := s.mustCell("downlink_result", sl, idx)
	if res := st.lookup(sl); res != nil {
		return res
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if res := st.lookup(sl); res != nil {
		return res
	}
	if latest := st.latest.Load(); latest != nil && !sl.After(latest.Slot) {
		s.violation("downlink_result", int(idx), sl.String(), fmt.Sprintf("non-monotonic slot: %s already processed", latest.SlotLabel))
	}
	return s.runPipeline(st, sl)
}

// DownlinkResult returns the downlink grants of (sl, cell), running the pipeline
// if needed.
func (s *Scheduler) DownlinkResult(sl slot.Point, idx models.CellIndex) []models.Grant {
	return s.Result(sl, idx).Downlink
}

// UplinkResult returns the uplink grants decided by the pipeline pass of (sl, cell).
// The pass must already have run.
func (s *Scheduler) UplinkResult(sl slot.Point, idx models.CellIndex) []models.Grant {
	st := s.mustCell("uplink_result", sl, idx)
	res := st.lookup(sl)
	if res == nil {
		s.violation("uplink_result", int(idx), sl.String(), "uplink requested before downlink")
	}
	return res.Uplink
}

// Latest returns the most recent result of a cell.
func (s *Scheduler) Latest(idx models.CellIndex) (*models.SlotResult, bool) {
	if !idx.InRange(s.cfg.MaxCells) {
		return nil, false
	}
	st := s.cells[idx].Load()
	if st == nil {
		return nil, false
	}
	res := st.latest.Load()
	return res, res != nil
}

// Lookup returns the result of (sl, cell) if it is still in the history ring.
func (s *Scheduler) Lookup(sl slot.Point, idx models.CellIndex) (*models.SlotResult, bool) {
	if !idx.InRange(s.cfg.MaxCells) {
		return nil, false
	}
	st := s.cells[idx].Load()
	if st == nil {
		return nil, false
	}
	res := st.lookup(sl)
	return res, res != nil
}

// CellConfig returns the current configuration of a cell.
func (s *Scheduler) CellConfig(idx models.CellIndex) (models.CellConfigRequest, bool) {
	if !idx.InRange(s.cfg.MaxCells) {
		return models.CellConfigRequest{}, false
	}
	st := s.cells[idx].Load()
	if st == nil {
		return models.CellConfigRequest{}, false
	}
	return *st.config.Load(), true
}

// ConfiguredCells returns the indices of every configured cell in ascending order.
func (s *Scheduler) ConfiguredCells() []models.CellIndex {
	out := make([]models.CellIndex, 0, len(s.cells))
	for i := range s.cells {
		if s.cells[i].Load() != nil {
			out = append(out, models.CellIndex(i))
		}
	}
	return out
}

var (
	// ErrCellNotConfigured indicates a read for a cell that does not exist.
	ErrCellNotConfigured = errors.New("cell not configured")

	errUnknownEvent = errors.New("unknown event type")
)

func (s *Scheduler) mustCell(op string, sl slot.Point, idx models.CellIndex) *cellState {
	if !idx.InRange(s.cfg.MaxCells) {
		s.violation(op, int(idx), sl.String(), "cell index out of range")
	}
	st := s.cells[idx].Load()
	if st == nil {
		s.violation(op, int(idx), sl.String(), ErrCellNotConfigured.Error())
	}
	if !sl.Valid() || sl.Numerology() != st.config.Load().Numerology {
		s.violation(op, int(idx), sl.String(), "slot invalid for cell numerology")
	}
	return st
}
