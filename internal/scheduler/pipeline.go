/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduler

import (
	"time"

	"github.com/friendsincode/gnb_scheduler/internal/diag"
	"github.com/friendsincode/gnb_scheduler/internal/events"
	"github.com/friendsincode/gnb_scheduler/internal/models"
	"github.com/friendsincode/gnb_scheduler/internal/pending"
	"github.com/friendsincode/gnb_scheduler/internal/ra"
	"github.com/friendsincode/gnb_scheduler/internal/slot"
	"github.com/friendsincode/gnb_scheduler/internal/telemetry"
)

// runPipeline performs one pass for (sl, st.cell). The caller holds st.mu and has
// checked that sl is after the last processed slot.
//
// Order: advance the grid ring, apply pending events, random access, data
// scheduling, freeze. Data scheduling never runs before random access so RAR,
// Msg3 and contention resolution grants keep priority.
func (s *Scheduler) runPipeline(st *cellState, sl slot.Point) *models.SlotResult {
	start := time.Now()
	c := st.cell

	if err := c.SlotIndication(sl); err != nil {
		s.violation("slot_indication", int(c.Index()), sl.String(), err.Error())
	}

	applied := s.queue.Drain(c.Index(), sl, func(ev pending.Event) {
		s.apply(st, sl, ev)
	})
	if applied > 0 {
		telemetry.EventsApplied.WithLabelValues(st.label).Add(float64(applied))
	}
	telemetry.EventsPending.WithLabelValues(st.label).Set(float64(s.queue.Len(c.Index())))

	report := c.RunRandomAccess()
	s.reportRandomAccess(st, sl, report)

	c.RunDataScheduling()

	if n := c.Conflicts(); n > 0 {
		telemetry.AllocationConflicts.WithLabelValues(st.label).Add(float64(n))
		s.diag.Record(diag.Entry{
			Timestamp: time.Now(),
			Kind:      diag.KindAllocConflict,
			Cell:      int(c.Index()),
			Slot:      sl.String(),
			Message:   "grid commits refused",
			Fields:    map[string]any{"count": n},
		})
	}

	telemetry.GridUtilization.WithLabelValues(st.label, "dl").Set(c.Utilization(models.Downlink))
	telemetry.GridUtilization.WithLabelValues(st.label, "ul").Set(c.Utilization(models.Uplink))

	res := c.Freeze()
	st.publish(res)

	telemetry.SlotsProcessed.WithLabelValues(st.label).Inc()
	telemetry.PipelineDuration.WithLabelValues(st.label).Observe(time.Since(start).Seconds())
	telemetry.RandomAccessOutstanding.WithLabelValues(st.label).Set(float64(c.Outstanding()))
	countGrants(st.label, res)

	if s.cfg.PublishSlotResults {
		s.pub.Publish(events.EventSlotResult, events.Payload{
			"cell":     int(res.Cell),
			"slot":     res.SlotLabel,
			"downlink": len(res.Downlink),
			"uplink":   len(res.Uplink),
		})
	}
	return res
}

// apply dispatches one pending event to the cell.
func (s *Scheduler) apply(st *cellState, sl slot.Point, ev pending.Event) {
	c := st.cell
	switch e := ev.(type) {
	case *pending.RachIndication:
		for _, o := range c.HandleRach(e.RachIndication) {
			s.diag.Record(diag.Entry{
				Timestamp: time.Now(),
				Kind:      diag.KindDroppedEvent,
				Cell:      int(c.Index()),
				Slot:      sl.String(),
				Message:   "preamble not admitted: " + o.Procedure.Reason,
				Fields:    map[string]any{"preamble": int(o.Procedure.Preamble)},
			})
			telemetry.RandomAccessOutcomes.WithLabelValues(st.label, string(o.Kind)).Inc()
			s.pub.Publish(events.EventRARejected, raPayload(c.Index(), o))
		}

	case *pending.CellReconfiguration:
		dropped, err := c.Reconfigure(e.CellReconfiguration)
		if err != nil {
			s.dropEvent(ev, err)
			return
		}
		cfg := c.Config()
		st.config.Store(&cfg)
		s.logger.Info().
			Uint16("cell", uint16(c.Index())).
			Str("slot", sl.String()).
			Int("dropped_procedures", dropped).
			Msg("cell reconfigured")
		s.pub.Publish(events.EventCellReconfigured, events.Payload{
			"cell":               int(c.Index()),
			"slot":               sl.String(),
			"dropped_procedures": dropped,
		})

	case *pending.UEEvent:
		if err := c.HandleUEEvent(e.UEEvent); err != nil {
			s.dropEvent(ev, err)
			return
		}
		s.logger.Debug().
			Uint16("cell", uint16(c.Index())).
			Str("kind", string(e.Kind)).
			Stringer("rnti", e.Config.RNTI).
			Msg("ue event applied")

	default:
		s.dropEvent(ev, errUnknownEvent)
	}
}

func (s *Scheduler) reportRandomAccess(st *cellState, sl slot.Point, report ra.Report) {
	idx := st.cell.Index()
	for _, o := range report.Outcomes {
		telemetry.RandomAccessOutcomes.WithLabelValues(st.label, string(o.Kind)).Inc()
		switch o.Kind {
		case ra.OutcomeExpired:
			s.diag.Record(diag.Entry{
				Timestamp: time.Now(),
				Kind:      diag.KindRAExpired,
				Cell:      int(idx),
				Slot:      sl.String(),
				Message:   o.Procedure.Reason,
				Fields: map[string]any{
					"tc_rnti":     o.Procedure.TCRNTI.String(),
					"preamble":    int(o.Procedure.Preamble),
					"detected_at": o.Procedure.DetectedAt,
				},
			})
			s.pub.Publish(events.EventRAExpired, raPayload(idx, o))
		case ra.OutcomeResolved:
			s.pub.Publish(events.EventRAResolved, raPayload(idx, o))
		}
	}
}

func raPayload(idx models.CellIndex, o ra.Outcome) events.Payload {
	return events.Payload{
		"cell":        int(idx),
		"tc_rnti":     o.Procedure.TCRNTI.String(),
		"preamble":    int(o.Procedure.Preamble),
		"detected_at": o.Procedure.DetectedAt,
		"state":       string(o.Procedure.State),
		"reason":      o.Procedure.Reason,
	}
}

func countGrants(label string, res *models.SlotResult) {
	for _, g := range res.Downlink {
		telemetry.GrantsTotal.WithLabelValues(label, "dl", string(g.Kind)).Inc()
	}
	for _, g := range res.Uplink {
		telemetry.GrantsTotal.WithLabelValues(label, "ul", string(g.Kind)).Inc()
	}
}
