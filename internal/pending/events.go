/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package pending

import (
	"github.com/friendsincode/gnb_scheduler/internal/models"
	"github.com/friendsincode/gnb_scheduler/internal/slot"
)

// Event is a queued change for one cell. Consumers type-switch on the concrete type:
//
//	switch e := ev.(type) {
//	case *RachIndication:
//	case *CellReconfiguration:
//	case *UEEvent:
//	}
type Event interface {
	TargetCell() models.CellIndex
	// TargetSlot is the earliest slot at which the event may be applied.
	// An invalid (zero) slot means "next slot boundary".
	TargetSlot() slot.Point
	Name() string
}

// RachIndication wraps a PRACH detection report.
type RachIndication struct {
	models.RachIndication
}

func (e *RachIndication) TargetCell() models.CellIndex { return e.Cell }
func (e *RachIndication) TargetSlot() slot.Point       { return e.Slot }
func (e *RachIndication) Name() string                 { return "rach_indication" }

// CellReconfiguration wraps a cell reconfiguration request.
type CellReconfiguration struct {
	models.CellReconfiguration
}

func (e *CellReconfiguration) TargetCell() models.CellIndex { return e.Cell }
func (e *CellReconfiguration) TargetSlot() slot.Point       { return e.Slot }
func (e *CellReconfiguration) Name() string                 { return "cell_reconfiguration" }

// UEEvent wraps a UE add/reconfigure/remove.
type UEEvent struct {
	models.UEEvent
}

func (e *UEEvent) TargetCell() models.CellIndex { return e.Cell }
func (e *UEEvent) TargetSlot() slot.Point       { return e.Slot }
func (e *UEEvent) Name() string                 { return "ue_" + string(e.Kind) }
