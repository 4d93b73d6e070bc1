/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "github.com/friendsincode/gnb_scheduler/internal/slot"

// UEEventKind enumerates UE lifecycle changes.
type UEEventKind string

const (
	UEAdd         UEEventKind = "add"
	UEReconfigure UEEventKind = "reconfigure"
	UERemove      UEEventKind = "remove"
)

// UEConfig is the scheduling configuration of one terminal.
type UEConfig struct {
	RNTI RNTI `json:"rnti"`
	// TCRNTI links the UE to the random-access procedure it completed, if any.
	TCRNTI RNTI  `json:"tc_rnti,omitempty"`
	DLPRBs int   `json:"dl_prbs"`
	ULPRBs int   `json:"ul_prbs"`
	MCS    uint8 `json:"mcs"`
}

// UEEvent is a UE lifecycle change addressed to a cell.
type UEEvent struct {
	Kind   UEEventKind `json:"kind"`
	Cell   CellIndex   `json:"cell"`
	Slot   slot.Point  `json:"-"`
	Config UEConfig    `json:"config"`
}
