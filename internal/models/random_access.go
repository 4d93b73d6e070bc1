/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "github.com/friendsincode/gnb_scheduler/internal/slot"

// RAState enumerates random-access procedure states.
type RAState string

const (
	RAStateDetected              RAState = "detected"
	RAStateResponseScheduled     RAState = "response_scheduled"
	RAStateAwaitingContentionRes RAState = "awaiting_contention_resolution"
	RAStateResolved              RAState = "resolved"
	RAStateExpired               RAState = "expired"
)

// Terminal reports whether no further transition is possible.
func (s RAState) Terminal() bool {
	return s == RAStateResolved || s == RAStateExpired
}

// Preamble is one detected PRACH preamble.
type Preamble struct {
	Index         uint8  `json:"index"`
	TimingAdvance uint16 `json:"timing_advance"`
}

// RachIndication reports the preambles detected in one PRACH occasion.
type RachIndication struct {
	Cell      CellIndex  `json:"cell"`
	Slot      slot.Point `json:"-"`
	Preambles []Preamble `json:"preambles"`
}

// RAProcedure is a read-only snapshot of a random-access procedure.
type RAProcedure struct {
	TCRNTI        RNTI    `json:"tc_rnti" yaml:"tc_rnti"`
	Preamble      uint8   `json:"preamble" yaml:"preamble"`
	TimingAdvance uint16  `json:"timing_advance" yaml:"timing_advance"`
	DetectedAt    string  `json:"detected_at" yaml:"detected_at"`
	State         RAState `json:"state" yaml:"state"`
	// Reason is set when the procedure expired.
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`
}
