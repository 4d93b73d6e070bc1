/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"fmt"

	"github.com/friendsincode/gnb_scheduler/internal/slot"
)

// RNTI identifies a terminal (or a random-access procedure) on the air interface.
type RNTI uint16

func (r RNTI) String() string { return fmt.Sprintf("0x%04x", uint16(r)) }

// Region is a rectangle of the resource grid: OFDM symbols by PRBs.
type Region struct {
	StartSymbol int `json:"start_symbol" yaml:"start_symbol"`
	NumSymbols  int `json:"num_symbols" yaml:"num_symbols"`
	StartPRB    int `json:"start_prb" yaml:"start_prb"`
	NumPRBs     int `json:"num_prbs" yaml:"num_prbs"`
}

// Empty reports whether the region covers no resource element.
func (r Region) Empty() bool { return r.NumSymbols <= 0 || r.NumPRBs <= 0 }

// Overlaps reports whether both regions share at least one (symbol, PRB) unit.
func (r Region) Overlaps(o Region) bool {
	if r.Empty() || o.Empty() {
		return false
	}
	timeOverlap := r.StartSymbol < o.StartSymbol+o.NumSymbols && o.StartSymbol < r.StartSymbol+r.NumSymbols
	freqOverlap := r.StartPRB < o.StartPRB+o.NumPRBs && o.StartPRB < r.StartPRB+r.NumPRBs
	return timeOverlap && freqOverlap
}

func (r Region) String() string {
	return fmt.Sprintf("sym[%d+%d] prb[%d+%d]", r.StartSymbol, r.NumSymbols, r.StartPRB, r.NumPRBs)
}

// GrantKind tells what a grant carries.
type GrantKind string

const (
	GrantRAR    GrantKind = "rar"
	GrantMsg3   GrantKind = "msg3"
	GrantConRes GrantKind = "conres"
	GrantData   GrantKind = "data"
)

// Grant is one committed allocation inside a slot.
type Grant struct {
	Kind      GrantKind `json:"kind" yaml:"kind"`
	Direction Direction `json:"direction" yaml:"direction"`
	RNTI      RNTI      `json:"rnti" yaml:"rnti"`
	Region    Region    `json:"region" yaml:"region"`
	MCS       uint8     `json:"mcs" yaml:"mcs"`
	TBSBytes  int       `json:"tbs_bytes" yaml:"tbs_bytes"`
	// Preamble and TimingAdvance are set on RAR grants.
	Preamble      uint8  `json:"preamble,omitempty" yaml:"preamble,omitempty"`
	TimingAdvance uint16 `json:"timing_advance,omitempty" yaml:"timing_advance,omitempty"`
}

// SlotResult is the frozen output of one pipeline pass for one cell.
type SlotResult struct {
	Cell         CellIndex     `json:"cell" yaml:"cell"`
	Slot         slot.Point    `json:"-" yaml:"-"`
	SlotLabel    string        `json:"slot" yaml:"slot"`
	Downlink     []Grant       `json:"downlink" yaml:"downlink"`
	Uplink       []Grant       `json:"uplink" yaml:"uplink"`
	RandomAccess []RAProcedure `json:"random_access,omitempty" yaml:"random_access,omitempty"`
}

// mcsTable holds modulation order and code rate x1024 for MCS 0..28 (64QAM table).
var mcsTable = [29]struct{ qm, rate int }{
	{2, 120}, {2, 157}, {2, 193}, {2, 251}, {2, 308}, {2, 379}, {2, 449}, {2, 526}, {2, 602}, {2, 679},
	{4, 340}, {4, 378}, {4, 434}, {4, 490}, {4, 553}, {4, 616}, {4, 658},
	{6, 438}, {6, 466}, {6, 517}, {6, 567}, {6, 616}, {6, 666}, {6, 719}, {6, 772}, {6, 822}, {6, 873}, {6, 910}, {6, 948},
}

// TransportBlockBytes approximates the payload carried by a region at the given MCS.
// DMRS overhead and code-block segmentation are ignored.
func TransportBlockBytes(r Region, mcs uint8) int {
	if r.Empty() {
		return 0
	}
	if int(mcs) >= len(mcsTable) {
		mcs = uint8(len(mcsTable) - 1)
	}
	e := mcsTable[mcs]
	res := r.NumPRBs * 12 * r.NumSymbols
	return res * e.qm * e.rate / 1024 / 8
}
