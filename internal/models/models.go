package models

import (
	"errors"
	"fmt"

	"github.com/friendsincode/gnb_scheduler/internal/slot"
)

// Grid dimensions shared by every cell.
const (
	SymbolsPerSlot = 14
	MaxPRBs        = 275
)

var (
	// ErrInvalidCellIndex indicates a cell index outside the configured range.
	ErrInvalidCellIndex = errors.New("invalid cell index")

	// ErrCellAlreadyConfigured indicates a duplicate cell configuration request.
	ErrCellAlreadyConfigured = errors.New("cell already configured")

	// ErrInvalidCellConfig indicates a cell configuration with inconsistent parameters.
	ErrInvalidCellConfig = errors.New("invalid cell configuration")
)

// CellIndex is the dense index of a cell inside the scheduler.
type CellIndex uint16

// InRange reports whether the index addresses one of maxCells slots.
func (c CellIndex) InRange(maxCells int) bool {
	return int(c) < maxCells
}

// Direction distinguishes the downlink and uplink grids.
type Direction uint8

const (
	Downlink Direction = iota
	Uplink
)

func (d Direction) String() string {
	if d == Uplink {
		return "ul"
	}
	return "dl"
}

// RAConfig holds the random-access parameters of a cell.
type RAConfig struct {
	// ResponseWindow is the RAR window length in slots, starting one slot after detection.
	ResponseWindow int `yaml:"response_window" json:"response_window"`
	// MaxRARsPerSlot caps the RAR grants placed in a single slot.
	MaxRARsPerSlot int `yaml:"max_rars_per_slot" json:"max_rars_per_slot"`
	// RARPRBs and RARSymbols size each RAR downlink grant.
	RARPRBs    int `yaml:"rar_prbs" json:"rar_prbs"`
	RARSymbols int `yaml:"rar_symbols" json:"rar_symbols"`
	// Msg3Delay is the distance in slots between the RAR and the Msg3 uplink grant.
	Msg3Delay int `yaml:"msg3_delay" json:"msg3_delay"`
	Msg3PRBs  int `yaml:"msg3_prbs" json:"msg3_prbs"`
	// ContentionResolutionWindow is counted in slots from the Msg3 slot.
	ContentionResolutionWindow int `yaml:"contention_resolution_window" json:"contention_resolution_window"`
	ConResPRBs                 int `yaml:"conres_prbs" json:"conres_prbs"`
}

// DefaultRAConfig returns parameters that fit a 52 PRB carrier.
func DefaultRAConfig() RAConfig {
	return RAConfig{
		ResponseWindow:             10,
		MaxRARsPerSlot:             4,
		RARPRBs:                    4,
		RARSymbols:                 12,
		Msg3Delay:                  6,
		Msg3PRBs:                   3,
		ContentionResolutionWindow: 64,
		ConResPRBs:                 4,
	}
}

// Validate checks the parameters against the grid ring depth and carrier width.
func (c RAConfig) Validate(ringDepth, numPRBs int) error {
	switch {
	case c.ResponseWindow < 1:
		return fmt.Errorf("%w: response window must be positive", ErrInvalidCellConfig)
	case c.MaxRARsPerSlot < 1:
		return fmt.Errorf("%w: max RARs per slot must be positive", ErrInvalidCellConfig)
	case c.RARPRBs < 1 || c.RARPRBs > numPRBs:
		return fmt.Errorf("%w: RAR PRBs %d outside 1..%d", ErrInvalidCellConfig, c.RARPRBs, numPRBs)
	case c.RARSymbols < 1 || c.RARSymbols > SymbolsPerSlot:
		return fmt.Errorf("%w: RAR symbols %d outside 1..%d", ErrInvalidCellConfig, c.RARSymbols, SymbolsPerSlot)
	case c.Msg3Delay < 1 || c.Msg3Delay >= ringDepth:
		return fmt.Errorf("%w: msg3 delay %d must be in 1..%d", ErrInvalidCellConfig, c.Msg3Delay, ringDepth-1)
	case c.Msg3PRBs < 1 || c.Msg3PRBs > numPRBs:
		return fmt.Errorf("%w: msg3 PRBs %d outside 1..%d", ErrInvalidCellConfig, c.Msg3PRBs, numPRBs)
	case c.ContentionResolutionWindow < 1:
		return fmt.Errorf("%w: contention resolution window must be positive", ErrInvalidCellConfig)
	case c.ConResPRBs < 1 || c.ConResPRBs > numPRBs:
		return fmt.Errorf("%w: conres PRBs %d outside 1..%d", ErrInvalidCellConfig, c.ConResPRBs, numPRBs)
	}
	return nil
}

// CellConfigRequest is the control-plane request that creates a cell.
type CellConfigRequest struct {
	Index      CellIndex `yaml:"index" json:"index"`
	PCI        uint16    `yaml:"pci" json:"pci"`
	Numerology uint8     `yaml:"numerology" json:"numerology"`
	NumPRBs    int       `yaml:"num_prbs" json:"num_prbs"`
	RA         RAConfig  `yaml:"random_access" json:"random_access"`
}

// Validate checks the request independently of scheduler state.
func (r CellConfigRequest) Validate(maxCells, ringDepth int) error {
	if !r.Index.InRange(maxCells) {
		return fmt.Errorf("%w: %d (max %d)", ErrInvalidCellIndex, r.Index, maxCells)
	}
	if r.Numerology > slot.MaxNumerology {
		return fmt.Errorf("%w: numerology %d", ErrInvalidCellConfig, r.Numerology)
	}
	if r.NumPRBs < 1 || r.NumPRBs > MaxPRBs {
		return fmt.Errorf("%w: PRBs %d outside 1..%d", ErrInvalidCellConfig, r.NumPRBs, MaxPRBs)
	}
	if r.PCI > 1007 {
		return fmt.Errorf("%w: PCI %d", ErrInvalidCellConfig, r.PCI)
	}
	return r.RA.Validate(ringDepth, r.NumPRBs)
}

// CellReconfiguration updates a running cell at a slot boundary.
type CellReconfiguration struct {
	Cell CellIndex  `json:"cell"`
	Slot slot.Point `json:"-"`
	// RA replaces the random-access parameters when set.
	RA *RAConfig `json:"random_access,omitempty"`
	// ResetRandomAccess drops every outstanding random-access procedure.
	ResetRandomAccess bool `json:"reset_random_access"`
}
