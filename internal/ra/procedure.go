/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package ra

import (
	"errors"
	"fmt"

	"github.com/friendsincode/gnb_scheduler/internal/models"
	"github.com/friendsincode/gnb_scheduler/internal/slot"
)

// ErrInvalidTransition indicates a state change the procedure does not allow.
var ErrInvalidTransition = errors.New("invalid random-access state transition")

var validTransitions = map[models.RAState][]models.RAState{
	models.RAStateDetected: {
		models.RAStateResponseScheduled,
		models.RAStateExpired,
	},
	models.RAStateResponseScheduled: {
		models.RAStateAwaitingContentionRes,
		models.RAStateExpired,
	},
	models.RAStateAwaitingContentionRes: {
		models.RAStateResolved,
		models.RAStateExpired,
	},
}

func isValidTransition(from, to models.RAState) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// procedure tracks one random-access attempt.
type procedure struct {
	tcrnti   models.RNTI
	preamble uint8
	ta       uint16
	detected slot.Point

	// responseDeadline is the last slot in which the RAR may be sent.
	responseDeadline slot.Point
	msg3Slot         slot.Point
	// conResDeadline is the last slot in which the contention resolution may be sent.
	conResDeadline slot.Point

	// ueReady is set once the higher layers confirm the terminal behind tcrnti.
	ueReady bool

	state  models.RAState
	reason string
}

func (p *procedure) transitionTo(to models.RAState) error {
	if !isValidTransition(p.state, to) {
		return fmt.Errorf("%w: %s -> %s (tc-rnti %s)", ErrInvalidTransition, p.state, to, p.tcrnti)
	}
	p.state = to
	return nil
}

func (p *procedure) mustTransition(to models.RAState) {
	if err := p.transitionTo(to); err != nil {
		panic(err.Error())
	}
}

// before orders procedures by detection slot, then preamble index.
func (p *procedure) before(o *procedure) bool {
	if !p.detected.Equal(o.detected) {
		return p.detected.Before(o.detected)
	}
	return p.preamble < o.preamble
}

func (p *procedure) snapshot() models.RAProcedure {
	return models.RAProcedure{
		TCRNTI:        p.tcrnti,
		Preamble:      p.preamble,
		TimingAdvance: p.ta,
		DetectedAt:    p.detected.String(),
		State:         p.state,
		Reason:        p.reason,
	}
}
