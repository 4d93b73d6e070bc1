/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduler

import (
	"fmt"
	"time"

	"github.com/friendsincode/gnb_scheduler/internal/diag"
)

// ContractViolation is the panic value raised when a trusted internal caller breaks
// the scheduler's calling contract (cell index out of range, non-monotonic slot,
// uplink read before the slot ran). It is never returned as an error.
type ContractViolation struct {
	Op     string
	Cell   int
	Slot   string
	Reason string
}

func (v *ContractViolation) Error() string {
	if v.Slot != "" {
		return fmt.Sprintf("scheduler: %s cell=%d slot=%s: %s", v.Op, v.Cell, v.Slot, v.Reason)
	}
	return fmt.Sprintf("scheduler: %s cell=%d: %s", v.Op, v.Cell, v.Reason)
}

// violation records a diagnostic and panics.
func (s *Scheduler) violation(op string, cell int, sl, reason string) {
	v := &ContractViolation{Op: op, Cell: cell, Slot: sl, Reason: reason}
	s.diag.Record(diag.Entry{
		Timestamp: time.Now(),
		Kind:      diag.KindContractViolation,
		Cell:      cell,
		Slot:      sl,
		Message:   reason,
		Fields:    map[string]any{"op": op},
	})
	panic(v)
}
