/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package ra

import (
	"errors"

	"github.com/friendsincode/gnb_scheduler/internal/models"
)

// TC-RNTI range handed out to random-access procedures.
const (
	FirstTCRNTI models.RNTI = 0x4601
	LastTCRNTI  models.RNTI = 0xFFEF
)

// ErrRNTIExhausted indicates every temporary identifier is in use.
var ErrRNTIExhausted = errors.New("no free TC-RNTI")

// RNTIAllocator hands out temporary identifiers round-robin, skipping live ones.
type RNTIAllocator struct {
	next models.RNTI
	live map[models.RNTI]struct{}
}

// NewRNTIAllocator creates an allocator starting at FirstTCRNTI.
func NewRNTIAllocator() *RNTIAllocator {
	return &RNTIAllocator{
		next: FirstTCRNTI,
		live: make(map[models.RNTI]struct{}, 64),
	}
}

// Allocate reserves the next free identifier.
func (a *RNTIAllocator) Allocate() (models.RNTI, error) {
	span := int(LastTCRNTI-FirstTCRNTI) + 1
	for i := 0; i < span; i++ {
		r := a.next
		if a.next == LastTCRNTI {
			a.next = FirstTCRNTI
		} else {
			a.next++
		}
		if _, busy := a.live[r]; !busy {
			a.live[r] = struct{}{}
			return r, nil
		}
	}
	return 0, ErrRNTIExhausted
}

// Reserve marks r as in use. It reports false if r was already live.
func (a *RNTIAllocator) Reserve(r models.RNTI) bool {
	if _, busy := a.live[r]; busy {
		return false
	}
	a.live[r] = struct{}{}
	return true
}

// Release frees r.
func (a *RNTIAllocator) Release(r models.RNTI) {
	delete(a.live, r)
}

// InUse reports whether r is live.
func (a *RNTIAllocator) InUse(r models.RNTI) bool {
	_, busy := a.live[r]
	return busy
}

// Live returns the number of identifiers in use.
func (a *RNTIAllocator) Live() int { return len(a.live) }
