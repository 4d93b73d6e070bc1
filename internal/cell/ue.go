/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package cell

import (
	"errors"
	"fmt"

	"github.com/friendsincode/gnb_scheduler/internal/models"
)

var (
	// ErrUnknownUE indicates an event for a terminal the cell does not serve.
	ErrUnknownUE = errors.New("unknown UE")

	// ErrDuplicateUE indicates an add for an RNTI already in use.
	ErrDuplicateUE = errors.New("RNTI already in use")
)

// UE is the scheduling state of one terminal.
type UE struct {
	Config models.UEConfig
	// Active is false while the terminal waits for its contention resolution grant.
	Active bool
}

// UERepository holds the terminals of one cell in admission order.
type UERepository struct {
	byRNTI map[models.RNTI]*UE
	order  []*UE
}

// NewUERepository creates an empty repository.
func NewUERepository() *UERepository {
	return &UERepository{
		byRNTI: make(map[models.RNTI]*UE),
		order:  make([]*UE, 0, 16),
	}
}

// Add inserts a terminal.
func (r *UERepository) Add(cfg models.UEConfig, active bool) (*UE, error) {
	if _, ok := r.byRNTI[cfg.RNTI]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateUE, cfg.RNTI)
	}
	ue := &UE{Config: cfg, Active: active}
	r.byRNTI[cfg.RNTI] = ue
	r.order = append(r.order, ue)
	return ue, nil
}

// Update replaces the scheduling parameters of a terminal, keeping its RNTI.
func (r *UERepository) Update(cfg models.UEConfig) error {
	ue, ok := r.byRNTI[cfg.RNTI]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownUE, cfg.RNTI)
	}
	cfg.TCRNTI = ue.Config.TCRNTI
	ue.Config = cfg
	return nil
}

// Remove deletes a terminal.
func (r *UERepository) Remove(rnti models.RNTI) error {
	ue, ok := r.byRNTI[rnti]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownUE, rnti)
	}
	delete(r.byRNTI, rnti)
	for i, u := range r.order {
		if u == ue {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// Get returns the terminal holding rnti.
func (r *UERepository) Get(rnti models.RNTI) (*UE, bool) {
	ue, ok := r.byRNTI[rnti]
	return ue, ok
}

// Len returns the number of terminals.
func (r *UERepository) Len() int { return len(r.order) }

// At returns the i-th terminal in admission order.
func (r *UERepository) At(i int) *UE { return r.order[i] }

// Configs returns a copy of every terminal configuration.
func (r *UERepository) Configs() []models.UEConfig {
	out := make([]models.UEConfig, 0, len(r.order))
	for _, ue := range r.order {
		out = append(out, ue.Config)
	}
	return out
}
