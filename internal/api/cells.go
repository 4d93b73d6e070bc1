/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/gnb_scheduler/internal/auth"
	"github.com/friendsincode/gnb_scheduler/internal/models"
	"github.com/friendsincode/gnb_scheduler/internal/slot"
)

// maxPreambleIndex is the number of PRACH preambles per occasion.
const maxPreambleIndex = 64

// slotRef addresses a slot by system frame number and slot index in the frame.
type slotRef struct {
	SFN  uint32 `json:"sfn"`
	Slot uint32 `json:"slot"`
}

// point converts the reference for a cell. A nil reference is the zero point,
// which the scheduler applies at the next pipeline pass.
func (s *slotRef) point(numerology uint8) (slot.Point, bool) {
	if s == nil {
		return slot.Point{}, true
	}
	if s.SFN >= slot.FramesPerHyperFrame || s.Slot >= slot.SlotsPerFrame(numerology) {
		return slot.Point{}, false
	}
	return slot.FromSFN(numerology, s.SFN, s.Slot), true
}

// cellView is a configured cell as returned by the API.
type cellView struct {
	models.CellConfigRequest
	LastSlot           string `json:"last_slot,omitempty"`
	RandomAccessActive int    `json:"random_access_active"`
}

// rachRequest is the request body for a PRACH detection report.
type rachRequest struct {
	Slot      *slotRef          `json:"slot"`
	Preambles []models.Preamble `json:"preambles"`
}

// ueEventRequest is the request body for a terminal lifecycle change.
type ueEventRequest struct {
	Kind   models.UEEventKind `json:"kind"`
	Slot   *slotRef           `json:"slot"`
	Config models.UEConfig    `json:"config"`
}

// reconfigureRequest is the request body for a cell reconfiguration.
type reconfigureRequest struct {
	Slot              *slotRef         `json:"slot"`
	RA                *models.RAConfig `json:"random_access"`
	ResetRandomAccess bool             `json:"reset_random_access"`
}

func (a *API) handleCellsList(w http.ResponseWriter, r *http.Request) {
	indices := a.sched.ConfiguredCells()
	cells := make([]cellView, 0, len(indices))
	for _, idx := range indices {
		if view, ok := a.cellView(idx); ok {
			cells = append(cells, view)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"cells":     cells,
		"max_cells": a.sched.MaxCells(),
	})
}

func (a *API) handleCellsConfigure(w http.ResponseWriter, r *http.Request) {
	req := models.CellConfigRequest{RA: models.DefaultRAConfig()}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	if err := a.sched.Configure(req); err != nil {
		if errors.Is(err, models.ErrCellAlreadyConfigured) {
			writeError(w, http.StatusConflict, "cell_already_configured")
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":  "invalid_cell_config",
			"detail": err.Error(),
		})
		return
	}

	a.logger.Info().
		Str("actor", auth.Actor(r.Context())).
		Uint16("cell", uint16(req.Index)).
		Uint16("pci", req.PCI).
		Msg("cell configured")
	view, _ := a.cellView(req.Index)
	writeJSON(w, http.StatusCreated, view)
}

func (a *API) handleCellsGet(w http.ResponseWriter, r *http.Request) {
	idx, _, ok := a.requireCell(w, r)
	if !ok {
		return
	}
	view, _ := a.cellView(idx)
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleResultLatest(w http.ResponseWriter, r *http.Request) {
	idx, _, ok := a.requireCell(w, r)
	if !ok {
		return
	}
	res, ok := a.sched.Latest(idx)
	if !ok && a.mirror != nil {
		res, ok = a.mirror.GetLatestResult(r.Context(), idx)
	}
	if !ok {
		writeError(w, http.StatusNotFound, "no_result")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleResultAt(w http.ResponseWriter, r *http.Request) {
	idx, cfg, ok := a.requireCell(w, r)
	if !ok {
		return
	}
	sfn, err1 := strconv.ParseUint(chi.URLParam(r, "sfn"), 10, 32)
	sl, err2 := strconv.ParseUint(chi.URLParam(r, "slot"), 10, 32)
	if err1 != nil || err2 != nil {
		writeError(w, http.StatusBadRequest, "invalid_slot")
		return
	}
	ref := &slotRef{SFN: uint32(sfn), Slot: uint32(sl)}
	point, ok := ref.point(cfg.Numerology)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_slot")
		return
	}

	res, ok := a.sched.Lookup(point, idx)
	if !ok {
		writeError(w, http.StatusNotFound, "result_not_available")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleRandomAccess(w http.ResponseWriter, r *http.Request) {
	idx, _, ok := a.requireCell(w, r)
	if !ok {
		return
	}
	resp := map[string]any{"procedures": []models.RAProcedure{}}
	if res, ok := a.sched.Latest(idx); ok {
		resp["slot"] = res.SlotLabel
		if res.RandomAccess != nil {
			resp["procedures"] = res.RandomAccess
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleRach(w http.ResponseWriter, r *http.Request) {
	idx, cfg, ok := a.requireCell(w, r)
	if !ok {
		return
	}

	var req rachRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if len(req.Preambles) == 0 {
		writeError(w, http.StatusBadRequest, "preambles_required")
		return
	}
	for _, p := range req.Preambles {
		if p.Index >= maxPreambleIndex {
			writeError(w, http.StatusBadRequest, "invalid_preamble")
			return
		}
	}
	point, ok := req.Slot.point(cfg.Numerology)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_slot")
		return
	}

	// The cell was looked up above, so the index is in range.
	a.sched.SubmitRandomAccess(models.RachIndication{
		Cell:      idx,
		Slot:      point,
		Preambles: req.Preambles,
	})
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "queued", "preambles": len(req.Preambles)})
}

func (a *API) handleUEEvent(w http.ResponseWriter, r *http.Request) {
	idx, cfg, ok := a.requireCell(w, r)
	if !ok {
		return
	}

	var req ueEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	switch req.Kind {
	case models.UEAdd, models.UEReconfigure, models.UERemove:
	default:
		writeError(w, http.StatusBadRequest, "invalid_kind")
		return
	}
	if req.Config.RNTI == 0 && req.Config.TCRNTI == 0 {
		writeError(w, http.StatusBadRequest, "rnti_required")
		return
	}
	point, ok := req.Slot.point(cfg.Numerology)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_slot")
		return
	}

	a.sched.SubmitUEEvent(models.UEEvent{
		Kind:   req.Kind,
		Cell:   idx,
		Slot:   point,
		Config: req.Config,
	})
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (a *API) handleReconfigure(w http.ResponseWriter, r *http.Request) {
	idx, cfg, ok := a.requireCell(w, r)
	if !ok {
		return
	}

	var req reconfigureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.RA == nil && !req.ResetRandomAccess {
		writeError(w, http.StatusBadRequest, "nothing_to_change")
		return
	}
	if req.RA != nil {
		if err := req.RA.Validate(a.sched.RingDepth(), cfg.NumPRBs); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error":  "invalid_random_access_config",
				"detail": err.Error(),
			})
			return
		}
	}
	point, ok := req.Slot.point(cfg.Numerology)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_slot")
		return
	}

	a.logger.Info().
		Str("actor", auth.Actor(r.Context())).
		Uint16("cell", uint16(idx)).
		Bool("reset_random_access", req.ResetRandomAccess).
		Msg("cell reconfiguration queued")
	a.sched.SubmitCellReconfiguration(models.CellReconfiguration{
		Cell:              idx,
		Slot:              point,
		RA:                req.RA,
		ResetRandomAccess: req.ResetRandomAccess,
	})
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

// requireCell resolves the {cellID} parameter to a configured cell, writing a
// 404 when there is none.
func (a *API) requireCell(w http.ResponseWriter, r *http.Request) (models.CellIndex, models.CellConfigRequest, bool) {
	raw, err := strconv.ParseUint(chi.URLParam(r, "cellID"), 10, 16)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_cell_id")
		return 0, models.CellConfigRequest{}, false
	}
	idx := models.CellIndex(raw)
	cfg, ok := a.sched.CellConfig(idx)
	if !ok {
		writeError(w, http.StatusNotFound, "cell_not_found")
		return 0, models.CellConfigRequest{}, false
	}
	return idx, cfg, true
}

func (a *API) cellView(idx models.CellIndex) (cellView, bool) {
	cfg, ok := a.sched.CellConfig(idx)
	if !ok {
		return cellView{}, false
	}
	view := cellView{CellConfigRequest: cfg}
	if res, ok := a.sched.Latest(idx); ok {
		view.LastSlot = res.SlotLabel
		for _, p := range res.RandomAccess {
			if !p.State.Terminal() {
				view.RandomAccessActive++
			}
		}
	}
	return view, true
}
