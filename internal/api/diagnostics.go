/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/friendsincode/gnb_scheduler/internal/diag"
)

const defaultDiagnosticLimit = 100

// handleDiagnostics returns buffered diagnostics, newest first.
// Query params: kind, cell, since (RFC3339), limit.
func (a *API) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	if a.diag == nil {
		writeError(w, http.StatusServiceUnavailable, "diagnostics_not_available")
		return
	}

	q := r.URL.Query()
	params := diag.QueryParams{
		Kind:       diag.Kind(q.Get("kind")),
		Limit:      defaultDiagnosticLimit,
		Descending: true,
	}
	if raw := q.Get("cell"); raw != "" {
		cell, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_cell")
			return
		}
		params.Cell = &cell
	}
	if raw := q.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_since")
			return
		}
		params.Since = since
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit")
			return
		}
		params.Limit = limit
	}

	entries := a.diag.Query(params)
	if entries == nil {
		entries = []diag.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

func (a *API) handleDiagnosticStats(w http.ResponseWriter, r *http.Request) {
	if a.diag == nil {
		writeError(w, http.StatusServiceUnavailable, "diagnostics_not_available")
		return
	}
	writeJSON(w, http.StatusOK, a.diag.Stats())
}

func (a *API) handleDiagnosticsClear(w http.ResponseWriter, r *http.Request) {
	if a.diag == nil {
		writeError(w, http.StatusServiceUnavailable, "diagnostics_not_available")
		return
	}
	a.diag.Clear()
	w.WriteHeader(http.StatusNoContent)
}
