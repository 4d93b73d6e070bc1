/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package api exposes the control-plane HTTP API of the scheduler.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/friendsincode/gnb_scheduler/internal/auth"
	"github.com/friendsincode/gnb_scheduler/internal/diag"
	"github.com/friendsincode/gnb_scheduler/internal/events"
	"github.com/friendsincode/gnb_scheduler/internal/models"
	"github.com/friendsincode/gnb_scheduler/internal/scheduler"
)

// API exposes HTTP handlers.
type API struct {
	sched     *scheduler.Scheduler
	bus       events.Broker
	diag      *diag.Buffer
	jwtSecret []byte
	isLeader  func() bool
	mirror    ResultMirror
	logger    zerolog.Logger
}

// ResultMirror serves results written by the instance that drives the slot
// clock. *cache.Cache implements it.
type ResultMirror interface {
	GetLatestResult(ctx context.Context, idx models.CellIndex) (*models.SlotResult, bool)
}

// New creates the API router wrapper. diagBuf may be nil when diagnostics are
// not buffered.
func New(sched *scheduler.Scheduler, bus events.Broker, diagBuf *diag.Buffer, jwtSecret []byte, logger zerolog.Logger) *API {
	return &API{
		sched:     sched,
		bus:       bus,
		diag:      diagBuf,
		jwtSecret: jwtSecret,
		logger:    logger.With().Str("component", "api").Logger(),
	}
}

// SetLeaderCheck reports leadership in the health endpoint.
func (a *API) SetLeaderCheck(fn func() bool) {
	a.isLeader = fn
}

// SetResultMirror lets a standby instance answer latest-result reads.
func (a *API) SetResultMirror(m ResultMirror) {
	a.mirror = m
}

// Routes registers API routes under /api/v1.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", a.handleHealth)

		r.Group(func(pr chi.Router) {
			pr.Use(auth.Middleware(a.jwtSecret))

			pr.Route("/cells", func(r chi.Router) {
				r.Get("/", a.handleCellsList)
				r.With(auth.RequireRole(auth.RoleOperator)).Post("/", a.handleCellsConfigure)
				r.Route("/{cellID}", func(r chi.Router) {
					r.Get("/", a.handleCellsGet)
					r.Get("/results/latest", a.handleResultLatest)
					r.Get("/results/{sfn}/{slot}", a.handleResultAt)
					r.Get("/random-access", a.handleRandomAccess)

					r.Group(func(op chi.Router) {
						op.Use(auth.RequireRole(auth.RoleOperator))
						op.Post("/rach", a.handleRach)
						op.Post("/ues", a.handleUEEvent)
						op.Post("/reconfigure", a.handleReconfigure)
					})
				})
			})

			pr.Route("/diagnostics", func(r chi.Router) {
				r.Get("/", a.handleDiagnostics)
				r.Get("/stats", a.handleDiagnosticStats)
				r.With(auth.RequireRole(auth.RoleOperator)).Delete("/", a.handleDiagnosticsClear)
			})

			pr.Get("/events", a.handleEvents)
		})
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status": "ok",
		"cells":  len(a.sched.ConfiguredCells()),
	}
	if a.isLeader != nil {
		resp["leader"] = a.isLeader()
	}
	writeJSON(w, http.StatusOK, resp)
}

func parseEventTypes(raw string) []events.EventType {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]events.EventType, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, events.EventType(part))
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
