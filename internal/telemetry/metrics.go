/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gnb_scheduler"

// Scheduler metrics.
var (
	SlotsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "slots_processed_total",
		Help:      "Slots run through the per-slot pipeline.",
	}, []string{"cell"})

	PipelineDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "pipeline_duration_seconds",
		Help:      "Wall time of one per-slot pipeline pass.",
		Buckets:   []float64{10e-6, 25e-6, 50e-6, 100e-6, 250e-6, 500e-6, 1e-3, 2.5e-3},
	}, []string{"cell"})

	GrantsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "grants_total",
		Help:      "Grants frozen into slot results.",
	}, []string{"cell", "direction", "kind"})

	RandomAccessOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "random_access_outcomes_total",
		Help:      "Random-access procedures by outcome.",
	}, []string{"cell", "outcome"})

	RandomAccessOutstanding = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "random_access_outstanding",
		Help:      "Random-access procedures in progress.",
	}, []string{"cell"})

	EventsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_applied_total",
		Help:      "Pending events applied at a slot boundary.",
	}, []string{"cell"})

	EventsPending = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "events_pending",
		Help:      "Events left queued for later slots after a pipeline pass.",
	}, []string{"cell"})

	GridUtilization = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "grid_utilization_ratio",
		Help:      "Share of the resource units of the last processed slot carrying grants.",
	}, []string{"cell", "direction"})

	EventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_dropped_total",
		Help:      "Events dropped before or during application.",
	}, []string{"event"})

	ConfigRejected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cell_config_rejected_total",
		Help:      "Rejected cell configuration requests.",
	})

	AllocationConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "allocation_conflicts_total",
		Help:      "Grid commits refused because the region was taken.",
	}, []string{"cell"})

	CellsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "cells_active",
		Help:      "Configured cells.",
	})

	SlotOverruns = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "driver_slot_overruns_total",
		Help:      "Driver ticks that found the previous slot still running.",
	})

	LeaderStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "leader_status",
		Help:      "1 while this instance drives the slot clock.",
	})
)

// API metrics.
var (
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "api_request_duration_seconds",
		Help:      "Control-plane API request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "api_requests_total",
		Help:      "Control-plane API requests.",
	}, []string{"method", "endpoint", "status"})

	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "api_active_connections",
		Help:      "In-flight control-plane API requests.",
	})

	WebsocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "websocket_connections",
		Help:      "Open notification stream connections.",
	})
)

// Handler exposes metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
