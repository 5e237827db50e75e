// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

// Package metrics holds the Prometheus collectors for Fleetlink and small
// Record* helpers so call sites stay one line.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Sync engine

	SyncTicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_sync_ticks_total",
			Help: "Sync ticks by provider and outcome (success, error, skipped)",
		},
		[]string{"provider", "outcome"},
	)

	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleet_sync_duration_seconds",
			Help:    "Duration of a provider sync tick in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"provider"},
	)

	SyncRecordsPersisted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_sync_records_persisted_total",
			Help: "Records persisted by sync ticks",
		},
		[]string{"provider", "kind"},
	)

	SyncPersistenceFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_sync_persistence_failures_total",
			Help: "Records skipped because the store rejected them",
		},
		[]string{"provider", "kind"},
	)

	SyncLoopsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleet_sync_loops_active",
			Help: "Number of scheduled provider sync loops",
		},
	)

	// Vendor transport

	VendorRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_vendor_requests_total",
			Help: "Outbound vendor API requests by provider, operation and status",
		},
		[]string{"provider", "operation", "status"},
	)

	VendorRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleet_vendor_request_duration_seconds",
			Help:    "Outbound vendor API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "operation"},
	)

	VendorRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_vendor_retries_total",
			Help: "Retries of vendor requests after transport failures",
		},
		[]string{"provider"},
	)

	// Circuit breakers

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Live state

	LiveVehicles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleet_live_vehicles",
			Help: "Vehicles held in the live state cache",
		},
	)

	LiveSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleet_live_subscribers",
			Help: "Active live-update subscribers",
		},
	)

	LiveEventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fleet_live_subscribers_dropped_total",
			Help: "Subscribers removed because their buffer was full",
		},
	)

	LiveMirrorDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fleet_live_mirror_dropped_total",
			Help: "Live state records not mirrored because the mirror queue was full",
		},
	)

	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_active",
			Help: "Open WebSocket connections",
		},
	)

	// Event bus

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_events_published_total",
			Help: "Events published to the event bus by topic and result",
		},
		[]string{"topic", "result"},
	)

	// API

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)
)

// RecordSyncTick records the outcome and duration of one tick.
func RecordSyncTick(provider, outcome string, duration time.Duration) {
	SyncTicksTotal.WithLabelValues(provider, outcome).Inc()
	if outcome != "skipped" {
		SyncDuration.WithLabelValues(provider).Observe(duration.Seconds())
	}
}

// RecordPersisted counts persisted and failed records of one kind ("location", "alert").
func RecordPersisted(provider, kind string, ok, failed int) {
	if ok > 0 {
		SyncRecordsPersisted.WithLabelValues(provider, kind).Add(float64(ok))
	}
	if failed > 0 {
		SyncPersistenceFailures.WithLabelValues(provider, kind).Add(float64(failed))
	}
}

// RecordVendorRequest records one outbound vendor call. status is the HTTP
// status code, or 0 for a transport failure.
func RecordVendorRequest(provider, operation string, status int, duration time.Duration) {
	label := "transport_error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	VendorRequestsTotal.WithLabelValues(provider, operation, label).Inc()
	VendorRequestDuration.WithLabelValues(provider, operation).Observe(duration.Seconds())
}

// RecordAPIRequest records one API request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the active request gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
