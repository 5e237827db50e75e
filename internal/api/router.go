// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/tomtom215/fleetlink/internal/auth"
	"github.com/tomtom215/fleetlink/internal/middleware"
)

// RouterConfig wires the HTTP surface.
type RouterConfig struct {
	Handler       *Handler
	Authenticator auth.Authenticator
	Middleware    *ChiMiddleware
}

// NewRouter builds the chi router.
//
//	GET    /health
//	GET    /metrics
//	GET    /swagger/*
//	GET    /api/v1/provider-types
//	GET    /api/v1/providers
//	POST   /api/v1/providers
//	GET    /api/v1/providers/{id}
//	PATCH  /api/v1/providers/{id}
//	DELETE /api/v1/providers/{id}
//	POST   /api/v1/providers/{id}/sync
//	GET    /api/v1/sync/status
//	GET    /api/v1/engine
//	GET    /api/v1/vehicles
//	GET    /api/v1/vehicles/nearby
//	GET    /api/v1/vehicles/{vehicleId}/location
//	GET    /api/v1/vehicles/{vehicleId}/history
//	GET    /api/v1/vehicles/{vehicleId}/route
//	POST   /api/v1/vehicles/{vehicleId}/geofence
//	GET    /api/v1/alerts
//	POST   /api/v1/alerts/{alertId}/acknowledge
//	GET    /api/v1/audit
//	GET    /api/v1/ws
func NewRouter(cfg RouterConfig) http.Handler {
	h := cfg.Handler
	mw := cfg.Middleware
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(mw.CORS())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).NotFound("route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).Error(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	})

	r.With(mw.RateLimitHealth()).Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())
	// The document itself is registered by importing the docs package.
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("list"),
		httpSwagger.DomID("swagger-ui"),
	))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(middleware.PrometheusMetrics)
		r.Use(Authenticate(cfg.Authenticator))

		r.Get("/provider-types", h.ListProviderTypes)

		r.Route("/providers", func(r chi.Router) {
			r.Get("/", h.ListProviders)
			r.With(mw.RateLimitWrite()).Post("/", h.CreateProvider)
			r.Get("/{id}", h.GetProvider)
			r.With(mw.RateLimitWrite()).Patch("/{id}", h.UpdateProvider)
			r.With(mw.RateLimitWrite()).Delete("/{id}", h.DeleteProvider)
			r.With(mw.RateLimitSync()).Post("/{id}/sync", h.SyncNow)
		})

		r.Get("/sync/status", h.SyncStatuses)
		r.Get("/engine", h.EngineStatus)

		r.Route("/vehicles", func(r chi.Router) {
			r.Get("/", h.Vehicles)
			r.Get("/nearby", h.Nearby)
			r.Get("/{vehicleId}/location", h.LastLocation)
			r.Get("/{vehicleId}/history", h.LocationHistory)
			r.Get("/{vehicleId}/route", h.RouteHistory)
			r.With(mw.RateLimitWrite()).Post("/{vehicleId}/geofence", h.SetGeofence)
		})

		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", h.Alerts)
			r.With(mw.RateLimitWrite()).Post("/{alertId}/acknowledge", h.AcknowledgeAlert)
		})

		r.Get("/audit", h.AuditEvents)
		r.Get("/ws", h.WebSocket)
	})

	return r
}
