// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/fleetlink/internal/audit"
	"github.com/tomtom215/fleetlink/internal/auth"
	"github.com/tomtom215/fleetlink/internal/fleeterr"
	"github.com/tomtom215/fleetlink/internal/models"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Handler adapts Service operations to HTTP.
type Handler struct {
	svc *Service
	ws  *WebSocketHandler
}

// NewHandler creates a Handler. ws may be nil, in which case /ws answers 503.
func NewHandler(svc *Service, ws *WebSocketHandler) *Handler {
	return &Handler{svc: svc, ws: ws}
}

func caller(r *http.Request) *auth.AuthSubject {
	return auth.SubjectFromContext(r.Context())
}

// decodeJSON reads a JSON body into dst, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		msg := "invalid request body"
		if !errors.Is(err, io.EOF) {
			msg = fmt.Sprintf("invalid request body: %v", err)
		}
		NewResponseWriter(w, r).BadRequest(msg)
		return false
	}
	return true
}

// parseTimeParam reads an RFC 3339 query parameter. A missing parameter
// yields the zero time.
func parseTimeParam(r *http.Request, name string, verr *fleeterr.ValidationError) time.Time {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		verr.Add(name, "rfc3339", name+" must be an RFC 3339 timestamp")
		return time.Time{}
	}
	return t
}

func parseFloatParam(r *http.Request, name string, verr *fleeterr.ValidationError) float64 {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		verr.Add(name, "required", name+" is required")
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		verr.Add(name, "number", name+" must be a number")
	}
	return v
}

// ListProviderTypes handles GET /api/v1/provider-types.
func (h *Handler) ListProviderTypes(w http.ResponseWriter, r *http.Request) {
	types := h.svc.ListProviderTypes()
	NewResponseWriter(w, r).List(types, len(types))
}

// ListProviders handles GET /api/v1/providers.
func (h *Handler) ListProviders(w http.ResponseWriter, r *http.Request) {
	views, err := h.svc.ListProviders(caller(r))
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).List(views, len(views))
}

// GetProvider handles GET /api/v1/providers/{id}.
func (h *Handler) GetProvider(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.GetProvider(caller(r), chi.URLParam(r, "id"))
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(view)
}

// CreateProvider handles POST /api/v1/providers.
func (h *Handler) CreateProvider(w http.ResponseWriter, r *http.Request) {
	var cfg models.ProviderConfig
	if !decodeJSON(w, r, &cfg) {
		return
	}
	view, err := h.svc.CreateProvider(r.Context(), caller(r), cfg)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Created(view)
}

// UpdateProvider handles PATCH /api/v1/providers/{id}.
func (h *Handler) UpdateProvider(w http.ResponseWriter, r *http.Request) {
	var patch ProviderPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	view, err := h.svc.UpdateProvider(r.Context(), caller(r), chi.URLParam(r, "id"), patch)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(view)
}

// DeleteProvider handles DELETE /api/v1/providers/{id}.
func (h *Handler) DeleteProvider(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteProvider(r.Context(), caller(r), chi.URLParam(r, "id")); err != nil {
		WriteServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).NoContent()
}

// SyncNow handles POST /api/v1/providers/{id}/sync.
func (h *Handler) SyncNow(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.SyncNow(r.Context(), caller(r), chi.URLParam(r, "id"))
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(result.Status)
}

// SyncStatuses handles GET /api/v1/sync/status.
func (h *Handler) SyncStatuses(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.svc.SyncStatuses(caller(r))
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).List(statuses, len(statuses))
}

// EngineStatus handles GET /api/v1/engine.
func (h *Handler) EngineStatus(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.svc.EngineStatus(caller(r))
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).List(statuses, len(statuses))
}

// Vehicles handles GET /api/v1/vehicles.
func (h *Handler) Vehicles(w http.ResponseWriter, r *http.Request) {
	locs, err := h.svc.Vehicles(caller(r))
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).List(locs, len(locs))
}

// Nearby handles GET /api/v1/vehicles/nearby?lat=&lon=&radiusKm=.
func (h *Handler) Nearby(w http.ResponseWriter, r *http.Request) {
	verr := &fleeterr.ValidationError{}
	q := NearbyQuery{
		Lat:      parseFloatParam(r, "lat", verr),
		Lon:      parseFloatParam(r, "lon", verr),
		RadiusKm: parseFloatParam(r, "radiusKm", verr),
	}
	if err := verr.OrNil(); err != nil {
		WriteServiceError(w, r, err)
		return
	}
	out, err := h.svc.Nearby(r.Context(), caller(r), q)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).List(out, len(out))
}

// LastLocation handles GET /api/v1/vehicles/{vehicleId}/location.
func (h *Handler) LastLocation(w http.ResponseWriter, r *http.Request) {
	loc, err := h.svc.LastLocation(caller(r), chi.URLParam(r, "vehicleId"))
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(loc)
}

// LocationHistory handles GET /api/v1/vehicles/{vehicleId}/history.
func (h *Handler) LocationHistory(w http.ResponseWriter, r *http.Request) {
	verr := &fleeterr.ValidationError{}
	start := parseTimeParam(r, "start", verr)
	end := parseTimeParam(r, "end", verr)
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			verr.Add("limit", "gte", "limit must be a non-negative integer")
		}
		limit = n
	}
	if err := verr.OrNil(); err != nil {
		WriteServiceError(w, r, err)
		return
	}

	locs, err := h.svc.LocationHistory(r.Context(), caller(r), chi.URLParam(r, "vehicleId"), start, end, limit)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).List(locs, len(locs))
}

// RouteHistory handles GET /api/v1/vehicles/{vehicleId}/route.
func (h *Handler) RouteHistory(w http.ResponseWriter, r *http.Request) {
	verr := &fleeterr.ValidationError{}
	start := parseTimeParam(r, "start", verr)
	end := parseTimeParam(r, "end", verr)
	if err := verr.OrNil(); err != nil {
		WriteServiceError(w, r, err)
		return
	}

	route, err := h.svc.RouteHistory(r.Context(), caller(r), chi.URLParam(r, "vehicleId"), r.URL.Query().Get("provider"), start, end)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(route)
}

// SetGeofence handles POST /api/v1/vehicles/{vehicleId}/geofence.
func (h *Handler) SetGeofence(w http.ResponseWriter, r *http.Request) {
	var req GeofenceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ok, err := h.svc.SetGeofence(r.Context(), caller(r), chi.URLParam(r, "vehicleId"), req)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(map[string]bool{"applied": ok})
}

// Alerts handles GET /api/v1/alerts?vehicleId=.
func (h *Handler) Alerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.svc.UnacknowledgedAlerts(r.Context(), caller(r), r.URL.Query().Get("vehicleId"))
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).List(alerts, len(alerts))
}

// AcknowledgeAlert handles POST /api/v1/alerts/{alertId}/acknowledge.
func (h *Handler) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.AcknowledgeAlert(r.Context(), caller(r), chi.URLParam(r, "alertId"))
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(res)
}

// AuditEvents handles GET /api/v1/audit?action=&outcome=&actor=&target=&since=&limit=.
func (h *Handler) AuditEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	verr := &fleeterr.ValidationError{}
	filter := audit.QueryFilter{
		Action:   audit.Action(q.Get("action")),
		Outcome:  audit.Outcome(q.Get("outcome")),
		ActorID:  q.Get("actor"),
		TargetID: q.Get("target"),
		Since:    parseTimeParam(r, "since", verr),
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			verr.Add("limit", "gte", "limit must be a non-negative integer")
		}
		filter.Limit = n
	}
	if err := verr.OrNil(); err != nil {
		WriteServiceError(w, r, err)
		return
	}

	events, err := h.svc.AuditEvents(r.Context(), caller(r), filter)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).List(events, len(events))
}

// Health handles GET /health. It answers 503 when the store is unreachable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	report := h.svc.Health(r.Context())
	if report.Status != "ok" {
		NewResponseWriter(w, r).ErrorWithDetails(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "store unavailable", report)
		return
	}
	NewResponseWriter(w, r).Success(report)
}

// WebSocket handles GET /api/v1/ws.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.ws == nil {
		NewResponseWriter(w, r).ServiceUnavailable("websocket service unavailable")
		return
	}
	h.ws.ServeHTTP(w, r)
}
