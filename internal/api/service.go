// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

/*
service.go - Administrative Service Layer

Service holds the logic behind every administrative operation. Handlers only
decode requests, call one Service method and encode the result, so the same
operations can be driven from tests without HTTP.

Authorization:
  - Provider mutation, forced syncs and geofence writes require IsPrivileged
  - Acknowledging alerts requires the alerts/write permission
  - Reads require the caller to be authenticated; secrets are redacted for
    callers that are not privileged

Provider lifecycle:
  - Create: validate, persist, register, start the loop when enabled
  - Update: persist, rebuild the adapter, restart the loop when the interval
    or connection changed, start or stop it when Enabled toggled
  - Delete: stop the loop, evict the adapter, forget its status, delete it
*/

//nolint:staticcheck // File documentation, not package doc
package api

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/tomtom215/fleetlink/internal/audit"
	"github.com/tomtom215/fleetlink/internal/auth"
	"github.com/tomtom215/fleetlink/internal/authz"
	"github.com/tomtom215/fleetlink/internal/fleeterr"
	"github.com/tomtom215/fleetlink/internal/livestate"
	"github.com/tomtom215/fleetlink/internal/logging"
	"github.com/tomtom215/fleetlink/internal/models"
	"github.com/tomtom215/fleetlink/internal/provider"
	"github.com/tomtom215/fleetlink/internal/registry"
	"github.com/tomtom215/fleetlink/internal/store"
	fleetsync "github.com/tomtom215/fleetlink/internal/sync"
	"github.com/tomtom215/fleetlink/internal/validation"
)

// DefaultHistoryWindow is the range used by LocationHistory when start is omitted.
const DefaultHistoryWindow = 24 * time.Hour

// vendorCallTimeout bounds passthrough calls to a vendor API.
const vendorCallTimeout = 30 * time.Second

// ErrProviderExists is returned by CreateProvider for a duplicate id.
var ErrProviderExists = errors.New("provider already exists")

// GeoIndex answers radius queries over live vehicles. The Redis mirror
// implements it; without one, Nearby scans the in-process cache.
type GeoIndex interface {
	Nearby(ctx context.Context, lat, lon, radiusKm float64) ([]string, error)
}

// ServiceConfig wires a Service.
type ServiceConfig struct {
	Registry *registry.Registry
	Engine   *fleetsync.Engine
	Cache    *livestate.Cache
	Store    store.Store
	Authz    *authz.Enforcer

	// Geo is optional.
	Geo GeoIndex
	// Audit is optional; without it write operations are not audited.
	Audit *audit.Logger
}

// Service implements the administrative operations.
type Service struct {
	registry *registry.Registry
	engine   *fleetsync.Engine
	cache    *livestate.Cache
	store    store.Store
	authz    *authz.Enforcer
	geo      GeoIndex
	audit    *audit.Logger
	now      func() time.Time
}

// NewService creates a Service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		registry: cfg.Registry,
		engine:   cfg.Engine,
		cache:    cfg.Cache,
		store:    cfg.Store,
		authz:    cfg.Authz,
		geo:      cfg.Geo,
		audit:    cfg.Audit,
		now:      time.Now,
	}
}

// ProviderView is a provider configuration with its scheduling state.
type ProviderView struct {
	models.ProviderConfig
	Scheduled  bool               `json:"scheduled"`
	SyncStatus *models.SyncStatus `json:"syncStatus,omitempty"`
}

// ProviderPatch lists the fields updateProvider may change. Nil fields are
// left untouched; a redacted secret is treated as unchanged.
type ProviderPatch struct {
	Name         *string              `json:"name,omitempty"`
	APIKey       *string              `json:"apiKey,omitempty"`
	APIURL       *string              `json:"apiUrl,omitempty"`
	Credentials  map[string]string    `json:"credentials,omitempty"`
	Enabled      *bool                `json:"enabled,omitempty"`
	SyncInterval *int                 `json:"syncInterval,omitempty"`
	FieldMapping *models.FieldMapping `json:"fieldMapping,omitempty"`
}

// GeofenceRequest is the body of the geofence passthrough.
type GeofenceRequest struct {
	Latitude     float64 `json:"latitude" validate:"latitude"`
	Longitude    float64 `json:"longitude" validate:"longitude"`
	RadiusMeters float64 `json:"radiusMeters" validate:"gt=0"`
	// Provider selects the adapter when the vehicle has no live location yet.
	Provider string `json:"provider,omitempty"`
}

// NearbyVehicle is one result of a radius query.
type NearbyVehicle struct {
	models.VehicleLocation
	DistanceKm float64 `json:"distanceKm"`
}

// AckResult reports an acknowledgement. Changed is false when the alert
// was already acknowledged, in which case Alert keeps the first acknowledger.
type AckResult struct {
	Alert   *models.GPSAlert `json:"alert"`
	Changed bool             `json:"changed"`
}

// HealthReport is returned by Health.
type HealthReport struct {
	Status      string `json:"status"`
	Store       string `json:"store"`
	Providers   int    `json:"providers"`
	Scheduled   int    `json:"scheduled"`
	Vehicles    int    `json:"vehicles"`
	Subscribers int    `json:"subscribers"`
}

func (s *Service) requirePrivileged(caller *auth.AuthSubject) error {
	if caller == nil {
		return ErrUnauthenticated
	}
	if !s.authz.IsPrivileged(caller) {
		return authz.ErrForbidden
	}
	return nil
}

func (s *Service) record(ctx context.Context, caller *auth.AuthSubject, action audit.Action, target audit.Target, err error) {
	if s.audit != nil {
		s.audit.Record(ctx, caller, action, target, err)
	}
}

func (s *Service) authorize(caller *auth.AuthSubject, object, action string) error {
	if caller == nil {
		return ErrUnauthenticated
	}
	return s.authz.Authorize(caller, object, action)
}

// ListProviderTypes returns the supported adapter variants.
func (s *Service) ListProviderTypes() []models.ProviderTypeInfo {
	return models.SupportedProviderTypes()
}

// ListProviders returns every registered provider ordered by id.
func (s *Service) ListProviders(caller *auth.AuthSubject) ([]ProviderView, error) {
	if err := s.authorize(caller, authz.ObjectProviders, authz.ActionRead); err != nil {
		return nil, err
	}
	privileged := s.authz.IsPrivileged(caller)

	adapters := s.registry.ListAll()
	out := make([]ProviderView, 0, len(adapters))
	for _, a := range adapters {
		out = append(out, s.view(a, privileged))
	}
	return out, nil
}

// GetProvider returns one provider.
func (s *Service) GetProvider(caller *auth.AuthSubject, id string) (ProviderView, error) {
	if err := s.authorize(caller, authz.ObjectProviders, authz.ActionRead); err != nil {
		return ProviderView{}, err
	}
	a, ok := s.registry.Get(id)
	if !ok {
		return ProviderView{}, fleeterr.NewNotFound("provider", id)
	}
	return s.view(a, s.authz.IsPrivileged(caller)), nil
}

func (s *Service) view(a provider.Adapter, privileged bool) ProviderView {
	cfg := a.Config()
	if !privileged {
		cfg = cfg.Redacted()
	}
	v := ProviderView{ProviderConfig: cfg, Scheduled: s.engine.IsScheduled(cfg.ID)}
	if st, ok := s.engine.Status(cfg.ID); ok {
		v.SyncStatus = &st
	}
	return v
}

// CreateProvider validates, persists and registers cfg, then schedules it
// when enabled.
func (s *Service) CreateProvider(ctx context.Context, caller *auth.AuthSubject, cfg models.ProviderConfig) (_ ProviderView, err error) {
	defer func() {
		s.record(ctx, caller, audit.ActionProviderCreate, audit.Target{Type: "provider", ID: cfg.ID}, err)
	}()
	if err := s.requirePrivileged(caller); err != nil {
		return ProviderView{}, err
	}
	if _, exists := s.registry.Get(cfg.ID); exists {
		return ProviderView{}, fmt.Errorf("%w: %s", ErrProviderExists, cfg.ID)
	}
	if err := s.registry.Validate(&cfg); err != nil {
		return ProviderView{}, err
	}

	now := s.now().UTC()
	cfg.CreatedAt = now
	cfg.UpdatedAt = now

	if err := s.store.SaveProvider(ctx, &cfg); err != nil {
		return ProviderView{}, &fleeterr.PersistenceError{Op: "save provider", Key: cfg.ID, Err: err}
	}
	adapter, err := s.registry.CreateOrGet(cfg)
	if err != nil {
		return ProviderView{}, err
	}

	if cfg.Enabled {
		if err := s.engine.StartSync(ctx, cfg.ID, cfg.Interval()); err != nil {
			return ProviderView{}, err
		}
	}

	logging.Ctx(ctx).Info().
		Str("provider_id", cfg.ID).
		Str("provider_type", string(cfg.Type)).
		Str("user", caller.Username).
		Bool("enabled", cfg.Enabled).
		Msg("Provider created")
	return s.view(adapter, true), nil
}

// UpdateProvider applies patch to provider id.
func (s *Service) UpdateProvider(ctx context.Context, caller *auth.AuthSubject, id string, patch ProviderPatch) (_ ProviderView, err error) {
	defer func() {
		s.record(ctx, caller, audit.ActionProviderUpdate, audit.Target{Type: "provider", ID: id}, err)
	}()
	if err := s.requirePrivileged(caller); err != nil {
		return ProviderView{}, err
	}
	current, ok := s.registry.Get(id)
	if !ok {
		return ProviderView{}, fleeterr.NewNotFound("provider", id)
	}

	old := current.Config()
	next := applyPatch(old.Clone(), patch)
	next.UpdatedAt = s.now().UTC()
	if err := s.registry.Validate(&next); err != nil {
		return ProviderView{}, err
	}

	restart := !old.ConnectionEquals(&next) || patch.FieldMapping != nil || old.SyncInterval != next.SyncInterval

	if err := s.store.SaveProvider(ctx, &next); err != nil {
		return ProviderView{}, &fleeterr.PersistenceError{Op: "save provider", Key: id, Err: err}
	}
	adapter, err := s.registry.Replace(next)
	if err != nil {
		return ProviderView{}, err
	}

	if s.engine.IsScheduled(id) && (!next.Enabled || restart) {
		s.engine.StopSync(id)
	}
	if next.Enabled && !s.engine.IsScheduled(id) {
		if err := s.engine.StartSync(ctx, id, next.Interval()); err != nil {
			return ProviderView{}, err
		}
	}

	logging.Ctx(ctx).Info().
		Str("provider_id", id).
		Str("user", caller.Username).
		Bool("enabled", next.Enabled).
		Bool("restarted", restart).
		Msg("Provider updated")
	return s.view(adapter, true), nil
}

func applyPatch(cfg models.ProviderConfig, p ProviderPatch) models.ProviderConfig {
	if p.Name != nil {
		cfg.Name = *p.Name
	}
	if p.APIKey != nil && *p.APIKey != models.RedactedSecret {
		cfg.APIKey = *p.APIKey
	}
	if p.APIURL != nil {
		cfg.APIURL = *p.APIURL
	}
	if p.Credentials != nil {
		merged := make(map[string]string, len(p.Credentials))
		for k, v := range p.Credentials {
			if v == models.RedactedSecret {
				v = cfg.Credentials[k]
			}
			merged[k] = v
		}
		cfg.Credentials = merged
	}
	if p.Enabled != nil {
		cfg.Enabled = *p.Enabled
	}
	if p.SyncInterval != nil {
		cfg.SyncInterval = *p.SyncInterval
	}
	if p.FieldMapping != nil {
		fm := p.FieldMapping.Clone()
		cfg.FieldMapping = &fm
	}
	return cfg
}

// DeleteProvider stops, evicts and deletes provider id.
func (s *Service) DeleteProvider(ctx context.Context, caller *auth.AuthSubject, id string) (err error) {
	defer func() {
		s.record(ctx, caller, audit.ActionProviderDelete, audit.Target{Type: "provider", ID: id}, err)
	}()
	if err := s.requirePrivileged(caller); err != nil {
		return err
	}
	if _, ok := s.registry.Get(id); !ok {
		return fleeterr.NewNotFound("provider", id)
	}

	s.engine.StopSync(id)
	s.registry.Remove(id)
	s.engine.Forget(id)
	if err := s.store.DeleteProvider(ctx, id); err != nil {
		return &fleeterr.PersistenceError{Op: "delete provider", Key: id, Err: err}
	}

	logging.Ctx(ctx).Info().Str("provider_id", id).Str("user", caller.Username).Msg("Provider deleted")
	return nil
}

// SyncNow runs one tick for provider id.
func (s *Service) SyncNow(ctx context.Context, caller *auth.AuthSubject, id string) (_ models.SyncResult, err error) {
	defer func() {
		s.record(ctx, caller, audit.ActionProviderSync, audit.Target{Type: "provider", ID: id}, err)
	}()
	if err := s.requirePrivileged(caller); err != nil {
		return models.SyncResult{}, err
	}
	return s.engine.SyncOnce(ctx, id)
}

// SyncStatuses returns the latest status per provider.
func (s *Service) SyncStatuses(caller *auth.AuthSubject) ([]models.SyncStatus, error) {
	if err := s.authorize(caller, authz.ObjectSync, authz.ActionRead); err != nil {
		return nil, err
	}
	return s.engine.SyncStatuses(), nil
}

// EngineStatus returns the scheduling state of every provider.
func (s *Service) EngineStatus(caller *auth.AuthSubject) ([]models.EngineStatus, error) {
	if err := s.authorize(caller, authz.ObjectEngine, authz.ActionRead); err != nil {
		return nil, err
	}
	return s.engine.GetStatus(), nil
}

// Vehicles returns every vehicle's last known location.
func (s *Service) Vehicles(caller *auth.AuthSubject) ([]models.VehicleLocation, error) {
	if err := s.authorize(caller, authz.ObjectVehicles, authz.ActionRead); err != nil {
		return nil, err
	}
	return s.cache.GetAll(), nil
}

// LastLocation returns the cached location of vehicleID.
func (s *Service) LastLocation(caller *auth.AuthSubject, vehicleID string) (models.VehicleLocation, error) {
	if err := s.authorize(caller, authz.ObjectVehicles, authz.ActionRead); err != nil {
		return models.VehicleLocation{}, err
	}
	loc, ok := s.cache.GetLast(vehicleID)
	if !ok {
		return models.VehicleLocation{}, fleeterr.NewNotFound("vehicle", vehicleID)
	}
	return loc, nil
}

// LocationHistory returns stored readings for vehicleID in [start, end].
// A zero end means now; a zero start means DefaultHistoryWindow before end.
func (s *Service) LocationHistory(ctx context.Context, caller *auth.AuthSubject, vehicleID string, start, end time.Time, limit int) ([]models.VehicleLocation, error) {
	if err := s.authorize(caller, authz.ObjectVehicles, authz.ActionRead); err != nil {
		return nil, err
	}
	if end.IsZero() {
		end = s.now().UTC()
	}
	if start.IsZero() {
		start = end.Add(-DefaultHistoryWindow)
	}
	if start.After(end) {
		return nil, fleeterr.NewValidationError(fleeterr.Violation{
			Field: "start", Rule: "ltefield", Message: "start must not be after end",
		})
	}
	return s.store.QueryHistory(ctx, vehicleID, start, end, store.ClampLimit(limit))
}

// NearbyQuery is a radius search around a point.
type NearbyQuery struct {
	Lat      float64 `json:"lat" validate:"latitude"`
	Lon      float64 `json:"lon" validate:"longitude"`
	RadiusKm float64 `json:"radiusKm" validate:"gt=0,lte=500"`
}

// Nearby returns live vehicles within q.RadiusKm of the point, nearest first.
func (s *Service) Nearby(ctx context.Context, caller *auth.AuthSubject, q NearbyQuery) ([]NearbyVehicle, error) {
	if err := s.authorize(caller, authz.ObjectVehicles, authz.ActionRead); err != nil {
		return nil, err
	}
	if verr := validation.ValidateStruct(&q); verr != nil {
		return nil, verr
	}
	lat, lon, radiusKm := q.Lat, q.Lon, q.RadiusKm

	var candidates []models.VehicleLocation
	if s.geo != nil {
		ids, err := s.geo.Nearby(ctx, lat, lon, radiusKm)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("Geo index query failed, scanning live cache")
			candidates = s.cache.GetAll()
		} else {
			for _, id := range ids {
				if loc, ok := s.cache.GetLast(id); ok {
					candidates = append(candidates, loc)
				}
			}
		}
	} else {
		candidates = s.cache.GetAll()
	}

	out := make([]NearbyVehicle, 0, len(candidates))
	for _, loc := range candidates {
		d := models.HaversineKm(lat, lon, loc.Latitude, loc.Longitude)
		if d <= radiusKm {
			out = append(out, NearbyVehicle{VehicleLocation: loc, DistanceKm: d})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DistanceKm < out[j].DistanceKm })
	return out, nil
}

// UnacknowledgedAlerts returns open alerts, newest first. An empty
// vehicleID returns every vehicle's alerts.
func (s *Service) UnacknowledgedAlerts(ctx context.Context, caller *auth.AuthSubject, vehicleID string) ([]models.GPSAlert, error) {
	if err := s.authorize(caller, authz.ObjectAlerts, authz.ActionRead); err != nil {
		return nil, err
	}
	return s.store.GetUnacknowledgedAlerts(ctx, vehicleID)
}

// AcknowledgeAlert marks alertID acknowledged by the caller and forwards the
// acknowledgement to the vendor on a best-effort basis.
func (s *Service) AcknowledgeAlert(ctx context.Context, caller *auth.AuthSubject, alertID string) (_ AckResult, err error) {
	defer func() {
		s.record(ctx, caller, audit.ActionAlertAcknowledge, audit.Target{Type: "alert", ID: alertID}, err)
	}()
	if err := s.authorize(caller, authz.ObjectAlerts, authz.ActionWrite); err != nil {
		return AckResult{}, err
	}

	changed, err := s.store.AcknowledgeAlert(ctx, alertID, caller.ID, s.now().UTC())
	if err != nil {
		return AckResult{}, err
	}
	alert, err := s.store.GetAlert(ctx, alertID)
	if err != nil {
		return AckResult{}, err
	}

	if changed {
		s.forwardAck(ctx, alert, caller.ID)
	}
	return AckResult{Alert: alert, Changed: changed}, nil
}

func (s *Service) forwardAck(ctx context.Context, alert *models.GPSAlert, userID string) {
	adapter, ok := s.registry.Get(alert.Provider)
	if !ok {
		return
	}
	vctx, cancel := context.WithTimeout(ctx, vendorCallTimeout)
	defer cancel()

	ok, err := adapter.AcknowledgeAlert(vctx, alert.ID, userID)
	log := logging.Ctx(ctx)
	switch {
	case err != nil:
		log.Warn().Err(err).Str("alert_id", alert.ID).Str("provider_id", alert.Provider).Msg("Vendor acknowledgement failed")
	case !ok:
		log.Debug().Str("alert_id", alert.ID).Str("provider_id", alert.Provider).Msg("Vendor did not acknowledge alert")
	}
}

// RouteHistory fetches the vendor's route for vehicleID. providerID may be
// empty when the vehicle has a live location.
func (s *Service) RouteHistory(ctx context.Context, caller *auth.AuthSubject, vehicleID, providerID string, start, end time.Time) (*models.RouteHistory, error) {
	if err := s.authorize(caller, authz.ObjectVehicles, authz.ActionRead); err != nil {
		return nil, err
	}
	if end.IsZero() {
		end = s.now().UTC()
	}
	if start.IsZero() {
		start = end.Add(-DefaultHistoryWindow)
	}
	if start.After(end) {
		return nil, fleeterr.NewValidationError(fleeterr.Violation{
			Field: "start", Rule: "ltefield", Message: "start must not be after end",
		})
	}

	adapter, err := s.adapterForVehicle(vehicleID, providerID)
	if err != nil {
		return nil, err
	}
	vctx, cancel := context.WithTimeout(ctx, vendorCallTimeout)
	defer cancel()

	route, err := adapter.GetRouteHistory(vctx, vehicleID, start, end)
	if err != nil {
		return nil, err
	}
	if route == nil {
		return nil, fleeterr.NewNotFound("route", vehicleID)
	}
	return route, nil
}

// SetGeofence forwards a circular geofence to the vehicle's vendor.
func (s *Service) SetGeofence(ctx context.Context, caller *auth.AuthSubject, vehicleID string, req GeofenceRequest) (_ bool, err error) {
	defer func() {
		s.record(ctx, caller, audit.ActionGeofenceSet, audit.Target{Type: "vehicle", ID: vehicleID}, err)
	}()
	if err := s.requirePrivileged(caller); err != nil {
		return false, err
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		return false, verr
	}
	adapter, err := s.adapterForVehicle(vehicleID, req.Provider)
	if err != nil {
		return false, err
	}
	vctx, cancel := context.WithTimeout(ctx, vendorCallTimeout)
	defer cancel()

	ok, err := adapter.SetGeofence(vctx, vehicleID, req.Latitude, req.Longitude, req.RadiusMeters)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, fleeterr.NewNotFound("vehicle", vehicleID)
	}
	logging.Ctx(ctx).Info().
		Str("vehicle_id", vehicleID).
		Str("provider_id", adapter.ID()).
		Float64("radius_m", req.RadiusMeters).
		Str("user", caller.Username).
		Msg("Geofence set")
	return true, nil
}

func (s *Service) adapterForVehicle(vehicleID, providerID string) (provider.Adapter, error) {
	if providerID == "" {
		loc, ok := s.cache.GetLast(vehicleID)
		if !ok {
			return nil, fleeterr.NewNotFound("vehicle", vehicleID)
		}
		providerID = loc.Provider
	}
	adapter, ok := s.registry.Get(providerID)
	if !ok {
		return nil, fleeterr.NewNotFound("provider", providerID)
	}
	return adapter, nil
}

// AuditEvents returns recorded admin actions, newest first. It returns an
// empty list when auditing is disabled.
func (s *Service) AuditEvents(ctx context.Context, caller *auth.AuthSubject, filter audit.QueryFilter) ([]audit.Event, error) {
	if err := s.requirePrivileged(caller); err != nil {
		return nil, err
	}
	if s.audit == nil {
		return []audit.Event{}, nil
	}
	return s.audit.Query(ctx, filter)
}

// Subscribe opens a live state subscription for the caller.
func (s *Service) Subscribe(caller *auth.AuthSubject, subscriberID string) (*livestate.Subscription, error) {
	if err := s.authorize(caller, authz.ObjectStream, authz.ActionRead); err != nil {
		return nil, err
	}
	return s.cache.Subscribe(subscriberID)
}

// Health reports store reachability and in-process counters.
func (s *Service) Health(ctx context.Context) HealthReport {
	report := HealthReport{
		Status:      "ok",
		Store:       "ok",
		Providers:   s.registry.Len(),
		Vehicles:    s.cache.Len(),
		Subscribers: s.cache.SubscriberCount(),
	}
	for _, st := range s.engine.GetStatus() {
		if st.IsScheduled {
			report.Scheduled++
		}
	}
	if err := s.store.Ping(ctx); err != nil {
		report.Status = "degraded"
		report.Store = err.Error()
	}
	return report
}
