// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package api

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/fleetlink/internal/auth"
	"github.com/tomtom215/fleetlink/internal/authz"
	"github.com/tomtom215/fleetlink/internal/livestate"
	"github.com/tomtom215/fleetlink/internal/models"
	"github.com/tomtom215/fleetlink/internal/provider"
	"github.com/tomtom215/fleetlink/internal/registry"
	"github.com/tomtom215/fleetlink/internal/store/kvstore"
	fleetsync "github.com/tomtom215/fleetlink/internal/sync"
)

var baseTime = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

var (
	adminUser    = &auth.AuthSubject{ID: "u-admin", Username: "admin", Roles: []string{auth.RoleAdmin}}
	operatorUser = &auth.AuthSubject{ID: "u-op", Username: "op", Roles: []string{auth.RoleOperator}}
	viewerUser   = &auth.AuthSubject{ID: "u-view", Username: "viewer", Roles: []string{auth.RoleViewer}}
)

// fakeVendor stands in for a vendor adapter. Sync returns the configured
// vehicles and alerts; passthrough calls are recorded.
type fakeVendor struct {
	cfg models.ProviderConfig

	mu        sync.Mutex
	vehicles  []models.VehicleLocation
	alerts    []models.GPSAlert
	acked     []string
	geofences []string
	syncs     int
}

func (f *fakeVendor) ID() string                    { return f.cfg.ID }
func (f *fakeVendor) Config() models.ProviderConfig { return f.cfg.Clone() }

func (f *fakeVendor) Authenticate(context.Context) (bool, error) { return true, nil }

func (f *fakeVendor) GetVehicles(context.Context) ([]models.VehicleLocation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.VehicleLocation(nil), f.vehicles...), nil
}

func (f *fakeVendor) GetVehicleLocation(_ context.Context, id string) (*models.VehicleLocation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.vehicles {
		if f.vehicles[i].VehicleID == id {
			loc := f.vehicles[i]
			return &loc, nil
		}
	}
	return nil, nil
}

func (f *fakeVendor) GetAlerts(context.Context) ([]models.GPSAlert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.GPSAlert(nil), f.alerts...), nil
}

func (f *fakeVendor) GetRouteHistory(_ context.Context, vehicleID string, start, end time.Time) (*models.RouteHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var pts []models.VehicleLocation
	for _, v := range f.vehicles {
		if v.VehicleID == vehicleID {
			a, b := v, v
			a.Timestamp = start
			b.Timestamp = end
			b.Latitude += 0.01
			pts = append(pts, a, b)
		}
	}
	return models.BuildRouteHistory(vehicleID, pts), nil
}

func (f *fakeVendor) AcknowledgeAlert(_ context.Context, alertID, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = append(f.acked, alertID)
	return true, nil
}

func (f *fakeVendor) SetGeofence(_ context.Context, vehicleID string, _, _, _ float64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range f.vehicles {
		if v.VehicleID == vehicleID {
			f.geofences = append(f.geofences, vehicleID)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeVendor) Sync(context.Context) models.SyncResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncs++
	return models.SyncResult{
		Vehicles: append([]models.VehicleLocation(nil), f.vehicles...),
		Alerts:   append([]models.GPSAlert(nil), f.alerts...),
		Status: models.SyncStatus{
			ProviderID:      f.cfg.ID,
			LastSync:        baseTime,
			Status:          models.SyncSuccess,
			VehiclesUpdated: len(f.vehicles),
			AlertsGenerated: len(f.alerts),
		},
	}
}

func (f *fakeVendor) ackedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.acked...)
}

type testEnv struct {
	svc      *Service
	registry *registry.Registry
	engine   *fleetsync.Engine
	cache    *livestate.Cache

	mu      sync.Mutex
	vendors map[string]*fakeVendor
	// seed is copied into every vendor the factory builds.
	seed func(*fakeVendor)
}

func (e *testEnv) vendor(id string) *fakeVendor {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.vendors[id]
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := kvstore.Open("", true)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	enforcer, err := authz.NewEnforcer("")
	if err != nil {
		t.Fatalf("NewEnforcer: %v", err)
	}

	env := &testEnv{vendors: make(map[string]*fakeVendor)}
	env.registry = registry.New(provider.DefaultOptions())
	env.registry.RegisterFactory(models.ProviderNavTrack, func(cfg models.ProviderConfig, _ provider.Options) (provider.Adapter, error) {
		v := &fakeVendor{cfg: cfg}
		env.mu.Lock()
		defer env.mu.Unlock()
		if env.seed != nil {
			env.seed(v)
		}
		env.vendors[cfg.ID] = v
		return v, nil
	})

	env.cache = livestate.New(livestate.Options{SubscriberBuffer: 16})
	env.engine = fleetsync.New(env.registry, st, env.cache, nil)
	env.svc = NewService(ServiceConfig{
		Registry: env.registry,
		Engine:   env.engine,
		Cache:    env.cache,
		Store:    st,
		Authz:    enforcer,
	})
	env.svc.now = func() time.Time { return baseTime.Add(time.Hour) }

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = env.engine.StopAll(ctx)
	})
	return env
}

func navtrackConfig(id string, enabled bool) models.ProviderConfig {
	return models.ProviderConfig{
		ID:           id,
		Type:         models.ProviderNavTrack,
		Name:         "NavTrack " + id,
		APIKey:       "secret-key",
		APIURL:       "https://navtrack.example.com/api",
		Enabled:      enabled,
		SyncInterval: 30,
	}
}

func testLocation(vehicleID, providerID string, lat, lon float64) models.VehicleLocation {
	return models.VehicleLocation{
		VehicleID: vehicleID,
		Latitude:  lat,
		Longitude: lon,
		Speed:     50,
		Heading:   180,
		Status:    models.StatusMoving,
		Timestamp: baseTime,
		Provider:  providerID,
	}
}

func testAlert(id, vehicleID, providerID string) models.GPSAlert {
	return models.GPSAlert{
		ID:        id,
		VehicleID: vehicleID,
		Provider:  providerID,
		Type:      models.AlertSpeeding,
		Severity:  models.SeverityHigh,
		Message:   "Speed 120 km/h",
		Timestamp: baseTime,
	}
}

// seedFleet makes every new vendor report two vehicles in Manhattan, one in
// Boston, and one speeding alert.
func seedFleet(v *fakeVendor) {
	id := v.cfg.ID
	v.vehicles = []models.VehicleLocation{
		testLocation("v1", id, 40.7128, -74.0060),
		testLocation("v2", id, 40.7306, -73.9866),
		testLocation("v3", id, 42.3601, -71.0589),
	}
	v.alerts = []models.GPSAlert{testAlert(models.AlertID(id, "a1"), "v1", id)}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
