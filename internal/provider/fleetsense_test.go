// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package provider

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/fleetlink/internal/fleeterr"
	"github.com/tomtom215/fleetlink/internal/models"
)

type fleetSenseFake struct {
	logins       atomic.Int32
	expireNext   atomic.Bool
	badPassword  atomic.Bool
	currentToken atomic.Value
}

func (f *fleetSenseFake) mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if f.badPassword.Load() || body["accountKey"] != "key-1" || body["username"] != "ops" || body["password"] != "s3cret" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid login"})
			return
		}
		n := f.logins.Add(1)
		token := fmt.Sprintf("tok-%d", n)
		f.currentToken.Store(token)
		writeJSON(w, http.StatusOK, map[string]interface{}{"sessionToken": token, "expiresIn": 3600})
	})

	guard := func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if f.expireNext.CompareAndSwap(true, false) {
				f.currentToken.Store("")
			}
			if tok, _ := f.currentToken.Load().(string); tok == "" || r.Header.Get("X-Session-Token") != tok {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "session expired"})
				return
			}
			h(w, r)
		}
	}

	mux.HandleFunc("GET /api/fleet/positions", guard(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]interface{}{
			{
				"vehicleRef": "VAN-7", "trackerSerial": "FS-001",
				"position": map[string]interface{}{"latitude": 40.7128, "longitude": -74.006, "altitude": 12.0, "accuracyM": 4.5},
				"speedKmh": 0, "course": 90, "fuel": 0.42, "engineTempC": 88.0, "odometerM": 5_250_000.0,
				"location": map[string]string{"formattedAddress": "1 Main St"},
				"ignition": true, "online": true, "gpsTime": "2026-03-01T10:00:00Z",
			},
			{
				"vehicleRef": "VAN-8", "trackerSerial": "FS-002",
				"position": map[string]interface{}{"latitude": 40.0, "longitude": -74.0},
				"speedKmh": 30, "online": false, "gpsTime": "2026-03-01T09:00:00Z",
			},
		})
	}))
	mux.HandleFunc("GET /api/fleet/positions/{ref}", guard(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	mux.HandleFunc("GET /api/events", guard(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"events": []map[string]interface{}{
				{"eventId": "e1", "vehicleRef": "VAN-7", "type": "DTC", "priority": "URGENT", "description": "P0300 misfire", "eventTime": "2026-03-01T10:00:00Z", "details": map[string]string{"dtc": "P0300"}},
				{"eventId": "e2", "vehicleRef": "VAN-7", "type": "ZONE_ENTRY", "priority": "LOW", "description": "Entered depot", "eventTime": "2026-03-01T10:02:00Z"},
			},
		})
	}))
	mux.HandleFunc("POST /api/zones", guard(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	return mux
}

func newTestFleetSense(t *testing.T) (*FleetSense, *fleetSenseFake) {
	t.Helper()
	fake := &fleetSenseFake{}
	srv := newVendor(t, fake.mux())
	cfg := testConfig(models.ProviderFleetSense, "fs", srv.URL)
	cfg.Credentials = map[string]string{CredUsername: "ops", CredPassword: "s3cret"}
	a, err := NewFleetSense(cfg, testOptions())
	if err != nil {
		t.Fatalf("NewFleetSense: %v", err)
	}
	return a, fake
}

func TestNewFleetSenseRequiresCredentials(t *testing.T) {
	t.Parallel()
	_, err := NewFleetSense(testConfig(models.ProviderFleetSense, "fs", "http://localhost"), testOptions())
	if !fleeterr.IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestFleetSenseNormalizesUnits(t *testing.T) {
	t.Parallel()
	a, fake := newTestFleetSense(t)

	locs, err := a.GetVehicles(context.Background())
	if err != nil {
		t.Fatalf("GetVehicles: %v", err)
	}
	if len(locs) != 2 {
		t.Fatalf("got %d vehicles", len(locs))
	}
	van := locs[0]
	if !approx(deref(van.FuelLevel), 42) {
		t.Errorf("fuel = %v, want 42 percent", deref(van.FuelLevel))
	}
	if !approx(deref(van.Odometer), 5250) {
		t.Errorf("odometer = %v, want 5250 km", deref(van.Odometer))
	}
	if van.Status != models.StatusIdle {
		t.Errorf("stationary with ignition = %q, want idle", van.Status)
	}
	if van.ProviderVehicleID != "FS-001" {
		t.Errorf("provider vehicle id = %q", van.ProviderVehicleID)
	}
	if locs[1].Status != models.StatusOffline {
		t.Errorf("offline tracker status = %q", locs[1].Status)
	}
	if fake.logins.Load() != 1 {
		t.Errorf("logins = %d, want 1", fake.logins.Load())
	}
}

func TestFleetSenseReloginOnExpiredSession(t *testing.T) {
	t.Parallel()
	a, fake := newTestFleetSense(t)
	ctx := context.Background()

	if _, err := a.GetVehicles(ctx); err != nil {
		t.Fatalf("first call: %v", err)
	}
	fake.expireNext.Store(true)
	if _, err := a.GetVehicles(ctx); err != nil {
		t.Fatalf("call after server-side expiry: %v", err)
	}
	if got := fake.logins.Load(); got != 2 {
		t.Errorf("logins = %d, want 2", got)
	}
}

func TestFleetSenseBadCredentials(t *testing.T) {
	t.Parallel()
	a, fake := newTestFleetSense(t)
	fake.badPassword.Store(true)

	ok, err := a.Authenticate(context.Background())
	if ok {
		t.Error("Authenticate should fail")
	}
	if !fleeterr.IsAuthentication(err) {
		t.Errorf("expected AuthenticationError, got %v", err)
	}

	res := a.Sync(context.Background())
	if res.Status.Status != models.SyncError {
		t.Errorf("sync status = %q", res.Status.Status)
	}
}

func TestFleetSenseAlerts(t *testing.T) {
	t.Parallel()
	a, _ := newTestFleetSense(t)

	alerts, err := a.GetAlerts(context.Background())
	if err != nil {
		t.Fatalf("GetAlerts: %v", err)
	}
	if len(alerts) != 2 {
		t.Fatalf("got %d alerts", len(alerts))
	}
	if alerts[0].Type != models.AlertEngineFault || alerts[0].Severity != models.SeverityCritical {
		t.Errorf("alert[0] = %s/%s", alerts[0].Type, alerts[0].Severity)
	}
	if alerts[0].Metadata["dtc"] != "P0300" {
		t.Errorf("details not carried into metadata: %v", alerts[0].Metadata)
	}
	if alerts[1].Type != models.AlertGeofenceViolation || alerts[1].Severity != models.SeverityLow {
		t.Errorf("alert[1] = %s/%s", alerts[1].Type, alerts[1].Severity)
	}
}

func TestFleetSenseVehicleNotFound(t *testing.T) {
	t.Parallel()
	a, _ := newTestFleetSense(t)

	loc, err := a.GetVehicleLocation(context.Background(), "VAN-404")
	if err != nil || loc != nil {
		t.Errorf("GetVehicleLocation = %v, %v; want nil, nil", loc, err)
	}
	ok, err := a.SetGeofence(context.Background(), "VAN-7", 40.7, -74.0, 500)
	if err != nil || !ok {
		t.Errorf("SetGeofence = %v, %v", ok, err)
	}
}
