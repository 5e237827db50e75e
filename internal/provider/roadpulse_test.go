// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package provider

import (
	"context"
	"math"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/fleetlink/internal/fleeterr"
	"github.com/tomtom215/fleetlink/internal/models"
)

type roadPulseFake struct {
	tokens      atomic.Int32
	radiusFt    atomic.Value
	breadcrumbQ atomic.Value
}

func (f *roadPulseFake) mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /oauth/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.PostForm.Get("grant_type") != "client_credentials" ||
			r.PostForm.Get("client_id") != "key-1" ||
			r.PostForm.Get("client_secret") != "shh" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_client"})
			return
		}
		f.tokens.Add(1)
		writeJSON(w, http.StatusOK, map[string]interface{}{"access_token": "bearer-1", "token_type": "bearer", "expires_in": 3600})
	})

	guard := func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer bearer-1" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			h(w, r)
		}
	}
	mux.HandleFunc("GET /v2/assets", guard(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"data": []map[string]interface{}{
				{
					"asset_id": "rp-9", "fleet_number": "BUS-12", "ts": 1772359200,
					"gps": map[string]interface{}{"lat": 34.05, "lon": -118.24, "alt_ft": 1000.0, "heading": 180}, "motion": "MOVING",
					"speed_mph": 100.0, "odometer_mi": 1000.0, "fuel_gal": 15.0, "tank_gal": 60.0,
					"temp_f": 212.0, "street_address": "Sunset Blvd",
				},
			},
		})
	}))
	mux.HandleFunc("GET /v2/alerts", guard(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"data": []map[string]interface{}{
				{"id": "r1", "fleet_number": "BUS-12", "category": "SPEEDING", "severity": "major", "summary": "Over limit", "ts": 1772359200, "value": 80.0},
				{"id": "r2", "fleet_number": "BUS-12", "category": "TIRE_PRESSURE", "severity": "weird", "summary": "Low tire", "ts": 1772359260},
			},
		})
	}))
	mux.HandleFunc("GET /v2/assets/{n}/breadcrumbs", guard(func(w http.ResponseWriter, r *http.Request) {
		f.breadcrumbQ.Store(r.URL.RawQuery)
		writeJSON(w, http.StatusOK, map[string]interface{}{"data": []interface{}{}})
	}))
	mux.HandleFunc("POST /v2/assets/{n}/geofences", guard(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]float64
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.radiusFt.Store(body["radius_ft"])
		w.WriteHeader(http.StatusCreated)
	}))
	return mux
}

func newTestRoadPulse(t *testing.T, secret string) (*RoadPulse, *roadPulseFake) {
	t.Helper()
	fake := &roadPulseFake{}
	srv := newVendor(t, fake.mux())
	cfg := testConfig(models.ProviderRoadPulse, "rp", srv.URL)
	cfg.Credentials = map[string]string{CredClientSecret: secret}
	a, err := NewRoadPulse(cfg, testOptions())
	if err != nil {
		t.Fatalf("NewRoadPulse: %v", err)
	}
	return a, fake
}

func TestRoadPulseImperialConversion(t *testing.T) {
	t.Parallel()
	a, fake := newTestRoadPulse(t, "shh")

	locs, err := a.GetVehicles(context.Background())
	if err != nil {
		t.Fatalf("GetVehicles: %v", err)
	}
	if len(locs) != 1 {
		t.Fatalf("got %d vehicles", len(locs))
	}
	bus := locs[0]

	if math.Abs(bus.Speed-160.9344) > 0.1 {
		t.Errorf("speed = %v km/h, want 160.9", bus.Speed)
	}
	if !approx(deref(bus.Odometer), 1609.344) {
		t.Errorf("odometer = %v", deref(bus.Odometer))
	}
	if !approx(deref(bus.Altitude), 304.8) {
		t.Errorf("altitude = %v m", deref(bus.Altitude))
	}
	if !approx(deref(bus.Temperature), 100) {
		t.Errorf("temperature = %v C", deref(bus.Temperature))
	}
	if !approx(deref(bus.FuelLevel), 25) {
		t.Errorf("fuel = %v percent", deref(bus.FuelLevel))
	}
	if bus.VehicleID != "BUS-12" || bus.ProviderVehicleID != "rp-9" {
		t.Errorf("ids = %q/%q", bus.VehicleID, bus.ProviderVehicleID)
	}
	if !bus.Timestamp.Equal(time.Unix(1772359200, 0)) {
		t.Errorf("timestamp = %v", bus.Timestamp)
	}

	if _, err := a.GetAlerts(context.Background()); err != nil {
		t.Fatalf("GetAlerts: %v", err)
	}
	if got := fake.tokens.Load(); got != 1 {
		t.Errorf("token requests = %d, want 1 (cached)", got)
	}
}

func TestRoadPulseAlerts(t *testing.T) {
	t.Parallel()
	a, _ := newTestRoadPulse(t, "shh")

	alerts, err := a.GetAlerts(context.Background())
	if err != nil {
		t.Fatalf("GetAlerts: %v", err)
	}
	if len(alerts) != 2 {
		t.Fatalf("got %d alerts", len(alerts))
	}
	if alerts[0].Type != models.AlertSpeeding || alerts[0].Severity != models.SeverityHigh {
		t.Errorf("alert[0] = %s/%s", alerts[0].Type, alerts[0].Severity)
	}
	if v, _ := alerts[0].Metadata["speedKmh"].(float64); !approx(v, 128.75) {
		t.Errorf("speedKmh metadata = %v", alerts[0].Metadata["speedKmh"])
	}
	if alerts[1].Type != models.AlertCustom || alerts[1].Message != "Low tire" {
		t.Errorf("unknown category = %s %q", alerts[1].Type, alerts[1].Message)
	}
	if alerts[1].Metadata[models.MetaVendorCode] != "TIRE_PRESSURE" {
		t.Errorf("metadata = %v", alerts[1].Metadata)
	}
}

func TestRoadPulseInvalidClient(t *testing.T) {
	t.Parallel()
	a, _ := newTestRoadPulse(t, "wrong")

	ok, err := a.Authenticate(context.Background())
	if ok || !fleeterr.IsAuthentication(err) {
		t.Errorf("Authenticate = %v, %v; want false, AuthenticationError", ok, err)
	}
}

func TestRoadPulseGeofenceInFeet(t *testing.T) {
	t.Parallel()
	a, fake := newTestRoadPulse(t, "shh")

	ok, err := a.SetGeofence(context.Background(), "BUS-12", 34.0, -118.0, 304.8)
	if err != nil || !ok {
		t.Fatalf("SetGeofence = %v, %v", ok, err)
	}
	if ft, _ := fake.radiusFt.Load().(float64); !approx(ft, 1000) {
		t.Errorf("radius_ft = %v, want 1000", ft)
	}
}

func TestRoadPulseBreadcrumbWindow(t *testing.T) {
	t.Parallel()
	a, fake := newTestRoadPulse(t, "shh")

	start := time.Unix(1772352000, 0)
	route, err := a.GetRouteHistory(context.Background(), "BUS-12", start, start.Add(time.Hour))
	if err != nil {
		t.Fatalf("GetRouteHistory: %v", err)
	}
	if route != nil {
		t.Errorf("empty breadcrumb list should give nil route, got %+v", route)
	}
	if q, _ := fake.breadcrumbQ.Load().(string); q != "end_ts=1772355600&start_ts=1772352000" {
		t.Errorf("query = %q", q)
	}
}
