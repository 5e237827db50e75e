// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package provider

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/fleetlink/internal/models"
)

// scriptedAdapter returns canned results so runSync can be tested without HTTP.
type scriptedAdapter struct {
	authOK     bool
	authErr    error
	vehicles   []models.VehicleLocation
	vehErr     error
	alertsErr  error
	panicOnGet bool
}

func (s *scriptedAdapter) ID() string { return "scripted" }
func (s *scriptedAdapter) Config() models.ProviderConfig {
	return models.ProviderConfig{ID: "scripted", SyncInterval: 10}
}
func (s *scriptedAdapter) Authenticate(context.Context) (bool, error) { return s.authOK, s.authErr }
func (s *scriptedAdapter) GetVehicles(context.Context) ([]models.VehicleLocation, error) {
	if s.panicOnGet {
		panic("vendor sent garbage")
	}
	return s.vehicles, s.vehErr
}
func (s *scriptedAdapter) GetVehicleLocation(context.Context, string) (*models.VehicleLocation, error) {
	return nil, nil
}
func (s *scriptedAdapter) GetAlerts(context.Context) ([]models.GPSAlert, error) {
	return nil, s.alertsErr
}
func (s *scriptedAdapter) GetRouteHistory(context.Context, string, time.Time, time.Time) (*models.RouteHistory, error) {
	return nil, nil
}
func (s *scriptedAdapter) AcknowledgeAlert(context.Context, string, string) (bool, error) {
	return false, nil
}
func (s *scriptedAdapter) SetGeofence(context.Context, string, float64, float64, float64) (bool, error) {
	return false, nil
}
func (s *scriptedAdapter) Sync(ctx context.Context) models.SyncResult { return runSync(ctx, s, time.Now) }

func TestRunSync(t *testing.T) {
	t.Parallel()

	oneVehicle := []models.VehicleLocation{{VehicleID: "v1"}}

	tests := []struct {
		name        string
		adapter     *scriptedAdapter
		wantState   models.SyncState
		wantMsg     string
		wantVehicle int
	}{
		{name: "success", adapter: &scriptedAdapter{authOK: true, vehicles: oneVehicle}, wantState: models.SyncSuccess, wantVehicle: 1},
		{name: "auth refused", adapter: &scriptedAdapter{authOK: false}, wantState: models.SyncError, wantMsg: "authentication"},
		{name: "auth transport error", adapter: &scriptedAdapter{authErr: errors.New("dial tcp: refused")}, wantState: models.SyncError, wantMsg: "refused"},
		{name: "vehicles fail", adapter: &scriptedAdapter{authOK: true, vehErr: errors.New("boom")}, wantState: models.SyncError, wantMsg: "get vehicles: boom"},
		{name: "alerts fail drops vehicles", adapter: &scriptedAdapter{authOK: true, vehicles: oneVehicle, alertsErr: errors.New("bad")}, wantState: models.SyncError, wantMsg: "get alerts: bad"},
		{name: "panic is contained", adapter: &scriptedAdapter{authOK: true, panicOnGet: true}, wantState: models.SyncError, wantMsg: "vendor sent garbage"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := tt.adapter.Sync(context.Background())

			if res.Status.Status != tt.wantState {
				t.Errorf("state = %q, want %q", res.Status.Status, tt.wantState)
			}
			if tt.wantMsg != "" && !strings.Contains(strings.ToLower(res.Status.ErrorMessage), tt.wantMsg) {
				t.Errorf("message = %q, want it to contain %q", res.Status.ErrorMessage, tt.wantMsg)
			}
			if len(res.Vehicles) != tt.wantVehicle || res.Status.VehiclesUpdated != tt.wantVehicle {
				t.Errorf("vehicles = %d (status %d), want %d", len(res.Vehicles), res.Status.VehiclesUpdated, tt.wantVehicle)
			}
			if res.Status.ProviderID != "scripted" {
				t.Errorf("provider = %q", res.Status.ProviderID)
			}
			if got := res.Status.NextSync.Sub(res.Status.LastSync); got != 10*time.Second {
				t.Errorf("next sync offset = %v", got)
			}
		})
	}
}

func TestSessionExpiry(t *testing.T) {
	t.Parallel()

	var s session
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, ok := s.get(now); ok {
		t.Fatal("empty session reported valid")
	}
	s.set("t1", now.Add(10*time.Minute))
	if tok, ok := s.get(now); !ok || tok != "t1" {
		t.Errorf("get = %q, %v", tok, ok)
	}
	if _, ok := s.get(now.Add(10*time.Minute - sessionSkew)); ok {
		t.Error("token inside the renewal skew should be treated as expired")
	}
	s.invalidate()
	if _, ok := s.get(now); ok {
		t.Error("invalidated session reported valid")
	}
}

func TestUnitConversions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"100 mph", mphToKmh(100), 160.9344},
		{"10 m/s", mpsToKmh(10), 36},
		{"negative speed sentinel", mphToKmh(-1), 0},
		{"1 mile", milesToKm(1), 1.609344},
		{"2500 m", metersToKm(2500), 2.5},
		{"1000 ft", feetToMeters(1000), 304.8},
		{"304.8 m", metersToFeet(304.8), 1000},
		{"freezing", fahrenheitToCelsius(32), 0},
		{"fraction", fractionToPercent(0.731), 73.1},
		{"over-full tank", fractionToPercent(1.2), 100},
	}
	for _, tt := range tests {
		if !approx(tt.got, tt.want) {
			t.Errorf("%s: got %v, want %v", tt.name, tt.got, tt.want)
		}
	}

	if _, ok := tankPercent(10, 0); ok {
		t.Error("tankPercent with unknown capacity should report false")
	}
}
