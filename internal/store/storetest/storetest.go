// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

// Package storetest is the behavioral suite every store.Store implementation runs.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/fleetlink/internal/fleeterr"
	"github.com/tomtom215/fleetlink/internal/models"
	"github.com/tomtom215/fleetlink/internal/store"
)

var base = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

// Location returns a valid reading for vehicleID offset by minutes from a fixed base time.
func Location(vehicleID string, minutes int) *models.VehicleLocation {
	return &models.VehicleLocation{
		VehicleID:         vehicleID,
		Latitude:          52.52 + float64(minutes)*0.001,
		Longitude:         13.405,
		Speed:             42,
		Heading:           90,
		FuelLevel:         models.Float(55),
		Address:           models.String("Unter den Linden"),
		Status:            models.StatusMoving,
		Timestamp:         base.Add(time.Duration(minutes) * time.Minute),
		Provider:          "nt",
		ProviderVehicleID: "dev-" + vehicleID,
	}
}

// Alert returns an unacknowledged alert.
func Alert(id, vehicleID string, minutes int) *models.GPSAlert {
	return &models.GPSAlert{
		ID:        id,
		VehicleID: vehicleID,
		Provider:  "nt",
		Type:      models.AlertSpeeding,
		Severity:  models.SeverityHigh,
		Message:   "Speeding",
		Timestamp: base.Add(time.Duration(minutes) * time.Minute),
		Metadata:  map[string]interface{}{models.MetaVendorCode: "SPD"},
	}
}

// Run exercises s against the store contract. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Helper()

	t.Run("UpsertLocationIsIdempotent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		for i := 0; i < 3; i++ {
			if err := s.UpsertLocation(ctx, Location("v1", 0)); err != nil {
				t.Fatalf("UpsertLocation #%d: %v", i, err)
			}
		}
		updated := Location("v1", 0)
		updated.Speed = 77
		if err := s.UpsertLocation(ctx, updated); err != nil {
			t.Fatal(err)
		}

		got, err := s.QueryHistory(ctx, "v1", base.Add(-time.Hour), base.Add(time.Hour), 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 {
			t.Fatalf("rows = %d, want 1", len(got))
		}
		if got[0].Speed != 77 {
			t.Errorf("speed = %v, want the last write", got[0].Speed)
		}
		if got[0].FuelLevel == nil || *got[0].FuelLevel != 55 {
			t.Errorf("fuel = %v", got[0].FuelLevel)
		}
		if got[0].Address == nil || *got[0].Address != "Unter den Linden" {
			t.Errorf("address = %v", got[0].Address)
		}
		if got[0].Altitude != nil {
			t.Errorf("altitude should stay nil, got %v", *got[0].Altitude)
		}
		if !got[0].Timestamp.Equal(base) {
			t.Errorf("timestamp = %v", got[0].Timestamp)
		}
	})

	t.Run("QueryHistoryRangeOrderAndLimit", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		for _, m := range []int{30, 0, 10, 20, 40} {
			if err := s.UpsertLocation(ctx, Location("v1", m)); err != nil {
				t.Fatal(err)
			}
		}
		if err := s.UpsertLocation(ctx, Location("v2", 10)); err != nil {
			t.Fatal(err)
		}

		got, err := s.QueryHistory(ctx, "v1", base.Add(10*time.Minute), base.Add(30*time.Minute), 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 3 {
			t.Fatalf("rows = %d, want 3 (inclusive range)", len(got))
		}
		for i := 1; i < len(got); i++ {
			if !got[i-1].Timestamp.Before(got[i].Timestamp) {
				t.Errorf("not ascending at %d", i)
			}
		}
		for _, loc := range got {
			if loc.VehicleID != "v1" {
				t.Errorf("foreign vehicle %q in history", loc.VehicleID)
			}
		}

		limited, err := s.QueryHistory(ctx, "v1", base, base.Add(time.Hour), 2)
		if err != nil {
			t.Fatal(err)
		}
		if len(limited) != 2 || !limited[0].Timestamp.Equal(base) {
			t.Errorf("limit 2 = %d rows starting %v", len(limited), limited)
		}
	})

	t.Run("InsertAlertIfAbsent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		inserted, err := s.InsertAlertIfAbsent(ctx, Alert("nt:a1", "v1", 0))
		if err != nil || !inserted {
			t.Fatalf("first insert = %v, %v", inserted, err)
		}
		dup := Alert("nt:a1", "v1", 0)
		dup.Message = "changed"
		inserted, err = s.InsertAlertIfAbsent(ctx, dup)
		if err != nil || inserted {
			t.Fatalf("duplicate insert = %v, %v", inserted, err)
		}

		got, err := s.GetAlert(ctx, "nt:a1")
		if err != nil {
			t.Fatal(err)
		}
		if got.Message != "Speeding" {
			t.Errorf("duplicate overwrote message: %q", got.Message)
		}
		if got.Metadata[models.MetaVendorCode] != "SPD" {
			t.Errorf("metadata = %v", got.Metadata)
		}
		if got.Type != models.AlertSpeeding || got.Severity != models.SeverityHigh || got.Acknowledged {
			t.Errorf("alert = %+v", got)
		}

		if _, err := s.GetAlert(ctx, "nt:missing"); !fleeterr.IsNotFound(err) {
			t.Errorf("GetAlert(missing) = %v, want NotFoundError", err)
		}
	})

	t.Run("AcknowledgeAlertIsIdempotent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if _, err := s.InsertAlertIfAbsent(ctx, Alert("nt:a1", "v1", 0)); err != nil {
			t.Fatal(err)
		}
		first := base.Add(time.Hour)
		changed, err := s.AcknowledgeAlert(ctx, "nt:a1", "user1", first)
		if err != nil || !changed {
			t.Fatalf("first ack = %v, %v", changed, err)
		}
		changed, err = s.AcknowledgeAlert(ctx, "nt:a1", "user2", first.Add(time.Hour))
		if err != nil || changed {
			t.Fatalf("second ack = %v, %v", changed, err)
		}

		got, err := s.GetAlert(ctx, "nt:a1")
		if err != nil {
			t.Fatal(err)
		}
		if !got.Acknowledged || got.AcknowledgedBy != "user1" {
			t.Errorf("ack state = %v by %q", got.Acknowledged, got.AcknowledgedBy)
		}
		if got.AcknowledgedAt == nil || !got.AcknowledgedAt.Equal(first) {
			t.Errorf("acknowledgedAt = %v, want %v", got.AcknowledgedAt, first)
		}

		if _, err := s.AcknowledgeAlert(ctx, "nt:ghost", "u", first); !fleeterr.IsNotFound(err) {
			t.Errorf("ack unknown = %v, want NotFoundError", err)
		}
	})

	t.Run("GetUnacknowledgedAlerts", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		for i, a := range []*models.GPSAlert{
			Alert("nt:a1", "v1", 0),
			Alert("nt:a2", "v1", 5),
			Alert("nt:a3", "v2", 10),
		} {
			if _, err := s.InsertAlertIfAbsent(ctx, a); err != nil {
				t.Fatalf("insert %d: %v", i, err)
			}
		}
		if _, err := s.AcknowledgeAlert(ctx, "nt:a1", "u", base); err != nil {
			t.Fatal(err)
		}

		all, err := s.GetUnacknowledgedAlerts(ctx, "")
		if err != nil {
			t.Fatal(err)
		}
		if len(all) != 2 || all[0].ID != "nt:a3" {
			t.Errorf("all open = %v", alertIDs(all))
		}

		v1, err := s.GetUnacknowledgedAlerts(ctx, "v1")
		if err != nil {
			t.Fatal(err)
		}
		if len(v1) != 1 || v1[0].ID != "nt:a2" {
			t.Errorf("v1 open = %v", alertIDs(v1))
		}
	})

	t.Run("Providers", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		cfg := models.ProviderConfig{
			ID:           "fs-main",
			Type:         models.ProviderFleetSense,
			Name:         "FleetSense",
			APIKey:       "acct",
			APIURL:       "https://fleetsense.example",
			Credentials:  map[string]string{"username": "ops", "password": "pw"},
			Enabled:      true,
			SyncInterval: 60,
			CreatedAt:    base,
			UpdatedAt:    base,
		}
		if err := s.SaveProvider(ctx, &cfg); err != nil {
			t.Fatal(err)
		}
		other := cfg.Clone()
		other.ID = "a-first"
		if err := s.SaveProvider(ctx, &other); err != nil {
			t.Fatal(err)
		}
		cfg.Name = "FleetSense EU"
		if err := s.SaveProvider(ctx, &cfg); err != nil {
			t.Fatal(err)
		}

		list, err := s.ListProviders(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(list) != 2 || list[0].ID != "a-first" {
			t.Fatalf("providers = %+v", list)
		}
		if list[1].Name != "FleetSense EU" || list[1].Credential("password") != "pw" {
			t.Errorf("round trip lost data: %+v", list[1])
		}

		if err := s.DeleteProvider(ctx, "fs-main"); err != nil {
			t.Fatal(err)
		}
		if err := s.DeleteProvider(ctx, "fs-main"); err != nil {
			t.Errorf("deleting twice: %v", err)
		}
		list, _ = s.ListProviders(ctx)
		if len(list) != 1 {
			t.Errorf("after delete = %d providers", len(list))
		}

		if err := s.Ping(ctx); err != nil {
			t.Errorf("Ping: %v", err)
		}
	})
}

func alertIDs(alerts []models.GPSAlert) []string {
	ids := make([]string, len(alerts))
	for i := range alerts {
		ids[i] = alerts[i].ID
	}
	return ids
}
