// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

//go:build integration

package redismirror

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/fleetlink/internal/config"
	"github.com/tomtom215/fleetlink/internal/livestate"
	"github.com/tomtom215/fleetlink/internal/models"
	"github.com/tomtom215/fleetlink/internal/testinfra"
)

func TestMirrorThroughCache(t *testing.T) {
	testinfra.SkipIfNoDocker(t)
	ctx := context.Background()

	rc, err := testinfra.NewRedisContainer(ctx)
	if err != nil {
		t.Fatalf("start redis: %v", err)
	}
	t.Cleanup(func() { testinfra.CleanupContainer(t, ctx, rc) })

	m, err := New(ctx, &config.RedisConfig{Addr: rc.Addr, KeyPrefix: "test:", StateTTL: time.Minute})
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	sub := m.client.Subscribe(ctx, "test:events")
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	cache := livestate.New(livestate.Options{Mirror: m})
	cache.Update(&models.VehicleLocation{
		VehicleID: "truck-7",
		Latitude:  48.8566,
		Longitude: 2.3522,
		Speed:     30,
		Status:    models.StatusMoving,
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Provider:  "nt",
	})
	// Close flushes the queued mirror write.
	if err := cache.Close(); err != nil {
		t.Fatal(err)
	}

	got, ok, err := m.GetLocation(ctx, "truck-7")
	if err != nil || !ok {
		t.Fatalf("GetLocation = %v, %v", ok, err)
	}
	if got.Speed != 30 {
		t.Errorf("speed = %v", got.Speed)
	}

	ids, err := m.Nearby(ctx, 48.85, 2.35, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != "truck-7" {
		t.Errorf("nearby = %v", ids)
	}

	select {
	case msg := <-sub.Channel():
		if msg.Payload == "" {
			t.Error("empty event payload")
		}
	case <-time.After(5 * time.Second):
		t.Error("no event published")
	}

	if _, ok, _ := m.GetLocation(ctx, "ghost"); ok {
		t.Error("unknown vehicle reported present")
	}
}
