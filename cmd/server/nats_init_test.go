// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package main

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/fleetlink/internal/config"
	"github.com/tomtom215/fleetlink/internal/eventbus"
	"github.com/tomtom215/fleetlink/internal/models"
)

func TestInitEventBusDisabled(t *testing.T) {
	ctx := context.Background()
	c, err := initEventBus(ctx, &config.NATSConfig{Enabled: false})
	if err != nil {
		t.Fatalf("initEventBus: %v", err)
	}
	defer c.bus.Close()

	if c.server != nil {
		t.Error("in-memory bus should not start a server")
	}

	msgs, err := c.bus.Subscribe(ctx, eventbus.TopicLocationUpdated)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	loc := &models.VehicleLocation{VehicleID: "v1", Provider: "p1", Timestamp: time.Now()}
	if err := c.bus.PublishLocation(ctx, loc); err != nil {
		t.Fatalf("PublishLocation: %v", err)
	}

	select {
	case msg := <-msgs:
		msg.Ack()
		if got := msg.Metadata.Get(eventbus.MetaVehicleID); got != "v1" {
			t.Errorf("vehicle metadata = %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no message delivered")
	}
}

func TestInitEventBusEmbedded(t *testing.T) {
	if testing.Short() {
		t.Skip("starts an embedded NATS server")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	c, err := initEventBus(ctx, &config.NATSConfig{
		Enabled:        true,
		EmbeddedServer: true,
		Host:           "127.0.0.1",
		Port:           -1,
		StoreDir:       t.TempDir(),
		MaxMemory:      16 << 20,
		MaxStore:       64 << 20,
	})
	if err != nil {
		t.Fatalf("initEventBus: %v", err)
	}
	if c.server == nil || !c.server.IsRunning() {
		t.Fatal("embedded server not running")
	}

	alert := &models.GPSAlert{ID: models.AlertID("p1", "a1"), VehicleID: "v1", Provider: "p1", Timestamp: time.Now()}
	if err := c.bus.PublishAlert(ctx, alert); err != nil {
		t.Errorf("PublishAlert: %v", err)
	}

	if err := c.bus.Close(); err != nil {
		t.Errorf("Close bus: %v", err)
	}
	if err := c.server.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown server: %v", err)
	}
}
