// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package main

import (
	"context"
	"fmt"

	"github.com/tomtom215/fleetlink/internal/config"
	"github.com/tomtom215/fleetlink/internal/eventbus"
	"github.com/tomtom215/fleetlink/internal/logging"
)

// eventBusComponents holds the bus and, when embedded, the NATS server it
// publishes to. server is nil for the in-memory and external transports.
type eventBusComponents struct {
	bus    *eventbus.Bus
	server *eventbus.EmbeddedServer
}

// initEventBus builds the event bus selected by cfg:
//
//   - disabled: in-process Watermill gochannel
//   - embedded_server: in-process NATS with JetStream, bus connected to it
//   - otherwise: external NATS at cfg.URL
func initEventBus(ctx context.Context, cfg *config.NATSConfig) (*eventBusComponents, error) {
	logger := eventbus.NewLogger()

	if !cfg.Enabled {
		logging.Info().Msg("NATS disabled, using in-memory event bus")
		return &eventBusComponents{bus: eventbus.NewInMemory(logger)}, nil
	}

	url := cfg.URL
	var server *eventbus.EmbeddedServer
	if cfg.EmbeddedServer {
		var err error
		server, err = eventbus.NewEmbeddedServer(&eventbus.ServerConfig{
			Host:              cfg.Host,
			Port:              cfg.Port,
			StoreDir:          cfg.StoreDir,
			JetStreamMaxMem:   cfg.MaxMemory,
			JetStreamMaxStore: cfg.MaxStore,
		})
		if err != nil {
			return nil, fmt.Errorf("start embedded NATS: %w", err)
		}
		url = server.ClientURL()
		logging.Info().Str("url", url).Msg("Embedded NATS server started")
	}

	bus, err := eventbus.NewNATS(ctx, url, logger)
	if err != nil {
		if server != nil {
			_ = server.Shutdown(ctx)
		}
		return nil, err
	}
	return &eventBusComponents{bus: bus, server: server}, nil
}
