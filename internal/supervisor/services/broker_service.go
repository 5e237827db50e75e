// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package services

import (
	"context"
	"fmt"
	"time"
)

// Shutdowner is satisfied by *eventbus.EmbeddedServer.
type Shutdowner interface {
	Shutdown(ctx context.Context) error
}

// Closer is satisfied by *eventbus.Bus.
type Closer interface {
	Close() error
}

// EventBusService owns the telemetry event bus and, when one is embedded,
// the NATS server behind it. Both are already running when the service is
// added; on cancellation the bus is closed before the server so pending
// publishes can flush.
type EventBusService struct {
	bus             Closer
	server          Shutdowner
	shutdownTimeout time.Duration
	name            string
}

// NewEventBusService wraps bus and an optional embedded server.
func NewEventBusService(bus Closer, server Shutdowner, shutdownTimeout time.Duration) *EventBusService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &EventBusService{
		bus:             bus,
		server:          server,
		shutdownTimeout: shutdownTimeout,
		name:            "event-bus",
	}
}

// Serve implements suture.Service.
func (s *EventBusService) Serve(ctx context.Context) error {
	<-ctx.Done()

	if s.bus != nil {
		if err := s.bus.Close(); err != nil {
			return fmt.Errorf("event bus close: %w", err)
		}
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("embedded nats shutdown: %w", err)
		}
	}
	return ctx.Err()
}

// String names the service in supervisor logs.
func (s *EventBusService) String() string {
	return s.name
}
