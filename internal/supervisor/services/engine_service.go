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

// EngineStopper is satisfied by *sync.Engine.
type EngineStopper interface {
	StopAll(ctx context.Context) error
}

// SyncEngineService ties the sync engine's shutdown to the supervisor.
//
// Per-provider loops are started by the engine itself as providers are
// registered; this service only waits for cancellation and then stops
// every loop, waiting for in-flight ticks up to shutdownTimeout.
type SyncEngineService struct {
	engine          EngineStopper
	shutdownTimeout time.Duration
	name            string
}

// NewSyncEngineService wraps engine. A non-positive shutdownTimeout means 30s.
func NewSyncEngineService(engine EngineStopper, shutdownTimeout time.Duration) *SyncEngineService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	return &SyncEngineService{
		engine:          engine,
		shutdownTimeout: shutdownTimeout,
		name:            "sync-engine",
	}
}

// Serve implements suture.Service.
func (s *SyncEngineService) Serve(ctx context.Context) error {
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.engine.StopAll(stopCtx); err != nil {
		return fmt.Errorf("sync engine stop: %w", err)
	}
	return ctx.Err()
}

// String names the service in supervisor logs.
func (s *SyncEngineService) String() string {
	return s.name
}
