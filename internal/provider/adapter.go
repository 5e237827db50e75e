// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

// Package provider implements the vendor adapters. Each adapter hides one
// vendor's authentication, wire format, units and alert codes behind the
// Adapter interface and only ever returns canonical models.
//
// Variants:
//
//   - NavTrack: static API key header, metric units
//   - FleetSense: username/password login returning a session token
//   - RoadPulse: OAuth client-credentials bearer token, imperial units
//   - Generic: any JSON REST vendor described by a models.FieldMapping
//
// All outbound calls go through one transport per adapter that applies a
// rate limiter, a circuit breaker and linear-backoff retries on transport
// failures. Vendor 4xx responses are never retried.
package provider

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/fleetlink/internal/models"
)

// Adapter is the capability set every vendor variant implements.
//
// Single-entity lookups return (nil, nil) when the vendor reports not found.
// Sync never returns an error: failures are reported in SyncResult.Status.
type Adapter interface {
	ID() string
	Config() models.ProviderConfig

	Authenticate(ctx context.Context) (bool, error)
	GetVehicles(ctx context.Context) ([]models.VehicleLocation, error)
	GetVehicleLocation(ctx context.Context, vehicleID string) (*models.VehicleLocation, error)
	GetAlerts(ctx context.Context) ([]models.GPSAlert, error)
	GetRouteHistory(ctx context.Context, vehicleID string, start, end time.Time) (*models.RouteHistory, error)
	AcknowledgeAlert(ctx context.Context, alertID, userID string) (bool, error)
	SetGeofence(ctx context.Context, vehicleID string, lat, lon, radiusMeters float64) (bool, error)

	Sync(ctx context.Context) models.SyncResult
}

// Factory builds an adapter from a validated config. It must not perform I/O.
type Factory func(cfg models.ProviderConfig, opts Options) (Adapter, error)

// Options tunes the transport shared by all adapters.
type Options struct {
	// HTTPClient is used for vendor calls. A client with Timeout is created when nil.
	HTTPClient *http.Client

	// Timeout bounds each attempt. Default: 30s.
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt. Default: 3.
	// A negative value disables retries.
	MaxRetries int

	// BackoffStep is the linear backoff unit: retry n waits n*BackoffStep. Default: 1s.
	BackoffStep time.Duration

	// RateLimit caps requests per second to the vendor. Zero disables limiting.
	RateLimit float64

	// RateBurst is the limiter burst. Default: 1.
	RateBurst int

	// BreakerTimeout is how long an open breaker waits before probing. Default: 2m.
	BreakerTimeout time.Duration

	// Now is the clock used for session expiry and sync timestamps.
	Now func() time.Time
}

// DefaultOptions returns the production transport settings.
func DefaultOptions() Options {
	return Options{}.withDefaults()
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	} else if o.MaxRetries == 0 {
		o.MaxRetries = 3
	}
	if o.BackoffStep <= 0 {
		o.BackoffStep = time.Second
	}
	if o.RateBurst <= 0 {
		o.RateBurst = 1
	}
	if o.BreakerTimeout <= 0 {
		o.BreakerTimeout = 2 * time.Minute
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: o.Timeout}
	}
	return o
}

// Factories returns the built-in adapter constructors keyed by provider type.
func Factories() map[models.ProviderType]Factory {
	return map[models.ProviderType]Factory{
		models.ProviderNavTrack: func(cfg models.ProviderConfig, opts Options) (Adapter, error) {
			return NewNavTrack(cfg, opts)
		},
		models.ProviderFleetSense: func(cfg models.ProviderConfig, opts Options) (Adapter, error) {
			return NewFleetSense(cfg, opts)
		},
		models.ProviderRoadPulse: func(cfg models.ProviderConfig, opts Options) (Adapter, error) {
			return NewRoadPulse(cfg, opts)
		},
		models.ProviderGeneric: func(cfg models.ProviderConfig, opts Options) (Adapter, error) {
			return NewGeneric(cfg, opts)
		},
	}
}
