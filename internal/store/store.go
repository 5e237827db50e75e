// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

// Package store defines the durable record store the sync engine and the
// admin API write through. Implementations live in internal/database
// (DuckDB, the default), internal/store/pgstore (PostgreSQL) and
// internal/store/kvstore (Badger).
//
// Every write is idempotent so a tick may be retried or repeated without
// duplicating data:
//
//   - UpsertLocation is keyed by (vehicleId, timestamp)
//   - InsertAlertIfAbsent is keyed by alert id and never overwrites
//   - AcknowledgeAlert only transitions an unacknowledged alert
package store

import (
	"context"
	"time"

	"github.com/tomtom215/fleetlink/internal/models"
)

// DefaultHistoryLimit caps QueryHistory when the caller passes no limit.
const DefaultHistoryLimit = 1000

// MaxHistoryLimit is the largest limit QueryHistory honors.
const MaxHistoryLimit = 10000

// Store is the durable record store.
type Store interface {
	// UpsertLocation inserts or replaces the reading for (VehicleID, Timestamp).
	UpsertLocation(ctx context.Context, loc *models.VehicleLocation) error

	// InsertAlertIfAbsent stores a new alert and reports whether it was inserted.
	// An existing alert with the same id is left untouched.
	InsertAlertIfAbsent(ctx context.Context, alert *models.GPSAlert) (bool, error)

	// QueryHistory returns readings for vehicleID with start <= timestamp <= end,
	// oldest first, at most limit rows (DefaultHistoryLimit when limit <= 0).
	QueryHistory(ctx context.Context, vehicleID string, start, end time.Time, limit int) ([]models.VehicleLocation, error)

	// GetUnacknowledgedAlerts returns open alerts, newest first. An empty
	// vehicleID matches every vehicle.
	GetUnacknowledgedAlerts(ctx context.Context, vehicleID string) ([]models.GPSAlert, error)

	// GetAlert returns *fleeterr.NotFoundError when id is unknown.
	GetAlert(ctx context.Context, id string) (*models.GPSAlert, error)

	// AcknowledgeAlert marks the alert acknowledged and reports whether this
	// call made the transition. A second call is a no-op returning false and
	// keeps the first acknowledgement. Unknown ids yield *fleeterr.NotFoundError.
	AcknowledgeAlert(ctx context.Context, id, userID string, at time.Time) (bool, error)

	// SaveProvider inserts or replaces a provider configuration.
	SaveProvider(ctx context.Context, cfg *models.ProviderConfig) error

	// ListProviders returns every saved configuration ordered by id.
	ListProviders(ctx context.Context) ([]models.ProviderConfig, error)

	// DeleteProvider removes a configuration. Deleting an unknown id is not an error.
	DeleteProvider(ctx context.Context, id string) error

	Ping(ctx context.Context) error
	Close() error
}

// ClampLimit applies the history limit defaults.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		return MaxHistoryLimit
	default:
		return limit
	}
}
