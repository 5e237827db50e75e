// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/fleetlink/internal/fleeterr"
	"github.com/tomtom215/fleetlink/internal/logging"
	"github.com/tomtom215/fleetlink/internal/models"
)

// runSync is the composite sync shared by every adapter:
// authenticate, fetch vehicles, fetch alerts, wrap in a SyncStatus.
// Any error or panic from the steps ends up in Status, never in the caller.
func runSync(ctx context.Context, a Adapter, now func() time.Time) (result models.SyncResult) {
	cfg := a.Config()
	start := now()
	result.Status = models.SyncStatus{
		ProviderID: cfg.ID,
		LastSync:   start,
		NextSync:   start.Add(cfg.Interval()),
		Status:     models.SyncPending,
	}

	defer func() {
		if r := recover(); r != nil {
			result = failSync(result, fmt.Errorf("adapter panic: %v", r))
		}
		result.Status.DurationMs = now().Sub(start).Milliseconds()
	}()

	ok, err := a.Authenticate(ctx)
	if err == nil && !ok {
		err = &fleeterr.AuthenticationError{Provider: cfg.ID}
	}
	if err != nil {
		return failSync(result, err)
	}

	vehicles, err := a.GetVehicles(ctx)
	if err != nil {
		return failSync(result, fmt.Errorf("get vehicles: %w", err))
	}

	alerts, err := a.GetAlerts(ctx)
	if err != nil {
		return failSync(result, fmt.Errorf("get alerts: %w", err))
	}

	result.Vehicles = vehicles
	result.Alerts = alerts
	result.Status.VehiclesUpdated = len(vehicles)
	result.Status.AlertsGenerated = len(alerts)
	result.Status.Status = models.SyncSuccess
	return result
}

func failSync(result models.SyncResult, err error) models.SyncResult {
	result.Vehicles = nil
	result.Alerts = nil
	result.Status.VehiclesUpdated = 0
	result.Status.AlertsGenerated = 0
	result.Status.Status = models.SyncError
	result.Status.ErrorMessage = err.Error()
	return result
}

// keepValid drops readings that fail canonical validation, logging each one.
func keepValid(ctx context.Context, locs []models.VehicleLocation) []models.VehicleLocation {
	out := locs[:0]
	for i := range locs {
		if err := locs[i].Validate(); err != nil {
			logging.Ctx(ctx).Warn().
				Err(err).
				Str("vehicle_id", locs[i].VehicleID).
				Msg("Dropping invalid vehicle reading")
			continue
		}
		out = append(out, locs[i])
	}
	return out
}

// keepValidAlerts drops alerts that fail validation. Unknown vendor codes
// never reach here as invalid because they are mapped to AlertCustom first.
func keepValidAlerts(ctx context.Context, alerts []models.GPSAlert) []models.GPSAlert {
	out := alerts[:0]
	for i := range alerts {
		if err := alerts[i].Validate(); err != nil {
			logging.Ctx(ctx).Warn().
				Err(err).
				Str("alert_id", alerts[i].ID).
				Msg("Dropping invalid alert")
			continue
		}
		out = append(out, alerts[i])
	}
	return out
}

// checkGeofence validates SetGeofence arguments before any vendor call.
func checkGeofence(vehicleID string, lat, lon, radiusMeters float64) error {
	verr := &fleeterr.ValidationError{}
	if vehicleID == "" {
		verr.Add("vehicleId", "required", "vehicleId is required")
	}
	if lat < -90 || lat > 90 {
		verr.Add("latitude", "latitude", "latitude must be a valid latitude (-90 to 90)")
	}
	if lon < -180 || lon > 180 {
		verr.Add("longitude", "longitude", "longitude must be a valid longitude (-180 to 180)")
	}
	if radiusMeters <= 0 {
		verr.Add("radiusMeters", "gt", "radiusMeters must be greater than 0")
	}
	return verr.OrNil()
}

// severityOr returns s when it is a known severity, otherwise def.
func severityOr(s, def models.AlertSeverity) models.AlertSeverity {
	switch s {
	case models.SeverityLow, models.SeverityMedium, models.SeverityHigh, models.SeverityCritical:
		return s
	}
	return def
}

// alertMetadata records the vendor's own code and id on every normalized alert.
func alertMetadata(code, vendorID string, extra map[string]interface{}) map[string]interface{} {
	md := make(map[string]interface{}, len(extra)+2)
	for k, v := range extra {
		md[k] = v
	}
	if code != "" {
		md[models.MetaVendorCode] = code
	}
	if vendorID != "" {
		md[models.MetaVendorAlertID] = vendorID
	}
	return md
}
