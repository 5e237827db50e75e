// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tomtom215/fleetlink/internal/models"
	"github.com/tomtom215/fleetlink/internal/store"
)

const upsertLocationSQL = `
INSERT INTO vehicle_locations (
	vehicle_id, ts, provider, provider_vehicle_id, latitude, longitude, speed, heading,
	altitude, accuracy, fuel_level, temperature, odometer, address, status
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (vehicle_id, ts) DO UPDATE SET
	provider = EXCLUDED.provider,
	provider_vehicle_id = EXCLUDED.provider_vehicle_id,
	latitude = EXCLUDED.latitude,
	longitude = EXCLUDED.longitude,
	speed = EXCLUDED.speed,
	heading = EXCLUDED.heading,
	altitude = EXCLUDED.altitude,
	accuracy = EXCLUDED.accuracy,
	fuel_level = EXCLUDED.fuel_level,
	temperature = EXCLUDED.temperature,
	odometer = EXCLUDED.odometer,
	address = EXCLUDED.address,
	status = EXCLUDED.status`

// UpsertLocation inserts or replaces the reading for (VehicleID, Timestamp).
func (db *DB) UpsertLocation(ctx context.Context, loc *models.VehicleLocation) error {
	_, err := db.conn.ExecContext(ctx, upsertLocationSQL,
		loc.VehicleID, loc.Timestamp.UTC(), loc.Provider, nullString(loc.ProviderVehicleID),
		loc.Latitude, loc.Longitude, loc.Speed, loc.Heading,
		nullFloat(loc.Altitude), nullFloat(loc.Accuracy), nullFloat(loc.FuelLevel),
		nullFloat(loc.Temperature), nullFloat(loc.Odometer), nullStringPtr(loc.Address),
		string(loc.Status),
	)
	if err != nil {
		return fmt.Errorf("upsert location %s@%s: %w", loc.VehicleID, loc.Timestamp.Format(time.RFC3339), err)
	}
	return nil
}

// QueryHistory returns readings in [start, end] oldest first.
func (db *DB) QueryHistory(ctx context.Context, vehicleID string, start, end time.Time, limit int) ([]models.VehicleLocation, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT vehicle_id, ts, provider, provider_vehicle_id, latitude, longitude, speed, heading,
		       altitude, accuracy, fuel_level, temperature, odometer, address, status
		FROM vehicle_locations
		WHERE vehicle_id = ? AND ts >= ? AND ts <= ?
		ORDER BY ts ASC
		LIMIT ?`,
		vehicleID, start.UTC(), end.UTC(), store.ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query history for %s: %w", vehicleID, err)
	}
	defer rows.Close()

	var out []models.VehicleLocation
	for rows.Next() {
		var (
			loc                        models.VehicleLocation
			providerVehicleID, address sql.NullString
			alt, acc, fuel, temp, odo  sql.NullFloat64
			status                     string
		)
		if err := rows.Scan(&loc.VehicleID, &loc.Timestamp, &loc.Provider, &providerVehicleID,
			&loc.Latitude, &loc.Longitude, &loc.Speed, &loc.Heading,
			&alt, &acc, &fuel, &temp, &odo, &address, &status); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		loc.Timestamp = loc.Timestamp.UTC()
		loc.ProviderVehicleID = providerVehicleID.String
		loc.Altitude = floatPtr(alt)
		loc.Accuracy = floatPtr(acc)
		loc.FuelLevel = floatPtr(fuel)
		loc.Temperature = floatPtr(temp)
		loc.Odometer = floatPtr(odo)
		loc.Address = stringPtr(address)
		loc.Status = models.VehicleStatus(status)
		out = append(out, loc)
	}
	return out, rows.Err()
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
