// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

// Package pgstore implements store.Store on PostgreSQL through a pgx pool.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tomtom215/fleetlink/internal/fleeterr"
	"github.com/tomtom215/fleetlink/internal/logging"
	"github.com/tomtom215/fleetlink/internal/models"
	"github.com/tomtom215/fleetlink/internal/store"
)

// Store is the PostgreSQL-backed store.
type Store struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

// New connects to dsn, verifies the connection and creates the schema.
func New(ctx context.Context, dsn string, maxConns int32) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create db pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	logging.Info().
		Str("host", poolCfg.ConnConfig.Host).
		Int32("max_conns", poolCfg.MaxConns).
		Msg("PostgreSQL store ready")
	return s, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS vehicle_locations (
		vehicle_id          TEXT             NOT NULL,
		ts                  TIMESTAMPTZ      NOT NULL,
		provider            TEXT             NOT NULL,
		provider_vehicle_id TEXT,
		latitude            DOUBLE PRECISION NOT NULL,
		longitude           DOUBLE PRECISION NOT NULL,
		speed               DOUBLE PRECISION NOT NULL,
		heading             DOUBLE PRECISION NOT NULL,
		altitude            DOUBLE PRECISION,
		accuracy            DOUBLE PRECISION,
		fuel_level          DOUBLE PRECISION,
		temperature         DOUBLE PRECISION,
		odometer            DOUBLE PRECISION,
		address             TEXT,
		status              TEXT             NOT NULL,
		PRIMARY KEY (vehicle_id, ts)
	)`,
	`CREATE TABLE IF NOT EXISTS gps_alerts (
		id              TEXT        PRIMARY KEY,
		vehicle_id      TEXT        NOT NULL,
		provider        TEXT        NOT NULL,
		alert_type      TEXT        NOT NULL,
		severity        TEXT        NOT NULL,
		message         TEXT        NOT NULL DEFAULT '',
		ts              TIMESTAMPTZ NOT NULL,
		acknowledged    BOOLEAN     NOT NULL DEFAULT false,
		acknowledged_by TEXT,
		acknowledged_at TIMESTAMPTZ,
		metadata        JSONB
	)`,
	`CREATE INDEX IF NOT EXISTS gps_alerts_open_idx ON gps_alerts (vehicle_id, ts DESC) WHERE NOT acknowledged`,
	`CREATE TABLE IF NOT EXISTS providers (
		id         TEXT        PRIMARY KEY,
		type       TEXT        NOT NULL,
		config     JSONB       NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
}

func (s *Store) migrate(ctx context.Context) error {
	for _, q := range schema {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("postgres schema: %w", err)
		}
	}
	return nil
}

// Ping checks the pool.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases every pooled connection.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// UpsertLocation inserts or replaces the reading for (VehicleID, Timestamp).
func (s *Store) UpsertLocation(ctx context.Context, loc *models.VehicleLocation) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO vehicle_locations (
			vehicle_id, ts, provider, provider_vehicle_id, latitude, longitude, speed, heading,
			altitude, accuracy, fuel_level, temperature, odometer, address, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
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
			status = EXCLUDED.status`,
		loc.VehicleID, loc.Timestamp.UTC(), loc.Provider, models.String(loc.ProviderVehicleID),
		loc.Latitude, loc.Longitude, loc.Speed, loc.Heading,
		loc.Altitude, loc.Accuracy, loc.FuelLevel, loc.Temperature, loc.Odometer, loc.Address,
		string(loc.Status),
	)
	if err != nil {
		return fmt.Errorf("upsert location %s: %w", loc.VehicleID, err)
	}
	return nil
}

// QueryHistory returns readings in [start, end] oldest first.
func (s *Store) QueryHistory(ctx context.Context, vehicleID string, start, end time.Time, limit int) ([]models.VehicleLocation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT vehicle_id, ts, provider, provider_vehicle_id, latitude, longitude, speed, heading,
		       altitude, accuracy, fuel_level, temperature, odometer, address, status
		FROM vehicle_locations
		WHERE vehicle_id = $1 AND ts >= $2 AND ts <= $3
		ORDER BY ts ASC
		LIMIT $4`,
		vehicleID, start.UTC(), end.UTC(), store.ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query history for %s: %w", vehicleID, err)
	}
	defer rows.Close()

	var out []models.VehicleLocation
	for rows.Next() {
		var (
			loc               models.VehicleLocation
			providerVehicleID *string
			status            string
		)
		if err := rows.Scan(&loc.VehicleID, &loc.Timestamp, &loc.Provider, &providerVehicleID,
			&loc.Latitude, &loc.Longitude, &loc.Speed, &loc.Heading,
			&loc.Altitude, &loc.Accuracy, &loc.FuelLevel, &loc.Temperature, &loc.Odometer,
			&loc.Address, &status); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		loc.Timestamp = loc.Timestamp.UTC()
		if providerVehicleID != nil {
			loc.ProviderVehicleID = *providerVehicleID
		}
		loc.Status = models.VehicleStatus(status)
		out = append(out, loc)
	}
	return out, rows.Err()
}

const alertColumns = `id, vehicle_id, provider, alert_type, severity, message, ts,
	acknowledged, acknowledged_by, acknowledged_at, metadata`

// InsertAlertIfAbsent stores the alert unless one with the same id exists.
func (s *Store) InsertAlertIfAbsent(ctx context.Context, alert *models.GPSAlert) (bool, error) {
	var meta []byte
	if len(alert.Metadata) > 0 {
		b, err := json.Marshal(alert.Metadata)
		if err != nil {
			return false, fmt.Errorf("encode alert metadata: %w", err)
		}
		meta = b
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO gps_alerts (`+alertColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING`,
		alert.ID, alert.VehicleID, alert.Provider, string(alert.Type), string(alert.Severity),
		alert.Message, alert.Timestamp.UTC(), alert.Acknowledged,
		models.String(alert.AcknowledgedBy), alert.AcknowledgedAt, meta,
	)
	if err != nil {
		return false, fmt.Errorf("insert alert %s: %w", alert.ID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetAlert returns one alert by id.
func (s *Store) GetAlert(ctx context.Context, id string) (*models.GPSAlert, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+alertColumns+` FROM gps_alerts WHERE id = $1`, id)
	alert, err := scanAlert(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fleeterr.NewNotFound("alert", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get alert %s: %w", id, err)
	}
	return alert, nil
}

// GetUnacknowledgedAlerts returns open alerts newest first.
func (s *Store) GetUnacknowledgedAlerts(ctx context.Context, vehicleID string) ([]models.GPSAlert, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+alertColumns+` FROM gps_alerts
		WHERE NOT acknowledged AND ($1 = '' OR vehicle_id = $1)
		ORDER BY ts DESC, id ASC`, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("query open alerts: %w", err)
	}
	defer rows.Close()

	var out []models.GPSAlert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		out = append(out, *alert)
	}
	return out, rows.Err()
}

// AcknowledgeAlert transitions an open alert; the first acknowledgement wins.
func (s *Store) AcknowledgeAlert(ctx context.Context, id, userID string, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE gps_alerts
		SET acknowledged = true, acknowledged_by = $2, acknowledged_at = $3
		WHERE id = $1 AND NOT acknowledged`,
		id, userID, at.UTC())
	if err != nil {
		return false, fmt.Errorf("acknowledge alert %s: %w", id, err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM gps_alerts WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("acknowledge alert %s: %w", id, err)
	}
	if !exists {
		return false, fleeterr.NewNotFound("alert", id)
	}
	return false, nil
}

func scanAlert(row pgx.Row) (*models.GPSAlert, error) {
	var (
		a        models.GPSAlert
		typ, sev string
		ackBy    *string
		meta     []byte
	)
	if err := row.Scan(&a.ID, &a.VehicleID, &a.Provider, &typ, &sev, &a.Message, &a.Timestamp,
		&a.Acknowledged, &ackBy, &a.AcknowledgedAt, &meta); err != nil {
		return nil, err
	}
	a.Type = models.AlertType(typ)
	a.Severity = models.AlertSeverity(sev)
	a.Timestamp = a.Timestamp.UTC()
	if ackBy != nil {
		a.AcknowledgedBy = *ackBy
	}
	if a.AcknowledgedAt != nil {
		t := a.AcknowledgedAt.UTC()
		a.AcknowledgedAt = &t
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &a.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata of %s: %w", a.ID, err)
		}
	}
	return &a, nil
}

// SaveProvider stores the configuration as a JSONB document.
func (s *Store) SaveProvider(ctx context.Context, cfg *models.ProviderConfig) error {
	doc, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode provider %s: %w", cfg.ID, err)
	}
	updated := cfg.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO providers (id, type, config, updated_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			type = EXCLUDED.type, config = EXCLUDED.config, updated_at = EXCLUDED.updated_at`,
		cfg.ID, string(cfg.Type), doc, updated.UTC())
	if err != nil {
		return fmt.Errorf("save provider %s: %w", cfg.ID, err)
	}
	return nil
}

// ListProviders returns saved configurations ordered by id.
func (s *Store) ListProviders(ctx context.Context) ([]models.ProviderConfig, error) {
	rows, err := s.pool.Query(ctx, `SELECT config FROM providers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	defer rows.Close()

	var out []models.ProviderConfig
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan provider: %w", err)
		}
		var cfg models.ProviderConfig
		if err := json.Unmarshal(doc, &cfg); err != nil {
			return nil, fmt.Errorf("decode provider: %w", err)
		}
		out = append(out, cfg)
	}
	return out, rows.Err()
}

// DeleteProvider removes a saved configuration.
func (s *Store) DeleteProvider(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM providers WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete provider %s: %w", id, err)
	}
	return nil
}
