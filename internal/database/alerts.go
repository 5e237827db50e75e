// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/fleetlink/internal/fleeterr"
	"github.com/tomtom215/fleetlink/internal/models"
)

const alertColumns = `id, vehicle_id, provider, alert_type, severity, message, ts,
	acknowledged, acknowledged_by, acknowledged_at, metadata`

// InsertAlertIfAbsent stores the alert unless one with the same id exists.
func (db *DB) InsertAlertIfAbsent(ctx context.Context, alert *models.GPSAlert) (bool, error) {
	meta, err := marshalMetadata(alert.Metadata)
	if err != nil {
		return false, err
	}

	var ackAt sql.NullTime
	if alert.AcknowledgedAt != nil {
		ackAt = sql.NullTime{Time: alert.AcknowledgedAt.UTC(), Valid: true}
	}

	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO gps_alerts (`+alertColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`,
		alert.ID, alert.VehicleID, alert.Provider, string(alert.Type), string(alert.Severity),
		alert.Message, alert.Timestamp.UTC(), alert.Acknowledged,
		nullString(alert.AcknowledgedBy), ackAt, meta,
	)
	if err != nil {
		return false, fmt.Errorf("insert alert %s: %w", alert.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert alert %s: %w", alert.ID, err)
	}
	return n > 0, nil
}

// GetAlert returns one alert by id.
func (db *DB) GetAlert(ctx context.Context, id string) (*models.GPSAlert, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM gps_alerts WHERE id = ?`, id)
	alert, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fleeterr.NewNotFound("alert", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get alert %s: %w", id, err)
	}
	return alert, nil
}

// GetUnacknowledgedAlerts returns open alerts newest first.
func (db *DB) GetUnacknowledgedAlerts(ctx context.Context, vehicleID string) ([]models.GPSAlert, error) {
	query := `SELECT ` + alertColumns + ` FROM gps_alerts WHERE NOT acknowledged`
	var args []interface{}
	if vehicleID != "" {
		query += ` AND vehicle_id = ?`
		args = append(args, vehicleID)
	}
	query += ` ORDER BY ts DESC, id ASC`

	rows, err := db.conn.QueryContext(ctx, query, args...)
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

// AcknowledgeAlert transitions an open alert. The WHERE clause makes the
// first acknowledgement win when two callers race.
func (db *DB) AcknowledgeAlert(ctx context.Context, id, userID string, at time.Time) (bool, error) {
	res, err := db.conn.ExecContext(ctx, `
		UPDATE gps_alerts
		SET acknowledged = true, acknowledged_by = ?, acknowledged_at = ?
		WHERE id = ? AND NOT acknowledged`,
		userID, at.UTC(), id)
	if err != nil {
		return false, fmt.Errorf("acknowledge alert %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("acknowledge alert %s: %w", id, err)
	}
	if n > 0 {
		return true, nil
	}

	var exists bool
	if err := db.conn.QueryRowContext(ctx,
		`SELECT count(*) > 0 FROM gps_alerts WHERE id = ?`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("acknowledge alert %s: %w", id, err)
	}
	if !exists {
		return false, fleeterr.NewNotFound("alert", id)
	}
	return false, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAlert(row rowScanner) (*models.GPSAlert, error) {
	var (
		a        models.GPSAlert
		typ, sev string
		message  sql.NullString
		ackBy    sql.NullString
		ackAt    sql.NullTime
		meta     sql.NullString
	)
	if err := row.Scan(&a.ID, &a.VehicleID, &a.Provider, &typ, &sev, &message, &a.Timestamp,
		&a.Acknowledged, &ackBy, &ackAt, &meta); err != nil {
		return nil, err
	}
	a.Type = models.AlertType(typ)
	a.Severity = models.AlertSeverity(sev)
	a.Message = message.String
	a.Timestamp = a.Timestamp.UTC()
	a.AcknowledgedBy = ackBy.String
	if ackAt.Valid {
		t := ackAt.Time.UTC()
		a.AcknowledgedAt = &t
	}
	if meta.Valid && meta.String != "" {
		if err := json.Unmarshal([]byte(meta.String), &a.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata of %s: %w", a.ID, err)
		}
	}
	return &a, nil
}

func marshalMetadata(meta map[string]interface{}) (sql.NullString, error) {
	if len(meta) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode alert metadata: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}
