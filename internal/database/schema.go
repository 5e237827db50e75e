// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations.
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, q := range schemaQueries {
		if _, err := db.conn.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}

var schemaQueries = []string{
	`CREATE TABLE IF NOT EXISTS vehicle_locations (
		vehicle_id          VARCHAR   NOT NULL,
		ts                  TIMESTAMP NOT NULL,
		provider            VARCHAR   NOT NULL,
		provider_vehicle_id VARCHAR,
		latitude            DOUBLE    NOT NULL,
		longitude           DOUBLE    NOT NULL,
		speed               DOUBLE    NOT NULL,
		heading             DOUBLE    NOT NULL,
		altitude            DOUBLE,
		accuracy            DOUBLE,
		fuel_level          DOUBLE,
		temperature         DOUBLE,
		odometer            DOUBLE,
		address             VARCHAR,
		status              VARCHAR   NOT NULL,
		PRIMARY KEY (vehicle_id, ts)
	)`,
	`CREATE TABLE IF NOT EXISTS gps_alerts (
		id              VARCHAR   PRIMARY KEY,
		vehicle_id      VARCHAR   NOT NULL,
		provider        VARCHAR   NOT NULL,
		alert_type      VARCHAR   NOT NULL,
		severity        VARCHAR   NOT NULL,
		message         VARCHAR,
		ts              TIMESTAMP NOT NULL,
		acknowledged    BOOLEAN   NOT NULL DEFAULT false,
		acknowledged_by VARCHAR,
		acknowledged_at TIMESTAMP,
		metadata        VARCHAR
	)`,
	`CREATE TABLE IF NOT EXISTS providers (
		id         VARCHAR   PRIMARY KEY,
		type       VARCHAR   NOT NULL,
		config     VARCHAR   NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
}
