// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/fleetlink/internal/models"
)

// SaveProvider stores the whole configuration as a JSON document.
func (db *DB) SaveProvider(ctx context.Context, cfg *models.ProviderConfig) error {
	doc, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode provider %s: %w", cfg.ID, err)
	}
	updated := cfg.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO providers (id, type, config, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			type = EXCLUDED.type,
			config = EXCLUDED.config,
			updated_at = EXCLUDED.updated_at`,
		cfg.ID, string(cfg.Type), string(doc), updated.UTC())
	if err != nil {
		return fmt.Errorf("save provider %s: %w", cfg.ID, err)
	}
	return nil
}

// ListProviders returns saved configurations ordered by id.
func (db *DB) ListProviders(ctx context.Context) ([]models.ProviderConfig, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT config FROM providers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	defer rows.Close()

	var out []models.ProviderConfig
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan provider: %w", err)
		}
		var cfg models.ProviderConfig
		if err := json.Unmarshal([]byte(doc), &cfg); err != nil {
			return nil, fmt.Errorf("decode provider: %w", err)
		}
		out = append(out, cfg)
	}
	return out, rows.Err()
}

// DeleteProvider removes a saved configuration.
func (db *DB) DeleteProvider(ctx context.Context, id string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM providers WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete provider %s: %w", id, err)
	}
	return nil
}
