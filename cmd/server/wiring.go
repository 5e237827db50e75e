// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/fleetlink/internal/config"
	"github.com/tomtom215/fleetlink/internal/database"
	"github.com/tomtom215/fleetlink/internal/logging"
	"github.com/tomtom215/fleetlink/internal/models"
	"github.com/tomtom215/fleetlink/internal/provider"
	"github.com/tomtom215/fleetlink/internal/registry"
	"github.com/tomtom215/fleetlink/internal/store"
	"github.com/tomtom215/fleetlink/internal/store/kvstore"
	"github.com/tomtom215/fleetlink/internal/store/pgstore"
)

// openedStore is the durable store plus, for Badger, the handle the value
// log GC service needs.
type openedStore struct {
	store.Store
	badger *kvstore.Store
}

// openStore opens the backend selected by cfg.Backend.
func openStore(ctx context.Context, cfg *config.DatabaseConfig) (*openedStore, error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		st, err := pgstore.New(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns)
		if err != nil {
			return nil, err
		}
		return &openedStore{Store: st}, nil

	case config.BackendBadger:
		st, err := kvstore.Open(cfg.BadgerDir, cfg.BadgerInMemory)
		if err != nil {
			return nil, err
		}
		return &openedStore{Store: st, badger: st}, nil

	case config.BackendDuckDB, "":
		db, err := database.New(cfg)
		if err != nil {
			return nil, err
		}
		return &openedStore{Store: db}, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// providerOptions maps the vendor transport settings onto adapter options.
func providerOptions(cfg config.SyncConfig) provider.Options {
	return provider.Options{
		Timeout:        cfg.RequestTimeout,
		MaxRetries:     cfg.MaxRetries,
		BackoffStep:    cfg.BackoffStep,
		RateLimit:      cfg.RateLimit,
		RateBurst:      cfg.RateBurst,
		BreakerTimeout: cfg.BreakerTimeout,
	}
}

// Scheduler is the part of the sync engine restore needs.
type Scheduler interface {
	StartSync(ctx context.Context, providerID string, interval time.Duration) error
}

// restoreProviders registers every saved provider plus any configured seed
// not yet saved, and schedules the enabled ones. A provider that fails to
// build is logged and skipped so one bad row cannot keep the service down.
// It returns how many providers were registered.
func restoreProviders(ctx context.Context, st store.Store, reg *registry.Registry, sched Scheduler, seeds []models.ProviderConfig) (int, error) {
	saved, err := st.ListProviders(ctx)
	if err != nil {
		return 0, fmt.Errorf("list saved providers: %w", err)
	}

	known := make(map[string]bool, len(saved))
	for i := range saved {
		known[saved[i].ID] = true
	}

	now := time.Now().UTC()
	for i := range seeds {
		seed := seeds[i].Clone()
		if known[seed.ID] {
			continue
		}
		if err := reg.Validate(&seed); err != nil {
			logging.Warn().Err(err).Str("provider_id", seed.ID).Msg("Skipping invalid configured provider")
			continue
		}
		seed.CreatedAt, seed.UpdatedAt = now, now
		if err := st.SaveProvider(ctx, &seed); err != nil {
			return 0, fmt.Errorf("save configured provider %s: %w", seed.ID, err)
		}
		known[seed.ID] = true
		saved = append(saved, seed)
		logging.Info().Str("provider_id", seed.ID).Str("type", string(seed.Type)).Msg("Configured provider saved")
	}

	registered := 0
	for i := range saved {
		cfg := saved[i]
		if _, err := reg.CreateOrGet(cfg); err != nil {
			logging.Error().Err(err).Str("provider_id", cfg.ID).Msg("Failed to build provider adapter")
			continue
		}
		registered++

		if !cfg.Enabled {
			continue
		}
		if err := sched.StartSync(ctx, cfg.ID, cfg.Interval()); err != nil {
			logging.Error().Err(err).Str("provider_id", cfg.ID).Msg("Failed to schedule provider sync")
		}
	}
	return registered, nil
}
