// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

//go:build integration

package pgstore

import (
	"context"
	"testing"

	"github.com/tomtom215/fleetlink/internal/store"
	"github.com/tomtom215/fleetlink/internal/store/storetest"
	"github.com/tomtom215/fleetlink/internal/testinfra"
)

func TestStoreContract(t *testing.T) {
	testinfra.SkipIfNoDocker(t)
	ctx := context.Background()

	pg, err := testinfra.NewPostgresContainer(ctx)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	t.Cleanup(func() { testinfra.CleanupContainer(t, ctx, pg) })

	s, err := New(ctx, pg.DSN, 4)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })

	storetest.Run(t, func(t *testing.T) store.Store {
		if err := s.truncateAll(ctx); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		return s
	})
}

func (s *Store) truncateAll(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE vehicle_locations, gps_alerts, providers`)
	return err
}
