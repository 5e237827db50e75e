// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/tomtom215/fleetlink/internal/config"
	"github.com/tomtom215/fleetlink/internal/store"
	"github.com/tomtom215/fleetlink/internal/store/storetest"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(&config.DatabaseConfig{Threads: 1, MaxMemory: "256MB"})
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return setupTestDB(t)
	})
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "fleet.duckdb")
	cfg := &config.DatabaseConfig{Path: path, Threads: 1, MaxMemory: "256MB"}
	ctx := context.Background()

	db, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertLocation(ctx, storetest.Location("v1", 0)); err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	db, err = New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	got, err := db.QueryHistory(ctx, "v1", start, start.Add(24*time.Hour), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("rows after reopen = %d, want 1", len(got))
	}
}

func TestAlertWithoutMetadata(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	a := storetest.Alert("nt:bare", "v1", 0)
	a.Metadata = nil
	if _, err := db.InsertAlertIfAbsent(ctx, a); err != nil {
		t.Fatal(err)
	}
	got, err := db.GetAlert(ctx, "nt:bare")
	if err != nil {
		t.Fatal(err)
	}
	if got.Metadata != nil {
		t.Errorf("metadata = %v, want nil", got.Metadata)
	}
}

func TestDisplayPath(t *testing.T) {
	if got := displayPath(""); got != ":memory:" {
		t.Errorf("displayPath(\"\") = %q", got)
	}
	if got := displayPath("/data/x.duckdb"); got != "/data/x.duckdb" {
		t.Errorf("displayPath = %q", got)
	}
}
