// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package kvstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/fleetlink/internal/store"
	"github.com/tomtom215/fleetlink/internal/store/storetest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("", true)
	if err != nil {
		t.Fatalf("open in-memory badger: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return newTestStore(t)
	})
}

func TestHistoryDoesNotLeakAcrossVehiclePrefixes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// "v1" is a byte prefix of "v10"; the separator keeps their ranges apart.
	if err := s.UpsertLocation(ctx, storetest.Location("v1", 0)); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertLocation(ctx, storetest.Location("v10", 0)); err != nil {
		t.Fatal(err)
	}

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	got, err := s.QueryHistory(ctx, "v1", start, start.AddDate(1, 0, 0), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].VehicleID != "v1" {
		t.Errorf("history(v1) = %+v", got)
	}
}

func TestConcurrentInsertAlertInsertsOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		inserted int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.InsertAlertIfAbsent(ctx, storetest.Alert("nt:race", "v1", 0))
			if err != nil {
				// A conflict that lost both attempts is still "not inserted".
				return
			}
			if ok {
				mu.Lock()
				inserted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if inserted != 1 {
		t.Errorf("inserted %d times, want exactly 1", inserted)
	}
}

func TestPingAfterClose(t *testing.T) {
	s, err := Open("", true)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping open store: %v", err)
	}
	_ = s.Close()
	if err := s.Ping(context.Background()); err == nil {
		t.Error("Ping after Close should fail")
	}
}
