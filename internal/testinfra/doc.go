// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

// Package testinfra starts throwaway PostgreSQL and Redis containers for the
// integration tests of the optional backends.
//
// Everything here is behind the integration build tag:
//
//	go test -tags integration ./internal/store/pgstore/ ./internal/livestate/redismirror/
//
//	func TestPostgres(t *testing.T) {
//	    testinfra.SkipIfNoDocker(t)
//	    pg, err := testinfra.NewPostgresContainer(ctx)
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    defer testinfra.CleanupContainer(t, ctx, pg)
//	    s, err := pgstore.New(ctx, pg.DSN, 4)
//	    // ...
//	}
//
// Tests are skipped when Docker is unavailable. The first run downloads the
// images; later runs use the local cache.
package testinfra
