// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

/*
Command fleetlink runs the vehicle telemetry integration server.

Startup order:

 1. Configuration: .env, config file and environment via Koanf; logging via zerolog
 2. Store: DuckDB (default), PostgreSQL or Badger, selected by STORE_BACKEND
 3. Live state cache, mirrored to Redis when REDIS_ENABLED=true
 4. Event bus: in-memory, external NATS, or embedded NATS with JetStream
 5. Provider registry and sync engine; saved and configured providers are
    restored and enabled ones scheduled
 6. Authentication (none, jwt, basic), Casbin authorization and the audit log
 7. Admin API router and WebSocket hub
 8. Supervisor tree, until SIGINT or SIGTERM

Supervision:

	fleetlink
	├── data-layer       store-gc (badger only), event-bus
	├── messaging-layer  websocket-hub, sync-engine
	└── api-layer        http-server

Core environment variables:

	HTTP_PORT=8080
	STORE_BACKEND=duckdb          # duckdb, postgres, badger
	DUCKDB_PATH=data/fleetlink.duckdb
	POSTGRES_DSN=postgres://...
	REDIS_ENABLED=false
	NATS_ENABLED=false
	NATS_EMBEDDED_SERVER=false
	AUTH_MODE=none                # none, jwt, basic
	JWT_SECRET=<32+ chars>
	AUDIT_RETENTION=10000         # audit events kept in memory
	LOG_LEVEL=info
	LOG_FORMAT=json

Providers can be seeded from the config file's providers list; rows already
in the store win over seeds with the same id.

Issuing a token for the admin API in jwt mode:

	fleetlink token --user alice --role operator --ttl 12h
*/
package main
