// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

/*
Package config loads Fleetlink configuration with Koanf v2.

Loading order (later layers override earlier ones):
 1. Built-in defaults (defaultConfig)
 2. Optional YAML file: CONFIG_PATH, else config.yaml / config.yml / /etc/fleetlink/config.yaml
 3. Environment variables listed in envMappings (unlisted variables are ignored)

A .env file in the working directory is read into the process environment
before layer 3 when present, so local development needs no exported variables.

Example config.yaml:

	server:
	  port: 8080
	database:
	  backend: duckdb
	  path: /data/fleetlink.duckdb
	providers:
	  - id: depot-north
	    type: navtrack
	    name: North depot
	    api_key: nt-123
	    api_url: https://api.navtrack.example
	    enabled: true
	    sync_interval: 30

Providers listed in the file are seeded into the store at boot when no
provider with the same id has been saved yet.
*/
package config
