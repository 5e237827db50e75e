// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

/*
Package models defines the canonical, vendor-neutral types every Fleetlink
component exchanges.

Adapters translate vendor wire formats into these types before returning, so
nothing outside internal/provider ever sees a vendor-native shape.

Canonical units:

  - Speed: km/h
  - Distance and odometer: km
  - Fuel level: percent, 0-100
  - Heading: degrees, 0-360

Key types:

  - ProviderConfig: one configured vendor connection
  - VehicleLocation: one position report, stamped with vendor time
  - GPSAlert: one safety alert in the closed AlertType taxonomy
  - SyncStatus / SyncResult: outcome of one sync tick
  - RouteHistory: segment derived on demand from a vendor history endpoint

Validation uses struct tags checked by internal/validation; each type exposes a
Validate method returning a *fleeterr.ValidationError.
*/
package models
