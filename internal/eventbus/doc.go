// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

/*
Package eventbus publishes fleet events to Watermill topics so other services
can react to new positions and alerts without polling the API.

Topics:

	fleet.location.updated  one VehicleLocation per persisted reading
	fleet.alert.raised      one GPSAlert, only when newly inserted

Two transports share the Bus type:

  - NewInMemory: a Watermill gochannel, used when NATS is disabled and in tests
  - NewNATS: Watermill NATS JetStream publisher writing to the FLEET_EVENTS
    stream; alert ids are used as Nats-Msg-Id so a replayed alert is
    deduplicated by the server

EmbeddedServer starts an in-process nats-server with JetStream for single
node deployments.

Publishing is best-effort from the sync engine's point of view: a failed
publish is logged and counted, never retried by the tick.
*/
package eventbus
