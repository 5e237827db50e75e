// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

/*
Package websocket carries live-state subscriptions over WebSocket connections.

Each connection is bound to one livestate.Subscription:

	┌──────────────┐   Subscribe    ┌──────────┐
	│ livestate    │ ─────────────► │  Client  │ ◄──► browser
	│ Cache        │   Events()     │ (2 pumps)│
	└──────────────┘                └────┬─────┘
	                                     │ Register / Unregister
	                                ┌────┴─────┐
	                                │   Hub    │
	                                └──────────┘

Each client has two goroutines:
  - readPump: reads client frames, answers {"type":"ping"}, detects disconnects
  - writePump: forwards subscription events and sends keepalive pings

Messages sent to the client are {"type": ..., "data": ...} with these types:

	snapshot        every cached location, always the first message
	locationUpdate  one VehicleLocation
	alertRaised     one GPSAlert
	pong            reply to a client ping

A broken connection unregisters the client, which closes its subscription.
When the cache drops a slow subscriber the client receives a close frame and
is expected to reconnect for a fresh snapshot.

The hub itself only tracks clients. RunWithContext is supervised and closes
every client on shutdown.
*/
package websocket
