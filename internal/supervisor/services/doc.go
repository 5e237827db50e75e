// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

/*
Package services adapts Fleetlink components to suture.Service.

Each wrapper accepts a small interface rather than the concrete component,
so this package imports none of them and tests use fakes:

  - HTTPServerService: *http.Server, ListenAndServe plus graceful Shutdown
  - WebSocketHubService: *websocket.Hub, delegates to RunWithContext
  - SyncEngineService: *sync.Engine, calls StopAll with a bounded context on cancel
  - StoreGCService: *kvstore.Store, periodic Badger value log GC
  - EventBusService: *eventbus.Bus and optional *eventbus.EmbeddedServer

Every wrapper returns ctx.Err() on a clean shutdown and implements
fmt.Stringer so supervisor logs name it.
*/
package services
