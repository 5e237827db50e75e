// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

/*
Package supervisor provides process supervision for Fleetlink using suture v4.

The tree has a root supervisor named "fleetlink" with three children:

	fleetlink
	├── data-layer       store value log GC, event bus and embedded NATS
	├── messaging-layer  sync engine, WebSocket hub
	└── api-layer        admin HTTP server

Each child restarts its own services with exponential backoff once
FailureThreshold failures accumulate (decaying at FailureDecay per second).
Supervisor events are logged through sutureslog, bridged to zerolog by
logging.NewSlogLogger.

Usage:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddMessagingService(services.NewSyncEngineService(engine, 30*time.Second))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	return tree.Serve(ctx)

Service wrappers live in the services subpackage.
*/
package supervisor
