// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

/*
Package sync schedules and runs provider synchronization.

The Engine owns one actor goroutine per scheduled provider. Each actor runs
an immediate tick when started and then one tick per interval until stopped.
A tick calls the adapter's Sync, persists every location and alert through
the store, pushes accepted records into the live state cache and publishes
them on the event bus.

Per-provider state:

	stopped --schedule--> scheduled --begin--> running --resume--> scheduled
	scheduled --unschedule--> stopped
	stopped --begin--> running --finish--> stopped   (manual sync)

Transitions are driven through a looplab/fsm state machine, which is what
GetStatus reports.

Single-flight:

Each provider holds a one-slot token. A tick that cannot take it is skipped
and recorded with status "skipped"; a manual SyncOnce in that situation
returns fleeterr.ErrSyncInProgress instead.

Cancellation:

StopSync and StopAll cancel future ticks only. A tick already running keeps a
context detached from the loop and finishes persisting and broadcasting what
it fetched. Vendor transport timeouts bound how long that can take.

Thread Safety:

All Engine methods are safe for concurrent use.
*/
package sync
