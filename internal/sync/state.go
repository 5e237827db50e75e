// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package sync

import (
	"context"

	"github.com/looplab/fsm"

	"github.com/tomtom215/fleetlink/internal/logging"
)

const (
	stateStopped   = "stopped"
	stateScheduled = "scheduled"
	stateRunning   = "running"
)

const (
	eventSchedule   = "schedule"
	eventUnschedule = "unschedule"
	eventBegin      = "begin"
	eventResume     = "resume"
	eventFinish     = "finish"
)

// stateMachine tracks one provider's scheduling state.
// Callers serialize fire through the Engine mutex.
type stateMachine struct {
	providerID string
	fsm        *fsm.FSM
}

func newStateMachine(providerID string) *stateMachine {
	return &stateMachine{
		providerID: providerID,
		fsm: fsm.NewFSM(
			stateStopped,
			fsm.Events{
				{Name: eventSchedule, Src: []string{stateStopped}, Dst: stateScheduled},
				{Name: eventUnschedule, Src: []string{stateScheduled}, Dst: stateStopped},
				{Name: eventBegin, Src: []string{stateStopped, stateScheduled}, Dst: stateRunning},
				{Name: eventResume, Src: []string{stateRunning}, Dst: stateScheduled},
				{Name: eventFinish, Src: []string{stateRunning}, Dst: stateStopped},
			},
			fsm.Callbacks{
				"enter_state": func(_ context.Context, e *fsm.Event) {
					logging.Debug().
						Str("provider_id", providerID).
						Str("from", e.Src).
						Str("to", e.Dst).
						Msg("Sync state transition")
				},
			},
		),
	}
}

func (m *stateMachine) Current() string {
	return m.fsm.Current()
}

// fire applies event. An event that is not valid from the current state is
// logged and ignored.
func (m *stateMachine) fire(event string) {
	if !m.fsm.Can(event) {
		logging.Warn().
			Str("provider_id", m.providerID).
			Str("event", event).
			Str("state", m.fsm.Current()).
			Msg("Ignoring invalid sync state transition")
		return
	}
	if err := m.fsm.Event(context.Background(), event); err != nil {
		logging.Warn().Err(err).Str("provider_id", m.providerID).Str("event", event).Msg("Sync state transition failed")
	}
}
