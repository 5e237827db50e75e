// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

// Package audit records who changed what through the admin API.
package audit

import (
	"context"
	"time"
)

// Action names an audited admin operation.
type Action string

const (
	ActionProviderCreate   Action = "provider.create"
	ActionProviderUpdate   Action = "provider.update"
	ActionProviderDelete   Action = "provider.delete"
	ActionProviderSync     Action = "provider.sync"
	ActionAlertAcknowledge Action = "alert.acknowledge"
	ActionGeofenceSet      Action = "vehicle.geofence"
)

// Outcome is the result of an audited action.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	// OutcomeDenied means authorization refused the caller.
	OutcomeDenied Outcome = "denied"
)

// Actor is the caller behind an event.
type Actor struct {
	ID         string   `json:"id"`
	Username   string   `json:"username,omitempty"`
	Roles      []string `json:"roles,omitempty"`
	AuthMethod string   `json:"authMethod,omitempty"`
}

// Target is the resource an event acted on.
type Target struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Event is one audit record.
type Event struct {
	ID        string                 `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	Action    Action                 `json:"action"`
	Outcome   Outcome                `json:"outcome"`
	Actor     Actor                  `json:"actor"`
	Target    Target                 `json:"target"`
	Error     string                 `json:"error,omitempty"`
	RequestID string                 `json:"requestId,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// QueryFilter selects events. Zero fields match everything.
type QueryFilter struct {
	Action   Action
	Outcome  Outcome
	ActorID  string
	TargetID string
	Since    time.Time
	// Limit caps the result; zero means DefaultQueryLimit.
	Limit int
}

// DefaultQueryLimit applies when QueryFilter.Limit is zero.
const DefaultQueryLimit = 100

// Store persists audit events.
type Store interface {
	Save(ctx context.Context, event *Event) error
	// Query returns matching events, newest first.
	Query(ctx context.Context, filter QueryFilter) ([]Event, error)
}
