// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package models

import "time"

// SyncState is the outcome recorded for a provider's latest tick.
type SyncState string

const (
	SyncSuccess SyncState = "success"
	SyncError   SyncState = "error"
	SyncPending SyncState = "pending"
	// SyncSkipped marks a tick dropped because the previous one was still running.
	// It is informational, not a failure.
	SyncSkipped SyncState = "skipped"
)

// SyncStatus is recomputed on every tick and read, never written, by the API.
type SyncStatus struct {
	ProviderID      string    `json:"providerId"`
	LastSync        time.Time `json:"lastSync"`
	NextSync        time.Time `json:"nextSync"`
	VehiclesUpdated int       `json:"vehiclesUpdated"`
	AlertsGenerated int       `json:"alertsGenerated"`
	Status          SyncState `json:"status"`
	ErrorMessage    string    `json:"errorMessage,omitempty"`
	DurationMs      int64     `json:"durationMs"`
}

// SyncResult is what an adapter's Sync returns and what a manual sync reports.
type SyncResult struct {
	Vehicles []VehicleLocation `json:"vehicles"`
	Alerts   []GPSAlert        `json:"alerts"`
	Status   SyncStatus        `json:"status"`
}

// EngineStatus is the scheduler's view of one provider.
type EngineStatus struct {
	ProviderID   string `json:"providerId"`
	IsScheduled  bool   `json:"isScheduled"`
	IsRunning    bool   `json:"isRunning"`
	State        string `json:"state"`
	IntervalSecs int    `json:"intervalSeconds"`
}
