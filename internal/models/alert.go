// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/fleetlink/internal/validation"
)

// AlertType is the closed alert taxonomy. Vendor codes with no mapping become AlertCustom.
type AlertType string

const (
	AlertSpeeding          AlertType = "speeding"
	AlertHarshBraking      AlertType = "harsh_braking"
	AlertHarshAcceleration AlertType = "harsh_acceleration"
	AlertLowFuel           AlertType = "low_fuel"
	AlertEngineFault       AlertType = "engine_fault"
	AlertGeofenceViolation AlertType = "geofence_violation"
	AlertOffline           AlertType = "offline"
	AlertCustom            AlertType = "custom"
)

// Valid reports whether t is part of the taxonomy.
func (t AlertType) Valid() bool {
	switch t {
	case AlertSpeeding, AlertHarshBraking, AlertHarshAcceleration, AlertLowFuel,
		AlertEngineFault, AlertGeofenceViolation, AlertOffline, AlertCustom:
		return true
	}
	return false
}

// AlertSeverity ranks alerts.
type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

// Metadata keys adapters set on alerts.
const (
	MetaVendorCode    = "vendor_code"
	MetaVendorAlertID = "vendor_alert_id"
)

// GPSAlert is one canonical safety alert.
// It moves from unacknowledged to acknowledged exactly once.
type GPSAlert struct {
	ID             string                 `json:"id" validate:"required"`
	VehicleID      string                 `json:"vehicleId" validate:"required"`
	Provider       string                 `json:"provider" validate:"required"`
	Type           AlertType              `json:"type" validate:"required,oneof=speeding harsh_braking harsh_acceleration low_fuel engine_fault geofence_violation offline custom"`
	Severity       AlertSeverity          `json:"severity" validate:"required,oneof=low medium high critical"`
	Message        string                 `json:"message"`
	Timestamp      time.Time              `json:"timestamp" validate:"required"`
	Acknowledged   bool                   `json:"acknowledged"`
	AcknowledgedBy string                 `json:"acknowledgedBy,omitempty"`
	AcknowledgedAt *time.Time             `json:"acknowledgedAt,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// Validate checks the alert enums and required fields.
func (a *GPSAlert) Validate() error {
	if verr := validation.ValidateStruct(a); verr != nil {
		return verr
	}
	return nil
}

// Acknowledge marks the alert acknowledged by userID at the given time.
// It returns false, leaving the first acknowledgement intact, when the alert
// was already acknowledged.
func (a *GPSAlert) Acknowledge(userID string, at time.Time) bool {
	if a.Acknowledged {
		return false
	}
	a.Acknowledged = true
	a.AcknowledgedBy = userID
	t := at.UTC()
	a.AcknowledgedAt = &t
	return true
}

// alertNamespace seeds deterministic ids for vendors that send none.
var alertNamespace = uuid.MustParse("6f1c7c1e-4b7a-4d55-9c1f-2f0c5d7b9e10")

// AlertID builds the canonical alert id from the provider id and the vendor's id.
// Prefixing keeps ids from different vendors from colliding.
func AlertID(providerID, vendorAlertID string) string {
	return providerID + ":" + vendorAlertID
}

// VendorAlertID strips the provider prefix added by AlertID.
func VendorAlertID(providerID, alertID string) string {
	return strings.TrimPrefix(alertID, providerID+":")
}

// DerivedAlertID returns a stable id for an alert that arrived without one,
// so repeated syncs of the same vendor alert stay idempotent.
func DerivedAlertID(providerID, vehicleID, code string, ts time.Time) string {
	seed := strings.Join([]string{providerID, vehicleID, code, ts.UTC().Format(time.RFC3339Nano)}, "|")
	return AlertID(providerID, uuid.NewSHA1(alertNamespace, []byte(seed)).String())
}
