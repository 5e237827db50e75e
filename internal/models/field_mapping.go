// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package models

import (
	"strings"

	"github.com/tomtom215/fleetlink/internal/fleeterr"
)

// Auth schemes understood by the generic adapter.
const (
	AuthSchemeHeader = "header"
	AuthSchemeBearer = "bearer"
	AuthSchemeQuery  = "query"
)

// Unit names accepted in a FieldMapping.
const (
	SpeedKmh = "kmh"
	SpeedMph = "mph"
	SpeedMps = "ms"

	DistanceKm    = "km"
	DistanceMiles = "mi"
	DistanceMeter = "m"

	FuelPercent  = "percent"
	FuelFraction = "fraction"

	TimeRFC3339 = "rfc3339"
	TimeUnix    = "unix"
	TimeUnixMs  = "unix_ms"
)

// Canonical location field names used as FieldMapping.Fields keys.
const (
	FieldVehicleID   = "vehicleId"
	FieldLatitude    = "latitude"
	FieldLongitude   = "longitude"
	FieldSpeed       = "speed"
	FieldHeading     = "heading"
	FieldAltitude    = "altitude"
	FieldAccuracy    = "accuracy"
	FieldFuelLevel   = "fuelLevel"
	FieldTemperature = "temperature"
	FieldOdometer    = "odometer"
	FieldAddress     = "address"
	FieldStatus      = "status"
	FieldTimestamp   = "timestamp"
)

// Canonical alert field names used as FieldMapping.AlertFields keys.
const (
	AlertFieldID        = "id"
	AlertFieldVehicleID = "vehicleId"
	AlertFieldCode      = "code"
	AlertFieldSeverity  = "severity"
	AlertFieldMessage   = "message"
	AlertFieldTimestamp = "timestamp"
)

// FieldMapping describes a vendor to the generic adapter: where its endpoints
// live, how it authenticates, which dotted JSON paths hold each canonical
// field and which units it reports in.
//
// Endpoint templates may contain {vehicleId}, {alertId}, {start} and {end}.
type FieldMapping struct {
	AuthScheme string `json:"authScheme" koanf:"auth_scheme"`
	AuthHeader string `json:"authHeader,omitempty" koanf:"auth_header"`
	AuthQuery  string `json:"authQuery,omitempty" koanf:"auth_query"`

	VehiclesPath    string `json:"vehiclesPath" koanf:"vehicles_path"`
	VehiclePath     string `json:"vehiclePath,omitempty" koanf:"vehicle_path"`
	AlertsPath      string `json:"alertsPath,omitempty" koanf:"alerts_path"`
	HistoryPath     string `json:"historyPath,omitempty" koanf:"history_path"`
	AcknowledgePath string `json:"acknowledgePath,omitempty" koanf:"acknowledge_path"`
	GeofencePath    string `json:"geofencePath,omitempty" koanf:"geofence_path"`

	// Dotted paths to the array inside each list response; "" means the body is the array.
	VehiclesRoot string `json:"vehiclesRoot,omitempty" koanf:"vehicles_root"`
	AlertsRoot   string `json:"alertsRoot,omitempty" koanf:"alerts_root"`
	HistoryRoot  string `json:"historyRoot,omitempty" koanf:"history_root"`

	Fields      map[string]string `json:"fields" koanf:"fields"`
	AlertFields map[string]string `json:"alertFields,omitempty" koanf:"alert_fields"`

	SpeedUnit       string `json:"speedUnit,omitempty" koanf:"speed_unit"`
	DistanceUnit    string `json:"distanceUnit,omitempty" koanf:"distance_unit"`
	FuelUnit        string `json:"fuelUnit,omitempty" koanf:"fuel_unit"`
	TimestampFormat string `json:"timestampFormat,omitempty" koanf:"timestamp_format"`

	StatusMap   map[string]VehicleStatus `json:"statusMap,omitempty" koanf:"status_map"`
	AlertCodes  map[string]AlertType     `json:"alertCodes,omitempty" koanf:"alert_codes"`
	SeverityMap map[string]AlertSeverity `json:"severityMap,omitempty" koanf:"severity_map"`
}

// Clone returns a deep copy.
func (m FieldMapping) Clone() FieldMapping {
	out := m
	out.Fields = cloneMap(m.Fields)
	out.AlertFields = cloneMap(m.AlertFields)
	out.StatusMap = cloneMap(m.StatusMap)
	out.AlertCodes = cloneMap(m.AlertCodes)
	out.SeverityMap = cloneMap(m.SeverityMap)
	return out
}

func cloneMap[V any](in map[string]V) map[string]V {
	if in == nil {
		return nil
	}
	out := make(map[string]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Validate checks the mapping and returns every problem found, or nil.
func (m *FieldMapping) Validate() *fleeterr.ValidationError {
	verr := &fleeterr.ValidationError{}

	switch m.AuthScheme {
	case AuthSchemeHeader:
		if m.AuthHeader == "" {
			verr.Add("authHeader", "required", "authHeader is required when authScheme is header")
		}
	case AuthSchemeQuery:
		if m.AuthQuery == "" {
			verr.Add("authQuery", "required", "authQuery is required when authScheme is query")
		}
	case AuthSchemeBearer:
	default:
		verr.Add("authScheme", "oneof", "authScheme must be one of: header bearer query")
	}

	if !strings.HasPrefix(m.VehiclesPath, "/") {
		verr.Add("vehiclesPath", "required", "vehiclesPath must be an absolute path")
	}
	for _, f := range []string{FieldVehicleID, FieldLatitude, FieldLongitude, FieldTimestamp} {
		if m.Fields[f] == "" {
			verr.Add("fields."+f, "required", "fields."+f+" is required")
		}
	}

	checkOneOf(verr, "speedUnit", m.SpeedUnit, SpeedKmh, SpeedMph, SpeedMps)
	checkOneOf(verr, "distanceUnit", m.DistanceUnit, DistanceKm, DistanceMiles, DistanceMeter)
	checkOneOf(verr, "fuelUnit", m.FuelUnit, FuelPercent, FuelFraction)
	checkOneOf(verr, "timestampFormat", m.TimestampFormat, TimeRFC3339, TimeUnix, TimeUnixMs)

	for code, t := range m.AlertCodes {
		if !t.Valid() {
			verr.Add("alertCodes."+code, "oneof", "alertCodes."+code+" maps to unknown alert type "+string(t))
		}
	}

	if verr.HasViolations() {
		return verr
	}
	return nil
}

// checkOneOf allows empty values, which mean the canonical default.
func checkOneOf(verr *fleeterr.ValidationError, field, value string, allowed ...string) {
	if value == "" {
		return
	}
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	verr.Add(field, "oneof", field+" must be one of: "+strings.Join(allowed, " "))
}
