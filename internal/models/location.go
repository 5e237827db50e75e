// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package models

import (
	"math"
	"time"

	"github.com/tomtom215/fleetlink/internal/validation"
)

// VehicleStatus is the coarse motion state reported with a location.
type VehicleStatus string

const (
	StatusMoving  VehicleStatus = "moving"
	StatusStopped VehicleStatus = "stopped"
	StatusIdle    VehicleStatus = "idle"
	StatusOffline VehicleStatus = "offline"
)

// VehicleLocation is one canonical position report.
//
// Timestamp is the time the vendor says the reading was taken, never the
// ingestion time; consumers compare it against the clock to detect stale data.
type VehicleLocation struct {
	VehicleID         string        `json:"vehicleId" validate:"required"`
	Latitude          float64       `json:"latitude" validate:"latitude"`
	Longitude         float64       `json:"longitude" validate:"longitude"`
	Speed             float64       `json:"speed" validate:"gte=0"`
	Heading           float64       `json:"heading" validate:"gte=0,lte=360"`
	Altitude          *float64      `json:"altitude,omitempty"`
	Accuracy          *float64      `json:"accuracy,omitempty" validate:"omitempty,gte=0"`
	FuelLevel         *float64      `json:"fuelLevel,omitempty" validate:"omitempty,gte=0,lte=100"`
	Temperature       *float64      `json:"temperature,omitempty"`
	Odometer          *float64      `json:"odometer,omitempty" validate:"omitempty,gte=0"`
	Address           *string       `json:"address,omitempty"`
	Status            VehicleStatus `json:"status" validate:"required,oneof=moving stopped idle offline"`
	Timestamp         time.Time     `json:"timestamp" validate:"required"`
	Provider          string        `json:"provider" validate:"required"`
	ProviderVehicleID string        `json:"providerVehicleId,omitempty"`
}

// Validate checks coordinate ranges, non-negative speed and the status enum.
func (l *VehicleLocation) Validate() error {
	if verr := validation.ValidateStruct(l); verr != nil {
		return verr
	}
	return nil
}

// StatusFromSpeed derives a status when a vendor does not report one.
func StatusFromSpeed(speedKmh float64, ignitionOn bool) VehicleStatus {
	switch {
	case speedKmh > 1:
		return StatusMoving
	case ignitionOn:
		return StatusIdle
	default:
		return StatusStopped
	}
}

// NormalizeHeading folds any angle into [0, 360). Non-finite input yields
// NaN, which fails Validate so the reading is dropped.
func NormalizeHeading(deg float64) float64 {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return math.NaN()
	}
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	if deg >= 360 {
		deg = 0
	}
	return deg
}

// Float returns a pointer to v, for the optional fields.
func Float(v float64) *float64 { return &v }

// String returns a pointer to s, or nil when s is empty.
func String(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
