// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package provider

import "math"

// Conversions into canonical units: km/h, km, percent, metres, Celsius.
// Adapters call these only from their normalize functions.

const (
	kmPerMile     = 1.609344
	metersPerFoot = 0.3048
)

func mphToKmh(v float64) float64 { return nonNegative(v * kmPerMile) }

func mpsToKmh(v float64) float64 { return nonNegative(v * 3.6) }

func milesToKm(v float64) float64 { return nonNegative(v * kmPerMile) }

func metersToKm(v float64) float64 { return nonNegative(v / 1000) }

func feetToMeters(v float64) float64 { return v * metersPerFoot }

func metersToFeet(v float64) float64 { return v / metersPerFoot }

func fahrenheitToCelsius(f float64) float64 { return (f - 32) * 5 / 9 }

func fractionToPercent(f float64) float64 { return clampPercent(f * 100) }

// tankPercent converts a fuel volume into percent of tank capacity.
// It returns false when capacity is unknown.
func tankPercent(volume, capacity float64) (float64, bool) {
	if capacity <= 0 {
		return 0, false
	}
	return clampPercent(volume / capacity * 100), true
}

func clampPercent(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

// nonNegative maps vendor "unknown" sentinels such as -1 to zero.
func nonNegative(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return v
}

// mapFloat applies fn to an optional value.
func mapFloat(v *float64, fn func(float64) float64) *float64 {
	if v == nil {
		return nil
	}
	out := fn(*v)
	return &out
}
