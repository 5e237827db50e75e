// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package models

import (
	"math"
	"sort"
	"time"
)

const earthRadiusKm = 6371.0

// RouteHistory is a segment materialized from a vendor's history endpoint.
// It is built per request and never cached.
type RouteHistory struct {
	VehicleID     string            `json:"vehicleId"`
	StartTime     time.Time         `json:"startTime"`
	EndTime       time.Time         `json:"endTime"`
	StartLocation VehicleLocation   `json:"startLocation"`
	EndLocation   VehicleLocation   `json:"endLocation"`
	Distance      float64           `json:"distance"`
	Duration      time.Duration     `json:"duration"`
	AverageSpeed  float64           `json:"averageSpeed"`
	MaxSpeed      float64           `json:"maxSpeed"`
	Points        []VehicleLocation `json:"points"`
}

// BuildRouteHistory orders points by timestamp and derives the segment summary.
// Distance is the haversine sum between consecutive points; average speed is
// distance over elapsed time. It returns nil for an empty point set.
func BuildRouteHistory(vehicleID string, points []VehicleLocation) *RouteHistory {
	if len(points) == 0 {
		return nil
	}

	pts := make([]VehicleLocation, len(points))
	copy(pts, points)
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].Timestamp.Before(pts[j].Timestamp) })

	rh := &RouteHistory{
		VehicleID:     vehicleID,
		StartTime:     pts[0].Timestamp,
		EndTime:       pts[len(pts)-1].Timestamp,
		StartLocation: pts[0],
		EndLocation:   pts[len(pts)-1],
		Points:        pts,
	}

	for i, p := range pts {
		if p.Speed > rh.MaxSpeed {
			rh.MaxSpeed = p.Speed
		}
		if i > 0 {
			rh.Distance += HaversineKm(pts[i-1].Latitude, pts[i-1].Longitude, p.Latitude, p.Longitude)
		}
	}

	rh.Duration = rh.EndTime.Sub(rh.StartTime)
	if hours := rh.Duration.Hours(); hours > 0 {
		rh.AverageSpeed = rh.Distance / hours
	}
	return rh
}

// HaversineKm returns the great-circle distance between two points in km.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}
