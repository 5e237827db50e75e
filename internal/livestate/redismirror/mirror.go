// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

// Package redismirror copies live state into Redis so processes outside
// Fleetlink can read it without calling the API.
//
// Keys, under the configured prefix:
//
//	<prefix>vehicle:<id>  last location JSON, expires after StateTTL
//	<prefix>geo           geo set of vehicle positions
//	<prefix>events        pub/sub channel carrying {"type","data"} envelopes
package redismirror

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/tomtom215/fleetlink/internal/config"
	"github.com/tomtom215/fleetlink/internal/logging"
	"github.com/tomtom215/fleetlink/internal/models"
)

// Mirror implements livestate.Mirror on a Redis client.
type Mirror struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

type envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg *config.RedisConfig) (*Mirror, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.Addr, err)
	}

	logging.Info().Str("addr", cfg.Addr).Str("prefix", cfg.KeyPrefix).Msg("Redis live state mirror connected")
	return &Mirror{client: client, prefix: cfg.KeyPrefix, ttl: cfg.StateTTL}, nil
}

func (m *Mirror) vehicleKey(id string) string { return m.prefix + "vehicle:" + id }
func (m *Mirror) geoKey() string { return m.prefix + "geo" }
func (m *Mirror) channel() string { return m.prefix + "events" }

// MirrorLocation stores the location, indexes its position and publishes it.
func (m *Mirror) MirrorLocation(ctx context.Context, loc *models.VehicleLocation) error {
	doc, err := json.Marshal(loc)
	if err != nil {
		return fmt.Errorf("encode location: %w", err)
	}
	msg, err := json.Marshal(envelope{Type: "locationUpdate", Data: loc})
	if err != nil {
		return fmt.Errorf("encode location event: %w", err)
	}

	_, err = m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, m.vehicleKey(loc.VehicleID), doc, m.ttl)
		pipe.GeoAdd(ctx, m.geoKey(), &redis.GeoLocation{
			Name:      loc.VehicleID,
			Longitude: loc.Longitude,
			Latitude:  loc.Latitude,
		})
		pipe.Publish(ctx, m.channel(), msg)
		return nil
	})
	if err != nil {
		return fmt.Errorf("mirror location %s: %w", loc.VehicleID, err)
	}
	return nil
}

// MirrorAlert publishes the alert on the events channel.
func (m *Mirror) MirrorAlert(ctx context.Context, alert *models.GPSAlert) error {
	msg, err := json.Marshal(envelope{Type: "alertRaised", Data: alert})
	if err != nil {
		return fmt.Errorf("encode alert event: %w", err)
	}
	if err := m.client.Publish(ctx, m.channel(), msg).Err(); err != nil {
		return fmt.Errorf("mirror alert %s: %w", alert.ID, err)
	}
	return nil
}

// GetLocation reads a mirrored location back. ok is false when the key
// is missing or expired.
func (m *Mirror) GetLocation(ctx context.Context, vehicleID string) (loc models.VehicleLocation, ok bool, err error) {
	doc, err := m.client.Get(ctx, m.vehicleKey(vehicleID)).Bytes()
	if err == redis.Nil {
		return loc, false, nil
	}
	if err != nil {
		return loc, false, err
	}
	if err := json.Unmarshal(doc, &loc); err != nil {
		return loc, false, fmt.Errorf("decode location: %w", err)
	}
	return loc, true, nil
}

// Nearby returns ids of vehicles within radiusKm of the point, nearest first.
func (m *Mirror) Nearby(ctx context.Context, lat, lon, radiusKm float64) ([]string, error) {
	return m.client.GeoSearch(ctx, m.geoKey(), &redis.GeoSearchQuery{
		Longitude:  lon,
		Latitude:   lat,
		Radius:     radiusKm,
		RadiusUnit: "km",
		Sort:       "ASC",
	}).Result()
}

// Ping checks the connection.
func (m *Mirror) Ping(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}

// Close closes the client.
func (m *Mirror) Close() error {
	return m.client.Close()
}
