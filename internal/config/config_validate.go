// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package config

import (
	"fmt"
	"strings"

	"github.com/tomtom215/fleetlink/internal/models"
)

// Validate checks every section and returns the first problem found.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateDatabase,
		c.validateRedis,
		c.validateNATS,
		c.validateSync,
		c.validateLive,
		c.validateSecurity,
		c.validateLogging,
		c.validateProviders,
	}
	for _, v := range validators {
		if err := v(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	return nil
}

func (c *Config) validateDatabase() error {
	switch c.Database.Backend {
	case BackendDuckDB:
	case BackendPostgres:
		if c.Database.PostgresDSN == "" {
			return fmt.Errorf("database.postgres_dsn is required when backend is postgres")
		}
	case BackendBadger:
		if !c.Database.BadgerInMemory && c.Database.BadgerDir == "" {
			return fmt.Errorf("database.badger_dir is required unless badger_in_memory is set")
		}
	default:
		return fmt.Errorf("database.backend must be one of %s, %s, %s; got %q",
			BackendDuckDB, BackendPostgres, BackendBadger, c.Database.Backend)
	}
	if c.Database.Threads < 0 {
		return fmt.Errorf("database.threads must be >= 0")
	}
	return nil
}

func (c *Config) validateRedis() error {
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}
	return nil
}

func (c *Config) validateNATS() error {
	if !c.NATS.Enabled {
		return nil
	}
	if !c.NATS.EmbeddedServer && c.NATS.URL == "" {
		return fmt.Errorf("nats.url is required when nats is enabled without the embedded server")
	}
	if c.NATS.EmbeddedServer && (c.NATS.Port < 1 || c.NATS.Port > 65535) {
		return fmt.Errorf("nats.port must be between 1 and 65535, got %d", c.NATS.Port)
	}
	return nil
}

func (c *Config) validateSync() error {
	if c.Sync.RequestTimeout <= 0 {
		return fmt.Errorf("sync.request_timeout must be positive")
	}
	if c.Sync.MaxRetries < 0 {
		return fmt.Errorf("sync.max_retries must be >= 0")
	}
	if c.Sync.RateLimit < 0 {
		return fmt.Errorf("sync.rate_limit must be >= 0")
	}
	return nil
}

func (c *Config) validateLive() error {
	if c.Live.SubscriberBuffer < 1 {
		return fmt.Errorf("live.subscriber_buffer must be >= 1")
	}
	if c.Live.MirrorQueue < 1 {
		return fmt.Errorf("live.mirror_queue must be >= 1")
	}
	return nil
}

func (c *Config) validateSecurity() error {
	s := c.Security
	switch s.AuthMode {
	case AuthModeNone:
	case AuthModeJWT:
		if len(s.JWTSecret) < 32 {
			return fmt.Errorf("security.jwt_secret must be at least 32 characters when auth_mode is jwt")
		}
	case AuthModeBasic:
		if s.AdminUsername == "" || s.AdminPasswordHash == "" {
			return fmt.Errorf("security.admin_username and security.admin_password_hash are required when auth_mode is basic")
		}
		if !strings.HasPrefix(s.AdminPasswordHash, "$2") {
			return fmt.Errorf("security.admin_password_hash must be a bcrypt hash")
		}
	default:
		return fmt.Errorf("security.auth_mode must be one of %s, %s, %s; got %q",
			AuthModeNone, AuthModeJWT, AuthModeBasic, s.AuthMode)
	}
	if !s.RateLimitDisabled && (s.RateLimitRequests < 1 || s.RateLimitWindow <= 0) {
		return fmt.Errorf("security.rate_limit_requests and rate_limit_window must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return fmt.Errorf("logging.level %q is not a valid level", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

// validateProviders checks seeded providers with the same rules the admin API applies.
func (c *Config) validateProviders() error {
	seen := make(map[string]bool, len(c.Providers))
	for i := range c.Providers {
		p := &c.Providers[i]
		if seen[p.ID] {
			return fmt.Errorf("providers[%d]: duplicate id %q", i, p.ID)
		}
		seen[p.ID] = true
		if err := models.ValidateProviderConfig(p); err != nil {
			return fmt.Errorf("providers[%d] (%s): %w", i, p.ID, err)
		}
	}
	return nil
}
