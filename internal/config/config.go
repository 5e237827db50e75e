// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package config

import (
	"time"

	"github.com/tomtom215/fleetlink/internal/models"
)

// Store backends.
const (
	BackendDuckDB   = "duckdb"
	BackendPostgres = "postgres"
	BackendBadger   = "badger"
)

// Auth modes for the admin API.
const (
	AuthModeNone  = "none"
	AuthModeJWT   = "jwt"
	AuthModeBasic = "basic"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig            `koanf:"server"`
	Database  DatabaseConfig          `koanf:"database"`
	Redis     RedisConfig             `koanf:"redis"`
	NATS      NATSConfig              `koanf:"nats"`
	Sync      SyncConfig              `koanf:"sync"`
	Live      LiveConfig              `koanf:"live"`
	Security  SecurityConfig          `koanf:"security"`
	Logging   LoggingConfig           `koanf:"logging"`
	Providers []models.ProviderConfig `koanf:"providers"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// DatabaseConfig selects and tunes the durable store.
type DatabaseConfig struct {
	// Backend is duckdb (default), postgres or badger.
	Backend string `koanf:"backend"`

	// DuckDB
	Path      string `koanf:"path"` // empty means in-memory
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"` // 0 = NumCPU

	// PostgreSQL
	PostgresDSN      string `koanf:"postgres_dsn"`
	PostgresMaxConns int32  `koanf:"postgres_max_conns"`

	// Badger
	BadgerDir      string `koanf:"badger_dir"`
	BadgerInMemory bool   `koanf:"badger_in_memory"`
}

// RedisConfig enables the live-state mirror.
type RedisConfig struct {
	Enabled   bool          `koanf:"enabled"`
	Addr      string        `koanf:"addr"`
	Password  string        `koanf:"password"`
	DB        int           `koanf:"db"`
	KeyPrefix string        `koanf:"key_prefix"`
	StateTTL  time.Duration `koanf:"state_ttl"`
}

// NATSConfig configures the event bus.
//
// With Enabled false events go to an in-process channel only.
// With EmbeddedServer true a NATS server with JetStream is started in-process.
type NATSConfig struct {
	Enabled        bool   `koanf:"enabled"`
	URL            string `koanf:"url"`
	EmbeddedServer bool   `koanf:"embedded_server"`
	StoreDir       string `koanf:"store_dir"`
	Host           string `koanf:"host"`
	Port           int    `koanf:"port"`
	MaxMemory      int64  `koanf:"max_memory"`
	MaxStore       int64  `koanf:"max_store"`
}

// SyncConfig tunes the vendor transport shared by every adapter.
type SyncConfig struct {
	RequestTimeout time.Duration `koanf:"request_timeout"`
	MaxRetries     int           `koanf:"max_retries"`
	BackoffStep    time.Duration `koanf:"backoff_step"`
	RateLimit      float64       `koanf:"rate_limit"`
	RateBurst      int           `koanf:"rate_burst"`
	BreakerTimeout time.Duration `koanf:"breaker_timeout"`
}

// LiveConfig tunes the live-state broadcaster.
type LiveConfig struct {
	SubscriberBuffer int `koanf:"subscriber_buffer"`
	MaxWSClients     int `koanf:"max_ws_clients"`
	MirrorQueue      int `koanf:"mirror_queue"`
}

// SecurityConfig controls admin API authentication, authorization and limits.
type SecurityConfig struct {
	AuthMode          string        `koanf:"auth_mode"`
	JWTSecret         string        `koanf:"jwt_secret"`
	JWTIssuer         string        `koanf:"jwt_issuer"`
	AdminUsername     string        `koanf:"admin_username"`
	AdminPasswordHash string        `koanf:"admin_password_hash"` // bcrypt
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CasbinPolicyPath  string        `koanf:"casbin_policy_path"` // empty uses the embedded policy
	AuditRetention    int           `koanf:"audit_retention"`    // audit events kept in memory
}

// LoggingConfig holds logging settings for zerolog.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: true/false (default: false)
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Addr returns host:port for the HTTP listener.
func (s ServerConfig) Addr() string {
	return joinHostPort(s.Host, s.Port)
}
