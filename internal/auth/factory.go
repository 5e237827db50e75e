// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package auth

import (
	"fmt"

	"github.com/tomtom215/fleetlink/internal/config"
	"github.com/tomtom215/fleetlink/internal/logging"
)

// NewFromConfig builds the authenticator selected by cfg.AuthMode.
func NewFromConfig(cfg *config.SecurityConfig) (Authenticator, error) {
	switch cfg.AuthMode {
	case config.AuthModeNone, "":
		logging.Warn().Msg("Authentication disabled: every caller is treated as administrator")
		return NoneAuthenticator{}, nil
	case config.AuthModeJWT:
		m, err := NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer)
		if err != nil {
			return nil, err
		}
		return NewJWTAuthenticator(m), nil
	case config.AuthModeBasic:
		return NewBasicAuthenticator(cfg.AdminUsername, cfg.AdminPasswordHash)
	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.AuthMode)
	}
}
