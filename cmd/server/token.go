// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package main

import (
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/fleetlink/internal/auth"
)

var knownRoles = []string{auth.RoleViewer, auth.RoleOperator, auth.RoleAdmin}

// newTokenCommand issues an admin API bearer token signed with the
// configured JWT secret. The API has no login endpoint.
func newTokenCommand() *cobra.Command {
	var (
		username string
		roles    []string
		ttl      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a signed JWT for the admin API",
		Example: `  fleetlink token --user alice --role operator --ttl 12h
  JWT_SECRET=... fleetlink token --user ci --role viewer`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			token, err := issueToken(cfg.Security.JWTSecret, cfg.Security.JWTIssuer, username, roles, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&username, "user", "", "subject username")
	fs.StringSliceVar(&roles, "role", []string{auth.RoleViewer}, "role to grant (viewer, operator, admin); repeatable")
	fs.DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func issueToken(secret, issuer, username string, roles []string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("jwt secret is not configured (set JWT_SECRET)")
	}
	if ttl <= 0 {
		return "", fmt.Errorf("ttl must be positive")
	}
	for _, r := range roles {
		if !slices.Contains(knownRoles, r) {
			return "", fmt.Errorf("unknown role %q", r)
		}
	}
	manager, err := auth.NewJWTManager(secret, issuer)
	if err != nil {
		return "", err
	}
	return manager.GenerateToken(username, roles, ttl)
}
