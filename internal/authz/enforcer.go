// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

// Package authz decides what an authenticated caller may do, using a Casbin
// RBAC model with role inheritance (viewer < operator < admin).
package authz

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"

	"github.com/tomtom215/fleetlink/internal/auth"
	"github.com/tomtom215/fleetlink/internal/logging"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

// Objects named in the policy.
const (
	ObjectProviders = "providers"
	ObjectSync      = "sync"
	ObjectVehicles  = "vehicles"
	ObjectAlerts    = "alerts"
	ObjectGeofence  = "geofence"
	ObjectEngine    = "engine"
	ObjectStream    = "stream"
)

// Actions named in the policy.
const (
	ActionRead  = "read"
	ActionWrite = "write"
)

// ErrForbidden is returned by Authorize when the policy denies the request.
var ErrForbidden = errors.New("forbidden: insufficient permissions")

// Enforcer evaluates the RBAC policy. It is safe for concurrent use.
type Enforcer struct {
	enforcer *casbin.SyncedEnforcer
}

// NewEnforcer loads the embedded model and either policyPath or, when it is
// empty, the embedded policy.
func NewEnforcer(policyPath string) (*Enforcer, error) {
	m, err := model.NewModelFromString(embeddedModel)
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin model: %w", err)
	}

	var enforcer *casbin.SyncedEnforcer
	if policyPath != "" {
		if _, statErr := os.Stat(policyPath); statErr != nil {
			return nil, fmt.Errorf("casbin policy %s: %w", policyPath, statErr)
		}
		enforcer, err = casbin.NewSyncedEnforcer(m, fileadapter.NewAdapter(policyPath))
	} else {
		enforcer, err = casbin.NewSyncedEnforcer(m)
		if err == nil {
			err = loadPolicy(enforcer, embeddedPolicy)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}

	logging.Debug().Str("policy", policySource(policyPath)).Msg("Authorization policy loaded")
	return &Enforcer{enforcer: enforcer}, nil
}

func policySource(path string) string {
	if path == "" {
		return "embedded"
	}
	return path
}

// loadPolicy adds the p and g lines of a CSV policy.
func loadPolicy(enforcer *casbin.SyncedEnforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}

		switch {
		case parts[0] == "p" && len(parts) == 4:
			if _, err := enforcer.AddPolicy(parts[1], parts[2], parts[3]); err != nil {
				return fmt.Errorf("failed to add policy %v: %w", parts[1:], err)
			}
		case parts[0] == "g" && len(parts) == 3:
			if _, err := enforcer.AddGroupingPolicy(parts[1], parts[2]); err != nil {
				return fmt.Errorf("failed to add grouping policy %v: %w", parts[1:], err)
			}
		default:
			return fmt.Errorf("malformed policy line %q", line)
		}
	}
	return nil
}

// Allowed reports whether any of subject's roles permits action on object.
// A nil subject is never allowed.
func (e *Enforcer) Allowed(subject *auth.AuthSubject, object, action string) (bool, error) {
	if subject == nil {
		return false, nil
	}
	for _, role := range subject.Roles {
		ok, err := e.enforcer.Enforce(role, object, action)
		if err != nil {
			return false, fmt.Errorf("enforcement failed: %w", err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Authorize is Allowed returning ErrForbidden on denial.
func (e *Enforcer) Authorize(subject *auth.AuthSubject, object, action string) error {
	ok, err := e.Allowed(subject, object, action)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

// IsPrivileged reports whether subject may manage providers. Provider
// mutation, forced syncs and geofence writes all require it.
func (e *Enforcer) IsPrivileged(subject *auth.AuthSubject) bool {
	ok, err := e.Allowed(subject, ObjectProviders, ActionWrite)
	if err != nil {
		logging.Error().Err(err).Msg("Authorization error")
		return false
	}
	return ok
}
