// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package models

import (
	"time"

	"github.com/tomtom215/fleetlink/internal/fleeterr"
	"github.com/tomtom215/fleetlink/internal/validation"
)

// ProviderType selects the adapter variant. The set is closed.
type ProviderType string

const (
	ProviderNavTrack   ProviderType = "navtrack"
	ProviderFleetSense ProviderType = "fleetsense"
	ProviderRoadPulse  ProviderType = "roadpulse"
	ProviderGeneric    ProviderType = "generic"
)

// MinSyncInterval is the floor for ProviderConfig.SyncInterval, in seconds.
// The validate tag on SyncInterval repeats this value.
const MinSyncInterval = 5

// RedactedSecret replaces secret values in responses for unprivileged callers.
const RedactedSecret = "********"

// ProviderConfig is one configured vendor connection.
// SyncInterval is fixed while the provider's loop runs; changing it restarts the loop.
type ProviderConfig struct {
	ID           string            `json:"id" koanf:"id" validate:"required,slug,max=64"`
	Type         ProviderType      `json:"type" koanf:"type" validate:"required,oneof=navtrack fleetsense roadpulse generic"`
	Name         string            `json:"name" koanf:"name" validate:"required,max=128"`
	APIKey       string            `json:"apiKey" koanf:"api_key" validate:"required"`
	APIURL       string            `json:"apiUrl" koanf:"api_url" validate:"required,http_url"`
	Credentials  map[string]string `json:"credentials,omitempty" koanf:"credentials"`
	Enabled      bool              `json:"enabled" koanf:"enabled"`
	SyncInterval int               `json:"syncInterval" koanf:"sync_interval" validate:"gte=5"`
	FieldMapping *FieldMapping     `json:"fieldMapping,omitempty" koanf:"field_mapping"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

// Validate checks every struct rule and returns all violations at once.
func (c *ProviderConfig) Validate() error {
	if verr := validation.ValidateStruct(c); verr != nil {
		return verr
	}
	return nil
}

// Interval returns SyncInterval as a duration.
func (c *ProviderConfig) Interval() time.Duration {
	return time.Duration(c.SyncInterval) * time.Second
}

// Credential returns a vendor-specific credential or "".
func (c *ProviderConfig) Credential(key string) string {
	if c.Credentials == nil {
		return ""
	}
	return c.Credentials[key]
}

// Clone returns a deep copy.
func (c ProviderConfig) Clone() ProviderConfig {
	out := c
	if c.Credentials != nil {
		out.Credentials = make(map[string]string, len(c.Credentials))
		for k, v := range c.Credentials {
			out.Credentials[k] = v
		}
	}
	if c.FieldMapping != nil {
		fm := c.FieldMapping.Clone()
		out.FieldMapping = &fm
	}
	return out
}

// Redacted returns a copy with the API key and credential values masked.
func (c ProviderConfig) Redacted() ProviderConfig {
	out := c.Clone()
	if out.APIKey != "" {
		out.APIKey = RedactedSecret
	}
	for k := range out.Credentials {
		out.Credentials[k] = RedactedSecret
	}
	return out
}

// ConnectionEquals reports whether two configs reach the vendor the same way.
// A difference means the cached adapter must be rebuilt.
func (c *ProviderConfig) ConnectionEquals(o *ProviderConfig) bool {
	if c.Type != o.Type || c.APIKey != o.APIKey || c.APIURL != o.APIURL {
		return false
	}
	if len(c.Credentials) != len(o.Credentials) {
		return false
	}
	for k, v := range c.Credentials {
		if o.Credentials[k] != v {
			return false
		}
	}
	return (c.FieldMapping == nil) == (o.FieldMapping == nil)
}

// ProviderTypeInfo describes one supported adapter variant.
type ProviderTypeInfo struct {
	Type        ProviderType `json:"type"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	AuthScheme  string       `json:"authScheme"`
	Credentials []string     `json:"credentials,omitempty"`
}

var supportedProviderTypes = []ProviderTypeInfo{
	{
		Type:        ProviderNavTrack,
		Name:        "NavTrack",
		Description: "NavTrack fleet API. Metric units, static API key.",
		AuthScheme:  "api_key_header",
	},
	{
		Type:        ProviderFleetSense,
		Name:        "FleetSense",
		Description: "FleetSense telematics. Session login with account username and password.",
		AuthScheme:  "username_password",
		Credentials: []string{"username", "password"},
	},
	{
		Type:        ProviderRoadPulse,
		Name:        "RoadPulse",
		Description: "RoadPulse GPS. OAuth client credentials, imperial units.",
		AuthScheme:  "bearer_token",
		Credentials: []string{"clientSecret"},
	},
	{
		Type:        ProviderGeneric,
		Name:        "Generic REST",
		Description: "Any JSON REST vendor described by endpoint templates and a field mapping.",
		AuthScheme:  "configurable",
	},
}

// SupportedProviderTypes returns the static catalog of adapter variants.
func SupportedProviderTypes() []ProviderTypeInfo {
	out := make([]ProviderTypeInfo, len(supportedProviderTypes))
	copy(out, supportedProviderTypes)
	return out
}

// LookupProviderType returns the catalog entry for t.
func LookupProviderType(t ProviderType) (ProviderTypeInfo, bool) {
	for _, info := range supportedProviderTypes {
		if info.Type == t {
			return info, true
		}
	}
	return ProviderTypeInfo{}, false
}

// ValidateProviderConfig runs the struct rules plus the rules that depend on
// the vendor type, collecting every violation.
func ValidateProviderConfig(c *ProviderConfig) error {
	verr := &fleeterr.ValidationError{}
	if structErr := validation.ValidateStruct(c); structErr != nil {
		verr.Violations = append(verr.Violations, structErr.Violations...)
	}

	if info, ok := LookupProviderType(c.Type); ok {
		for _, key := range info.Credentials {
			if c.Credential(key) == "" {
				verr.Add("credentials."+key, "required", "credentials."+key+" is required for "+string(c.Type))
			}
		}
	}

	if c.Type == ProviderGeneric {
		if c.FieldMapping == nil {
			verr.Add("fieldMapping", "required", "fieldMapping is required for generic providers")
		} else if mErr := c.FieldMapping.Validate(); mErr != nil {
			for _, v := range mErr.Violations {
				verr.Add("fieldMapping."+v.Field, v.Rule, v.Message)
			}
		}
	}

	return verr.OrNil()
}
