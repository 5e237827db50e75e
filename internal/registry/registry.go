// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

// Package registry maps provider ids to live adapter instances.
//
// The registry validates a ProviderConfig, builds the adapter for its type
// from a factory table and keeps at most one adapter per id. It never performs
// I/O: construction only wires the adapter, and callers authenticate or sync
// explicitly.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/tomtom215/fleetlink/internal/fleeterr"
	"github.com/tomtom215/fleetlink/internal/logging"
	"github.com/tomtom215/fleetlink/internal/models"
	"github.com/tomtom215/fleetlink/internal/provider"
)

// Registry holds one adapter per provider id.
type Registry struct {
	mu        sync.RWMutex
	adapters  map[string]provider.Adapter
	factories map[models.ProviderType]provider.Factory
	opts      provider.Options
}

// New creates a registry with the built-in adapter factories.
func New(opts provider.Options) *Registry {
	return &Registry{
		adapters:  make(map[string]provider.Adapter),
		factories: provider.Factories(),
		opts:      opts,
	}
}

// RegisterFactory installs or replaces the constructor for a provider type.
func (r *Registry) RegisterFactory(t models.ProviderType, f provider.Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[t] = f
}

// Validate reports every problem with cfg in one ValidationError.
func (r *Registry) Validate(cfg *models.ProviderConfig) error {
	err := models.ValidateProviderConfig(cfg)
	if err != nil {
		return err
	}
	r.mu.RLock()
	_, ok := r.factories[cfg.Type]
	r.mu.RUnlock()
	if !ok {
		return fleeterr.NewValidationError(fleeterr.Violation{
			Field:   "type",
			Rule:    "oneof",
			Message: fmt.Sprintf("no adapter registered for provider type %q", cfg.Type),
		})
	}
	return nil
}

// CreateOrGet returns the adapter already registered under cfg.ID, or
// validates cfg and builds a new one.
func (r *Registry) CreateOrGet(cfg models.ProviderConfig) (provider.Adapter, error) {
	r.mu.RLock()
	existing, ok := r.adapters[cfg.ID]
	r.mu.RUnlock()
	if ok {
		return existing, nil
	}

	if err := r.Validate(&cfg); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.adapters[cfg.ID]; ok {
		return existing, nil
	}

	adapter, err := r.factories[cfg.Type](cfg, r.opts)
	if err != nil {
		return nil, err
	}
	r.adapters[cfg.ID] = adapter

	logging.Info().
		Str("provider_id", cfg.ID).
		Str("provider_type", string(cfg.Type)).
		Msg("Provider adapter registered")
	return adapter, nil
}

// Replace validates cfg and swaps in a freshly built adapter, dropping any
// cached session held by the old one.
func (r *Registry) Replace(cfg models.ProviderConfig) (provider.Adapter, error) {
	if err := r.Validate(&cfg); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	adapter, err := r.factories[cfg.Type](cfg, r.opts)
	if err != nil {
		return nil, err
	}
	r.adapters[cfg.ID] = adapter
	return adapter, nil
}

// Get returns the adapter for id.
func (r *Registry) Get(id string) (provider.Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[id]
	return a, ok
}

// Remove evicts id and reports whether it was present.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.adapters[id]; !ok {
		return false
	}
	delete(r.adapters, id)
	logging.Info().Str("provider_id", id).Msg("Provider adapter removed")
	return true
}

// ListAll returns every adapter ordered by id.
func (r *Registry) ListAll() []provider.Adapter {
	r.mu.RLock()
	out := make([]provider.Adapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		out = append(out, a)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Len returns the number of registered adapters.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.adapters)
}
