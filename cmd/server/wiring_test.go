// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package main

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/fleetlink/internal/auth"
	"github.com/tomtom215/fleetlink/internal/config"
	"github.com/tomtom215/fleetlink/internal/models"
	"github.com/tomtom215/fleetlink/internal/provider"
	"github.com/tomtom215/fleetlink/internal/registry"
	"github.com/tomtom215/fleetlink/internal/store/kvstore"
)

type stubAdapter struct{ cfg models.ProviderConfig }

func (s *stubAdapter) ID() string                    { return s.cfg.ID }
func (s *stubAdapter) Config() models.ProviderConfig { return s.cfg.Clone() }
func (s *stubAdapter) Authenticate(context.Context) (bool, error) {
	return true, nil
}
func (s *stubAdapter) GetVehicles(context.Context) ([]models.VehicleLocation, error) {
	return nil, nil
}
func (s *stubAdapter) GetVehicleLocation(context.Context, string) (*models.VehicleLocation, error) {
	return nil, nil
}
func (s *stubAdapter) GetAlerts(context.Context) ([]models.GPSAlert, error) { return nil, nil }
func (s *stubAdapter) GetRouteHistory(context.Context, string, time.Time, time.Time) (*models.RouteHistory, error) {
	return nil, nil
}
func (s *stubAdapter) AcknowledgeAlert(context.Context, string, string) (bool, error) {
	return true, nil
}
func (s *stubAdapter) SetGeofence(context.Context, string, float64, float64, float64) (bool, error) {
	return true, nil
}
func (s *stubAdapter) Sync(context.Context) models.SyncResult {
	return models.SyncResult{Status: models.SyncStatus{ProviderID: s.cfg.ID, Status: models.SyncSuccess}}
}

type recordingScheduler struct {
	started map[string]time.Duration
	fail    string
}

func (r *recordingScheduler) StartSync(_ context.Context, id string, interval time.Duration) error {
	if id == r.fail {
		return errors.New("scheduler refused")
	}
	r.started[id] = interval
	return nil
}

func navtrack(id string, enabled bool, interval int) models.ProviderConfig {
	return models.ProviderConfig{
		ID:           id,
		Type:         models.ProviderNavTrack,
		Name:         "NavTrack " + id,
		APIKey:       "key-" + id,
		APIURL:       "https://navtrack.example.com/api",
		Enabled:      enabled,
		SyncInterval: interval,
	}
}

func newStubRegistry() *registry.Registry {
	reg := registry.New(provider.DefaultOptions())
	reg.RegisterFactory(models.ProviderNavTrack, func(cfg models.ProviderConfig, _ provider.Options) (provider.Adapter, error) {
		return &stubAdapter{cfg: cfg}, nil
	})
	return reg
}

func TestRestoreProviders(t *testing.T) {
	ctx := context.Background()
	st, err := kvstore.Open("", true)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	saved := navtrack("saved", true, 60)
	if err := st.SaveProvider(ctx, &saved); err != nil {
		t.Fatalf("SaveProvider: %v", err)
	}

	// The seed for "saved" must not overwrite the stored row.
	override := navtrack("saved", false, 300)
	seeds := []models.ProviderConfig{
		override,
		navtrack("seeded", true, 120),
		navtrack("paused", false, 30),
		{ID: "broken", Type: models.ProviderNavTrack}, // fails validation
	}

	reg := newStubRegistry()
	sched := &recordingScheduler{started: map[string]time.Duration{}}

	n, err := restoreProviders(ctx, st, reg, sched, seeds)
	if err != nil {
		t.Fatalf("restoreProviders: %v", err)
	}
	if n != 3 {
		t.Errorf("registered = %d, want 3", n)
	}
	if reg.Len() != 3 {
		t.Errorf("registry size = %d, want 3", reg.Len())
	}

	want := map[string]time.Duration{"saved": time.Minute, "seeded": 2 * time.Minute}
	if len(sched.started) != len(want) {
		t.Errorf("scheduled = %v, want %v", sched.started, want)
	}
	for id, iv := range want {
		if sched.started[id] != iv {
			t.Errorf("%s interval = %v, want %v", id, sched.started[id], iv)
		}
	}

	stored, err := st.ListProviders(ctx)
	if err != nil {
		t.Fatalf("ListProviders: %v", err)
	}
	var ids []string
	for _, p := range stored {
		ids = append(ids, p.ID)
		if p.ID == "saved" && (!p.Enabled || p.SyncInterval != 60) {
			t.Errorf("seed overwrote stored provider: %+v", p)
		}
		if p.ID == "seeded" && p.CreatedAt.IsZero() {
			t.Error("seeded provider has no CreatedAt")
		}
	}
	slices.Sort(ids)
	if !slices.Equal(ids, []string{"paused", "saved", "seeded"}) {
		t.Errorf("stored ids = %v", ids)
	}
}

func TestRestoreProvidersSchedulerFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	st, err := kvstore.Open("", true)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	sched := &recordingScheduler{started: map[string]time.Duration{}, fail: "a"}
	n, err := restoreProviders(ctx, st, newStubRegistry(), sched, []models.ProviderConfig{
		navtrack("a", true, 30),
		navtrack("b", true, 30),
	})
	if err != nil {
		t.Fatalf("restoreProviders: %v", err)
	}
	if n != 2 {
		t.Errorf("registered = %d, want 2", n)
	}
	if _, ok := sched.started["b"]; !ok {
		t.Error("provider b was not scheduled")
	}
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	st, err := openStore(ctx, &config.DatabaseConfig{Backend: config.BackendBadger, BadgerInMemory: true})
	if err != nil {
		t.Fatalf("openStore badger: %v", err)
	}
	if st.badger == nil {
		t.Error("badger backend should expose the GC handle")
	}
	if err := st.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
	_ = st.Close()

	if _, err := openStore(ctx, &config.DatabaseConfig{Backend: "cassandra"}); err == nil {
		t.Error("unknown backend accepted")
	}
}

func TestProviderOptions(t *testing.T) {
	opts := providerOptions(config.SyncConfig{
		RequestTimeout: 5 * time.Second,
		MaxRetries:     2,
		BackoffStep:    250 * time.Millisecond,
		RateLimit:      4,
		RateBurst:      2,
		BreakerTimeout: time.Minute,
	})
	if opts.Timeout != 5*time.Second || opts.MaxRetries != 2 || opts.BackoffStep != 250*time.Millisecond ||
		opts.RateLimit != 4 || opts.RateBurst != 2 || opts.BreakerTimeout != time.Minute {
		t.Errorf("options = %+v", opts)
	}
}

func TestIssueToken(t *testing.T) {
	secret := strings.Repeat("s", auth.MinSecretLength)

	tests := []struct {
		name    string
		secret  string
		roles   []string
		ttl     time.Duration
		wantErr bool
	}{
		{"operator", secret, []string{auth.RoleOperator}, time.Hour, false},
		{"several roles", secret, []string{auth.RoleViewer, auth.RoleAdmin}, time.Hour, false},
		{"missing secret", "", []string{auth.RoleViewer}, time.Hour, true},
		{"unknown role", secret, []string{"superuser"}, time.Hour, true},
		{"non-positive ttl", secret, []string{auth.RoleViewer}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := issueToken(tt.secret, "fleetlink", "alice", tt.roles, tt.ttl)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("issueToken: %v", err)
			}

			mgr, _ := auth.NewJWTManager(tt.secret, "fleetlink")
			claims, err := mgr.ValidateToken(token)
			if err != nil {
				t.Fatalf("ValidateToken: %v", err)
			}
			if claims.Username != "alice" || !slices.Equal(claims.Roles, tt.roles) {
				t.Errorf("claims = %+v", claims)
			}
		})
	}
}
