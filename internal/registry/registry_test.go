// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package registry

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/tomtom215/fleetlink/internal/fleeterr"
	"github.com/tomtom215/fleetlink/internal/models"
	"github.com/tomtom215/fleetlink/internal/provider"
)

func navTrackConfig(id string) models.ProviderConfig {
	return models.ProviderConfig{
		ID:           id,
		Type:         models.ProviderNavTrack,
		Name:         "Depot " + id,
		APIKey:       "k",
		APIURL:       "https://navtrack.example",
		Enabled:      true,
		SyncInterval: 30,
	}
}

func TestCreateOrGetPerformsNoIO(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	r := New(provider.Options{})
	cfg := navTrackConfig("nt-1")
	cfg.APIURL = srv.URL

	a, err := r.CreateOrGet(cfg)
	if err != nil {
		t.Fatalf("CreateOrGet: %v", err)
	}
	if a.ID() != "nt-1" {
		t.Errorf("ID = %q", a.ID())
	}
	if hits.Load() != 0 {
		t.Errorf("construction made %d vendor requests", hits.Load())
	}
}

func TestCreateOrGetReturnsExisting(t *testing.T) {
	t.Parallel()
	r := New(provider.Options{})

	first, err := r.CreateOrGet(navTrackConfig("nt-1"))
	if err != nil {
		t.Fatal(err)
	}
	changed := navTrackConfig("nt-1")
	changed.Name = "Renamed"
	second, err := r.CreateOrGet(changed)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("CreateOrGet built a second adapter for the same id")
	}
	if second.Config().Name != "Depot nt-1" {
		t.Errorf("existing adapter config changed: %q", second.Config().Name)
	}

	replaced, err := r.Replace(changed)
	if err != nil {
		t.Fatal(err)
	}
	if replaced == first || replaced.Config().Name != "Renamed" {
		t.Error("Replace did not swap the adapter")
	}
}

func TestCreateOrGetConcurrent(t *testing.T) {
	t.Parallel()
	r := New(provider.Options{})

	var builds atomic.Int32
	r.RegisterFactory(models.ProviderNavTrack, func(cfg models.ProviderConfig, opts provider.Options) (provider.Adapter, error) {
		builds.Add(1)
		return provider.NewNavTrack(cfg, opts)
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.CreateOrGet(navTrackConfig("shared")); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if builds.Load() != 1 {
		t.Errorf("factory called %d times, want 1", builds.Load())
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d", r.Len())
	}
}

func TestValidateAggregatesViolations(t *testing.T) {
	t.Parallel()
	r := New(provider.Options{})

	bad := models.ProviderConfig{ID: "Bad ID!", Type: models.ProviderFleetSense, SyncInterval: 1}
	err := r.Validate(&bad)

	var verr *fleeterr.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	fields := map[string]bool{}
	for _, v := range verr.Violations {
		fields[v.Field] = true
	}
	for _, want := range []string{"id", "name", "apiKey", "apiUrl", "syncInterval", "credentials.username", "credentials.password"} {
		if !fields[want] {
			t.Errorf("missing violation for %s in %v", want, verr.Violations)
		}
	}

	if _, err := r.CreateOrGet(bad); !fleeterr.IsValidation(err) {
		t.Errorf("CreateOrGet accepted an invalid config: %v", err)
	}
	if r.Len() != 0 {
		t.Error("invalid config was registered")
	}
}

func TestGenericRequiresMapping(t *testing.T) {
	t.Parallel()
	r := New(provider.Options{})

	cfg := navTrackConfig("gen")
	cfg.Type = models.ProviderGeneric
	err := r.Validate(&cfg)
	if !fleeterr.IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestRemoveAndList(t *testing.T) {
	t.Parallel()
	r := New(provider.Options{})

	for _, id := range []string{"c", "a", "b"} {
		if _, err := r.CreateOrGet(navTrackConfig(id)); err != nil {
			t.Fatal(err)
		}
	}
	ids := []string{}
	for _, a := range r.ListAll() {
		ids = append(ids, a.ID())
	}
	if len(ids) != 3 || ids[0] != "a" || ids[2] != "c" {
		t.Errorf("ListAll order = %v", ids)
	}

	if !r.Remove("b") {
		t.Error("Remove(b) = false")
	}
	if r.Remove("b") {
		t.Error("second Remove(b) = true")
	}
	if _, ok := r.Get("b"); ok {
		t.Error("b still present")
	}
}
