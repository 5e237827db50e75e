// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package provider

import (
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/fleetlink/internal/models"
)

func testOptions() Options {
	return Options{
		Timeout:     5 * time.Second,
		BackoffStep: time.Millisecond,
	}
}

func newVendor(t *testing.T, mux *http.ServeMux) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func testConfig(typ models.ProviderType, id, apiURL string) models.ProviderConfig {
	return models.ProviderConfig{
		ID:           id,
		Type:         typ,
		Name:         id,
		APIKey:       "key-1",
		APIURL:       apiURL,
		Enabled:      true,
		SyncInterval: 30,
	}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 0.01
}

func deref(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}
