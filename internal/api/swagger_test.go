// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	_ "github.com/tomtom215/fleetlink/docs"
	"github.com/tomtom215/fleetlink/internal/auth"
)

func TestSwaggerDocServed(t *testing.T) {
	env := newRouterEnv(t, auth.NoneAuthenticator{})

	req := httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %q", rec.Code, rec.Body.String())
	}
	var doc struct {
		Swagger  string                     `json:"swagger"`
		BasePath string                     `json:"basePath"`
		Info     struct{ Title string }     `json:"info"`
		Paths    map[string]json.RawMessage `json:"paths"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode doc: %v", err)
	}
	if doc.Swagger != "2.0" || doc.BasePath != "/api/v1" || doc.Info.Title == "" {
		t.Errorf("doc header = %q %q %q", doc.Swagger, doc.BasePath, doc.Info.Title)
	}
	for _, path := range []string{"/providers", "/providers/{id}/sync", "/sync/status", "/vehicles/nearby", "/alerts/{alertId}/acknowledge", "/audit", "/ws"} {
		if _, ok := doc.Paths[path]; !ok {
			t.Errorf("doc is missing %s", path)
		}
	}
}

func TestSwaggerUIServed(t *testing.T) {
	env := newRouterEnv(t, auth.NoneAuthenticator{})

	req := httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "swagger-ui") {
		t.Error("index page does not mount the Swagger UI")
	}
}
