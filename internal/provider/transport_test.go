// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package provider

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/tomtom215/fleetlink/internal/fleeterr"
)

func TestTransportRetries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		failures     int
		failStatus   int
		wantCalls    int32
		wantErr      bool
		wantAuth     bool
		wantStatus   int
		wantTransErr bool
	}{
		{name: "success first try", failures: 0, wantCalls: 1},
		{name: "recovers after two 503s", failures: 2, failStatus: http.StatusServiceUnavailable, wantCalls: 3},
		{name: "gives up after max retries", failures: 10, failStatus: http.StatusBadGateway, wantCalls: 4, wantErr: true, wantTransErr: true},
		{name: "400 is not retried", failures: 10, failStatus: http.StatusBadRequest, wantCalls: 1, wantErr: true, wantStatus: http.StatusBadRequest},
		{name: "404 is not retried", failures: 10, failStatus: http.StatusNotFound, wantCalls: 1, wantErr: true, wantStatus: http.StatusNotFound},
		{name: "401 is an authentication error", failures: 10, failStatus: http.StatusUnauthorized, wantCalls: 1, wantErr: true, wantAuth: true},
		{name: "403 is an authentication error", failures: 10, failStatus: http.StatusForbidden, wantCalls: 1, wantErr: true, wantAuth: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var calls atomic.Int32
			mux := http.NewServeMux()
			mux.HandleFunc("GET /thing", func(w http.ResponseWriter, r *http.Request) {
				n := calls.Add(1)
				if int(n) <= tt.failures {
					writeJSON(w, tt.failStatus, map[string]string{"error": "nope"})
					return
				}
				writeJSON(w, http.StatusOK, map[string]string{"ok": "yes"})
			})
			srv := newVendor(t, mux)

			tr := newTransport("p1", srv.URL, testOptions().withDefaults())
			var out map[string]string
			err := tr.getJSON(context.Background(), "get_thing", "/thing", nil, nil, &out)

			if got := calls.Load(); got != tt.wantCalls {
				t.Errorf("calls = %d, want %d", got, tt.wantCalls)
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr {
				if out["ok"] != "yes" {
					t.Errorf("body = %v", out)
				}
				return
			}
			if tt.wantAuth && !fleeterr.IsAuthentication(err) {
				t.Errorf("expected AuthenticationError, got %T: %v", err, err)
			}
			if tt.wantTransErr {
				var te *fleeterr.TransportError
				if !errors.As(err, &te) {
					t.Fatalf("expected TransportError, got %T: %v", err, err)
				}
				if te.Attempts != 4 {
					t.Errorf("Attempts = %d, want 4", te.Attempts)
				}
			}
			if tt.wantStatus != 0 && !hasStatus(err, tt.wantStatus) {
				t.Errorf("expected status %d in %v", tt.wantStatus, err)
			}
		})
	}
}

func TestTransportRetriesDisabled(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /thing", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := newVendor(t, mux)

	opts := testOptions()
	opts.MaxRetries = -1
	tr := newTransport("p1", srv.URL, opts.withDefaults())
	err := tr.getJSON(context.Background(), "get_thing", "/thing", nil, nil, nil)
	if !fleeterr.IsTransport(err) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestTransportHonorsCancellation(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /thing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	srv := newVendor(t, mux)

	tr := newTransport("p1", srv.URL, testOptions().withDefaults())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := tr.getJSON(ctx, "get_thing", "/thing", nil, nil, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestExpandPathEscapes(t *testing.T) {
	t.Parallel()
	got := expandPath("/v/{vehicleId}/h?from={start}", map[string]string{"vehicleId": "a b/c", "start": "1"})
	want := "/v/a%20b%2Fc/h?from=1"
	if got != want {
		t.Errorf("expandPath = %q, want %q", got, want)
	}
}
