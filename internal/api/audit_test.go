// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/fleetlink/internal/audit"
	"github.com/tomtom215/fleetlink/internal/auth"
	"github.com/tomtom215/fleetlink/internal/authz"
	"github.com/tomtom215/fleetlink/internal/fleeterr"
)

func TestWriteOperationsAreAudited(t *testing.T) {
	env := newTestEnv(t)
	logger := audit.NewLogger(audit.NewMemoryStore(0), audit.Config{})
	env.svc.audit = logger
	ctx := context.Background()

	if _, err := env.svc.CreateProvider(ctx, adminUser, navtrackConfig("nt1", false)); err != nil {
		t.Fatalf("CreateProvider: %v", err)
	}
	if err := env.svc.DeleteProvider(ctx, operatorUser, "nt1"); err == nil {
		t.Fatal("operator delete succeeded")
	}
	if err := env.svc.DeleteProvider(ctx, adminUser, "missing"); !fleeterr.IsNotFound(err) {
		t.Fatalf("delete missing: %v", err)
	}
	_ = logger.Close()

	events, err := env.svc.AuditEvents(ctx, adminUser, audit.QueryFilter{})
	if err != nil {
		t.Fatalf("AuditEvents: %v", err)
	}
	want := []struct {
		action  audit.Action
		outcome audit.Outcome
		actor   string
		target  string
	}{
		{audit.ActionProviderDelete, audit.OutcomeFailure, adminUser.ID, "missing"},
		{audit.ActionProviderDelete, audit.OutcomeDenied, operatorUser.ID, "nt1"},
		{audit.ActionProviderCreate, audit.OutcomeSuccess, adminUser.ID, "nt1"},
	}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d: %+v", len(events), len(want), events)
	}
	for i, w := range want {
		e := events[i]
		if e.Action != w.action || e.Outcome != w.outcome || e.Actor.ID != w.actor || e.Target.ID != w.target {
			t.Errorf("event[%d] = %+v, want %+v", i, e, w)
		}
	}

	if _, err := env.svc.AuditEvents(ctx, viewerUser, audit.QueryFilter{}); err != authz.ErrForbidden {
		t.Errorf("viewer read audit: err = %v, want forbidden", err)
	}
}

func TestAuditEventsWithoutLogger(t *testing.T) {
	env := newTestEnv(t)
	events, err := env.svc.AuditEvents(context.Background(), adminUser, audit.QueryFilter{})
	if err != nil {
		t.Fatalf("AuditEvents: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("events = %v, want none", events)
	}
}

func TestAuditEndpoint(t *testing.T) {
	env := newJWTRouterEnv(t)
	logger := audit.NewLogger(audit.NewMemoryStore(0), audit.Config{})
	env.svc.audit = logger
	admin := env.token(t, auth.RoleAdmin)

	if rec, _ := env.do(t, http.MethodPost, "/api/v1/providers", admin, navtrackConfig("nt1", false)); rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	if rec, _ := env.do(t, http.MethodPost, "/api/v1/providers", env.token(t, auth.RoleViewer), navtrackConfig("nt2", false)); rec.Code != http.StatusForbidden {
		t.Fatalf("viewer create: %d", rec.Code)
	}
	_ = logger.Close()

	tests := []struct {
		name       string
		path       string
		token      string
		wantStatus int
		wantCount  int
	}{
		{"all", "/api/v1/audit", admin, http.StatusOK, 2},
		{"denied only", "/api/v1/audit?outcome=denied", admin, http.StatusOK, 1},
		{"by target", "/api/v1/audit?target=nt1", admin, http.StatusOK, 1},
		{"limit", "/api/v1/audit?limit=1", admin, http.StatusOK, 1},
		{"bad limit", "/api/v1/audit?limit=-3", admin, http.StatusBadRequest, 0},
		{"bad since", "/api/v1/audit?since=yesterday", admin, http.StatusBadRequest, 0},
		{"viewer forbidden", "/api/v1/audit", env.token(t, auth.RoleViewer), http.StatusForbidden, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := env.do(t, http.MethodGet, tt.path, tt.token, nil)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			raw, _ := json.Marshal(resp.Data)
			var events []audit.Event
			if err := json.Unmarshal(raw, &events); err != nil {
				t.Fatalf("decode events: %v", err)
			}
			if len(events) != tt.wantCount {
				t.Errorf("got %d events, want %d", len(events), tt.wantCount)
			}
		})
	}
}
