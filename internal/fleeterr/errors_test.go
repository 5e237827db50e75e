// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package fleeterr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestClassifiersSeeThroughWrapping(t *testing.T) {
	t.Parallel()

	base := errors.New("connection refused")
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"validation", NewValidationError(Violation{Field: "id", Rule: "required"}), IsValidation},
		{"authentication", &AuthenticationError{Provider: "p1", Err: base}, IsAuthentication},
		{"transport", &TransportError{Provider: "p1", Op: "GET /vehicles", Attempts: 3, Err: base}, IsTransport},
		{"persistence", &PersistenceError{Op: "upsert_location", Key: "V1", Err: base}, IsPersistence},
		{"not found", NewNotFound("provider", "p9"), IsNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			wrapped := fmt.Errorf("outer: %w", tt.err)
			if !tt.check(wrapped) {
				t.Errorf("classifier did not match wrapped %T", tt.err)
			}
			if tt.check(base) {
				t.Error("classifier matched an unrelated error")
			}
		})
	}
}

func TestValidationErrorListsEveryViolation(t *testing.T) {
	t.Parallel()

	verr := &ValidationError{}
	if verr.OrNil() != nil {
		t.Fatal("expected nil error without violations")
	}
	verr.Add("id", "required", "is required")
	verr.Add("apiUrl", "required", "is required")

	msg := verr.OrNil().Error()
	if !strings.Contains(msg, "id: is required") || !strings.Contains(msg, "apiUrl: is required") {
		t.Errorf("expected both violations in message, got %q", msg)
	}
}

func TestTransportUnwrap(t *testing.T) {
	t.Parallel()

	inner := errors.New("timeout")
	err := &TransportError{Provider: "p", Op: "op", Attempts: 3, Err: inner}
	if !errors.Is(err, inner) {
		t.Error("expected errors.Is to reach the inner error")
	}
}
