// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package auth

import (
	"context"
	"errors"
	"net/http"
)

// Roles understood by the default authorization policy.
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
	RoleViewer   = "viewer"
)

// Standard authentication errors
var (
	// ErrNoCredentials indicates no credentials were provided.
	ErrNoCredentials = errors.New("no credentials provided")

	// ErrInvalidCredentials indicates credentials were invalid or expired.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Authenticator identifies the caller of a request.
type Authenticator interface {
	// Authenticate returns ErrNoCredentials when the request carries none and
	// ErrInvalidCredentials when they do not verify.
	Authenticate(ctx context.Context, r *http.Request) (*AuthSubject, error)

	// Name is used in logs and the WWW-Authenticate challenge.
	Name() string
}

// AuthSubject is an authenticated caller.
type AuthSubject struct {
	ID         string   `json:"id"`
	Username   string   `json:"username"`
	Roles      []string `json:"roles,omitempty"`
	AuthMethod string   `json:"authMethod"`
}

// HasRole reports whether the subject carries role.
func (s *AuthSubject) HasRole(role string) bool {
	if s == nil {
		return false
	}
	for _, r := range s.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type subjectKey struct{}

// WithSubject stores the subject in ctx.
func WithSubject(ctx context.Context, s *AuthSubject) context.Context {
	return context.WithValue(ctx, subjectKey{}, s)
}

// SubjectFromContext returns the subject stored by the middleware, or nil.
func SubjectFromContext(ctx context.Context) *AuthSubject {
	s, _ := ctx.Value(subjectKey{}).(*AuthSubject)
	return s
}

// NoneAuthenticator accepts every request as the local administrator.
// It backs the "none" auth mode used for single-operator deployments.
type NoneAuthenticator struct{}

// Authenticate always succeeds.
func (NoneAuthenticator) Authenticate(_ context.Context, _ *http.Request) (*AuthSubject, error) {
	return &AuthSubject{
		ID:         "local",
		Username:   "local",
		Roles:      []string{RoleAdmin},
		AuthMethod: "none",
	}, nil
}

// Name returns "none".
func (NoneAuthenticator) Name() string { return "none" }
