// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

// BasicAuthenticator checks HTTP Basic credentials against one configured
// administrator whose password is stored as a bcrypt hash.
type BasicAuthenticator struct {
	username     string
	passwordHash []byte
}

// NewBasicAuthenticator validates that passwordHash is a bcrypt hash.
func NewBasicAuthenticator(username, passwordHash string) (*BasicAuthenticator, error) {
	if username == "" {
		return nil, errors.New("username is required")
	}
	if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
		return nil, errors.New("password hash is not a bcrypt hash")
	}
	return &BasicAuthenticator{username: username, passwordHash: []byte(passwordHash)}, nil
}

// Authenticate implements Authenticator.
func (a *BasicAuthenticator) Authenticate(_ context.Context, r *http.Request) (*AuthSubject, error) {
	username, password, ok := r.BasicAuth()
	if !ok {
		return nil, ErrNoCredentials
	}

	// Evaluate both checks so the response time does not reveal which failed.
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	passOK := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)) == nil
	if !userOK || !passOK {
		return nil, ErrInvalidCredentials
	}

	return &AuthSubject{
		ID:         username,
		Username:   username,
		Roles:      []string{RoleAdmin},
		AuthMethod: "basic",
	}, nil
}

// Name returns "basic".
func (a *BasicAuthenticator) Name() string { return "basic" }

// Challenge is the WWW-Authenticate value sent with 401 responses.
func (a *BasicAuthenticator) Challenge() string {
	return `Basic realm="Fleetlink", charset="UTF-8"`
}
