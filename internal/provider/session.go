// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package provider

import (
	"sync"
	"time"
)

// sessionSkew renews tokens this long before the vendor's stated expiry.
const sessionSkew = 30 * time.Second

// session caches a vendor token until shortly before it expires.
type session struct {
	mu      sync.RWMutex
	token   string
	expires time.Time
}

func (s *session) get(now time.Time) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" || !now.Before(s.expires.Add(-sessionSkew)) {
		return "", false
	}
	return s.token, true
}

func (s *session) set(token string, expires time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.expires = expires
}

func (s *session) invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.expires = time.Time{}
}
