// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package livestate

import "github.com/tomtom215/fleetlink/internal/models"

// EventKind names a live event.
type EventKind string

const (
	EventSnapshot       EventKind = "snapshot"
	EventLocationUpdate EventKind = "locationUpdate"
	EventAlertRaised    EventKind = "alertRaised"
)

// Event is one item on a subscription. Exactly one payload field is set,
// matching Kind.
type Event struct {
	Kind     EventKind                `json:"type"`
	Snapshot []models.VehicleLocation `json:"snapshot,omitempty"`
	Location *models.VehicleLocation  `json:"location,omitempty"`
	Alert    *models.GPSAlert         `json:"alert,omitempty"`
}

// Payload returns the field that carries the event's data.
func (e Event) Payload() interface{} {
	switch e.Kind {
	case EventSnapshot:
		if e.Snapshot == nil {
			return []models.VehicleLocation{}
		}
		return e.Snapshot
	case EventLocationUpdate:
		return e.Location
	case EventAlertRaised:
		return e.Alert
	}
	return nil
}

// Subscription is one subscriber's view of the cache.
// The channel is closed when the subscriber unsubscribes or is dropped.
type Subscription struct {
	id     string
	cache  *Cache
	events chan Event
}

// ID returns the subscriber id.
func (s *Subscription) ID() string { return s.id }

// Events returns the event stream.
func (s *Subscription) Events() <-chan Event { return s.events }

// Close unsubscribes. It is safe to call more than once, and after the
// subscriber was dropped.
func (s *Subscription) Close() {
	s.cache.mu.Lock()
	defer s.cache.mu.Unlock()
	if cur, ok := s.cache.subs[s.id]; ok && cur == s {
		s.cache.removeLocked(s)
	}
}
