// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package websocket

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/goccy/go-json"

	"github.com/tomtom215/fleetlink/internal/livestate"
	"github.com/tomtom215/fleetlink/internal/logging"
	"github.com/tomtom215/fleetlink/internal/metrics"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Message types sent to and received from clients.
const (
	MessageTypeSnapshot       = string(livestate.EventSnapshot)
	MessageTypeLocationUpdate = string(livestate.EventLocationUpdate)
	MessageTypeAlertRaised    = string(livestate.EventAlertRaised)
	MessageTypePing           = "ping"
	MessageTypePong           = "pong"
)

// ErrTooManyClients is returned by Admit when MaxClients is reached.
var ErrTooManyClients = errors.New("too many websocket clients")

// Message is one WebSocket frame.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func messageFromEvent(ev livestate.Event) Message {
	return Message{Type: string(ev.Kind), Data: ev.Payload()}
}

// Hub tracks connected clients.
type Hub struct {
	clients    map[*Client]bool
	Register   chan *Client
	Unregister chan *Client
	maxClients int
	mu         sync.RWMutex

	// done is closed when RunWithContext returns.
	done     chan struct{}
	doneOnce sync.Once
}

// NewHub creates a hub. maxClients <= 0 means unlimited.
func NewHub(maxClients int) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		maxClients: maxClients,
		done:       make(chan struct{}),
	}
}

// Done is closed once the hub has stopped. Sends on Register or Unregister
// must also select on it or they block forever after shutdown.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// RegisterClient hands client to the hub. It returns false, without
// blocking, once the hub has stopped.
func (h *Hub) RegisterClient(client *Client) bool {
	select {
	case h.Register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) unregisterClient(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.done:
		client.sub.Close()
	}
}

// Admit reports whether another client may connect.
func (h *Hub) Admit() error {
	if h.maxClients > 0 && h.GetClientCount() >= h.maxClients {
		return ErrTooManyClients
	}
	return nil
}

// RunWithContext processes registrations until ctx is done, then closes
// every client and returns ctx.Err().
func (h *Hub) RunWithContext(ctx context.Context) error {
	defer h.doneOnce.Do(func() { close(h.done) })
	for {
		// Shutdown wins over pending lifecycle events.
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()

		case client := <-h.Register:
			h.mu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mu.Unlock()
			metrics.WSConnections.Set(float64(n))
			logging.Info().Str("subscriber_id", client.SubscriberID()).Int("total_clients", n).Msg("websocket client connected")

		case client := <-h.Unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
			}
			n := len(h.clients)
			h.mu.Unlock()
			client.sub.Close()
			metrics.WSConnections.Set(float64(n))
			logging.Info().Str("subscriber_id", client.SubscriberID()).Int("total_clients", n).Msg("websocket client disconnected")
		}
	}
}

func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.closeAllClients()

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

// closeAllClients closes every subscription in client id order. Each
// writePump then sends a close frame. readPumps that exit later see Done
// and skip Unregister.
func (h *Hub) closeAllClients() int {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.clients = make(map[*Client]bool)
	h.mu.Unlock()

	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	for _, client := range clients {
		client.sub.Close()
	}
	metrics.WSConnections.Set(0)
	return len(clients)
}

// GetClientCount returns the number of connected clients.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// MarshalMessage converts a message to JSON.
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
