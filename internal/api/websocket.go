// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/fleetlink/internal/logging"
	ws "github.com/tomtom215/fleetlink/internal/websocket"
)

// WebSocketHandler upgrades connections and binds each one to a live state
// subscription. The first frame a client receives is the snapshot.
type WebSocketHandler struct {
	svc      *Service
	hub      *ws.Hub
	origins  []string
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates the handler. allowedOrigins follows the CORS
// list; "*" allows any origin.
func NewWebSocketHandler(svc *Service, hub *ws.Hub, allowedOrigins []string) *WebSocketHandler {
	h := &WebSocketHandler{svc: svc, hub: hub, origins: allowedOrigins}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  4096,
		CheckOrigin:      h.checkOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
	return h
}

// checkOrigin rejects browsers from origins outside the allow list.
// Non-browser clients that send no Origin are authenticated like any
// other API caller and are allowed.
func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.origins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}

func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := h.hub.Admit(); err != nil {
		NewResponseWriter(w, r).ServiceUnavailable(err.Error())
		return
	}

	// Subscribe before upgrading so authorization failures still get an
	// HTTP status.
	sub, err := h.svc.Subscribe(caller(r), "ws-"+uuid.NewString())
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		sub.Close()
		logging.Ctx(r.Context()).Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := ws.NewClient(h.hub, conn, sub)
	if !h.hub.RegisterClient(client) {
		sub.Close()
		_ = conn.Close()
		logging.Ctx(r.Context()).Debug().Msg("WebSocket hub stopped, connection closed")
		return
	}
	client.Start()

	logging.Ctx(r.Context()).Debug().Str("subscriber_id", sub.ID()).Msg("WebSocket client connected")
}

// sanitizeLogValue strips control characters and bounds the length of
// values copied from request headers into logs.
func sanitizeLogValue(s string) string {
	const maxLen = 200
	s = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	return s
}
