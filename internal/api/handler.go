// TableVox - Realtime AI Waiter Relay for Restaurants
// Copyright 2026 TableVox Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tablevox/tablevox

package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tablevox/tablevox/internal/config"
	"github.com/tablevox/tablevox/internal/logging"
	"github.com/tablevox/tablevox/internal/relay"
)

// CloseMissingRestaurant is the close code sent when a connection omits the
// required restaurantId parameter.
const CloseMissingRestaurant = websocket.ClosePolicyViolation

// Handler serves the upgrade endpoint and health probes.
type Handler struct {
	registry  *relay.Registry
	bootstrap *relay.Bootstrapper
	dialer    relay.UpstreamDialer
	cfg       config.ServerConfig
}

// NewHandler wires the upgrade handler to the relay core.
func NewHandler(registry *relay.Registry, bootstrap *relay.Bootstrapper, dialer relay.UpstreamDialer, cfg config.ServerConfig) *Handler {
	return &Handler{registry: registry, bootstrap: bootstrap, dialer: dialer, cfg: cfg}
}

func (h *Handler) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin:      h.checkOrigin,
	}
}

// checkOrigin validates browser origins against the configured allow list.
// Non-browser clients without an Origin header are allowed; they cannot be
// victims of cross-site websocket hijacking.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	logging.Warn().Str("origin", origin).Msg("websocket connection rejected: origin not allowed")
	return false
}

// Connect upgrades the request and runs a relay session for the connection
// lifetime. Connection parameters: restaurantId (required),
// customerSessionId and role (optional).
func (h *Handler) Connect(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	restaurantID := q.Get("restaurantId")
	customerSessionID := q.Get("customerSessionId")
	role := relay.Role(q.Get("role"))

	switch role {
	case "", relay.RoleCustomer:
		role = relay.RoleCustomer
	case relay.RoleStaff:
	default:
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown role"})
		return
	}

	up := h.upgrader()
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	if restaurantID == "" {
		// The handshake already succeeded, so the rejection is a defined
		// websocket close code rather than an HTTP status.
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(CloseMissingRestaurant, "restaurantId is required"),
			time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}

	session := relay.NewSession(relay.NewWSConn(conn), h.registry, h.bootstrap, h.dialer, relay.SessionParams{
		RestaurantID:      restaurantID,
		CustomerSessionID: customerSessionID,
		Role:              role,
	})
	session.Run(r.Context())
}

// HealthLive reports process liveness.
func (h *Handler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HealthReady reports readiness and the current session count.
func (h *Handler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": h.registry.Count(),
	})
}
