// TableVox - Realtime AI Waiter Relay for Restaurants
// Copyright 2026 TableVox Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tablevox/tablevox

// Package api provides the HTTP surface of the relay: the websocket upgrade
// endpoint, health probes, and Prometheus metrics, composed with the Chi
// router.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tablevox/tablevox/internal/config"
	"github.com/tablevox/tablevox/internal/logging"
)

// Router builds the relay's HTTP handler tree.
type Router struct {
	handler *Handler
	cfg     config.ServerConfig
}

// NewRouter creates a Router over the upgrade handler.
func NewRouter(handler *Handler, cfg config.ServerConfig) *Router {
	return &Router{handler: handler, cfg: cfg}
}

// Setup composes the route tree with its middleware stack.
func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: rt.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
	}))

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(httprate.LimitByIP(1000, time.Minute))
		r.Get("/live", rt.handler.HealthLive)
		r.Get("/ready", rt.handler.HealthReady)
	})

	r.With(httprate.LimitByIP(rt.cfg.RateLimit, time.Minute)).
		Get("/ws", rt.handler.Connect)

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}

// requestID tags each request with an identifier carried through logs.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := logging.GenerateRequestID()
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(logging.ContextWithRequestID(r.Context(), id)))
	})
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Warn().Err(err).Msg("response encode failed")
	}
}
