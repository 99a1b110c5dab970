// TableVox - Realtime AI Waiter Relay for Restaurants
// Copyright 2026 TableVox Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tablevox/tablevox

// Package metrics provides Prometheus instrumentation for the voice relay:
// session lifecycle, relayed event volume, tool-call resolution, upstream
// connect latency, and heartbeat evictions.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveSessions tracks currently registered relay sessions.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_active_sessions",
			Help: "Current number of registered relay sessions",
		},
	)

	// SessionsStarted counts sessions that reached the Active state.
	SessionsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_sessions_started_total",
			Help: "Total number of voice sessions that reached Active",
		},
	)

	// SessionStartFailures counts start_session attempts that failed,
	// labeled by failure class (config, upstream_connect).
	SessionStartFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_session_start_failures_total",
			Help: "Total number of failed start_session attempts",
		},
		[]string{"reason"},
	)

	// ClientCommands counts inbound client commands by type.
	ClientCommands = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_client_commands_total",
			Help: "Total number of client commands received",
		},
		[]string{"type"},
	)

	// UpstreamEvents counts upstream events by kind, including "unknown".
	UpstreamEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_upstream_events_total",
			Help: "Total number of upstream events received",
		},
		[]string{"type"},
	)

	// ToolCalls counts tool-call resolutions by tool name and outcome
	// (resolved, miss, invalid_args, unknown_tool).
	ToolCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_tool_calls_total",
			Help: "Total number of upstream tool calls by resolution outcome",
		},
		[]string{"tool", "outcome"},
	)

	// UpstreamConnectDuration observes upstream handshake latency.
	UpstreamConnectDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relay_upstream_connect_duration_seconds",
			Help:    "Duration of upstream realtime connection handshakes",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		},
	)

	// HeartbeatEvictions counts sessions terminated by the liveness sweep.
	HeartbeatEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_heartbeat_evictions_total",
			Help: "Total number of sessions evicted for missed heartbeats",
		},
	)
)

// ObserveUpstreamConnect records one upstream handshake duration.
func ObserveUpstreamConnect(start time.Time) {
	UpstreamConnectDuration.Observe(time.Since(start).Seconds())
}
