// TableVox - Realtime AI Waiter Relay for Restaurants
// Copyright 2026 TableVox Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tablevox/tablevox

package relay

import (
	"context"
	"time"

	"github.com/tablevox/tablevox/internal/logging"
	"github.com/tablevox/tablevox/internal/metrics"
)

// Monitor runs the periodic liveness sweep: one serialized pass over all
// registered sessions per interval, not per-connection timers. A session
// that failed to answer the previous ping is terminated; termination of an
// already-deregistered session is a no-op (Session.Terminate is idempotent).
type Monitor struct {
	registry *Registry
	interval time.Duration
}

// NewMonitor creates a liveness monitor over the registry.
func NewMonitor(registry *Registry, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Monitor{registry: registry, interval: interval}
}

// Serve implements suture.Service: sweep every interval until the context
// is canceled.
func (m *Monitor) Serve(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	logging.Info().Dur("interval", m.interval).Msg("liveness monitor started")
	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("liveness monitor stopped")
			return ctx.Err()
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Sweep performs one liveness pass. Exported for tests.
func (m *Monitor) Sweep() {
	for _, s := range m.registry.Sessions() {
		if !s.ConsumeLiveness() {
			metrics.HeartbeatEvictions.Inc()
			logging.Warn().Str("session_id", s.ID).Msg("evicting unresponsive session")
			s.Terminate("heartbeat timeout")
			continue
		}
		if err := s.PingClient(); err != nil {
			logging.Warn().Err(err).Str("session_id", s.ID).Msg("ping failed, terminating session")
			s.Terminate("ping failed")
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (m *Monitor) String() string {
	return "liveness-monitor"
}
