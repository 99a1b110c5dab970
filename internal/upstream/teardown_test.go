// TableVox - Realtime AI Waiter Relay for Restaurants
// Copyright 2026 TableVox Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tablevox/tablevox

package upstream

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/tablevox/tablevox/internal/models"
	"github.com/tablevox/tablevox/internal/relay"
	"github.com/tablevox/tablevox/internal/store"
)

// sessionConn is an in-memory relay.ClientConn for driving a full session
// against a real upstream client.
type sessionConn struct {
	mu        sync.Mutex
	frames    chan []byte
	events    []relay.Event
	closed    bool
	closeOnce sync.Once
}

func newSessionConn() *sessionConn {
	return &sessionConn{frames: make(chan []byte, 16)}
}

func (c *sessionConn) ReadMessage() ([]byte, error) {
	data, ok := <-c.frames
	if !ok {
		return nil, net.ErrClosed
	}
	return data, nil
}

func (c *sessionConn) WriteEvent(evt relay.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return nil
}

func (c *sessionConn) Ping() error { return nil }

func (c *sessionConn) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.frames)
	})
	return nil
}

func (c *sessionConn) SetPongHandler(func()) {}

func (c *sessionConn) countOf(t relay.EventType) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, evt := range c.events {
		if evt.Type == t {
			n++
		}
	}
	return n
}

func (c *sessionConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func waitForCond(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(4 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

// TestUpstreamDropTearsDownSession runs a real session over a real upstream
// client: when the upstream side drops its socket mid-conversation, the
// session must emit session_ended, deregister, close the client socket, and
// reach Closed — with teardown calls crossing between the upstream close
// path and Session.Terminate in both directions.
func TestUpstreamDropTearsDownSession(t *testing.T) {
	server := newFakeUpstreamServer(t)

	st := store.NewMemoryStore()
	st.PutRestaurant(models.Restaurant{ID: "R1", Name: "Testaurant", Language: "en", AIWaiterEnabled: true})
	st.PutMenu("R1", []models.MenuItem{{ID: "m1", Name: "Burger", Price: "9.50", Available: true}})

	registry := relay.NewRegistry()
	conn := newSessionConn()
	session := relay.NewSession(conn, registry, relay.NewBootstrapper(st),
		NewDialer(testUpstreamConfig(server.wsURL())), relay.SessionParams{
			RestaurantID: "R1",
			Role:         relay.RoleCustomer,
		})

	done := make(chan struct{})
	go func() {
		session.Run(context.Background())
		close(done)
	}()

	conn.frames <- []byte(`{"type":"start_session"}`)
	_ = server.next(t) // handshake
	server.send(t, map[string]any{"type": "session.created"})
	waitForCond(t, func() bool { return conn.countOf(relay.EventSessionStarted) == 1 })
	if got := session.State(); got != relay.StateActive {
		t.Fatalf("state after ready = %v, want %v", got, relay.StateActive)
	}

	server.closeClientConn(t)

	waitForCond(t, func() bool { return session.State() == relay.StateClosed })
	if got := conn.countOf(relay.EventSessionEnded); got != 1 {
		t.Errorf("session_ended events = %d, want 1", got)
	}
	if got := registry.Count(); got != 0 {
		t.Errorf("registry count = %d, want 0 after upstream drop", got)
	}
	if !conn.isClosed() {
		t.Errorf("client socket left open after upstream drop")
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after teardown")
	}
}
