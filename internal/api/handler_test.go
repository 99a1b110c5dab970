// TableVox - Realtime AI Waiter Relay for Restaurants
// Copyright 2026 TableVox Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tablevox/tablevox

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tablevox/tablevox/internal/config"
	"github.com/tablevox/tablevox/internal/logging"
	"github.com/tablevox/tablevox/internal/models"
	"github.com/tablevox/tablevox/internal/relay"
	"github.com/tablevox/tablevox/internal/store"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

// stubDialer fails every dial; connection-level tests never reach upstream.
type stubDialer struct{}

func (stubDialer) Dial(context.Context, relay.DialRequest, relay.UpstreamHandlers) (relay.Upstream, error) {
	return nil, errors.New("no upstream in test")
}

func testServerConfig() config.ServerConfig {
	return config.ServerConfig{
		Host:        "127.0.0.1",
		Port:        0,
		CORSOrigins: []string{"*"},
		RateLimit:   1000,
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *relay.Registry) {
	t.Helper()
	st := store.NewMemoryStore()
	st.PutRestaurant(models.Restaurant{ID: "R1", Name: "Testaurant", AIWaiterEnabled: true})

	registry := relay.NewRegistry()
	handler := NewHandler(registry, relay.NewBootstrapper(st), stubDialer{}, testServerConfig())
	srv := httptest.NewServer(NewRouter(handler, testServerConfig()).Setup())
	t.Cleanup(srv.Close)
	return srv, registry
}

func wsURL(srv *httptest.Server, query string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestHealthLive(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/health/live")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestHealthReadyReportsSessions(t *testing.T) {
	srv, _ := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "?restaurantId=R1"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	resp, err := http.Get(srv.URL + "/api/v1/health/ready")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["sessions"].(float64) != 1 {
		t.Errorf("sessions = %v, want 1", body["sessions"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestConnectRegistersAndAnswersPing(t *testing.T) {
	srv, registry := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "?restaurantId=R1&customerSessionId=cs-1"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	waitFor(t, func() bool { return registry.Count() == 1 })
	if got := registry.Lookup("R1", relay.RoleCustomer, "cs-1"); len(got) != 1 {
		t.Errorf("customer-session lookup = %d sessions, want 1", len(got))
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)); err != nil {
		t.Fatal(err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	var evt map[string]string
	if err := json.Unmarshal(data, &evt); err != nil {
		t.Fatal(err)
	}
	if evt["type"] != "pong" {
		t.Errorf("reply = %v, want pong", evt)
	}

	conn.Close()
	waitFor(t, func() bool { return registry.Count() == 0 })
}

func TestConnectStaffRole(t *testing.T) {
	srv, registry := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "?restaurantId=R1&role=staff"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	waitFor(t, func() bool { return len(registry.Lookup("R1", relay.RoleStaff, "")) == 1 })
}

func TestConnectMissingRestaurantID(t *testing.T) {
	srv, registry := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, ""), nil)
	if err != nil {
		t.Fatalf("handshake should succeed before policy close: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) {
		t.Fatalf("read err = %v, want close frame", err)
	}
	if closeErr.Code != CloseMissingRestaurant {
		t.Errorf("close code = %d, want %d", closeErr.Code, CloseMissingRestaurant)
	}
	if registry.Count() != 0 {
		t.Errorf("session registered without restaurantId")
	}
}

func TestConnectUnknownRole(t *testing.T) {
	srv, _ := newTestServer(t)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "?restaurantId=R1&role=alien"), nil)
	if err == nil {
		t.Fatal("handshake succeeded for unknown role")
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Errorf("response = %v, want 400", resp)
	}
}

func TestConnectRejectsDisallowedOrigin(t *testing.T) {
	st := store.NewMemoryStore()
	st.PutRestaurant(models.Restaurant{ID: "R1", Name: "Testaurant", AIWaiterEnabled: true})
	cfg := testServerConfig()
	cfg.CORSOrigins = []string{"https://allowed.example"}

	registry := relay.NewRegistry()
	handler := NewHandler(registry, relay.NewBootstrapper(st), stubDialer{}, cfg)
	srv := httptest.NewServer(NewRouter(handler, cfg).Setup())
	defer srv.Close()

	header := http.Header{}
	header.Set("Origin", "https://evil.example")
	_, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "?restaurantId=R1"), header)
	if err == nil {
		t.Fatal("handshake succeeded from disallowed origin")
	}
}
