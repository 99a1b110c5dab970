// TableVox - Realtime AI Waiter Relay for Restaurants
// Copyright 2026 TableVox Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tablevox/tablevox

package relay

import (
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 512 * 1024 // 512 KB; audio chunks are base64 text
)

// ClientConn abstracts the client-facing transport so the session state
// machine stays independent of the socket binding. The production binding
// wraps a gorilla websocket connection; tests use an in-memory fake.
type ClientConn interface {
	// ReadMessage blocks for the next client frame. It returns an error
	// when the connection is closed from either side.
	ReadMessage() ([]byte, error)

	// WriteEvent sends one event frame to the client. Safe for concurrent
	// use.
	WriteEvent(evt Event) error

	// Ping sends a liveness probe. Safe for concurrent use.
	Ping() error

	// Close terminates the connection. Idempotent.
	Close() error

	// SetPongHandler installs the callback invoked when the client answers
	// a liveness probe.
	SetPongHandler(fn func())
}

// wsConn binds ClientConn to a gorilla websocket connection. Gorilla permits
// only one concurrent writer, so all writes serialize through writeMu:
// session events, staff fan-out, and monitor pings arrive from different
// goroutines.
type wsConn struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// NewWSConn wraps an upgraded websocket connection.
func NewWSConn(conn *websocket.Conn) ClientConn {
	conn.SetReadLimit(maxMessageSize)
	return &wsConn{conn: conn}
}

func (w *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := w.conn.ReadMessage()
	return data, err
}

func (w *wsConn) WriteEvent(evt Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	if err := w.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

func (w *wsConn) Ping() error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	return w.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (w *wsConn) Close() error {
	w.closeOnce.Do(func() {
		w.writeMu.Lock()
		_ = w.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		w.writeMu.Unlock()
		w.closeErr = w.conn.Close()
	})
	return w.closeErr
}

func (w *wsConn) SetPongHandler(fn func()) {
	w.conn.SetPongHandler(func(string) error {
		fn()
		return nil
	})
}
