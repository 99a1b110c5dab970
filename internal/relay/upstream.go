// TableVox - Realtime AI Waiter Relay for Restaurants
// Copyright 2026 TableVox Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tablevox/tablevox

package relay

import (
	"context"

	"github.com/tablevox/tablevox/internal/models"
)

// Upstream is the relay-facing command surface of one upstream voice-AI
// connection. Satisfied by *upstream.Client; mocked in tests.
type Upstream interface {
	// SendAudio forwards one base64 audio chunk. A client may race
	// connection setup, so this never fails: before the upstream signals
	// ready it is a logged no-op.
	SendAudio(b64 string)

	// CommitAudio marks the caller's turn as finished and requests a
	// reply. Also valid as an explicit flush when server VAD is disabled.
	CommitAudio()

	// CancelResponse abandons the in-progress reply. Safe to call when no
	// response is in progress.
	CancelResponse()

	// SendText injects a user text message and requests a reply. Fallback
	// path for text-only clients.
	SendText(text string)

	// SendToolResult acknowledges a tool call by correlation id and
	// signals the upstream to continue generating. Every tool call must be
	// acknowledged exactly once or the conversation stalls.
	SendToolResult(callID string, result any) error

	// Disconnect closes the upstream connection. Idempotent.
	Disconnect()
}

// UpstreamHandlers is the event-callback surface a session installs on its
// upstream connection. All callbacks run on the upstream read goroutine.
type UpstreamHandlers struct {
	// OnReady fires once the upstream acknowledges session creation.
	// Audio must not be relayed upstream before this.
	OnReady func()

	// OnAudio delivers one base64 chunk of synthesized speech.
	OnAudio func(b64 string)

	// OnTranscript delivers a completed transcript with its speaker role
	// ("user" or "assistant").
	OnTranscript func(text string, final bool, role string)

	// OnResponseDone fires when a full reply has been generated.
	OnResponseDone func()

	// OnToolCall delivers a function invocation to resolve and
	// acknowledge.
	OnToolCall func(call ToolCall)

	// OnError delivers an upstream runtime error. The session stays
	// Active unless the upstream also closes.
	OnError func(msg string)

	// OnClosed fires exactly once when the upstream connection ends,
	// whatever the cause. err is nil for a deliberate disconnect.
	OnClosed func(err error)
}

// DialRequest bundles everything the upstream client needs for its
// configuration handshake.
type DialRequest struct {
	Config       *models.SessionConfig
	Instructions string
	Tools        []ToolDef
}

// UpstreamDialer opens upstream connections. The production implementation
// lives in internal/upstream; tests substitute a mock.
type UpstreamDialer interface {
	// Dial opens the connection and sends the configuration handshake.
	// It returns a connected client that becomes ready asynchronously via
	// OnReady. A missing credential or a refused dial is returned as an
	// error; a handshake that never completes surfaces through OnError
	// and OnClosed within the configured timeout.
	Dial(ctx context.Context, req DialRequest, h UpstreamHandlers) (Upstream, error)
}
