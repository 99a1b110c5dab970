// TableVox - Realtime AI Waiter Relay for Restaurants
// Copyright 2026 TableVox Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tablevox/tablevox

// Package upstream implements the client for the external conversational
// voice AI: one websocket per relay session, a configuration handshake, a
// small command surface, and a dispatch table translating upstream events
// into relay callbacks.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tablevox/tablevox/internal/config"
	"github.com/tablevox/tablevox/internal/logging"
	"github.com/tablevox/tablevox/internal/metrics"
	"github.com/tablevox/tablevox/internal/relay"
)

const writeWait = 10 * time.Second

// Connect errors surfaced to the relay's start transition.
var (
	// ErrMissingCredential means no upstream API key is configured.
	ErrMissingCredential = errors.New("upstream: missing API credential")

	// ErrHandshakeTimeout means the upstream never acknowledged session
	// creation within the configured window.
	ErrHandshakeTimeout = errors.New("upstream: handshake timeout")
)

// Dialer opens upstream connections. A circuit breaker guards the dial so
// a failing upstream fast-fails start_session instead of burning the full
// connect timeout per attempt.
type Dialer struct {
	cfg     config.UpstreamConfig
	breaker *gobreaker.CircuitBreaker[*websocket.Conn]
}

// NewDialer creates a Dialer for the configured upstream endpoint.
func NewDialer(cfg config.UpstreamConfig) *Dialer {
	settings := gobreaker.Settings{
		Name:    "upstream-dial",
		Timeout: cfg.BreakerResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("upstream dial breaker state change")
		},
	}
	return &Dialer{
		cfg:     cfg,
		breaker: gobreaker.NewCircuitBreaker[*websocket.Conn](settings),
	}
}

// Dial implements relay.UpstreamDialer. It opens the websocket, sends the
// configuration handshake, and starts the read goroutine. The returned
// client becomes ready asynchronously when the upstream acknowledges the
// session; a handshake that never completes surfaces via OnClosed with
// ErrHandshakeTimeout.
func (d *Dialer) Dial(ctx context.Context, req relay.DialRequest, h relay.UpstreamHandlers) (relay.Upstream, error) {
	if d.cfg.APIKey == "" {
		return nil, ErrMissingCredential
	}

	start := time.Now()
	conn, err := d.breaker.Execute(func() (*websocket.Conn, error) {
		dialer := websocket.Dialer{HandshakeTimeout: d.cfg.ConnectTimeout}
		header := http.Header{}
		header.Set("Authorization", "Bearer "+d.cfg.APIKey)
		header.Set("OpenAI-Beta", "realtime=v1")

		conn, resp, err := dialer.DialContext(ctx, d.cfg.URL+"?model="+d.cfg.Model, header)
		if err != nil {
			if resp != nil {
				return nil, fmt.Errorf("upstream: dial failed with status %d: %w", resp.StatusCode, err)
			}
			return nil, fmt.Errorf("upstream: dial failed: %w", err)
		}
		return conn, nil
	})
	if err != nil {
		return nil, err
	}
	metrics.ObserveUpstreamConnect(start)

	c := &Client{
		conn:     conn,
		cfg:      d.cfg,
		handlers: h,
		readyCh:  make(chan struct{}),
		logger: logging.With().
			Str("component", "upstream").
			Str("restaurant_id", req.Config.RestaurantID).
			Logger(),
	}

	if err := c.sendHandshake(req); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("upstream: handshake send: %w", err)
	}

	go c.readLoop()
	go c.watchHandshake()

	return c, nil
}

// Client is one live upstream connection. Commands may arrive from the
// session goroutine and the session's upstream callbacks; writes serialize
// through writeMu (gorilla allows one concurrent writer).
type Client struct {
	conn     *websocket.Conn
	cfg      config.UpstreamConfig
	handlers relay.UpstreamHandlers
	logger   zerolog.Logger

	writeMu   sync.Mutex
	ready     atomic.Bool
	readyOnce sync.Once
	readyCh   chan struct{}
	closed    atomic.Bool
}

// sendHandshake pushes the session configuration: modalities, voice,
// codecs, transcription, turn detection, tool schemas, and instructions.
func (c *Client) sendHandshake(req relay.DialRequest) error {
	params := sessionParams{
		Modalities:        []string{"text", "audio"},
		Voice:             c.cfg.Voice,
		Instructions:      req.Instructions,
		InputAudioFormat:  c.cfg.InputAudioFormat,
		OutputAudioFormat: c.cfg.OutputAudioFormat,
		Tools:             make([]toolSchema, 0, len(req.Tools)),
		ToolChoice:        "auto",
	}
	if c.cfg.TranscriptionModel != "" {
		params.InputAudioTranscription = &transcriptionParams{Model: c.cfg.TranscriptionModel}
	}
	if c.cfg.ServerVAD {
		params.TurnDetection = &turnDetection{
			Type:              "server_vad",
			Threshold:         c.cfg.VADThreshold,
			SilenceDurationMS: c.cfg.VADSilenceMS,
			PrefixPaddingMS:   c.cfg.VADPrefixPaddingMS,
		}
	}
	for _, t := range req.Tools {
		params.Tools = append(params.Tools, toolSchema{
			Type:        "function",
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		})
	}
	return c.writeJSON(sessionUpdate{Type: "session.update", Session: params})
}

// watchHandshake enforces the connect timeout on the session-created
// acknowledgment.
func (c *Client) watchHandshake() {
	timer := time.NewTimer(c.cfg.ConnectTimeout)
	defer timer.Stop()
	select {
	case <-c.readyCh:
	case <-timer.C:
		c.logger.Warn().Dur("timeout", c.cfg.ConnectTimeout).Msg("upstream never signaled ready")
		c.close(ErrHandshakeTimeout)
	}
}

func (c *Client) readLoop() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.close(err)
			return
		}

		var evt serverEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			c.logger.Warn().Err(err).Msg("ignoring undecodable upstream frame")
			continue
		}
		c.dispatch(evt)
	}
}

// dispatch routes one upstream event to the relay callbacks. The kind set
// is closed with an explicit unknown arm: protocol additions are counted
// and ignored, never fatal.
func (c *Client) dispatch(evt serverEvent) {
	metrics.UpstreamEvents.WithLabelValues(metricLabel(evt.Type)).Inc()

	switch evt.Type {
	case kindSessionCreated:
		c.ready.Store(true)
		c.readyOnce.Do(func() { close(c.readyCh) })
		if c.handlers.OnReady != nil {
			c.handlers.OnReady()
		}

	case kindAudioDelta:
		if c.handlers.OnAudio != nil {
			c.handlers.OnAudio(evt.Delta)
		}

	case kindInputTranscriptDone:
		if c.handlers.OnTranscript != nil {
			c.handlers.OnTranscript(evt.Transcript, true, "user")
		}

	case kindResponseTranscriptDone:
		if c.handlers.OnTranscript != nil {
			c.handlers.OnTranscript(evt.Transcript, true, "assistant")
		}

	case kindResponseDone:
		if c.handlers.OnResponseDone != nil {
			c.handlers.OnResponseDone()
		}

	case kindToolCallArgsDone:
		if c.handlers.OnToolCall != nil {
			c.handlers.OnToolCall(relay.ToolCall{
				ID:        evt.CallID,
				Name:      evt.Name,
				Arguments: []byte(evt.Arguments),
			})
		}

	case kindError:
		msg := "unspecified upstream error"
		if evt.Error != nil && evt.Error.Message != "" {
			msg = evt.Error.Message
		}
		if c.handlers.OnError != nil {
			c.handlers.OnError(msg)
		}

	default:
		c.logger.Debug().Str("event", evt.Type).Msg("ignoring unknown upstream event kind")
	}
}

// metricLabel collapses unrecognized kinds to a single label value to keep
// metric cardinality bounded.
func metricLabel(kind string) string {
	switch kind {
	case kindSessionCreated, kindAudioDelta, kindInputTranscriptDone,
		kindResponseTranscriptDone, kindResponseDone, kindToolCallArgsDone, kindError:
		return kind
	default:
		return "unknown"
	}
}

// SendAudio implements relay.Upstream. Client audio may race connection
// setup, so sending before ready is a logged no-op rather than an error.
func (c *Client) SendAudio(b64 string) {
	if !c.ready.Load() {
		c.logger.Warn().Msg("dropping audio sent before upstream ready")
		return
	}
	if err := c.writeJSON(audioAppend{Type: "input_audio_buffer.append", Audio: b64}); err != nil {
		c.logger.Warn().Err(err).Msg("audio append write failed")
	}
}

// CommitAudio implements relay.Upstream: close the caller's turn and
// request a reply.
func (c *Client) CommitAudio() {
	if err := c.writeJSON(audioCommit{Type: "input_audio_buffer.commit"}); err != nil {
		c.logger.Warn().Err(err).Msg("audio commit write failed")
		return
	}
	if err := c.writeJSON(responseCreate{Type: "response.create"}); err != nil {
		c.logger.Warn().Err(err).Msg("response create write failed")
	}
}

// CancelResponse implements relay.Upstream. Advisory; safe when no response
// is in progress.
func (c *Client) CancelResponse() {
	if err := c.writeJSON(responseCancel{Type: "response.cancel"}); err != nil {
		c.logger.Warn().Err(err).Msg("response cancel write failed")
	}
}

// SendText implements relay.Upstream: inject a user message and request a
// reply.
func (c *Client) SendText(text string) {
	item := conversationItemCreate{
		Type: "conversation.item.create",
		Item: conversationItem{
			Type:    "message",
			Role:    "user",
			Content: []contentPart{{Type: "input_text", Text: text}},
		},
	}
	if err := c.writeJSON(item); err != nil {
		c.logger.Warn().Err(err).Msg("text item write failed")
		return
	}
	if err := c.writeJSON(responseCreate{Type: "response.create"}); err != nil {
		c.logger.Warn().Err(err).Msg("response create write failed")
	}
}

// SendToolResult implements relay.Upstream: acknowledge the tool call by
// correlation id, then signal the upstream to continue generating. Skipping
// either message stalls the conversation.
func (c *Client) SendToolResult(callID string, result any) error {
	output, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("upstream: marshal tool result: %w", err)
	}
	item := conversationItemCreate{
		Type: "conversation.item.create",
		Item: conversationItem{
			Type:   "function_call_output",
			CallID: callID,
			Output: string(output),
		},
	}
	if err := c.writeJSON(item); err != nil {
		return fmt.Errorf("upstream: tool result write: %w", err)
	}
	if err := c.writeJSON(responseCreate{Type: "response.create"}); err != nil {
		return fmt.Errorf("upstream: post-tool response create: %w", err)
	}
	return nil
}

// Disconnect implements relay.Upstream. Idempotent.
func (c *Client) Disconnect() {
	c.close(nil)
}

// close tears the connection down and fires OnClosed exactly once. The flag
// is a CAS rather than a sync.Once: OnClosed handlers run session teardown,
// which calls back into Disconnect, and re-entering a Once body deadlocks.
func (c *Client) close(err error) {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}

	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	c.writeMu.Unlock()
	_ = c.conn.Close()

	if c.handlers.OnClosed != nil {
		c.handlers.OnClosed(err)
	}
}

func (c *Client) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}
