// TableVox - Realtime AI Waiter Relay for Restaurants
// Copyright 2026 TableVox Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tablevox/tablevox

package relay

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tablevox/tablevox/internal/logging"
	"github.com/tablevox/tablevox/internal/metrics"
	"github.com/tablevox/tablevox/internal/models"
)

// State is the relay session lifecycle state.
type State int32

const (
	// StateConnected: client socket open, no upstream yet.
	StateConnected State = iota
	// StateStarting: upstream connect in flight.
	StateStarting
	// StateActive: upstream ready, bidirectional relay flowing.
	StateActive
	// StateEnding: teardown in progress.
	StateEnding
	// StateClosed: terminal.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateStarting:
		return "starting"
	case StateActive:
		return "active"
	case StateEnding:
		return "ending"
	case StateClosed:
		return "closed"
	default:
		return "invalid"
	}
}

// SessionParams identify a new client connection.
type SessionParams struct {
	RestaurantID      string
	CustomerSessionID string
	Role              Role
}

// Session ties one client connection to at most one upstream voice-AI
// connection. Client commands are processed in receipt order by the Run
// goroutine; upstream events arrive on the upstream read goroutine. State
// transitions from both directions go through the session mutex; teardown
// is funneled through a sync.Once so double disconnects are harmless.
type Session struct {
	ID                string
	RestaurantID      string
	CustomerSessionID string
	Role              Role

	conn      ClientConn
	registry  *Registry
	bootstrap *Bootstrapper
	dialer    UpstreamDialer

	mu    sync.Mutex
	state State
	up    Upstream

	alive     atomic.Bool
	closeOnce sync.Once
	logger    zerolog.Logger
}

// NewSession creates a session for an accepted client connection. The
// session identity is generated here and never changes.
func NewSession(conn ClientConn, registry *Registry, bootstrap *Bootstrapper, dialer UpstreamDialer, params SessionParams) *Session {
	id := uuid.New().String()
	role := params.Role
	if role == "" {
		role = RoleCustomer
	}
	s := &Session{
		ID:                id,
		RestaurantID:      params.RestaurantID,
		CustomerSessionID: params.CustomerSessionID,
		Role:              role,
		conn:              conn,
		registry:          registry,
		bootstrap:         bootstrap,
		dialer:            dialer,
		state:             StateConnected,
		logger: logging.With().
			Str("session_id", id).
			Str("restaurant_id", params.RestaurantID).
			Str("role", string(role)).
			Logger(),
	}
	s.alive.Store(true)
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Run registers the session and drains the client socket until it closes.
// It blocks for the lifetime of the connection; teardown runs before return.
func (s *Session) Run(ctx context.Context) {
	s.registry.Register(s)
	s.conn.SetPongHandler(s.MarkAlive)
	defer s.Terminate("client disconnected")

	for {
		data, err := s.conn.ReadMessage()
		if err != nil {
			s.logger.Debug().Err(err).Msg("client socket closed")
			return
		}
		s.MarkAlive()

		cmd, err := ParseCommand(data)
		if err != nil {
			// Protocol errors are logged, never echoed: a noisy client
			// must not be able to spam itself with error frames.
			s.logger.Warn().Err(err).Msg("ignoring malformed client frame")
			continue
		}
		s.handleCommand(ctx, cmd)
	}
}

func (s *Session) handleCommand(ctx context.Context, cmd Command) {
	metrics.ClientCommands.WithLabelValues(string(cmd.Type)).Inc()

	switch cmd.Type {
	case CommandPing:
		s.emit(Event{Type: EventPong})

	case CommandStartSession:
		s.handleStart(ctx, cmd)

	case CommandAudio:
		if up := s.upstreamRef(); up != nil {
			up.SendAudio(cmd.Audio)
		} else {
			s.logger.Warn().Msg("audio before start_session ignored")
		}

	case CommandCommitAudio:
		if up := s.upstreamRef(); up != nil {
			up.CommitAudio()
		} else {
			s.logger.Warn().Msg("commit_audio before start_session ignored")
		}

	case CommandCancel:
		if up := s.upstreamRef(); up != nil {
			up.CancelResponse()
		}

	case CommandText:
		if up := s.upstreamRef(); up != nil {
			up.SendText(cmd.Text)
		} else {
			s.logger.Warn().Msg("text before start_session ignored")
		}

	case CommandEndSession:
		s.emit(Event{Type: EventSessionEnded})
		s.Terminate("client ended session")

	default:
		s.logger.Warn().Str("command", cmd.RawType()).Msg("ignoring unrecognized client command")
	}
}

// handleStart drives Connected -> Starting -> (Active | back to Connected).
func (s *Session) handleStart(ctx context.Context, cmd Command) {
	if s.Role != RoleCustomer {
		s.emit(NewErrorEvent("only customer connections may start voice sessions"))
		return
	}

	s.mu.Lock()
	if s.state != StateConnected {
		state := s.state
		s.mu.Unlock()
		s.logger.Warn().Str("state", state.String()).Msg("start_session ignored in current state")
		return
	}
	s.state = StateStarting
	s.mu.Unlock()

	cfg, err := s.bootstrap.Resolve(ctx, s.RestaurantID, s.CustomerSessionID, cmd.Language)
	if err != nil {
		s.failStart("config", err)
		return
	}

	req := DialRequest{
		Config:       cfg,
		Instructions: BuildInstructions(cfg),
		Tools:        ToolDefs(),
	}
	up, err := s.dialer.Dial(ctx, req, s.upstreamHandlers(cfg))
	if err != nil {
		s.failStart("upstream_connect", err)
		return
	}

	s.mu.Lock()
	switch s.state {
	case StateStarting, StateActive:
		// The upstream read goroutine starts before Dial returns, so a
		// fast handshake can fire OnReady (moving to Active) first.
		s.up = up
		s.mu.Unlock()
	default:
		// Torn down or failed while the dial was in flight.
		s.mu.Unlock()
		up.Disconnect()
	}
}

// failStart reverts a failed start to Connected and reports it to the
// client; the session remains addressable for a retry.
func (s *Session) failStart(reason string, err error) {
	s.mu.Lock()
	if s.state == StateStarting {
		s.state = StateConnected
		s.up = nil
	}
	s.mu.Unlock()

	metrics.SessionStartFailures.WithLabelValues(reason).Inc()
	s.logger.Warn().Err(err).Str("reason", reason).Msg("start_session failed")
	s.emit(NewErrorEvent(startErrorMessage(err)))
}

// startErrorMessage maps start failures to client-facing text without
// leaking internals.
func startErrorMessage(err error) string {
	switch {
	case errors.Is(err, ErrRestaurantNotFound):
		return "restaurant not found"
	case errors.Is(err, ErrWaiterDisabled):
		return "the AI waiter is not enabled for this restaurant"
	default:
		return "could not connect to the voice service, please try again"
	}
}

// upstreamHandlers builds the callback surface for one started session. The
// resolved config is captured here so tool resolution never races session
// state.
func (s *Session) upstreamHandlers(cfg *models.SessionConfig) UpstreamHandlers {
	return UpstreamHandlers{
		OnReady: func() {
			s.mu.Lock()
			if s.state != StateStarting {
				s.mu.Unlock()
				return
			}
			s.state = StateActive
			s.mu.Unlock()

			metrics.SessionsStarted.Inc()
			s.logger.Info().Msg("voice session active")
			s.emit(Event{Type: EventSessionStarted, SessionID: s.ID})
		},
		OnAudio: func(b64 string) {
			s.emit(NewAudioEvent(b64))
		},
		OnTranscript: func(text string, final bool, role string) {
			s.emit(NewTranscriptEvent(text, final, role))
		},
		OnResponseDone: func() {
			s.emit(Event{Type: EventResponseDone})
		},
		OnToolCall: func(call ToolCall) {
			s.handleToolCall(cfg, call)
		},
		OnError: func(msg string) {
			// Runtime error: surfaced, but the session stays Active
			// unless the upstream also closes its socket.
			s.logger.Warn().Str("upstream_error", msg).Msg("upstream reported error")
			s.emit(NewErrorEvent("voice service error: " + msg))
		},
		OnClosed: s.onUpstreamClosed,
	}
}

// onUpstreamClosed reacts to the upstream leg ending. During Starting the
// session falls back to Connected for a retry; during Active any upstream
// close is terminal for the session.
func (s *Session) onUpstreamClosed(err error) {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()

	switch state {
	case StateStarting:
		s.failStart("upstream_connect", err)
	case StateActive:
		s.logger.Info().Err(err).Msg("upstream connection closed, ending session")
		s.emit(Event{Type: EventSessionEnded})
		s.Terminate("upstream closed")
	default:
		// Already ending or closed; the disconnect raced normal teardown.
	}
}

// handleToolCall resolves one upstream function invocation against the menu
// snapshot. Every call is acknowledged exactly once, match or miss — an
// unacknowledged call stalls the upstream conversation indefinitely.
func (s *Session) handleToolCall(cfg *models.SessionConfig, call ToolCall) {
	switch call.Name {
	case ToolAddToCart, ToolRemoveFromCart:
	default:
		metrics.ToolCalls.WithLabelValues(call.Name, "unknown_tool").Inc()
		s.logger.Warn().Str("tool", call.Name).Msg("unknown tool call")
		s.ackToolCall(call, toolResult{Success: false, Message: "unknown tool"})
		return
	}

	line, args, ok, err := resolveCartCall(cfg, call)
	if err != nil {
		metrics.ToolCalls.WithLabelValues(call.Name, "invalid_args").Inc()
		s.logger.Warn().Err(err).Str("tool", call.Name).Msg("unresolvable tool call")
		s.ackToolCall(call, toolResult{Success: false, Message: "invalid arguments"})
		return
	}
	if !ok {
		// Exact-match-only: no cart event for a near-miss. The AI recovers
		// conversationally from the failed acknowledgment.
		metrics.ToolCalls.WithLabelValues(call.Name, "miss").Inc()
		s.logger.Warn().
			Str("tool", call.Name).
			Str("item_name", args.ItemName).
			Msg("tool call item has no exact menu match")
		s.ackToolCall(call, toolResult{Success: false, Message: "no menu item named " + args.ItemName})
		return
	}

	metrics.ToolCalls.WithLabelValues(call.Name, "resolved").Inc()
	kind := EventAddToCart
	if call.Name == ToolRemoveFromCart {
		kind = EventRemoveFromCart
	}
	evt := NewCartEvent(kind, line)
	s.emit(evt)
	s.fanOutToStaff(evt)

	s.ackToolCall(call, toolResult{
		Success:  true,
		ItemName: line.Item.Name,
		Quantity: line.Quantity,
	})
}

func (s *Session) ackToolCall(call ToolCall, res toolResult) {
	up := s.upstreamRef()
	if up == nil {
		s.logger.Warn().Str("call_id", call.ID).Msg("tool call with no upstream to acknowledge")
		return
	}
	if err := up.SendToolResult(call.ID, res); err != nil {
		s.logger.Error().Err(err).Str("call_id", call.ID).Msg("failed to send tool result upstream")
	}
}

// fanOutToStaff mirrors a cart mutation to every staff dashboard of the
// restaurant.
func (s *Session) fanOutToStaff(evt Event) {
	for _, staff := range s.registry.Lookup(s.RestaurantID, RoleStaff, "") {
		if err := staff.Emit(evt); err != nil {
			staff.logger.Warn().Err(err).Msg("staff fan-out write failed")
		}
	}
}

// Emit writes one event to this session's client.
func (s *Session) Emit(evt Event) error {
	return s.conn.WriteEvent(evt)
}

func (s *Session) emit(evt Event) {
	if err := s.conn.WriteEvent(evt); err != nil {
		s.logger.Warn().Err(err).Str("event", string(evt.Type)).Msg("client write failed")
	}
}

func (s *Session) upstreamRef() Upstream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.up
}

// MarkAlive records liveness; called for every inbound client frame and
// every answered ping.
func (s *Session) MarkAlive() {
	s.alive.Store(true)
}

// ConsumeLiveness returns whether the session answered since the previous
// sweep and arms the next one.
func (s *Session) ConsumeLiveness() bool {
	return s.alive.Swap(false)
}

// PingClient sends a liveness probe on the client socket.
func (s *Session) PingClient() error {
	return s.conn.Ping()
}

// Terminate tears the session down: upstream disconnected, registry entry
// removed, client socket closed. Idempotent; closing either leg funnels
// here, so a double disconnect is a safe no-op.
func (s *Session) Terminate(reason string) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = StateEnding
		up := s.up
		s.up = nil
		s.mu.Unlock()

		if up != nil {
			up.Disconnect()
		}
		s.registry.Deregister(s)
		_ = s.conn.Close()

		s.mu.Lock()
		s.state = StateClosed
		s.mu.Unlock()

		s.logger.Info().Str("reason", reason).Msg("session closed")
	})
}
