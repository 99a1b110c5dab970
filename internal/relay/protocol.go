// TableVox - Realtime AI Waiter Relay for Restaurants
// Copyright 2026 TableVox Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tablevox/tablevox

package relay

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/tablevox/tablevox/internal/models"
)

// CommandType enumerates the client-issued command kinds. The set is closed;
// anything else parses to CommandUnknown and is ignored with a warning.
type CommandType string

const (
	CommandStartSession CommandType = "start_session"
	CommandAudio        CommandType = "audio"
	CommandCommitAudio  CommandType = "commit_audio"
	CommandCancel       CommandType = "cancel"
	CommandText         CommandType = "text"
	CommandEndSession   CommandType = "end_session"
	CommandPing         CommandType = "ping"
	CommandUnknown      CommandType = "unknown"
)

// Command is one inbound JSON frame from the client socket.
type Command struct {
	Type CommandType `json:"type"`

	// start_session fields. restaurantName is accepted for compatibility
	// with clients that send it but has no effect: the authoritative name
	// comes from the restaurant record during bootstrap.
	Language       string `json:"language,omitempty"`
	RestaurantName string `json:"restaurantName,omitempty"`

	// audio carries one base64-encoded chunk of caller audio.
	Audio string `json:"audio,omitempty"`

	// text is the text-only fallback path.
	Text string `json:"text,omitempty"`

	// rawType preserves the original type string for unknown commands.
	rawType string
}

// RawType returns the wire value of the type field, useful when Type is
// CommandUnknown.
func (c Command) RawType() string {
	if c.rawType != "" {
		return c.rawType
	}
	return string(c.Type)
}

// ParseCommand decodes one client frame. Malformed JSON is an error;
// a well-formed frame with an unrecognized type yields CommandUnknown.
func ParseCommand(data []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return Command{}, fmt.Errorf("relay: malformed client frame: %w", err)
	}

	switch cmd.Type {
	case CommandStartSession, CommandAudio, CommandCommitAudio,
		CommandCancel, CommandText, CommandEndSession, CommandPing:
		return cmd, nil
	default:
		cmd.rawType = string(cmd.Type)
		cmd.Type = CommandUnknown
		return cmd, nil
	}
}

// EventType enumerates the server-emitted event kinds.
type EventType string

const (
	EventSessionStarted EventType = "session_started"
	EventAudio          EventType = "audio"
	EventTranscript     EventType = "transcript"
	EventResponseDone   EventType = "response_done"
	EventAddToCart      EventType = "add_to_cart"
	EventRemoveFromCart EventType = "remove_from_cart"
	EventError          EventType = "error"
	EventSessionEnded   EventType = "session_ended"
	EventPong           EventType = "pong"
)

// Event is one outbound JSON frame to the client socket.
type Event struct {
	Type EventType `json:"type"`

	SessionID string `json:"sessionId,omitempty"`

	Audio string `json:"audio,omitempty"`

	Transcript string `json:"transcript,omitempty"`
	IsFinal    bool   `json:"isFinal,omitempty"`
	Role       string `json:"role,omitempty"`

	// Cart mutation payload: the fully resolved menu item plus the
	// requested quantity and optional free-text note.
	Item     *models.MenuItem `json:"item,omitempty"`
	Quantity int              `json:"quantity,omitempty"`
	Note     string           `json:"note,omitempty"`

	Error string `json:"error,omitempty"`
}

// NewErrorEvent builds a client-visible error frame.
func NewErrorEvent(msg string) Event {
	return Event{Type: EventError, Error: msg}
}

// NewAudioEvent wraps one base64 chunk of synthesized speech.
func NewAudioEvent(b64 string) Event {
	return Event{Type: EventAudio, Audio: b64}
}

// NewTranscriptEvent wraps a transcript fragment with its speaker role.
func NewTranscriptEvent(text string, final bool, role string) Event {
	return Event{Type: EventTranscript, Transcript: text, IsFinal: final, Role: role}
}

// NewCartEvent wraps a resolved cart mutation. kind is EventAddToCart or
// EventRemoveFromCart.
func NewCartEvent(kind EventType, line models.CartLine) Event {
	item := line.Item
	return Event{Type: kind, Item: &item, Quantity: line.Quantity, Note: line.Note}
}

// MarshalEvent encodes an event for the wire.
func MarshalEvent(evt Event) ([]byte, error) {
	return json.Marshal(evt)
}
