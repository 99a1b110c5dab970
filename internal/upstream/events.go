// TableVox - Realtime AI Waiter Relay for Restaurants
// Copyright 2026 TableVox Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tablevox/tablevox

package upstream

// Wire messages for the realtime voice API. Only the fields the relay uses
// are modeled; the upstream may send event kinds not listed here and they
// are ignored.

// Inbound event kinds the relay understands.
const (
	kindSessionCreated         = "session.created"
	kindAudioDelta             = "response.audio.delta"
	kindInputTranscriptDone    = "conversation.item.input_audio_transcription.completed"
	kindResponseTranscriptDone = "response.audio_transcript.done"
	kindResponseDone           = "response.done"
	kindToolCallArgsDone       = "response.function_call_arguments.done"
	kindError                  = "error"
)

// serverEvent is the superset decode target for inbound events.
type serverEvent struct {
	Type       string       `json:"type"`
	Delta      string       `json:"delta,omitempty"`
	Transcript string       `json:"transcript,omitempty"`
	CallID     string       `json:"call_id,omitempty"`
	Name       string       `json:"name,omitempty"`
	Arguments  string       `json:"arguments,omitempty"`
	Error      *serverError `json:"error,omitempty"`
}

type serverError struct {
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Outbound messages.

type sessionUpdate struct {
	Type    string        `json:"type"`
	Session sessionParams `json:"session"`
}

type sessionParams struct {
	Modalities              []string             `json:"modalities"`
	Voice                   string               `json:"voice"`
	Instructions            string               `json:"instructions"`
	InputAudioFormat        string               `json:"input_audio_format"`
	OutputAudioFormat       string               `json:"output_audio_format"`
	InputAudioTranscription *transcriptionParams `json:"input_audio_transcription,omitempty"`
	TurnDetection           *turnDetection       `json:"turn_detection,omitempty"`
	Tools                   []toolSchema         `json:"tools"`
	ToolChoice              string               `json:"tool_choice"`
}

type transcriptionParams struct {
	Model string `json:"model"`
}

type turnDetection struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold"`
	SilenceDurationMS int     `json:"silence_duration_ms"`
	PrefixPaddingMS   int     `json:"prefix_padding_ms"`
}

type toolSchema struct {
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type audioAppend struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

type audioCommit struct {
	Type string `json:"type"`
}

type responseCreate struct {
	Type string `json:"type"`
}

type responseCancel struct {
	Type string `json:"type"`
}

type conversationItemCreate struct {
	Type string           `json:"type"`
	Item conversationItem `json:"item"`
}

type conversationItem struct {
	Type    string        `json:"type"`
	Role    string        `json:"role,omitempty"`
	CallID  string        `json:"call_id,omitempty"`
	Output  string        `json:"output,omitempty"`
	Content []contentPart `json:"content,omitempty"`
}

type contentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}
