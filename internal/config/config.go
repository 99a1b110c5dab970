// TableVox - Realtime AI Waiter Relay for Restaurants
// Copyright 2026 TableVox Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tablevox/tablevox

// Package config loads and validates server configuration with layered
// sources: struct defaults, an optional YAML file, then TABLEVOX_*
// environment variables (highest priority).
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration for the relay server.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Upstream  UpstreamConfig  `koanf:"upstream"`
	Heartbeat HeartbeatConfig `koanf:"heartbeat"`
	Store     StoreConfig     `koanf:"store"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig configures the HTTP/WebSocket listener.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	// CORSOrigins lists allowed origins for the upgrade endpoint.
	CORSOrigins []string `koanf:"cors_origins"`
	// RateLimit is requests per minute per IP on the HTTP surface.
	RateLimit int `koanf:"rate_limit"`
}

// UpstreamConfig configures the conversational voice AI connection.
type UpstreamConfig struct {
	// URL is the realtime websocket endpoint.
	URL string `koanf:"url" validate:"required"`
	// APIKey authenticates the upstream connection. A missing key is a
	// per-session connect error, not a startup error: restaurants without
	// the voice feature never dial upstream.
	APIKey string `koanf:"api_key"`
	Model  string `koanf:"model"`
	Voice  string `koanf:"voice"`
	// ConnectTimeout bounds the dial + session-created handshake.
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
	// InputAudioFormat / OutputAudioFormat name the negotiated codecs.
	InputAudioFormat  string `koanf:"input_audio_format"`
	OutputAudioFormat string `koanf:"output_audio_format"`
	// TranscriptionModel transcribes caller audio for transcript events.
	TranscriptionModel string `koanf:"transcription_model"`
	// ServerVAD enables upstream server-side voice activity detection.
	// When disabled, clients must send commit_audio explicitly.
	ServerVAD           bool          `koanf:"server_vad"`
	VADThreshold        float64       `koanf:"vad_threshold"`
	VADSilenceMS        int           `koanf:"vad_silence_ms"`
	VADPrefixPaddingMS  int           `koanf:"vad_prefix_padding_ms"`
	BreakerFailures     uint32        `koanf:"breaker_failures"`
	BreakerResetTimeout time.Duration `koanf:"breaker_reset_timeout"`
}

// HeartbeatConfig configures the liveness sweep.
type HeartbeatConfig struct {
	// Interval is the sweep period; a session missing two consecutive
	// sweeps is evicted.
	Interval time.Duration `koanf:"interval"`
}

// StoreConfig selects the restaurant data store driver.
type StoreConfig struct {
	Driver string `koanf:"driver" validate:"oneof=memory postgres"`
	URL    string `koanf:"url"`
}

// LoggingConfig configures zerolog output.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns the built-in defaults, overridden by file and env.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8090,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimit:       300,
		},
		Upstream: UpstreamConfig{
			URL:                 "wss://api.openai.com/v1/realtime",
			APIKey:              "",
			Model:               "gpt-4o-realtime-preview",
			Voice:               "alloy",
			ConnectTimeout:      15 * time.Second,
			InputAudioFormat:    "pcm16",
			OutputAudioFormat:   "pcm16",
			TranscriptionModel:  "whisper-1",
			ServerVAD:           true,
			VADThreshold:        0.5,
			VADSilenceMS:        500,
			VADPrefixPaddingMS:  300,
			BreakerFailures:     5,
			BreakerResetTimeout: 30 * time.Second,
		},
		Heartbeat: HeartbeatConfig{
			Interval: 30 * time.Second,
		},
		Store: StoreConfig{
			Driver: "memory",
			URL:    "",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Validate checks required configuration and field shapes.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Heartbeat.Interval < time.Second {
		return fmt.Errorf("config: HEARTBEAT_INTERVAL must be at least 1s, got %s", c.Heartbeat.Interval)
	}
	if c.Upstream.ConnectTimeout <= 0 {
		return fmt.Errorf("config: UPSTREAM_CONNECT_TIMEOUT must be positive")
	}
	if c.Store.Driver == "postgres" && c.Store.URL == "" {
		return fmt.Errorf("config: STORE_URL is required when STORE_DRIVER=postgres")
	}
	return nil
}
