// TableVox - Realtime AI Waiter Relay for Restaurants
// Copyright 2026 TableVox Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tablevox/tablevox

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load with defaults: %v", err)
	}

	if cfg.Server.Port != 8090 {
		t.Errorf("default port = %d, want 8090", cfg.Server.Port)
	}
	if cfg.Upstream.Model != "gpt-4o-realtime-preview" {
		t.Errorf("default model = %q", cfg.Upstream.Model)
	}
	if !cfg.Upstream.ServerVAD {
		t.Errorf("server VAD not enabled by default")
	}
	if cfg.Heartbeat.Interval != 30*time.Second {
		t.Errorf("default heartbeat interval = %v", cfg.Heartbeat.Interval)
	}
	if cfg.Store.Driver != "memory" {
		t.Errorf("default store driver = %q", cfg.Store.Driver)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("TABLEVOX_SERVER_PORT", "9999")
	t.Setenv("TABLEVOX_UPSTREAM_API_KEY", "sk-test")
	t.Setenv("TABLEVOX_LOGGING_LEVEL", "debug")
	t.Setenv("TABLEVOX_HEARTBEAT_INTERVAL", "45s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Errorf("port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Upstream.APIKey != "sk-test" {
		t.Errorf("api key = %q", cfg.Upstream.APIKey)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %q", cfg.Logging.Level)
	}
	if cfg.Heartbeat.Interval != 45*time.Second {
		t.Errorf("heartbeat interval = %v", cfg.Heartbeat.Interval)
	}
}

func TestLoadCORSOriginsFromEnv(t *testing.T) {
	t.Setenv("TABLEVOX_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Server.CORSOrigins) != 2 {
		t.Fatalf("cors origins = %v", cfg.Server.CORSOrigins)
	}
	if cfg.Server.CORSOrigins[1] != "https://b.example" {
		t.Errorf("cors origins not trimmed: %v", cfg.Server.CORSOrigins)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("server:\n  port: 7070\nstore:\n  driver: memory\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("port from file = %d, want 7070", cfg.Server.Port)
	}
}

func TestEnvBeatsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 7070\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("TABLEVOX_SERVER_PORT", "7071")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 7071 {
		t.Errorf("port = %d, want env override 7071", cfg.Server.Port)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"missing upstream url", func(c *Config) { c.Upstream.URL = "" }},
		{"bad store driver", func(c *Config) { c.Store.Driver = "sqlite" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"sub-second heartbeat", func(c *Config) { c.Heartbeat.Interval = 100 * time.Millisecond }},
		{"zero connect timeout", func(c *Config) { c.Upstream.ConnectTimeout = 0 }},
		{"postgres without url", func(c *Config) { c.Store.Driver = "postgres"; c.Store.URL = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Validate accepted invalid config")
			}
		})
	}
}

func TestEnvTransform(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"TABLEVOX_SERVER_PORT", "server.port"},
		{"TABLEVOX_UPSTREAM_API_KEY", "upstream.api_key"},
		{"TABLEVOX_SERVER_CORS_ORIGINS", "server.cors_origins"},
	}
	for _, tt := range tests {
		if got := envTransform(tt.in); got != tt.want {
			t.Errorf("envTransform(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
