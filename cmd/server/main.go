// TableVox - Realtime AI Waiter Relay for Restaurants
// Copyright 2026 TableVox Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tablevox/tablevox

// Command server runs the TableVox relay: it accepts customer and staff
// websocket connections, bridges customer sessions to the realtime voice
// AI upstream, and fans cart updates out to restaurant staff.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tablevox/tablevox/internal/api"
	"github.com/tablevox/tablevox/internal/config"
	"github.com/tablevox/tablevox/internal/logging"
	"github.com/tablevox/tablevox/internal/relay"
	"github.com/tablevox/tablevox/internal/store"
	"github.com/tablevox/tablevox/internal/supervisor"
	"github.com/tablevox/tablevox/internal/supervisor/services"
	"github.com/tablevox/tablevox/internal/upstream"
)

func main() {
	if err := run(); err != nil {
		logging.Error().Err(err).Msg("server exited with error")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().
		Str("store_driver", cfg.Store.Driver).
		Int("port", cfg.Server.Port).
		Msg("starting tablevox relay")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.New(ctx, store.Config{
		Driver: cfg.Store.Driver,
		URL:    cfg.Store.URL,
	})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	registry := relay.NewRegistry()
	bootstrap := relay.NewBootstrapper(st)
	dialer := upstream.NewDialer(cfg.Upstream)
	monitor := relay.NewMonitor(registry, cfg.Heartbeat.Interval)

	handler := api.NewHandler(registry, bootstrap, dialer, cfg.Server)
	router := api.NewRouter(handler, cfg.Server)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	tree, err := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return fmt.Errorf("build supervision tree: %w", err)
	}
	tree.AddRelayService(monitor)
	tree.AddAPIService(services.NewHTTPServerService(httpServer, cfg.Server.ShutdownTimeout))

	errCh := tree.ServeBackground(ctx)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("supervisor: %w", err)
		}
	case <-ctx.Done():
		logging.Info().Msg("shutdown signal received, draining sessions")
		registry.CloseAll()
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("supervisor: %w", err)
		}
	}

	logging.Info().Msg("tablevox relay stopped")
	return nil
}
