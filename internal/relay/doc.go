// TableVox - Realtime AI Waiter Relay for Restaurants
// Copyright 2026 TableVox Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tablevox/tablevox

// Package relay implements the realtime voice-session core: the connection
// registry, the per-client session state machine, session bootstrap, the
// liveness monitor, and tool-call resolution against the menu snapshot.
//
// Each client connection runs one Session on its own goroutine; a started
// session owns exactly one upstream voice-AI connection with its own read
// goroutine. The Registry is the only structure mutated across sessions and
// serializes its own access.
package relay
