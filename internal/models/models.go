// TableVox - Realtime AI Waiter Relay for Restaurants
// Copyright 2026 TableVox Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tablevox/tablevox

// Package models defines the shared domain types for the voice relay:
// restaurants, menu items, session configuration, and cart lines.
package models

import "strings"

// Restaurant is the collaborator-provided restaurant record consulted by
// session bootstrap. Only the fields the relay needs are modeled.
type Restaurant struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Language string `json:"language"`
	// AIWaiterEnabled gates voice sessions; bootstrap fails closed when false.
	AIWaiterEnabled bool `json:"aiWaiterEnabled"`
}

// MenuItem is one entry of a restaurant's menu snapshot.
type MenuItem struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Price       string   `json:"price"`
	Description string   `json:"description,omitempty"`
	Dietary     []string `json:"dietary,omitempty"`
	Allergens   []string `json:"allergens,omitempty"`
	Available   bool     `json:"available"`
}

// CartLine is a cart mutation derived from a resolved tool call. The relay
// emits these to the client and never persists them.
type CartLine struct {
	Item     MenuItem `json:"item"`
	Quantity int      `json:"quantity"`
	Note     string   `json:"note,omitempty"`
}

// SessionConfig is the immutable per-session bundle assembled by bootstrap.
// The menu snapshot is a point-in-time copy; it is never mutated after the
// session starts, so it may be read without locking.
type SessionConfig struct {
	RestaurantID      string
	RestaurantName    string
	Language          string
	CustomerSessionID string
	Menu              []MenuItem
}

// FindItem returns the menu item whose name matches exactly
// (case-insensitively), or false. No fuzzy matching: a near-miss must not
// silently add the wrong item to a cart.
func (c *SessionConfig) FindItem(name string) (MenuItem, bool) {
	for _, item := range c.Menu {
		if strings.EqualFold(item.Name, name) {
			return item, true
		}
	}
	return MenuItem{}, false
}
