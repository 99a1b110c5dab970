// TableVox - Realtime AI Waiter Relay for Restaurants
// Copyright 2026 TableVox Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tablevox/tablevox

// Package store defines the narrow contracts the relay consumes from the
// restaurant data store. The relay only performs key lookups here; all CRUD
// belongs to the separate management backend.
package store

import (
	"context"
	"errors"

	"github.com/tablevox/tablevox/internal/models"
)

// ErrNotFound is returned when a restaurant does not exist.
var ErrNotFound = errors.New("store: restaurant not found")

// ErrInvalidDriver is returned by New for an unrecognized driver name.
var ErrInvalidDriver = errors.New("store: invalid driver")

// RestaurantStore reads restaurant records.
type RestaurantStore interface {
	// GetRestaurant returns the restaurant, or ErrNotFound.
	GetRestaurant(ctx context.Context, id string) (*models.Restaurant, error)
}

// MenuStore reads menu snapshots.
type MenuStore interface {
	// ListMenuItems returns all menu items for the restaurant, including
	// unavailable ones. Callers filter by availability.
	ListMenuItems(ctx context.Context, restaurantID string) ([]models.MenuItem, error)
}

// Store is the combined collaborator surface consumed by session bootstrap.
type Store interface {
	RestaurantStore
	MenuStore

	// Close releases any underlying resources. Idempotent.
	Close() error
}

// Driver names accepted by New.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// Config selects and parameterizes a store driver.
type Config struct {
	Driver string
	// URL is the Postgres connection string (postgres driver only).
	URL string
}

// New constructs a Store for the configured driver.
func New(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case DriverMemory, "":
		return NewMemoryStore(), nil
	case DriverPostgres:
		return NewPostgresStore(ctx, cfg.URL)
	default:
		return nil, ErrInvalidDriver
	}
}
