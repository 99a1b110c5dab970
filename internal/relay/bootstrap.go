// TableVox - Realtime AI Waiter Relay for Restaurants
// Copyright 2026 TableVox Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tablevox/tablevox

package relay

import (
	"context"
	"errors"
	"fmt"

	"github.com/tablevox/tablevox/internal/models"
	"github.com/tablevox/tablevox/internal/store"
)

// Bootstrap configuration errors. Both keep the session in Connected so the
// client may retry start_session.
var (
	// ErrRestaurantNotFound means the restaurant id resolved to nothing.
	ErrRestaurantNotFound = errors.New("relay: restaurant not found")

	// ErrWaiterDisabled means the restaurant exists but has the AI waiter
	// feature switched off. Bootstrap fails closed.
	ErrWaiterDisabled = errors.New("relay: AI waiter disabled for restaurant")
)

// Bootstrapper resolves a session request into an immutable SessionConfig by
// consulting the restaurant data store. Pure read-then-assemble; no state.
type Bootstrapper struct {
	store store.Store
}

// NewBootstrapper creates a Bootstrapper over the given store.
func NewBootstrapper(st store.Store) *Bootstrapper {
	return &Bootstrapper{store: st}
}

// Resolve fetches the restaurant and its menu and assembles a session
// configuration. The menu snapshot is filtered to available items and copied;
// it is never re-synced for the lifetime of the session.
func (b *Bootstrapper) Resolve(ctx context.Context, restaurantID, customerSessionID, languageOverride string) (*models.SessionConfig, error) {
	restaurant, err := b.store.GetRestaurant(ctx, restaurantID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrRestaurantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("relay: fetch restaurant %s: %w", restaurantID, err)
	}
	if !restaurant.AIWaiterEnabled {
		return nil, ErrWaiterDisabled
	}

	items, err := b.store.ListMenuItems(ctx, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("relay: fetch menu for %s: %w", restaurantID, err)
	}

	menu := make([]models.MenuItem, 0, len(items))
	for _, item := range items {
		if item.Available {
			menu = append(menu, item)
		}
	}

	language := restaurant.Language
	if languageOverride != "" {
		language = languageOverride
	}
	if language == "" {
		language = "en"
	}

	return &models.SessionConfig{
		RestaurantID:      restaurant.ID,
		RestaurantName:    restaurant.Name,
		Language:          language,
		CustomerSessionID: customerSessionID,
		Menu:              menu,
	}, nil
}
