// TableVox - Realtime AI Waiter Relay for Restaurants
// Copyright 2026 TableVox Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tablevox/tablevox

package store

import (
	"context"
	"sync"

	"github.com/tablevox/tablevox/internal/models"
)

// MemoryStore is an in-memory Store used in tests and local development.
type MemoryStore struct {
	mu          sync.RWMutex
	restaurants map[string]models.Restaurant
	menus       map[string][]models.MenuItem
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		restaurants: make(map[string]models.Restaurant),
		menus:       make(map[string][]models.MenuItem),
	}
}

// PutRestaurant inserts or replaces a restaurant record.
func (s *MemoryStore) PutRestaurant(r models.Restaurant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restaurants[r.ID] = r
}

// PutMenu replaces the menu for a restaurant.
func (s *MemoryStore) PutMenu(restaurantID string, items []models.MenuItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.menus[restaurantID] = append([]models.MenuItem(nil), items...)
}

// GetRestaurant implements RestaurantStore.
func (s *MemoryStore) GetRestaurant(_ context.Context, id string) (*models.Restaurant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.restaurants[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := r
	return &out, nil
}

// ListMenuItems implements MenuStore.
func (s *MemoryStore) ListMenuItems(_ context.Context, restaurantID string) ([]models.MenuItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.MenuItem(nil), s.menus[restaurantID]...), nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }
