// TableVox - Realtime AI Waiter Relay for Restaurants
// Copyright 2026 TableVox Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tablevox/tablevox

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tablevox/tablevox/internal/models"
)

// PostgresStore reads restaurant and menu data from the shared Postgres
// database owned by the management backend. The relay never writes here.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects a pgx pool to the given connection string.
func NewPostgresStore(ctx context.Context, url string) (*PostgresStore, error) {
	if url == "" {
		return nil, fmt.Errorf("store: postgres driver requires a connection URL")
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("store: connect postgres: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// GetRestaurant implements RestaurantStore.
func (s *PostgresStore) GetRestaurant(ctx context.Context, id string) (*models.Restaurant, error) {
	const q = `
		SELECT id, name, COALESCE(language, 'en'), ai_waiter_enabled
		FROM restaurants
		WHERE id = $1`

	var r models.Restaurant
	err := s.pool.QueryRow(ctx, q, id).Scan(&r.ID, &r.Name, &r.Language, &r.AIWaiterEnabled)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get restaurant %s: %w", id, err)
	}
	return &r, nil
}

// ListMenuItems implements MenuStore.
func (s *PostgresStore) ListMenuItems(ctx context.Context, restaurantID string) ([]models.MenuItem, error) {
	const q = `
		SELECT id, name, price::text, COALESCE(description, ''),
		       COALESCE(dietary_flags, '{}'), COALESCE(allergens, '{}'), available
		FROM menu_items
		WHERE restaurant_id = $1
		ORDER BY name`

	rows, err := s.pool.Query(ctx, q, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("store: list menu items for %s: %w", restaurantID, err)
	}
	defer rows.Close()

	var items []models.MenuItem
	for rows.Next() {
		var item models.MenuItem
		if err := rows.Scan(&item.ID, &item.Name, &item.Price, &item.Description,
			&item.Dietary, &item.Allergens, &item.Available); err != nil {
			return nil, fmt.Errorf("store: scan menu item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate menu items: %w", err)
	}
	return items, nil
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
