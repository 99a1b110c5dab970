// TableVox - Realtime AI Waiter Relay for Restaurants
// Copyright 2026 TableVox Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tablevox/tablevox

package store

import (
	"context"
	"errors"
	"testing"

	"github.com/tablevox/tablevox/internal/models"
)

func TestMemoryStoreGetRestaurant(t *testing.T) {
	st := NewMemoryStore()
	st.PutRestaurant(models.Restaurant{ID: "R1", Name: "Testaurant", AIWaiterEnabled: true})

	r, err := st.GetRestaurant(context.Background(), "R1")
	if err != nil {
		t.Fatal(err)
	}
	if r.Name != "Testaurant" {
		t.Errorf("name = %q", r.Name)
	}

	// The returned record is a copy; mutating it must not affect the store.
	r.Name = "Mutated"
	again, err := st.GetRestaurant(context.Background(), "R1")
	if err != nil {
		t.Fatal(err)
	}
	if again.Name != "Testaurant" {
		t.Errorf("stored record mutated through returned pointer")
	}
}

func TestMemoryStoreGetRestaurantNotFound(t *testing.T) {
	st := NewMemoryStore()

	_, err := st.GetRestaurant(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreListMenuItems(t *testing.T) {
	st := NewMemoryStore()
	items := []models.MenuItem{
		{ID: "m1", Name: "Burger", Available: true},
		{ID: "m2", Name: "Fries", Available: false},
	}
	st.PutMenu("R1", items)

	got, err := st.ListMenuItems(context.Background(), "R1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("items = %d, want 2 including unavailable", len(got))
	}

	// Snapshot independence both ways.
	items[0].Name = "Changed"
	got[1].Name = "AlsoChanged"
	fresh, _ := st.ListMenuItems(context.Background(), "R1")
	if fresh[0].Name != "Burger" || fresh[1].Name != "Fries" {
		t.Errorf("stored menu mutated through shared slice: %v", fresh)
	}
}

func TestMemoryStoreListMenuItemsUnknownRestaurant(t *testing.T) {
	st := NewMemoryStore()

	got, err := st.ListMenuItems(context.Background(), "nope")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("items for unknown restaurant = %v", got)
	}
}

func TestMemoryStorePutMenuReplaces(t *testing.T) {
	st := NewMemoryStore()
	st.PutMenu("R1", []models.MenuItem{{ID: "m1", Name: "Burger"}})
	st.PutMenu("R1", []models.MenuItem{{ID: "m2", Name: "Fries"}})

	got, _ := st.ListMenuItems(context.Background(), "R1")
	if len(got) != 1 || got[0].Name != "Fries" {
		t.Errorf("menu after replace = %v", got)
	}
}

func TestNewSelectsDriver(t *testing.T) {
	st, err := New(context.Background(), Config{Driver: DriverMemory})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := st.(*MemoryStore); !ok {
		t.Errorf("driver %q produced %T", DriverMemory, st)
	}

	if _, err := New(context.Background(), Config{Driver: "cassandra"}); !errors.Is(err, ErrInvalidDriver) {
		t.Errorf("unknown driver err = %v, want ErrInvalidDriver", err)
	}
}

func TestNewDefaultsToMemory(t *testing.T) {
	st, err := New(context.Background(), Config{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := st.(*MemoryStore); !ok {
		t.Errorf("empty driver produced %T", st)
	}
}
