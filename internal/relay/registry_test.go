// TableVox - Realtime AI Waiter Relay for Restaurants
// Copyright 2026 TableVox Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tablevox/tablevox

package relay

import (
	"testing"
)

func newRegisteredSession(t *testing.T, registry *Registry, restaurantID, customerSessionID string, role Role) *Session {
	t.Helper()
	s := NewSession(newFakeConn(), registry, nil, nil, SessionParams{
		RestaurantID:      restaurantID,
		CustomerSessionID: customerSessionID,
		Role:              role,
	})
	registry.Register(s)
	return s
}

func TestRegistryRegisterIdempotent(t *testing.T) {
	registry := NewRegistry()
	s := newRegisteredSession(t, registry, "R1", "", RoleCustomer)

	registry.Register(s)
	registry.Register(s)

	if got := registry.Count(); got != 1 {
		t.Errorf("count after duplicate registers = %d, want 1", got)
	}
}

func TestRegistryDeregisterAbsentIsNoOp(t *testing.T) {
	registry := NewRegistry()
	s := newRegisteredSession(t, registry, "R1", "", RoleCustomer)

	registry.Deregister(s)
	registry.Deregister(s)

	if got := registry.Count(); got != 0 {
		t.Errorf("count after double deregister = %d, want 0", got)
	}
	if registry.Get(s.ID) != nil {
		t.Errorf("deregistered session still resolvable")
	}
}

func TestRegistryGet(t *testing.T) {
	registry := NewRegistry()
	s := newRegisteredSession(t, registry, "R1", "", RoleCustomer)

	if got := registry.Get(s.ID); got != s {
		t.Errorf("Get returned %v, want the registered session", got)
	}
	if got := registry.Get("nonexistent"); got != nil {
		t.Errorf("Get for unknown id = %v, want nil", got)
	}
}

func TestRegistryLookupByRestaurantAndRole(t *testing.T) {
	registry := NewRegistry()
	newRegisteredSession(t, registry, "R1", "cs-1", RoleCustomer)
	c2 := newRegisteredSession(t, registry, "R1", "cs-2", RoleCustomer)
	staff := newRegisteredSession(t, registry, "R1", "", RoleStaff)
	newRegisteredSession(t, registry, "R2", "", RoleCustomer)

	customers := registry.Lookup("R1", RoleCustomer, "")
	if len(customers) != 2 {
		t.Fatalf("R1 customers = %d, want 2", len(customers))
	}
	// Snapshot ordering is by session id.
	if customers[0].ID > customers[1].ID {
		t.Errorf("lookup result not ordered by id")
	}

	staffMatches := registry.Lookup("R1", RoleStaff, "")
	if len(staffMatches) != 1 || staffMatches[0] != staff {
		t.Errorf("R1 staff lookup = %v", staffMatches)
	}

	byCS := registry.Lookup("R1", RoleCustomer, "cs-2")
	if len(byCS) != 1 || byCS[0] != c2 {
		t.Errorf("customer-session lookup = %v, want only cs-2", byCS)
	}

	if got := registry.Lookup("R3", RoleCustomer, ""); got == nil || len(got) != 0 {
		t.Errorf("lookup of empty bucket = %v, want empty non-nil slice", got)
	}
}

func TestRegistryLookupAfterDeregisterPrunesBucket(t *testing.T) {
	registry := NewRegistry()
	s := newRegisteredSession(t, registry, "R1", "", RoleStaff)

	registry.Deregister(s)

	if got := registry.Lookup("R1", RoleStaff, ""); len(got) != 0 {
		t.Errorf("lookup after deregister = %v, want empty", got)
	}
}

func TestRegistrySessionsSnapshot(t *testing.T) {
	registry := NewRegistry()
	newRegisteredSession(t, registry, "R1", "", RoleCustomer)
	newRegisteredSession(t, registry, "R2", "", RoleStaff)

	all := registry.Sessions()
	if len(all) != 2 {
		t.Fatalf("sessions = %d, want 2", len(all))
	}
	if all[0].ID > all[1].ID {
		t.Errorf("sessions snapshot not ordered by id")
	}
}

func TestRegistryCloseAll(t *testing.T) {
	registry := NewRegistry()
	s1 := newRegisteredSession(t, registry, "R1", "", RoleCustomer)
	s2 := newRegisteredSession(t, registry, "R1", "", RoleStaff)

	registry.CloseAll()

	if got := registry.Count(); got != 0 {
		t.Errorf("count after CloseAll = %d, want 0", got)
	}
	if s1.State() != StateClosed || s2.State() != StateClosed {
		t.Errorf("sessions not closed: %v, %v", s1.State(), s2.State())
	}
}
