// TableVox - Realtime AI Waiter Relay for Restaurants
// Copyright 2026 TableVox Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tablevox/tablevox

package relay

import (
	"sort"
	"sync"

	"github.com/tablevox/tablevox/internal/logging"
	"github.com/tablevox/tablevox/internal/metrics"
)

// Role classifies a connection's purpose within a restaurant.
type Role string

const (
	// RoleCustomer is a diner's voice/text session.
	RoleCustomer Role = "customer"
	// RoleStaff is a staff dashboard subscribed to cart activity.
	RoleStaff Role = "staff"
)

// indexKey addresses the {restaurant, role} secondary index.
type indexKey struct {
	restaurantID string
	role         Role
}

// Registry tracks all live sessions. It is the one shared-mutable structure
// in the relay core; every mutation and lookup goes through its lock, so
// connection-handling goroutines never coordinate with each other directly.
type Registry struct {
	mu     sync.RWMutex
	byID   map[string]*Session
	byRest map[indexKey]map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[string]*Session),
		byRest: make(map[indexKey]map[string]*Session),
	}
}

// Register inserts a session into all applicable indices. Idempotent.
func (r *Registry) Register(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[s.ID]; ok {
		return
	}
	r.byID[s.ID] = s

	key := indexKey{restaurantID: s.RestaurantID, role: s.Role}
	bucket, ok := r.byRest[key]
	if !ok {
		bucket = make(map[string]*Session)
		r.byRest[key] = bucket
	}
	bucket[s.ID] = s

	metrics.ActiveSessions.Set(float64(len(r.byID)))
	logging.Info().
		Str("session_id", s.ID).
		Str("restaurant_id", s.RestaurantID).
		Str("role", string(s.Role)).
		Int("total_sessions", len(r.byID)).
		Msg("session registered")
}

// Deregister removes a session from all indices, pruning any index bucket
// it empties. Removing an absent session is a safe no-op.
func (r *Registry) Deregister(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[s.ID]; !ok {
		return
	}
	delete(r.byID, s.ID)

	key := indexKey{restaurantID: s.RestaurantID, role: s.Role}
	if bucket, ok := r.byRest[key]; ok {
		delete(bucket, s.ID)
		if len(bucket) == 0 {
			delete(r.byRest, key)
		}
	}

	metrics.ActiveSessions.Set(float64(len(r.byID)))
	logging.Info().
		Str("session_id", s.ID).
		Int("total_sessions", len(r.byID)).
		Msg("session deregistered")
}

// Get returns the session with the given identity, or nil.
func (r *Registry) Get(sessionID string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[sessionID]
}

// Lookup returns the sessions matching restaurant and role, optionally
// narrowed to one customer session identifier. The result is never nil and
// is a snapshot safe to iterate without holding the registry lock.
func (r *Registry) Lookup(restaurantID string, role Role, customerSessionID string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bucket := r.byRest[indexKey{restaurantID: restaurantID, role: role}]
	matches := make([]*Session, 0, len(bucket))
	for _, s := range bucket {
		if customerSessionID != "" && s.CustomerSessionID != customerSessionID {
			continue
		}
		matches = append(matches, s)
	}
	// Stable order keeps fan-out delivery deterministic.
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })
	return matches
}

// Sessions returns a snapshot of every registered session, ordered by ID.
// The liveness monitor sweeps over this snapshot.
func (r *Registry) Sessions() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*Session, 0, len(r.byID))
	for _, s := range r.byID {
		all = append(all, s)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all
}

// Count returns the number of registered sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// CloseAll terminates every registered session. Used on server drain.
func (r *Registry) CloseAll() {
	for _, s := range r.Sessions() {
		s.Terminate("server shutdown")
	}
	logging.Info().Msg("closed all relay sessions during shutdown")
}
