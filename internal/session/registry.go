// Package session tracks active Telegram Business connections: which
// connection IDs are live and which owner account each one belongs to.
// The persisted store is the source of truth across restarts; the in-memory
// map is a read cache kept in sync on every mutation.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"

	"github.com/inkonio/doppelbot/internal/store"
)

// Registry maps business connection IDs to owner account IDs.
// It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]int64
	store    store.SessionStore
	logger   *slog.Logger
}

// NewRegistry creates an empty Registry backed by the given store.
func NewRegistry(st store.SessionStore, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		sessions: make(map[string]int64),
		store:    st,
		logger:   logger.With("component", "session"),
	}
}

// Load populates the in-memory map from the persisted registry.
// Call once at startup.
func (r *Registry) Load(ctx context.Context) error {
	sessions, err := r.store.Sessions(ctx)
	if err != nil {
		return fmt.Errorf("session: load registry: %w", err)
	}

	r.mu.Lock()
	r.sessions = sessions
	r.mu.Unlock()

	r.logger.Info("session registry loaded", "sessions", len(sessions))
	return nil
}

// Upsert records a session and its owner, overwriting any existing owner for
// the same connection ID. The store write happens before the in-memory update.
func (r *Registry) Upsert(ctx context.Context, connectionID string, ownerID int64) error {
	if err := r.store.SaveSession(ctx, connectionID, ownerID); err != nil {
		return fmt.Errorf("session: save %q: %w", connectionID, err)
	}

	r.mu.Lock()
	r.sessions[connectionID] = ownerID
	r.mu.Unlock()

	return nil
}

// Remove deletes a session from memory and from the store.
// Removing an absent session is a no-op.
func (r *Registry) Remove(ctx context.Context, connectionID string) error {
	if err := r.store.DeleteSession(ctx, connectionID); err != nil {
		return fmt.Errorf("session: delete %q: %w", connectionID, err)
	}

	r.mu.Lock()
	delete(r.sessions, connectionID)
	r.mu.Unlock()

	return nil
}

// Resolve returns the owner ID for a connection ID. The second return value
// is false when the session is unknown.
func (r *Registry) Resolve(connectionID string) (int64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ownerID, ok := r.sessions[connectionID]
	return ownerID, ok
}

// Len returns the number of active sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Snapshot returns a copy of the current connection ID → owner ID mapping.
func (r *Registry) Snapshot() map[string]int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.sessions)
}
