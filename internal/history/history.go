// Package history maintains the per-counterparty conversation window as two
// explicit tiers: a bounded in-memory recency cache and the durable
// append-only log behind store.ConversationLog. The log is always a superset
// of what memory holds (modulo retention pruning); memory is purely a
// performance cache and is rebuilt lazily from the log.
package history

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/inkonio/doppelbot/internal/store"
)

// Config bounds the window manager tiers.
type Config struct {
	// MemoryCap is the maximum number of turns kept in memory per counterparty.
	MemoryCap int

	// HydrateLimit is how many persisted turns are loaded when the in-memory
	// tier for a counterparty is empty.
	HydrateLimit int

	// Retention is how long persisted turns are kept before PurgeStale
	// removes them.
	Retention time.Duration
}

// withDefaults returns a copy of the config with zero values replaced by defaults.
func (c Config) withDefaults() Config {
	if c.MemoryCap <= 0 {
		c.MemoryCap = 20
	}
	if c.HydrateLimit <= 0 {
		c.HydrateLimit = 15
	}
	if c.Retention <= 0 {
		c.Retention = 7 * 24 * time.Hour
	}
	return c
}

// Manager is the hybrid conversation window. Safe for concurrent use.
type Manager struct {
	log    store.ConversationLog
	config Config
	now    func() time.Time

	mu    sync.Mutex
	turns map[int64][]store.Turn
}

// NewManager creates a Manager over the given log.
func NewManager(log store.ConversationLog, cfg Config) *Manager {
	return &Manager{
		log:    log,
		config: cfg.withDefaults(),
		now:    time.Now,
		turns:  make(map[int64][]store.Turn),
	}
}

// AppendTurn writes one turn to the persisted log, then appends it to the
// in-memory tier, truncating memory to the most recent MemoryCap entries.
// The persisted log is never truncated here.
func (m *Manager) AppendTurn(ctx context.Context, counterpartyID int64, role store.Role, content string) error {
	turn := store.Turn{
		CounterpartyID: counterpartyID,
		Role:           role,
		Content:        content,
		CreatedAt:      m.now().UTC(),
	}

	if err := m.log.AppendTurn(ctx, turn); err != nil {
		return fmt.Errorf("history: append turn: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	turns := append(m.turns[counterpartyID], turn)
	if len(turns) > m.config.MemoryCap {
		turns = turns[len(turns)-m.config.MemoryCap:]
	}
	m.turns[counterpartyID] = turns
	return nil
}

// Recent returns up to limit turns for a counterparty in chronological order.
// When the in-memory tier is empty it is first hydrated with the most recent
// HydrateLimit persisted turns.
func (m *Manager) Recent(ctx context.Context, counterpartyID int64, limit int) ([]store.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	turns := m.turns[counterpartyID]
	if len(turns) == 0 {
		hydrated, err := m.log.RecentTurns(ctx, counterpartyID, m.config.HydrateLimit)
		if err != nil {
			return nil, fmt.Errorf("history: hydrate: %w", err)
		}
		m.turns[counterpartyID] = hydrated
		turns = hydrated
	}

	if limit > 0 && limit < len(turns) {
		turns = turns[len(turns)-limit:]
	}

	result := make([]store.Turn, len(turns))
	copy(result, turns)
	return result, nil
}

// MemoryLen reports how many turns the in-memory tier holds for a
// counterparty, without hydrating.
func (m *Manager) MemoryLen(counterpartyID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.turns[counterpartyID])
}

// PurgeStale deletes persisted turns older than the retention horizon and
// reports how many were removed. The in-memory tier is left alone; it bounds
// itself on append. Intended to run once at startup.
func (m *Manager) PurgeStale(ctx context.Context) (int64, error) {
	cutoff := m.now().Add(-m.config.Retention)
	purged, err := m.log.PurgeTurnsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("history: purge stale: %w", err)
	}
	return purged, nil
}

// ClearAll deletes all persisted turns and empties every in-memory window.
func (m *Manager) ClearAll(ctx context.Context) error {
	if err := m.log.ClearTurns(ctx); err != nil {
		return fmt.Errorf("history: clear all: %w", err)
	}

	m.mu.Lock()
	m.turns = make(map[int64][]store.Turn)
	m.mu.Unlock()
	return nil
}
