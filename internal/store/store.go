// Package store defines the persistence contracts for doppelbot: a flat
// settings table, the style example corpus, the business session registry,
// and the per-counterparty conversation log. Implementations live in
// subpackages (e.g. store/sqlite).
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// Role identifies the author of a conversation turn.
type Role string

// Role constants for conversation turns.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one recorded message in a counterparty's conversation.
type Turn struct {
	CounterpartyID int64
	Role           Role
	Content        string
	CreatedAt      time.Time
}

// SettingsStore is a flat key-value settings table.
type SettingsStore interface {
	// Setting returns the value for key, or ErrNotFound.
	Setting(ctx context.Context, key string) (string, error)

	// SetSetting stores or replaces the value for key.
	SetSetting(ctx context.Context, key, value string) error
}

// CorpusStore holds the owner's style example messages, append-only and
// ordered by insertion.
type CorpusStore interface {
	// AppendExamples persists the given examples in one batch, preserving order.
	AppendExamples(ctx context.Context, examples []string) error

	// Examples returns up to limit examples in insertion order.
	// A non-positive limit returns all examples.
	Examples(ctx context.Context, limit int) ([]string, error)

	// CountExamples returns the number of stored examples.
	CountExamples(ctx context.Context) (int, error)

	// ClearExamples deletes all stored examples.
	ClearExamples(ctx context.Context) error
}

// SessionStore persists the business connection registry.
type SessionStore interface {
	// Sessions returns all persisted sessions as connection ID → owner ID.
	Sessions(ctx context.Context) (map[string]int64, error)

	// SaveSession stores or replaces the owner for a connection ID.
	SaveSession(ctx context.Context, connectionID string, ownerID int64) error

	// DeleteSession removes a session. Deleting an absent session is not an error.
	DeleteSession(ctx context.Context, connectionID string) error
}

// ConversationLog is the durable, time-indexed record of conversation turns.
type ConversationLog interface {
	// AppendTurn appends a single turn to the log.
	AppendTurn(ctx context.Context, turn Turn) error

	// RecentTurns returns the n most recent turns for a counterparty in
	// chronological (oldest-first) order.
	RecentTurns(ctx context.Context, counterpartyID int64, n int) ([]Turn, error)

	// PurgeTurnsBefore deletes all turns older than cutoff and reports how
	// many rows were removed.
	PurgeTurnsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// ClearTurns deletes all turns for all counterparties.
	ClearTurns(ctx context.Context) error
}
