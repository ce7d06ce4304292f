package sqlite

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/inkonio/doppelbot/internal/store"
)

// AppendTurn appends a single turn to the conversation log.
func (s *Store) AppendTurn(ctx context.Context, turn store.Turn) error {
	createdAt := turn.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO turns (counterparty_id, role, content, created_at)
		VALUES (?, ?, ?, ?)`,
		turn.CounterpartyID, string(turn.Role), turn.Content, formatTime(createdAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: append turn: %w", err)
	}
	return nil
}

// RecentTurns returns the n most recent turns for a counterparty in
// chronological (oldest-first) order.
func (s *Store) RecentTurns(ctx context.Context, counterpartyID int64, n int) ([]store.Turn, error) {
	if n <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, created_at
		FROM turns
		WHERE counterparty_id = ?
		ORDER BY id DESC
		LIMIT ?`,
		counterpartyID, n,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: get recent turns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var turns []store.Turn
	for rows.Next() {
		var (
			role      string
			content   string
			createdAt string
		)
		if err := rows.Scan(&role, &content, &createdAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan turn: %w", err)
		}
		ts, err := parseTime(createdAt)
		if err != nil {
			return nil, err
		}
		turns = append(turns, store.Turn{
			CounterpartyID: counterpartyID,
			Role:           store.Role(role),
			Content:        content,
			CreatedAt:      ts,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: get recent turns rows: %w", err)
	}

	// Reverse to chronological order.
	slices.Reverse(turns)
	return turns, nil
}

// PurgeTurnsBefore deletes all turns older than cutoff and reports how many
// rows were removed.
func (s *Store) PurgeTurnsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM turns WHERE created_at < ?", formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("sqlite: purge turns: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: purge turns rows affected: %w", err)
	}
	return n, nil
}

// ClearTurns deletes all turns for all counterparties.
func (s *Store) ClearTurns(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM turns"); err != nil {
		return fmt.Errorf("sqlite: clear turns: %w", err)
	}
	return nil
}
