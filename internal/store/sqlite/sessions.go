package sqlite

import (
	"context"
	"fmt"
)

// Sessions returns all persisted sessions as connection ID → owner ID.
func (s *Store) Sessions(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT connection_id, owner_id FROM sessions")
	if err != nil {
		return nil, fmt.Errorf("sqlite: get sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	sessions := make(map[string]int64)
	for rows.Next() {
		var (
			connectionID string
			ownerID      int64
		)
		if err := rows.Scan(&connectionID, &ownerID); err != nil {
			return nil, fmt.Errorf("sqlite: scan session: %w", err)
		}
		sessions[connectionID] = ownerID
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: get sessions rows: %w", err)
	}

	return sessions, nil
}

// SaveSession stores or replaces the owner for a connection ID.
func (s *Store) SaveSession(ctx context.Context, connectionID string, ownerID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (connection_id, owner_id) VALUES (?, ?)
		ON CONFLICT(connection_id) DO UPDATE SET owner_id = excluded.owner_id`,
		connectionID, ownerID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: save session %q: %w", connectionID, err)
	}
	return nil
}

// DeleteSession removes a session. Deleting an absent session is not an error.
func (s *Store) DeleteSession(ctx context.Context, connectionID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE connection_id = ?", connectionID); err != nil {
		return fmt.Errorf("sqlite: delete session %q: %w", connectionID, err)
	}
	return nil
}
