package sqlite

import (
	"context"
	"fmt"
)

// AppendExamples persists the given examples in one transaction, preserving order.
func (s *Store) AppendExamples(ctx context.Context, examples []string) error {
	if len(examples) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin append tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO corpus (content) VALUES (?)")
	if err != nil {
		return fmt.Errorf("sqlite: prepare append: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, example := range examples {
		if _, err := stmt.ExecContext(ctx, example); err != nil {
			return fmt.Errorf("sqlite: append example: %w", err)
		}
	}

	return tx.Commit()
}

// Examples returns up to limit examples in insertion order.
// A non-positive limit returns all examples.
func (s *Store) Examples(ctx context.Context, limit int) ([]string, error) {
	query := "SELECT content FROM corpus ORDER BY id"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: get examples: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var examples []string
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, fmt.Errorf("sqlite: scan example: %w", err)
		}
		examples = append(examples, content)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: get examples rows: %w", err)
	}

	return examples, nil
}

// CountExamples returns the number of stored examples.
func (s *Store) CountExamples(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM corpus").Scan(&count); err != nil {
		return 0, fmt.Errorf("sqlite: count examples: %w", err)
	}
	return count, nil
}

// ClearExamples deletes all stored examples.
func (s *Store) ClearExamples(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM corpus"); err != nil {
		return fmt.Errorf("sqlite: clear examples: %w", err)
	}
	return nil
}
