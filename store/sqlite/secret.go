package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/xraph/flowsync/secret"
)

// GetSecret reads one secret row.
func (s *Store) GetSecret(ctx context.Context, name string) (string, error) {
	var value string
	if err := s.db.GetContext(ctx, &value, `SELECT value FROM flowsync_secrets WHERE name = ?`, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", &secret.NotFoundError{Name: name}
		}
		return "", fmt.Errorf("flowsync/sqlite: get secret: %w", err)
	}
	return value, nil
}

// SetSecret upserts a secret row.
func (s *Store) SetSecret(ctx context.Context, name, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO flowsync_secrets (name, value) VALUES (?, ?)
		ON CONFLICT (name) DO UPDATE SET value = excluded.value`, name, value)
	if err != nil {
		return fmt.Errorf("flowsync/sqlite: set secret: %w", err)
	}
	return nil
}

// DeleteSecret removes a secret row.
func (s *Store) DeleteSecret(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM flowsync_secrets WHERE name = ?`, name); err != nil {
		return fmt.Errorf("flowsync/sqlite: delete secret: %w", err)
	}
	return nil
}
