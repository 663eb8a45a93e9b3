package postgres

import (
	"context"
	"fmt"

	"github.com/xraph/flowsync/secret"
)

// GetSecret reads one secret row.
func (s *Store) GetSecret(ctx context.Context, name string) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM flowsync_secrets WHERE name = $1`, name).Scan(&value)
	if err != nil {
		if isNoRows(err) {
			return "", &secret.NotFoundError{Name: name}
		}
		return "", fmt.Errorf("flowsync/postgres: get secret: %w", err)
	}
	return value, nil
}

// SetSecret upserts a secret row.
func (s *Store) SetSecret(ctx context.Context, name, value string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO flowsync_secrets (name, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		name, value,
	)
	if err != nil {
		return fmt.Errorf("flowsync/postgres: set secret: %w", err)
	}
	return nil
}

// DeleteSecret removes a secret row.
func (s *Store) DeleteSecret(ctx context.Context, name string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM flowsync_secrets WHERE name = $1`, name); err != nil {
		return fmt.Errorf("flowsync/postgres: delete secret: %w", err)
	}
	return nil
}
