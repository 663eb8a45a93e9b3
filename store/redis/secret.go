package redis

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/flowsync/secret"
)

// GetSecret reads name from the secrets hash.
func (s *Store) GetSecret(ctx context.Context, name string) (string, error) {
	v, err := s.client.HGet(ctx, s.keys.secrets(), name).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", &secret.NotFoundError{Name: name}
		}
		return "", fmt.Errorf("flowsync/redis: get secret: %w", err)
	}
	return v, nil
}

// SetSecret writes name into the secrets hash.
func (s *Store) SetSecret(ctx context.Context, name, value string) error {
	if err := s.client.HSet(ctx, s.keys.secrets(), name, value).Err(); err != nil {
		return fmt.Errorf("flowsync/redis: set secret: %w", err)
	}
	return nil
}

// DeleteSecret removes name from the secrets hash.
func (s *Store) DeleteSecret(ctx context.Context, name string) error {
	if err := s.client.HDel(ctx, s.keys.secrets(), name).Err(); err != nil {
		return fmt.Errorf("flowsync/redis: delete secret: %w", err)
	}
	return nil
}
