package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/flowsync/secret"
)

// GetSecret reads one secret document.
func (s *Store) GetSecret(ctx context.Context, name string) (string, error) {
	var m secretModel
	if err := s.db.Collection(colSecrets).FindOne(ctx, bson.M{"_id": name}).Decode(&m); err != nil {
		if isNoDocuments(err) {
			return "", &secret.NotFoundError{Name: name}
		}
		return "", fmt.Errorf("flowsync/mongo: get secret: %w", err)
	}
	return m.Value, nil
}

// SetSecret upserts a secret document.
func (s *Store) SetSecret(ctx context.Context, name, value string) error {
	_, err := s.db.Collection(colSecrets).ReplaceOne(ctx,
		bson.M{"_id": name},
		secretModel{Name: name, Value: value},
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("flowsync/mongo: set secret: %w", err)
	}
	return nil
}

// DeleteSecret removes a secret document.
func (s *Store) DeleteSecret(ctx context.Context, name string) error {
	if _, err := s.db.Collection(colSecrets).DeleteOne(ctx, bson.M{"_id": name}); err != nil {
		return fmt.Errorf("flowsync/mongo: delete secret: %w", err)
	}
	return nil
}
