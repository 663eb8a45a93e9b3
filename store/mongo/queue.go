package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/flowsync"
	"github.com/xraph/flowsync/id"
	"github.com/xraph/flowsync/queue"
)

// PushMessage inserts a delivery visible immediately.
func (s *Store) PushMessage(ctx context.Context, q, payload string) (*queue.Delivery, error) {
	ts := now()
	d := &queue.Delivery{
		ID:         id.NewDeliveryID(),
		Queue:      q,
		Payload:    payload,
		EnqueuedAt: ts,
		VisibleAt:  ts,
	}
	if _, err := s.db.Collection(colDeliveries).InsertOne(ctx, toDeliveryModel(d)); err != nil {
		return nil, fmt.Errorf("flowsync/mongo: push message: %w", err)
	}
	return d, nil
}

// ClaimMessages leases up to limit visible deliveries, one
// FindOneAndUpdate per delivery so concurrent consumers never share one.
func (s *Store) ClaimMessages(ctx context.Context, q string, limit int, visibility time.Duration) ([]*queue.Delivery, error) {
	col := s.db.Collection(colDeliveries)
	ts := now()

	filter := bson.M{
		"queue":      q,
		"visible_at": bson.M{"$lte": ts},
	}
	update := bson.M{
		"$set": bson.M{"visible_at": ts.Add(visibility)},
		"$inc": bson.M{"attempt": 1},
	}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetSort(bson.D{{Key: "visible_at", Value: 1}, {Key: "_id", Value: 1}})

	out := make([]*queue.Delivery, 0, limit)
	for range limit {
		var m deliveryModel
		if err := col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&m); err != nil {
			if isNoDocuments(err) {
				break
			}
			return out, fmt.Errorf("flowsync/mongo: claim messages: %w", err)
		}
		d, err := fromDeliveryModel(&m)
		if err != nil {
			return out, fmt.Errorf("flowsync/mongo: claim convert: %w", err)
		}
		out = append(out, d)
	}
	return out, nil
}

// AckMessage deletes a delivery.
func (s *Store) AckMessage(ctx context.Context, d *queue.Delivery) error {
	res, err := s.db.Collection(colDeliveries).DeleteOne(ctx, bson.M{"_id": d.ID.String()})
	if err != nil {
		return fmt.Errorf("flowsync/mongo: ack message: %w", err)
	}
	if res.DeletedCount == 0 {
		return flowsync.ErrDeliveryNotFound
	}
	return nil
}

// RetryMessage moves visible_at to now+delay and records d.LastError.
func (s *Store) RetryMessage(ctx context.Context, d *queue.Delivery, delay time.Duration) error {
	res, err := s.db.Collection(colDeliveries).UpdateOne(ctx,
		bson.M{"_id": d.ID.String()},
		bson.M{"$set": bson.M{
			"visible_at": now().Add(delay),
			"last_error": d.LastError,
		}},
	)
	if err != nil {
		return fmt.Errorf("flowsync/mongo: retry message: %w", err)
	}
	if res.MatchedCount == 0 {
		return flowsync.ErrDeliveryNotFound
	}
	return nil
}

// ExtendLease moves visible_at of a leased delivery to now+visibility.
func (s *Store) ExtendLease(ctx context.Context, d *queue.Delivery, visibility time.Duration) error {
	res, err := s.db.Collection(colDeliveries).UpdateOne(ctx,
		bson.M{"_id": d.ID.String()},
		bson.M{"$set": bson.M{"visible_at": now().Add(visibility)}},
	)
	if err != nil {
		return fmt.Errorf("flowsync/mongo: extend lease: %w", err)
	}
	if res.MatchedCount == 0 {
		return flowsync.ErrDeliveryNotFound
	}
	return nil
}

// CountMessages counts deliveries in q.
func (s *Store) CountMessages(ctx context.Context, q string) (int64, error) {
	n, err := s.db.Collection(colDeliveries).CountDocuments(ctx, bson.M{"queue": q})
	if err != nil {
		return 0, fmt.Errorf("flowsync/mongo: count messages: %w", err)
	}
	return n, nil
}
