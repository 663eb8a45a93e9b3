// Package mongo implements store.Store on MongoDB using the official v2
// driver.
//
// Tenant documents carry their concurrency token in the _etag field and
// replaces are filtered on it, so a stale writer matches nothing and gets
// a conflict. Queue claims use FindOneAndUpdate to move visible_at forward
// and increment the attempt counter atomically per delivery.
//
//	s, err := mongo.Open(ctx, "mongodb://localhost:27017", "flowsync")
//	if err != nil { ... }
//	defer s.Close()
package mongo
