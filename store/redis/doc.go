// Package redis implements store.Store on Redis.
//
// Tenants and DLQ entries are MessagePack blobs under their own keys, with
// sorted-set indexes for ordered scans. Tenant replaces are optimistic:
// the write runs in a WATCH/MULTI transaction and only lands if the stored
// ETag still matches. Each queue is a sorted set scored by visibility time;
// a Lua script claims visible members and pushes their score forward by
// the visibility timeout in one step. Secrets live in a single hash.
//
// The caller owns the client lifecycle:
//
//	client := goredis.NewClient(&goredis.Options{Addr: "localhost:6379"})
//	s := redis.New(client)
//	if err := s.Ping(ctx); err != nil { ... }
package redis
