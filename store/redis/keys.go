package redis

// keyspace is the prefix every key is built from.
type keyspace string

const defaultPrefix keyspace = "flowsync:"

// ── Tenant keys ──

// tenant returns the blob key for one tenant: flowsync:tenant:{tenantID}
func (k keyspace) tenant(tenantID string) string { return string(k) + "tenant:" + tenantID }

// tenantIndex is the sorted set of all tenant IDs, every score 0, so
// members are ordered lexicographically.
func (k keyspace) tenantIndex() string { return string(k) + "tenants" }

// ── Queue keys ──

// queue returns the sorted set for a queue, scored by visible-at millis.
func (k keyspace) queue(name string) string { return string(k) + "queue:" + name }

// deliveryPrefix is prepended to a delivery ID to form its hash key.
func (k keyspace) deliveryPrefix() string { return string(k) + "delivery:" }

// delivery returns the hash key holding one delivery.
func (k keyspace) delivery(deliveryID string) string { return k.deliveryPrefix() + deliveryID }

// ── DLQ keys ──

// dlq returns the blob key for one DLQ entry.
func (k keyspace) dlq(entryID string) string { return string(k) + "dlq:" + entryID }

// dlqIndex is the sorted set of DLQ entry IDs scored by FailedAt nanos.
func (k keyspace) dlqIndex() string { return string(k) + "dlq_idx" }

// ── Secret keys ──

// secrets is the hash of secret name to value.
func (k keyspace) secrets() string { return string(k) + "secrets" }
