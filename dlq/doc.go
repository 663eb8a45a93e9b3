// Package dlq provides the dead-letter path for job messages that cannot
// be processed: payloads that fail to decode, and deliveries that exhausted
// their attempt budget.
//
// The worker pool calls [Service.Push] when it gives up on a delivery. The
// original payload, the final error, and the attempt count are kept. When
// the payload decodes, the tenant and flow are copied onto the entry for
// filtering.
//
// [Service.Replay] pushes the original payload back onto its queue as a
// fresh delivery and stamps ReplayedAt on the entry.
//
// The admin API exposes the DLQ:
//   - GET    /v1/dlq                      list entries
//   - GET    /v1/dlq/{entryID}            one entry
//   - POST   /v1/dlq/{entryID}/replay     replay one entry
//   - DELETE /v1/dlq?before=RFC3339       purge old entries
package dlq
