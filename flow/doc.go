// Package flow defines the Task contract every flow implements and the
// Registry that resolves a flow name to a runnable Task.
//
// Flows are registered once at startup from an explicit table:
//
//	reg := flow.NewRegistry()
//	err := reg.RegisterAll(
//	    flow.Definition{Name: "heartbeat", New: newHeartbeat},
//	    flow.Definition{Name: "crm-sync", New: newCRMSync},
//	)
//
// Names are trimmed and compared case-insensitively. The first Resolve
// (or an explicit Freeze) seals the registry; later registrations fail with
// flowsync.ErrRegistrySealed. Each Task is constructed lazily on first
// resolution and then shared by every dispatch, so implementations must be
// safe for concurrent Run calls across tenants.
package flow
