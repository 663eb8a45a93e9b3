// Package secret provides tenant-scoped credential access for flows.
//
// Secrets are stored under flat names built by [Name]:
//
//	tenants--{tenantID}--{system}--{key}
//
// A flow never sees the raw [Store]. It receives an [Accessor] bound to a
// single tenant, so a flow running for tenant A cannot read tenant B's
// credentials.
package secret
