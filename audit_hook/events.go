package audithook

// Audit event actions. Each constant corresponds to one ext lifecycle hook
// and becomes the Action field of the audit event.
const (
	ActionFlowEnqueued     = "flow.enqueued"
	ActionFlowStarted      = "flow.started"
	ActionFlowCompleted    = "flow.completed"
	ActionFlowFailed       = "flow.failed"
	ActionFlowRetrying     = "flow.retrying"
	ActionFlowDeadLettered = "flow.dead_lettered"
	ActionPassCompleted    = "pass.completed"
)

// Audit event categories group related actions.
const (
	CategoryFlow = "flowsync.flow"
	CategoryPass = "flowsync.pass"
)

// Resource types used as the Resource field in audit events.
const (
	ResourceTenant   = "tenant"
	ResourceDelivery = "delivery"
	ResourceDLQEntry = "dlq_entry"
	ResourcePass     = "pass"
)

// AllActions returns every action this extension can emit.
func AllActions() []string {
	return []string{
		ActionFlowEnqueued,
		ActionFlowStarted,
		ActionFlowCompleted,
		ActionFlowFailed,
		ActionFlowRetrying,
		ActionFlowDeadLettered,
		ActionPassCompleted,
	}
}
