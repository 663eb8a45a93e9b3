// Package audithook is a flowsync extension that turns flow lifecycle
// events into audit records.
//
// Every hook builds an [AuditEvent] and hands it to a [Recorder]. Severity
// is info for normal progress, warning for retries, and critical for
// failures that reach the dead-letter queue.
//
// The CLI enables it with log.audit, recording through [LogRecorder]:
//
//	engine.WithExtension(audithook.New(audithook.LogRecorder(logger)))
//
// Restrict the recorded actions with [WithActions]:
//
//	audithook.New(recorder,
//	    audithook.WithActions(
//	        audithook.ActionFlowFailed,
//	        audithook.ActionFlowDeadLettered,
//	    ),
//	)
package audithook
