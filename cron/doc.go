// Package cron computes next-run watermarks from 6-field cron expressions
// and runs the orchestrator pass that turns due tenant flows into queued
// job messages.
//
// # Expressions
//
// Every expression has six fields: seconds, minutes, hours, day of month,
// month, day of week. Evaluation always happens in the UTC calendar:
//
//	next, err := cron.NextOccurrence("0 0 */2 * * *", now)
//
// The result is the smallest instant strictly after now. Unparseable text
// fails with a *MalformedScheduleError. A well-formed expression that never
// fires again (for example "0 0 0 30 2 *") yields now + 1h so a single bad
// schedule cannot stall a pass.
//
// # Scheduler
//
// [Scheduler.RunPass] captures now once, pages through every tenant,
// enqueues one message per due flow, advances each fired flow's watermark,
// and writes the tenant back with its ETag. A conflicting write skips that
// tenant until the next pass; the flows will be re-evaluated then.
package cron
