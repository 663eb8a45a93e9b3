// Package job defines the Message that travels from the orchestrator to the
// dispatch handler, and its queue wire encoding.
//
// A Message is an immutable {TenantID, FlowName} pair. On the wire it is a
// UTF-8 JSON object with the keys "TenantId" and "FlowName", base64 encoded
// with the standard alphabet:
//
//	msg := job.Message{TenantID: "tenant-xyz", FlowName: "heartbeat"}
//	payload, _ := msg.Encode()   // eyJUZW5hbnRJZCI6InRlbmFudC14eXoiLC...
//	back, err := job.Decode(payload)
//
// A Message carries no retry count or watermark. Redelivery is owned by the
// queue, and the next-run watermark lives on the tenant record.
package job
