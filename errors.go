package flowsync

import "errors"

var (
	// Store errors.
	ErrNoStore     = errors.New("flowsync: no store configured")
	ErrStoreClosed = errors.New("flowsync: store closed")

	// Not found errors.
	ErrTenantNotFound   = errors.New("flowsync: tenant not found")
	ErrSecretNotFound   = errors.New("flowsync: secret not found")
	ErrDLQNotFound      = errors.New("flowsync: dlq entry not found")
	ErrDeliveryNotFound = errors.New("flowsync: delivery not found")
	ErrUnknownFlow      = errors.New("flowsync: unknown flow")

	// Conflict errors.
	ErrConcurrencyConflict = errors.New("flowsync: concurrency conflict")
	ErrDuplicateTenant     = errors.New("flowsync: duplicate tenant")
	ErrDuplicateFlow       = errors.New("flowsync: duplicate flow")

	// Input errors.
	ErrMalformedSchedule = errors.New("flowsync: malformed schedule")
	ErrMalformedMessage  = errors.New("flowsync: malformed job message")

	// State errors.
	ErrRegistrySealed = errors.New("flowsync: flow registry sealed")
)
